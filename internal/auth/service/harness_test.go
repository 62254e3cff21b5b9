package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store/drivers/sqlite"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/events"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	store  *sqlite.Store
	clock  *testClock
	keys   *jwtx.KeyManager
	events *recordingPublisher
	auth   *AuthService
}

var testMeta = domain.ClientMeta{IP: "198.51.100.4", UserAgent: "go-test", DeviceID: "device-1"}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}

	keys, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm:     jwtx.AlgorithmHS256,
		Issuer:        "webtoon-test",
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-0123456789",
		Now:           clock.Now,
	})
	require.NoError(t, err)

	hasher, err := cryptox.NewHasherWithParams("pepper", cryptox.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	audit := &Auditor{Events: pub, Topic: "auth.audit"}
	issuer := &Issuer{
		Keys:       keys,
		Issuer:     "webtoon-test",
		AccessTTL:  10 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		Now:        clock.Now,
	}
	ledger := &Ledger{Store: st, Issuer: issuer, Audit: audit, Now: clock.Now}

	return &harness{
		store:  st,
		clock:  clock,
		keys:   keys,
		events: pub,
		auth: &AuthService{
			Store:            st,
			Credentials:      &Credentials{Hasher: hasher},
			Issuer:           issuer,
			Ledger:           ledger,
			Audit:            audit,
			AllowOAuthSignup: true,
			AdminEmail:       "admin@example.com",
			Now:              clock.Now,
		},
	}
}

func (h *harness) register(t *testing.T, email string) domain.TokenPair {
	t.Helper()
	pair, err := h.auth.Register(context.Background(), email, "correct horse battery", "Reader", testMeta)
	require.NoError(t, err)
	return pair
}

func (h *harness) session(t *testing.T, id string) domain.Session {
	t.Helper()
	s, err := h.store.Sessions().GetSessionByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (h *harness) activeRecords(t *testing.T, sessionID string) int {
	t.Helper()
	lineage, err := h.store.RefreshTokens().ListSessionRefreshTokens(context.Background(), sessionID)
	require.NoError(t, err)
	n := 0
	for _, r := range lineage {
		if r.State(h.clock.Now()) == domain.RefreshIssued {
			n++
		}
	}
	return n
}
