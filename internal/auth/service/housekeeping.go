package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
)

// HousekeepingService periodically reports how many refresh records are
// live and how many expired. Records are never deleted: an expired record
// still ties a replayed token to its lineage.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the report loop in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop ends the loop and waits for an in-progress report to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Report(ctx)

	for {
		select {
		case <-ticker.C:
			s.Report(ctx)
		case <-s.stopCh:
			return
		}
	}
}

// Report counts refresh records by expiry and publishes the counts on the
// auth_refresh_records gauge.
func (s *HousekeepingService) Report(ctx context.Context) (live, expired int64, err error) {
	now := s.Now().UTC()

	live, expired, err = s.Store.RefreshTokens().CountRefreshTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to count refresh tokens", "error", err)
		return 0, 0, err
	}

	refreshRecords.WithLabelValues("live").Set(float64(live))
	refreshRecords.WithLabelValues("expired").Set(float64(expired))

	s.Logger.Info("housekeeping report completed", "refresh_tokens_live", live, "refresh_tokens_expired", expired)
	return live, expired, nil
}
