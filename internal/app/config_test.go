package app

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
)

func secrets(extra map[string]string) map[string]string {
	m := map[string]string{
		"ACCESS_TOKEN_SECRET":  "access-secret-at-least-32-bytes-long",
		"REFRESH_TOKEN_SECRET": "refresh-secret-at-least-32-bytes-long",
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(env.Options{Environment: secrets(nil)})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Env)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "webtoon.db", cfg.DatabaseFile)
	require.Equal(t, "HS256", cfg.Algorithm)
	require.Equal(t, 10*time.Minute, cfg.AccessTTL())
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTTL())
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.True(t, cfg.AllowOAuthSignup)
	require.False(t, cfg.CrawlerEnabled)
	require.Equal(t, 2, cfg.CrawlerConcurrency)
	require.Equal(t, 5, cfg.CrawlerRateMax)
	require.Equal(t, time.Second, cfg.CrawlerRateWindow)
	require.Equal(t, time.Minute, cfg.CrawlerJobTimeout)
	require.Empty(t, cfg.KafkaBrokers)
	require.False(t, cfg.GoogleEnabled())
	require.False(t, cfg.Production())
	require.Equal(t, httpx.DefaultRateLimitProfiles(), cfg.RateLimits())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(env.Options{Environment: secrets(map[string]string{
		"APP_ENV":                   "production",
		"ACCESS_TOKEN_TTL_SEC":      "300",
		"KAFKA_BROKERS":             "kafka-1:9092,kafka-2:9092",
		"CRAWLER_ENABLED":           "true",
		"CRAWLER_RATE_WINDOW":       "2s",
		"RATELIMIT_STRICT_REQUESTS": "50",
		"RATELIMIT_PUBLIC_BURST":    "7",
		"GOOGLE_CLIENT_ID":          "client",
		"GOOGLE_CLIENT_SECRET":      "secret",
		"GOOGLE_CALLBACK_URL":       "https://api.test/v1/auth/google/callback",
	})})
	require.NoError(t, err)

	require.True(t, cfg.Production())
	require.Equal(t, 5*time.Minute, cfg.AccessTTL())
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.CrawlerEnabled)
	require.Equal(t, 2*time.Second, cfg.CrawlerRateWindow)
	require.True(t, cfg.GoogleEnabled())

	limits := cfg.RateLimits()
	require.Equal(t, 50, limits.Strict.RequestsPerWindow)
	require.Equal(t, time.Minute, limits.Strict.Window)
	require.Equal(t, 7, limits.Public.Burst)
	require.Equal(t, 1000, limits.Public.RequestsPerWindow)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		environ map[string]string
		wantErr string
	}{
		{
			name:    "missing secrets",
			environ: map[string]string{},
			wantErr: "ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required",
		},
		{
			name: "shared secret",
			environ: map[string]string{
				"ACCESS_TOKEN_SECRET":  "same-secret-at-least-32-bytes-long!",
				"REFRESH_TOKEN_SECRET": "same-secret-at-least-32-bytes-long!",
			},
			wantErr: "must differ",
		},
		{
			name:    "unknown algorithm",
			environ: secrets(map[string]string{"AUTH_ALGORITHM": "RS256"}),
			wantErr: `AUTH_ALGORITHM "RS256" is not supported`,
		},
		{
			name:    "eddsa needs no secrets",
			environ: map[string]string{"AUTH_ALGORITHM": "EdDSA"},
		},
		{
			name:    "partial google settings",
			environ: secrets(map[string]string{"GOOGLE_CLIENT_ID": "client"}),
			wantErr: "must be set together",
		},
		{
			name:    "non positive ttl",
			environ: secrets(map[string]string{"REFRESH_TOKEN_TTL_DAYS": "0"}),
			wantErr: "REFRESH_TOKEN_TTL_DAYS must be positive",
		},
		{
			name: "crawler base url",
			environ: secrets(map[string]string{
				"CRAWLER_ENABLED":  "true",
				"CRAWLER_BASE_URL": "one-manga",
			}),
			wantErr: "CRAWLER_BASE_URL",
		},
		{
			name: "crawler settings ignored when disabled",
			environ: secrets(map[string]string{
				"CRAWLER_BASE_URL":    "one-manga",
				"CRAWLER_CONCURRENCY": "0",
			}),
		},
		{
			name:    "sample rate",
			environ: secrets(map[string]string{"OTEL_SAMPLE_RATE": "1.5"}),
			wantErr: "OTEL_SAMPLE_RATE",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadConfig(env.Options{Environment: tc.environ})
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(env.Options{Environment: secrets(map[string]string{
		"CRAWLER_CONCURRENCY": "two",
	})})
	require.ErrorContains(t, err, "parse env")
}
