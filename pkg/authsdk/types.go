package authsdk

import (
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the wire form of an APIError.
// Client code should use the APIError type from errors.go instead.
type ErrorResponse struct {
	// Error is the machine readable error code (e.g. "invalid_token")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Auth Requests
// ============================================================================

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=64"`
}

// LoginRequest is the body of POST /v1/auth/login. DeviceID takes
// precedence over the X-Device-Id header.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	DeviceID string `json:"deviceId,omitempty" validate:"max=128"`
}

// ============================================================================
// Auth Responses
// ============================================================================

// TokenResponse is returned by register, login, refresh and the Google
// callback. The refresh token travels only in the refresh_token cookie.
type TokenResponse struct {
	// AccessToken is the JWT bearer token used to authenticate API requests
	AccessToken string `json:"accessToken"`

	// ExpiresAt is when the access token stops verifying
	ExpiresAt time.Time `json:"expiresAt"`

	// Method is set to the identity provider for provider logins
	Method string `json:"method,omitempty"`
}

// OKResponse acknowledges an operation without a payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// RevokeOthersResponse is returned by POST /v1/auth/sessions/revoke-others.
type RevokeOthersResponse struct {
	OK      bool `json:"ok"`
	Revoked int  `json:"revoked"`
}

// SessionItem describes one session of the caller.
type SessionItem struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt time.Time  `json:"lastUsedAt"`
	RevokedAt  *time.Time `json:"revokedAt"`
	IP         *string    `json:"ip"`
	UserAgent  *string    `json:"userAgent"`
	DeviceID   *string    `json:"deviceId"`

	// Current marks the session the calling access token belongs to
	Current bool `json:"current"`
}

// SessionsResponse is returned by GET /v1/auth/sessions, newest first.
type SessionsResponse struct {
	Sessions []SessionItem `json:"sessions"`
}

// ProviderItem is one linked identity provider.
type ProviderItem struct {
	Provider   string    `json:"provider"`
	ProviderID string    `json:"providerId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ProvidersResponse is returned by GET /v1/auth/providers.
type ProvidersResponse struct {
	Providers []ProviderItem `json:"providers"`
}

// MeResponse is returned by GET /v1/auth/me.
type MeResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Roles       []string  `json:"roles"`
}

// ============================================================================
// Catalog Types
// ============================================================================

// UpsertSeriesRequest is the body of PUT /v1/admin/series/{slug}. An
// omitted description or cover URL keeps the stored value.
type UpsertSeriesRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Status      string  `json:"status,omitempty" validate:"omitempty,oneof=draft published"`
	CoverURL    *string `json:"coverUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// SeriesResponse is a catalog series.
type SeriesResponse struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CoverURL    *string   `json:"coverUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CatalogCounts are the catalog row counts.
type CatalogCounts struct {
	Series   int64 `json:"series"`
	Chapters int64 `json:"chapters"`
	Pages    int64 `json:"pages"`
}

// ============================================================================
// Crawler Types
// ============================================================================

// EnqueueSeriesRequest is the body of POST /v1/crawler/series.
type EnqueueSeriesRequest struct {
	URL string `json:"url" validate:"required,http_url,max=2048"`
}

// SeedRequest is the body of POST /v1/crawler/seed.
type SeedRequest struct {
	Pages int `json:"pages" validate:"required,min=1,max=2000"`
}

// EnqueueResponse is returned by the crawler enqueue endpoints. Enqueued
// counts only jobs that were not already known to the queue.
type EnqueueResponse struct {
	OK       bool   `json:"ok"`
	Enqueued int    `json:"enqueued"`
	Type     string `json:"type"`
}

// QueueCounts is the number of crawl jobs in each state.
type QueueCounts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
}

// CrawlerCounters are the in-process counters since the server started.
type CrawlerCounters struct {
	Enqueued  int64  `json:"enqueued"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	LastError string `json:"lastError"`
}

// CrawlerMetricsResponse is returned by GET /v1/crawler/metrics.
type CrawlerMetricsResponse struct {
	Queue    QueueCounts     `json:"queue"`
	Counters CrawlerCounters `json:"counters"`
	DB       CatalogCounts   `json:"db"`
}

// CrawlerHost is a site the crawler is configured for.
type CrawlerHost struct {
	Host    string `json:"host"`
	BaseURL string `json:"baseUrl"`
	Source  string `json:"source"`
}

// HostsResponse is returned by GET /v1/crawler/hosts.
type HostsResponse struct {
	Hosts []CrawlerHost `json:"hosts"`
}

// CrawlerJob is one job of the crawl queue. The id is the page URL.
type CrawlerJob struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	URL          string     `json:"url"`
	State        string     `json:"state"`
	AttemptsMade int        `json:"attemptsMade"`
	MaxAttempts  int        `json:"maxAttempts"`
	FailedReason string     `json:"failedReason,omitempty"`
	EnqueuedAt   time.Time  `json:"enqueuedAt"`
	FinishedOn   *time.Time `json:"finishedOn,omitempty"`
}

// JobsResponse is returned by the crawler job listings.
type JobsResponse struct {
	Jobs []CrawlerJob `json:"jobs"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// the public key used to verify access tokens.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the auth database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// Queue indicates the crawl queue connection status, omitted when the
	// crawler is disabled
	Queue string `json:"queue,omitempty"`
}
