package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/oauth2"

	_ "github.com/silaprtnw01/webtoon-be-normal-design/api/docs" // Swagger docs
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

// RouteRegistrar adds another component's routes to the shared mux. authn
// verifies bearer tokens and puts the caller into the request context.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authn httpx.Middleware, limits httpx.RateLimitProfiles)
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	verifier     httpx.AccessVerifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	limits       httpx.RateLimitProfiles

	store   store.Store
	Auth    *service.AuthService
	Cookies service.CookiePolicy

	// Google enables the Google sign-in routes when set.
	Google            *oauth2.Config
	GoogleUserInfoURL string

	// Queue is checked by /readyz when the crawler is enabled.
	Queue Pinger
}

func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	limits httpx.RateLimitProfiles,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     keys.AccessVerifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		limits:       limits,
		logger:       logger,
	}

	// Metrics must stay last so it wraps the mux directly.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recovery(),
		httpx.Metrics(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerGoogle()
	r.registerSystem()

	r.Mux.Handle("GET /metrics", promhttp.Handler())
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// Mount registers the routes of other components on the same mux.
func (r *Router) Mount(registrars ...RouteRegistrar) {
	for _, rr := range registrars {
		rr.RegisterRoutes(r.Mux, httpx.AuthnMiddleware(r.verifier), r.limits)
	}
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Webtoon API
//	@version		0.1.0
//	@description	Catalog backend with account sessions and an ingestion crawler.
//	@description
//	@description				Access tokens are short-lived JWT bearer tokens. Refresh tokens travel only in the HttpOnly refresh_token cookie and rotate on every use.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) authHandler() *AuthHandler {
	return &AuthHandler{Auth: r.Auth, Cookies: r.Cookies}
}

func (r *Router) registerAuth() {
	h := r.authHandler()

	// Credential endpoints - strict rate limits against brute force
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(r.limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(r.limits.Strict, "email"),
		),
	)

	// Cookie endpoints - moderate rate limit by IP
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Lenient),
		),
	)
	r.Mux.Handle("GET /v1/auth/providers",
		httpx.Chain(http.HandlerFunc(h.HandleListProviders),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Lenient),
		),
	)
}

func (r *Router) registerSessions() {
	h := r.authHandler()

	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleListSessions),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Lenient),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeSession),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)
	r.Mux.Handle("POST /v1/auth/sessions/revoke-others",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeOthers),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Moderate),
		),
	)
}

func (r *Router) registerGoogle() {
	if r.Google == nil {
		return
	}
	h := &GoogleHandler{
		AuthHandler: r.authHandler(),
		OAuth:       r.Google,
		UserInfoURL: r.GoogleUserInfoURL,
	}

	r.Mux.Handle("GET /v1/auth/google",
		httpx.Chain(http.HandlerFunc(h.HandleStart),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
	r.Mux.Handle("GET /v1/auth/google/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(r.limits.Moderate),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Queue),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
}
