// Package httpapi is the REST and gRPC transport. Handlers decode input,
// resolve the caller from the access token and hand off to the auth and
// project services, which make every authorization decision.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"taskhub.dev/internal/audit"
	"taskhub.dev/internal/auth"
	"taskhub.dev/internal/obs"
	"taskhub.dev/internal/project"
)

const serviceName = "taskhub-api"

// ReadyProbe reports whether backing services are reachable.
type ReadyProbe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a ping function, such as a store's Ping, to ReadyProbe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	auth     *auth.Service
	projects *project.Service
	audit    *audit.Logger
	log      *slog.Logger
	ready    ReadyProbe
	version  string

	cookieSecure    bool
	cookieDomain    string
	requireVerified bool

	origins        []string
	maxBodyBytes   int64
	rateBurst      int
	ratePerSec     int
	requestTimeout time.Duration
}

// Option configures API.
type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

func WithAudit(l *audit.Logger) Option {
	return func(a *API) { a.audit = l }
}

func WithReadyProbe(p ReadyProbe) Option {
	return func(a *API) {
		if p != nil {
			a.ready = p
		}
	}
}

func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithCookies sets the attributes of the session cookies.
func WithCookies(secure bool, domain string) Option {
	return func(a *API) {
		a.cookieSecure = secure
		a.cookieDomain = domain
	}
}

// WithVerifiedEmail toggles the verified-email requirement on project routes.
func WithVerifiedEmail(required bool) Option {
	return func(a *API) { a.requireVerified = required }
}

// WithOrigins sets the CORS allow list.
func WithOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

// WithLimits sets the body cap, the per-IP rate limit and the request deadline.
// Zero values keep the defaults.
func WithLimits(maxBodyBytes int64, burst, perSecond int, timeout time.Duration) Option {
	return func(a *API) {
		if maxBodyBytes > 0 {
			a.maxBodyBytes = maxBodyBytes
		}
		if burst > 0 {
			a.rateBurst = burst
		}
		if perSecond > 0 {
			a.ratePerSec = perSecond
		}
		if timeout > 0 {
			a.requestTimeout = timeout
		}
	}
}

func New(authSvc *auth.Service, projects *project.Service, opts ...Option) *API {
	a := &API{
		mux:             http.NewServeMux(),
		auth:            authSvc,
		projects:        projects,
		log:             obs.Discard(),
		ready:           ProbeFunc(nil),
		requireVerified: true,
		maxBodyBytes:    1 << 20,
		rateBurst:       60,
		ratePerSec:      30,
		requestTimeout:  15 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = audit.New(a.log)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh-token", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/verify-email/{token}", a.handleVerifyEmail)
	a.mux.HandleFunc("/v1/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("/v1/auth/reset-password/{token}", a.handleResetPassword)

	a.mux.Handle("/v1/auth/current-user", a.authenticated(a.handleCurrentUser))
	a.mux.Handle("/v1/auth/logout", a.authenticated(a.handleLogout))
	a.mux.Handle("/v1/auth/resend-email-verification", a.authenticated(a.handleResendVerification))
	a.mux.Handle("/v1/auth/change-password", a.authenticated(a.handleChangePassword))

	a.mux.Handle("/v1/projects", a.verified(a.handleProjects))
	a.mux.Handle("/v1/projects/{projectID}", a.verified(a.handleProject))
	a.mux.Handle("/v1/projects/{projectID}/members", a.verified(a.handleMembers))
	a.mux.Handle("/v1/projects/{projectID}/members/{userID}", a.verified(a.handleMember))
	a.mux.Handle("/v1/projects/{projectID}/tasks", a.verified(a.handleTasks))
	a.mux.Handle("/v1/projects/{projectID}/tasks/{taskID}", a.verified(a.handleTask))
	a.mux.Handle("/v1/projects/{projectID}/tasks/{taskID}/subtasks", a.verified(a.handleSubtasks))
	a.mux.Handle("/v1/projects/{projectID}/tasks/{taskID}/subtasks/{subtaskID}", a.verified(a.handleSubtask))
	a.mux.Handle("/v1/projects/{projectID}/notes", a.verified(a.handleNotes))
	a.mux.Handle("/v1/projects/{projectID}/notes/{noteID}", a.verified(a.handleNote))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = Timeout(h, a.requestTimeout)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.origins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.log)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
