// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business logic stays out of this package.
package httptransport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/export"
	"custodia/internal/jurisdiction"
	"custodia/internal/platform/health"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
	"custodia/internal/policy"
	"custodia/internal/ratelimit"
	"custodia/internal/user"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Handler bundles the domain services the HTTP layer fronts.
type Handler struct {
	engine    *policy.Engine
	cases     *casefile.Service
	caseStore casefile.Store
	router    *jurisdiction.Router
	exports   *export.Service
	users     *user.Service
	tokens    *middleware.HMACValidator
	health    *health.Handler
	auditLog  audit.Store
	logger    *slog.Logger
}

func NewHandler(
	engine *policy.Engine,
	cases *casefile.Service,
	caseStore casefile.Store,
	router *jurisdiction.Router,
	exports *export.Service,
	users *user.Service,
	tokens *middleware.HMACValidator,
	healthHandler *health.Handler,
	auditLog audit.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:    engine,
		cases:     cases,
		caseStore: caseStore,
		router:    router,
		exports:   exports,
		users:     users,
		tokens:    tokens,
		health:    healthHandler,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// NewRouter wires all public endpoints with middleware. authLimiter throttles
// the credential endpoints; nil disables throttling. adminToken gates the
// operator endpoints; empty disables them.
func NewRouter(h *Handler, logger *slog.Logger, m *metrics.Metrics, authLimiter ratelimit.Limiter, adminToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Observe(m))
	r.Use(middleware.Timeout(30 * time.Second))

	// Unauthenticated endpoints
	h.health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(ratelimit.Middleware(authLimiter, logger))
		r.Post("/users/register", h.handleRegister)
		r.Post("/users/login", h.handleLogin)
	})

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAuth(h.tokens, logger))

		r.Post("/policy/evaluate", h.handlePolicyEvaluate)

		r.Post("/cases", h.handleCreateCase)
		r.Get("/cases", h.handleListCases)
		r.Get("/cases/{id}", h.handleGetCase)
		r.Patch("/cases/{id}", h.handleUpdateCase)
		r.Post("/cases/{id}/evidence", h.handleAddEvidence)
		r.Get("/cases/{id}/evidence", h.handleListEvidence)

		r.Post("/jurisdiction/route", h.handleRouteCase)
		r.Post("/jurisdiction/grants", h.handleGrantAccess)
		r.Delete("/jurisdiction/grants/{id}", h.handleRevokeAccess)
		r.Get("/jurisdiction/{code}/compliance-report", h.handleComplianceReport)

		r.Post("/export/bundle", h.handleExportBundle)
	})

	// Operator endpoints
	if adminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(adminToken, logger))
			r.Get("/admin/policies", h.handleListPolicies)
			r.Delete("/admin/policies/{id}", h.handleRemovePolicy)
			r.Get("/admin/audit/cases/{id}", h.handleCaseAuditTrail)
			r.Get("/admin/audit/actors/{id}", h.handleActorAuditTrail)
		})
	}

	return r
}

// actorFromContext maps the token claims to a domain actor. A missing or
// malformed subject means the auth middleware was bypassed or the token was
// minted wrong; both are unauthorized.
func actorFromContext(ctx context.Context) (casefile.Actor, error) {
	claims := middleware.GetClaims(ctx)
	if claims == nil {
		return casefile.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "missing authentication")
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return casefile.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "malformed token subject")
	}
	return casefile.Actor{
		ID:             userID,
		Role:           claims.Role,
		Department:     claims.Department,
		Jurisdiction:   claims.Jurisdiction,
		ClearanceLevel: claims.ClearanceLevel,
	}, nil
}

// envFromRequest captures the per-request context the attribute providers
// feed on.
func envFromRequest(r *http.Request) policy.Environment {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return policy.Environment{
		Timestamp: time.Now(),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}
