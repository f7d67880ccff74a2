package policy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/platform/metrics"
)

// Result is the engine-level decision for one (user, resource, action)
// request. The gathered attribute bundle is attached on allow so callers can
// log or export it.
type Result struct {
	Allowed     bool
	Reason      string
	PolicyID    string
	Attributes  *AttributeBundle
	EvaluatedAt time.Time
}

// Engine orchestrates attribute gathering and policy evaluation. It is an
// explicitly constructed, dependency-injected object - no package-level
// state; the hosting application owns its lifecycle and passes it into
// request handlers.
type Engine struct {
	providers *ProviderRegistry

	mu       sync.RWMutex
	policies []*Policy
	byID     map[string]int

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics collector for the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates a policy engine with required dependencies.
// Panics if the provider registry is nil - fail fast at startup.
func New(providers *ProviderRegistry, opts ...Option) *Engine {
	if providers == nil {
		panic("policy.New: provider registry is required")
	}
	e := &Engine{
		providers: providers,
		byID:      make(map[string]int),
		tracer:    otel.Tracer("custodia/policy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddPolicy registers a policy. A policy with an existing ID replaces the
// prior one in place, preserving its evaluation position; new policies are
// appended so evaluation follows registration order.
func (e *Engine) AddPolicy(p *Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.byID[p.ID]; ok {
		e.policies[idx] = p
		return
	}
	e.byID[p.ID] = len(e.policies)
	e.policies = append(e.policies, p)
}

// RemovePolicy unregisters a policy by ID. Returns false if no such policy
// is registered.
func (e *Engine) RemovePolicy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.byID[id]
	if !ok {
		return false
	}
	e.policies = append(e.policies[:idx], e.policies[idx+1:]...)
	delete(e.byID, id)
	for i := idx; i < len(e.policies); i++ {
		e.byID[e.policies[i].ID] = i
	}
	return true
}

// Policies returns the registered policies in evaluation order.
func (e *Engine) Policies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Policy(nil), e.policies...)
}

// Evaluate produces a single allow/deny decision for the request.
//
// It gathers the attribute bundle, selects policies whose conditions match
// the (role, resourceType, action) triple, and evaluates them in
// registration order. The first deny - at rule or policy level -
// short-circuits and is returned with its reason and owning policy ID. If
// every applicable rule allows (or no policy applies), the decision is allow
// with the full bundle attached.
//
// Evaluate never panics and never returns a partial result: a policy whose
// evaluation panics past the rule boundary is converted to a deny here.
func (e *Engine) Evaluate(ctx context.Context, user User, resource Resource, action string, env Environment) *Result {
	ctx, span := e.tracer.Start(ctx, "policy.Evaluate",
		trace.WithAttributes(
			attribute.String("policy.action", action),
			attribute.String("policy.resource_type", resource.Type),
		))
	defer span.End()

	evalTime := time.Now()
	outcome := "allow"
	defer func() {
		e.metrics.ObservePolicyEval(outcome, time.Since(evalTime))
	}()

	bundle := e.providers.Gather(ctx, user, resource, env)

	for _, p := range e.applicable(user.Role, resource.Type, action) {
		if d := e.evaluatePolicy(p, bundle); d.Denied() {
			span.SetAttributes(attribute.String("policy.denied_by", p.ID))
			outcome = "deny"
			if e.logger != nil {
				e.logger.InfoContext(ctx, "policy denied request",
					"policy_id", p.ID,
					"reason", d.Reason,
					"user_id", user.ID,
					"resource_id", resource.ID,
					"action", action,
				)
			}
			return &Result{
				Allowed:     false,
				Reason:      d.Reason,
				PolicyID:    p.ID,
				EvaluatedAt: evalTime,
			}
		}
	}

	return &Result{
		Allowed:     true,
		Attributes:  bundle,
		EvaluatedAt: evalTime,
	}
}

// applicable snapshots the policies relevant to the request, preserving
// registration order.
func (e *Engine) applicable(role, resourceType, action string) []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var selected []*Policy
	for _, p := range e.policies {
		if p.Conditions.Applies(role, resourceType, action) {
			selected = append(selected, p)
		}
	}
	return selected
}

// evaluatePolicy is the engine-level fail-closed boundary: anything that
// escapes the rule boundary becomes a deny rather than an escaped panic.
func (e *Engine) evaluatePolicy(p *Policy, bundle *AttributeBundle) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Error("policy evaluation panicked", "policy_id", p.ID, "panic", r)
			}
			d = Deny("Policy evaluation failed")
		}
	}()
	return p.Evaluate(bundle)
}
