package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"golang.org/x/sync/errgroup"

	"custodia/internal/platform/metrics"
)

// Provider produces one named attribute sub-map for a decision request.
// Providers run concurrently and must not mutate their inputs.
type Provider func(ctx context.Context, user User, resource Resource, env Environment) (map[string]any, error)

// ProviderRegistry holds named attribute providers. Registering an existing
// name overwrites the prior provider (last write wins) - this is a deliberate
// extensibility point for the hosting application.
type ProviderRegistry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time
}

// RegistryOption configures the ProviderRegistry.
type RegistryOption func(*ProviderRegistry)

// WithRegistryLogger sets the logger for provider failures and overwrites.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *ProviderRegistry) { r.logger = l }
}

// WithRegistryMetrics sets the metrics collector for provider failures.
func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *ProviderRegistry) { r.metrics = m }
}

// WithClock overrides the time source. Used by the built-in time provider
// for deterministic testing.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *ProviderRegistry) { r.clock = clock }
}

// NewProviderRegistry creates a registry pre-populated with the built-in
// time, location, device, and jurisdiction providers.
func NewProviderRegistry(opts ...RegistryOption) *ProviderRegistry {
	r := &ProviderRegistry{
		providers: make(map[string]Provider),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Register("time", r.timeProvider)
	r.Register("location", locationProvider)
	r.Register("device", deviceProvider)
	r.Register("jurisdiction", jurisdictionProvider)
	return r
}

// Register adds or replaces the named provider. Overwrites are logged so
// they are observable.
func (r *ProviderRegistry) Register(name string, fn Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		if r.logger != nil {
			r.logger.Info("attribute provider replaced", "provider", name)
		}
	} else {
		r.order = append(r.order, name)
	}
	r.providers[name] = fn
}

// Gather invokes every registered provider concurrently and assembles the
// attribute bundle. A failing provider is logged as a warning and its
// contribution omitted; a provider failure never aborts the decision.
// Missing context degrades precision, not security: rules that depend on an
// absent attribute fail closed on their own.
func (r *ProviderRegistry) Gather(ctx context.Context, user User, resource Resource, env Environment) *AttributeBundle {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	fns := make([]Provider, len(names))
	for i, name := range names {
		fns[i] = r.providers[name]
	}
	r.mu.RUnlock()

	// Each goroutine writes to its own slot, avoiding data races.
	results := make([]map[string]any, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i := range names {
		i := i
		g.Go(func() error {
			attrs, err := invokeProvider(gctx, fns[i], user, resource, env)
			if err != nil {
				if r.logger != nil {
					r.logger.WarnContext(gctx, "attribute provider failed",
						"provider", names[i],
						"error", err,
					)
				}
				if r.metrics != nil {
					r.metrics.IncProviderFailure(names[i])
				}
				// Fail-open for this provider only.
				return nil
			}
			results[i] = attrs
			return nil
		})
	}
	// Goroutines never return errors; Wait only synchronizes completion.
	_ = g.Wait()

	bundle := &AttributeBundle{
		User:        user,
		Resource:    resource,
		Environment: env,
		Providers:   make(map[string]map[string]any, len(names)),
	}
	for i, name := range names {
		if results[i] != nil {
			bundle.Providers[name] = results[i]
		}
	}
	return bundle
}

// invokeProvider shields Gather from panicking providers.
func invokeProvider(ctx context.Context, fn Provider, user User, resource Resource, env Environment) (attrs map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			attrs = nil
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	return fn(ctx, user, resource, env)
}

// timeProvider contributes the evaluation wall-clock context. The request
// timestamp is preferred when the caller supplied one so replayed audit
// evaluations stay deterministic.
func (r *ProviderRegistry) timeProvider(_ context.Context, _ User, _ Resource, env Environment) (map[string]any, error) {
	now := env.Timestamp
	if now.IsZero() {
		now = r.clock()
	}
	return map[string]any{
		"currentHour": now.Hour(),
		"dayOfWeek":   now.Weekday().String(),
		"timestamp":   now.Format(time.RFC3339),
	}, nil
}

func locationProvider(_ context.Context, _ User, _ Resource, env Environment) (map[string]any, error) {
	return map[string]any{
		"country":  env.Country,
		"region":   env.Region,
		"location": env.Location,
		"isVPN":    env.IsVPN,
	}, nil
}

// deviceProvider parses the request user agent into device attributes.
func deviceProvider(_ context.Context, _ User, _ Resource, env Environment) (map[string]any, error) {
	ua := useragent.New(env.UserAgent)
	browser, version := ua.Browser()
	return map[string]any{
		"browser":        browser,
		"browserVersion": version,
		"os":             ua.OS(),
		"mobile":         ua.Mobile(),
		"bot":            ua.Bot(),
		"fingerprint":    env.DeviceFingerprint,
	}, nil
}

func jurisdictionProvider(_ context.Context, user User, resource Resource, _ Environment) (map[string]any, error) {
	return map[string]any{
		"userJurisdiction":     user.Jurisdiction,
		"resourceJurisdiction": resource.Jurisdiction,
		"crossBorder":          user.Jurisdiction != resource.Jurisdiction,
	}, nil
}
