package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/export"
	"custodia/internal/jurisdiction"
	"custodia/internal/platform/config"
	"custodia/internal/platform/database"
	"custodia/internal/platform/health"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/kafka"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/redis"
	"custodia/internal/policy"
	"custodia/internal/ratelimit"
	"custodia/internal/seeder"
	httptransport "custodia/internal/transport/http"
	"custodia/internal/user"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	log.Info("initializing custodia",
		"addr", cfg.Addr,
		"persistence", cfg.DatabaseURL != "",
		"permission_cache", cfg.RedisAddr != "",
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close() //nolint:errcheck // shutdown path

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	// Stores fall back to in-memory implementations when no database is
	// configured, which keeps local development dependency-free.
	var (
		auditStore audit.Store
		caseStore  casefile.Store
		userStore  user.Store
		grantStore jurisdiction.GrantStore
		permStore  jurisdiction.PermissionStore
		statsStore jurisdiction.StatsStore
	)
	if pool != nil {
		auditStore = audit.NewPostgres(pool.DB())
		caseStore = casefile.NewPostgres(pool.DB())
		userStore = user.NewPostgresStore(pool.DB())
		grantStore = jurisdiction.NewPostgresGrantStore(pool.DB())
		permStore = jurisdiction.NewPostgresPermissionStore(pool.DB())
		statsStore = jurisdiction.NewPostgresStatsStore(pool.DB())
	} else {
		auditStore = audit.NewInMemoryStore()
		caseStore = casefile.NewInMemoryStore()
		userStore = user.NewInMemoryStore()
		grantStore = jurisdiction.NewMemoryGrantStore()
		permStore = jurisdiction.NewMemoryPermissionStore()
		statsStore = jurisdiction.NewMemoryStatsStore()
	}
	memPermStore, _ := permStore.(*jurisdiction.MemoryPermissionStore)
	permStore = jurisdiction.NewCachedPermissionStore(permStore, redisClient, log)

	auditOpts := []audit.PublisherOption{
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	}

	var producer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		producerCfg := kafka.DefaultConfig()
		producerCfg.Brokers = cfg.KafkaBrokers
		producer, err = kafka.NewProducer(producerCfg, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close() //nolint:errcheck // shutdown path
		auditOpts = append(auditOpts, audit.WithSink(audit.NewStreamSink(producer, "custodia.audit")))
	}

	auditor := audit.NewPublisher(auditStore, auditOpts...)
	defer auditor.Close()

	providers := policy.NewProviderRegistry(
		policy.WithRegistryLogger(log),
		policy.WithRegistryMetrics(m),
	)
	engine := policy.New(providers,
		policy.WithLogger(log),
		policy.WithMetrics(m),
	)
	seedPolicies(engine)

	registry := jurisdiction.NewRegistry()
	router := jurisdiction.NewRouter(
		registry,
		permStore,
		grantStore,
		casefile.NewEvidenceBridge(caseStore),
		statsStore,
		auditor,
		jurisdiction.WithRouterLogger(log),
		jurisdiction.WithRouterMetrics(m),
		jurisdiction.WithGrantTTL(cfg.GrantTTL),
	)

	caseSvc := casefile.NewService(caseStore, engine, router, auditor,
		casefile.WithServiceLogger(log),
		casefile.WithServiceMetrics(m),
	)
	userSvc := user.NewService(userStore, auditor,
		user.WithServiceLogger(log),
		user.WithServiceMetrics(m),
	)
	exportSvc := export.NewService(caseStore, router, export.NewManifestRenderer(), auditor,
		export.WithServiceLogger(log),
	)

	tokens := middleware.NewHMACValidator(cfg.JWTSigningKey)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
		go recordRedisStats(redisClient)
	}
	if producer != nil {
		healthHandler.RegisterCheck("kafka", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return producer.Ping(ctx)
		})
	}

	// Login throttling shares state across replicas when Redis is available.
	var authLimiter ratelimit.Limiter
	if redisClient != nil {
		authLimiter = ratelimit.NewRedisLimiter(redisClient, 10, time.Minute)
	} else {
		authLimiter = ratelimit.NewInMemoryLimiter(10, time.Minute)
	}

	if cfg.SeedDemoData {
		if memPermStore == nil {
			log.Warn("demo seeding skipped, requires in-memory stores")
		} else if err := seeder.New(userSvc, caseStore, memPermStore, log).SeedAll(context.Background()); err != nil {
			log.Error("demo seeding failed", "error", err)
			os.Exit(1)
		}
	}

	handler := httptransport.NewHandler(engine, caseSvc, caseStore, router, exportSvc, userSvc, tokens, healthHandler, auditStore, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, log, m, authLimiter, cfg.AdminToken))

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// seedPolicies installs the baseline access policies. Deployments layer
// environment-specific policies on top through the engine API.
func seedPolicies(engine *policy.Engine) {
	engine.AddPolicy(&policy.Policy{
		ID:   "evidence-business-hours",
		Name: "Evidence intake during business hours",
		Rules: []policy.Rule{
			policy.TimeBasedRule{StartHour: 8, EndHour: 18},
		},
		Conditions: policy.Conditions{
			ResourceTypes: []string{"evidence"},
			Actions:       []string{"create"},
		},
	})
	engine.AddPolicy(&policy.Policy{
		ID:   "restricted-clearance",
		Name: "Restricted material requires clearance level 3",
		Rules: []policy.Rule{
			policy.RuleFunc{
				RuleName: "clearance-level",
				Fn: func(attrs *policy.AttributeBundle) policy.Decision {
					sensitive := attrs.Resource.Sensitivity == "restricted" ||
						attrs.Resource.Sensitivity == "confidential"
					if sensitive && attrs.User.ClearanceLevel < 3 {
						return policy.Deny(fmt.Sprintf(
							"Clearance level %d is insufficient for %s material",
							attrs.User.ClearanceLevel, attrs.Resource.Sensitivity))
					}
					return policy.Allow()
				},
			},
		},
	})
}

func recordRedisStats(client *redis.Client) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		client.RecordPoolStats()
	}
}
