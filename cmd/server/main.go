// Package main is the entry point of the Skill Ladder Hub API.
//
// The service pairs users who want to learn a skill with users who can teach
// it, records their sessions and moves learners up the skill ladder.
//
// Architecture follows Clean Architecture:
// - Domain: pure business rules without external dependencies
// - Application: use case orchestration (Commands/Queries)
// - Infrastructure: repositories (PostgreSQL or in-memory) and Redis cache
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/skill-ladder/ladder-hub/config"
	"github.com/skill-ladder/ladder-hub/internal/application/command"
	"github.com/skill-ladder/ladder-hub/internal/application/query"
	"github.com/skill-ladder/ladder-hub/internal/domain/matching"
	"github.com/skill-ladder/ladder-hub/internal/domain/progress"
	"github.com/skill-ladder/ladder-hub/internal/domain/shared"
	"github.com/skill-ladder/ladder-hub/internal/domain/user"
	"github.com/skill-ladder/ladder-hub/internal/infrastructure/persistence/memory"
	"github.com/skill-ladder/ladder-hub/internal/infrastructure/persistence/postgres"
	"github.com/skill-ladder/ladder-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/skill-ladder/ladder-hub/internal/interface/http"
	"github.com/skill-ladder/ladder-hub/internal/interface/http/handlers"
	"github.com/skill-ladder/ladder-hub/pkg/circuitbreaker"
	"github.com/skill-ladder/ladder-hub/pkg/logger"
	"github.com/skill-ladder/ladder-hub/pkg/metrics"
	"github.com/skill-ladder/ladder-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// FLAGS
// ══════════════════════════════════════════════════════════════════════════════

type flags struct {
	configPath  string
	migrateOnly bool
	logLevel    string
}

func parseFlags(args []string) (flags, error) {
	var f flags

	flagSet := pflag.NewFlagSet("ladder-hub", pflag.ContinueOnError)
	flagSet.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file (default: $LADDER_CONFIG)")
	flagSet.BoolVar(&f.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.StringVar(&f.logLevel, "log-level", "", "override observability.log_level (debug, info, warn, error)")

	if err := flagSet.Parse(args); err != nil {
		return f, err
	}
	return f, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f.logLevel != "" {
		cfg.Observability.LogLevel = f.logLevel
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.IsDevelopment(),
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
	log.Info("starting Skill Ladder Hub",
		logger.String("version", cfg.App.Version),
		logger.String("driver", cfg.Database.Driver),
	)
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; every /api request will be rejected")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStore(ctx, cfg, f.migrateOnly, log)
	if err != nil {
		return err
	}
	defer store.close()

	if f.migrateOnly {
		log.Info("migrations applied, exiting")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache       *redis.Cache
		suggestionsCache matching.SuggestionCache
	)
	if cfg.Redis.Enabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Addr = cfg.Redis.Addr
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			// Suggestions are recomputed without the cache.
			log.Warn("redis unavailable, suggestion cache disabled", logger.Err(err))
		} else {
			defer func() { _ = redisCache.Close() }()
			suggestionsCache = redis.NewSuggestionCache(redisCache, cfg.Redis.SuggestionTTL,
				circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
					log.Warn("circuit breaker state changed",
						logger.String("breaker", name),
						logger.String("from", from.String()),
						logger.String("to", to.String()),
					)
				}),
			)
			log.Info("redis connected", logger.String("addr", cfg.Redis.Addr))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	var rec metrics.Recorder = metrics.Noop{}
	var metricsManager *metrics.Manager
	if cfg.Observability.MetricsEnabled {
		metricsManager = metrics.NewManager()
		rec = metricsManager
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	rule := progress.LadderRule{
		ReputationPerLevel: cfg.Ladder.ReputationPerLevel,
		SkillsPerLevel:     cfg.Ladder.SkillsPerLevel,
	}
	policy := command.SessionPolicy{
		MaxFeedbackRating:       cfg.Ladder.MaxFeedbackRating,
		DefaultRequiredSessions: cfg.Ladder.DefaultRequiredSessions,
	}

	evaluator := command.NewEvaluateLadderHandler(store.tx, store.users, store.progress, rule, rec, log)

	deps := httpserver.Dependencies{
		GetSuggestions:   query.NewGetSuggestionsHandler(store.users, store.candidates, suggestionsCache, rec, log, cfg.Matching.SuggestionLimit),
		ListUserMatches:  query.NewListUserMatchesHandler(store.matches),
		ListUserSessions: query.NewListUserSessionsHandler(store.sessions),
		ListUserProgress: query.NewListUserProgressHandler(store.progress),
		GetLadderStatus:  query.NewGetLadderStatusHandler(store.users, store.progress, rule),

		CreateMatch:       command.NewCreateMatchHandler(store.matches, rec, log),
		UpdateMatchStatus: command.NewUpdateMatchStatusHandler(store.matches, cfg.Matching.EnforceTransitions, rec, log),
		CreateSession:     command.NewCreateSessionHandler(store.matches, store.sessions, log),
		CompleteSession: command.NewCompleteSessionHandler(
			store.tx, store.sessions, store.users, store.progress,
			evaluator, suggestionsCache, policy, rec, log,
		),
		UpdateProgress: command.NewUpdateProgressHandler(store.tx, store.progress, evaluator, suggestionsCache, log),

		Authenticator: httpserver.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		HealthChecker: healthChecker(cfg, store, redisCache),
		Logger:        log,
	}
	if metricsManager != nil {
		deps.Metrics = metricsManager
		deps.MetricsHandler = metricsManager.Handler()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.EnableMetrics = metricsManager != nil
	httpCfg.Version = cfg.App.Version

	server := httpserver.NewServer(httpCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. WAIT FOR SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Err(err))
		return err
	}

	log.Info("server stopped", logger.Duration("uptime", server.Uptime()))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE WIRING
// ══════════════════════════════════════════════════════════════════════════════

// storage bundles the repositories of the selected driver.
type storage struct {
	tx         shared.Transactor
	users      user.Repository
	matches    matching.Repository
	sessions   matching.SessionRepository
	candidates matching.CandidateFinder
	progress   progress.Repository
	pinger     handlers.Pinger
	close      func()
}

func openStore(ctx context.Context, cfg *config.Config, migrateOnly bool, log *logger.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		if migrateOnly {
			return nil, errors.New("--migrate-only requires the postgres driver")
		}
		return openMemory(cfg, log)
	default:
		return openPostgres(ctx, cfg, migrateOnly, log)
	}
}

func openMemory(cfg *config.Config, log *logger.Logger) (*storage, error) {
	store := memory.New()
	if cfg.Database.Fixtures != "" {
		if err := store.LoadFixtures(cfg.Database.Fixtures); err != nil {
			return nil, fmt.Errorf("failed to load fixtures: %w", err)
		}
		log.Info("fixtures loaded", logger.String("path", cfg.Database.Fixtures))
	}
	log.Warn("using the in-memory store; data is lost on restart")

	return &storage{
		tx:         store,
		users:      store.Users(),
		matches:    store.Matches(),
		sessions:   store.Sessions(),
		candidates: store.Candidates(),
		progress:   store.Progress(),
		pinger:     store,
		close:      func() {},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, migrateOnly bool, log *logger.Logger) (*storage, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	},
		retry.WithMaxAttempts(cfg.Database.ConnectAttempts),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.Migrate || migrateOnly {
		if err := runMigrations(ctx, conn, log); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &storage{
		tx:         conn,
		users:      postgres.NewUserRepository(conn),
		matches:    postgres.NewMatchRepository(conn),
		sessions:   postgres.NewSessionRepository(conn),
		candidates: postgres.NewCandidateFinder(conn),
		progress:   postgres.NewProgressRepository(conn),
		pinger:     conn,
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

func runMigrations(ctx context.Context, conn *postgres.Connection, log *logger.Logger) error {
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", logger.Err(err))
		return nil
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
	return nil
}

func healthChecker(cfg *config.Config, store *storage, cache *redis.Cache) handlers.HealthChecker {
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.SetTimeout(2 * time.Second)
	checker.AddCheck("database", handlers.NewPingCheck(store.pinger))
	if cache != nil {
		checker.AddCheck("redis", handlers.NewPingCheck(cache))
	}
	return checker
}
