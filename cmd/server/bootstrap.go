package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/api"
	"github.com/byterank/byterank/internal/app"
	"github.com/byterank/byterank/internal/app/maintenance"
	iauth "github.com/byterank/byterank/internal/auth"
	"github.com/byterank/byterank/internal/cache"
	"github.com/byterank/byterank/internal/database"
	"github.com/byterank/byterank/internal/middleware"
	"github.com/byterank/byterank/internal/monitoring"
	"github.com/byterank/byterank/internal/monitoring/checks"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/logger"
)

const (
	databaseConnectBase    = 500 * time.Millisecond
	databaseConnectTimeout = 30 * time.Second
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Standings *services.StandingsCache
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, caches, background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	if featured := strings.TrimSpace(cfg.Teams.FeaturedTeamID); featured != "" {
		teamSvc, err := services.NewTeamService(stack.DB, auditSvc)
		if err != nil {
			return nil, fmt.Errorf("initialise team service: %w", err)
		}
		if err := teamSvc.SetFeatured(ctx, featured); err != nil {
			log.Warn("featured team not applied", zap.String("team_id", featured), zap.Error(err))
		}
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed rate limiting", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	if cfg.Cache.Leaderboard.Enabled {
		stack.Standings = newStandingsCache(cfg, stack.Redis)
	}

	if cfg.Maintenance.Enabled {
		if stack.Cleaner, err = newCleaner(cfg, stack.DB, auditSvc, dbStore, stack.Standings); err != nil {
			return nil, err
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewRateStore(stack.Redis)
	case strings.EqualFold(strings.TrimSpace(cfg.RateLimit.Store), "memory"):
		stack.RateStore = middleware.NewRateStore(cache.NewMemoryStore(cfg.RateLimit.Window))
	default:
		stack.RateStore = middleware.NewRateStore(dbStore)
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.RateStore, stack.Standings, stack.readinessProbes(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) readinessProbes(cfg *app.Config) []monitoring.Check {
	var probes []monitoring.Check
	if cfg.Cache.Redis.Enabled {
		var pinger checks.RedisPinger
		if s.Redis != nil {
			pinger = s.Redis
		}
		probes = append(probes, checks.Redis(pinger, cfg.Cache.Redis.Timeout))
	}
	if s.Cleaner != nil {
		probes = append(probes, checks.Maintenance(s.Cleaner, 0))
	}
	return probes
}

// newStandingsCache keeps leaderboards in Redis when it is connected and in
// process memory otherwise.
func newStandingsCache(cfg *app.Config, redisStore *cache.RedisStore) *services.StandingsCache {
	var store cache.Store = cache.NewMemoryStore(cfg.Cache.Leaderboard.TTL)
	if redisStore != nil {
		store = redisStore
	}
	return services.NewStandingsCache(store, cfg.Cache.Leaderboard.TTL)
}

func newCleaner(cfg *app.Config, db *gorm.DB, auditSvc *services.AuditService, store *cache.DatabaseStore, standings *services.StandingsCache) (*maintenance.Cleaner, error) {
	commits, err := services.NewCommitStatsService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise commit stats service: %w", err)
	}
	commits.UseStandingsCache(standings)
	requests, err := services.NewJoinRequestService(db, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise join request service: %w", err)
	}
	friends, err := services.NewFriendService(db, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise friend service: %w", err)
	}

	m := cfg.Maintenance
	return maintenance.NewCleaner(maintenance.Dependencies{
		Commits:  commits,
		Audit:    auditSvc,
		Requests: requests,
		Friends:  friends,
		Cache:    store,
	},
		maintenance.WithCommitSchedule(m.CommitRefreshSchedule),
		maintenance.WithAuditSchedule(m.AuditSchedule),
		maintenance.WithPruneSchedule(m.PruneSchedule),
		maintenance.WithCacheSchedule(m.CacheSchedule),
		maintenance.WithAuditRetentionDays(m.AuditRetentionDays),
		maintenance.WithRequestRetentionDays(m.RequestRetentionDays),
	), nil
}

// Shutdown stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		if stopCtx := s.Cleaner.Stop(); stopCtx != nil {
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
				log.Warn("maintenance jobs still running at shutdown")
			}
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// initialiseDatabase opens the configured database, retrying with
// exponential backoff while the server is still starting up, then migrates it.
func initialiseDatabase(ctx context.Context, cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	log := logger.WithModule("database")

	var db *gorm.DB
	backoff := retry.WithMaxDuration(databaseConnectTimeout, retry.NewExponential(databaseConnectBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := database.Open(dbCfg)
		if err != nil {
			log.Warn("database not ready", zap.Error(err))
			return retry.RetryableError(err)
		}
		if err := database.Ping(ctx, conn); err != nil {
			closeDatabase(conn, log)
			log.Warn("database ping failed", zap.Error(err))
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: database.NormaliseDriver(cfg.Database.Driver),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "postgres":
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		// sqlite needs no host settings; unknown drivers fail in database.Open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = strings.TrimSpace(auth.Password)
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
