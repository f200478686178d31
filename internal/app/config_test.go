package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/auth"
	"github.com/byterank/byterank/internal/middleware"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "json", cfg.Server.LogFormat)
	require.True(t, cfg.Server.HSTS)
	require.Equal(t, 20*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)
	require.True(t, cfg.Cache.Leaderboard.Enabled)
	require.Equal(t, 30*time.Second, cfg.Cache.Leaderboard.TTL)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "https://id.example.com", cfg.Auth.JWT.Issuer)
	require.Equal(t, "byterank-api", cfg.Auth.JWT.Audience)
	require.Equal(t, 45*time.Second, cfg.Auth.JWT.Leeway)

	require.Equal(t, "team-featured", cfg.Teams.FeaturedTeamID)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@every 5m", cfg.Maintenance.CommitRefreshSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.AuditSchedule)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, 14, cfg.Maintenance.RequestRetentionDays)

	require.True(t, cfg.RateLimit.Enabled)
	require.Equal(t, 250, cfg.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, 12*time.Hour, cfg.CORS.MaxAge)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/byterank.sqlite", cfg.Database.Path)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.True(t, cfg.Cache.Leaderboard.Enabled)
	require.Equal(t, time.Minute, cfg.Cache.Leaderboard.TTL)
	require.Equal(t, 30*time.Second, cfg.Auth.JWT.Leeway)
	require.Equal(t, "@every 15m", cfg.Maintenance.CommitRefreshSchedule)
	require.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, 100, cfg.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, "database", cfg.RateLimit.Store)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("BYTERANK_SERVER_PORT", "7070")
	t.Setenv("BYTERANK_TEAMS_FEATURED_TEAM_ID", "from-env")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Teams.FeaturedTeamID)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{
			JWT: JWTSettings{
				Secret:   "secret",
				Issuer:   " issuer ",
				Audience: "api",
				Leeway:   time.Minute,
			},
		},
	}

	jwtCfg := cfg.Auth.JWTServiceConfig()
	require.Equal(t, auth.JWTConfig{
		Secret:   "secret",
		Issuer:   "issuer",
		Audience: "api",
		Leeway:   time.Minute,
	}, jwtCfg)
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig
	cfg.JWT.Leeway = -time.Second

	jwtCfg := cfg.JWTServiceConfig()
	require.Zero(t, jwtCfg.Leeway)
}

func TestMiddlewareConfigAdapters(t *testing.T) {
	corsCfg := CORSConfig{AllowedOrigins: []string{" https://a.example.com ", "", "https://b.example.com"}, MaxAge: time.Hour}
	require.Equal(t, middleware.CORSConfig{
		AllowedOrigins: []string{"https://a.example.com", "https://b.example.com"},
		MaxAge:         time.Hour,
	}, corsCfg.MiddlewareConfig())

	rate := RateLimitConfig{Window: time.Minute}
	require.Equal(t, middleware.RateLimitConfig{Requests: defaultRateLimitRequests, Window: time.Minute}, rate.MiddlewareConfig())
}

func TestRedisClientConfig(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{Address: " localhost:6379 ", Username: " user ", Password: "pw", DB: 3, Timeout: time.Second}}
	redisCfg := cfg.RedisClientConfig()
	require.Equal(t, "localhost:6379", redisCfg.Address)
	require.Equal(t, "user", redisCfg.Username)
	require.Equal(t, "pw", redisCfg.Password)
	require.Equal(t, 3, redisCfg.DB)
	require.Equal(t, time.Second, redisCfg.Timeout)
}
