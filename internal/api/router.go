package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/app"
	iauth "github.com/byterank/byterank/internal/auth"
	"github.com/byterank/byterank/internal/handlers"
	"github.com/byterank/byterank/internal/middleware"
	"github.com/byterank/byterank/internal/monitoring"
	"github.com/byterank/byterank/internal/monitoring/checks"
	"github.com/byterank/byterank/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
// A nil rateStore disables rate limiting and a nil standings cache disables
// leaderboard caching. The database probe is always part of the health
// report; probes adds further readiness checks.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, rateStore middleware.RateStore, standings *services.StandingsCache, probes ...monitoring.Check) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	svc, err := newServiceSet(db, standings)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.HSTS))
	r.Use(middleware.CORS(cfg.CORS.MiddlewareConfig()))

	registerHealthRoutes(r, db, probes)
	registerMetricsRoutes(r, cfg)

	api := r.Group("/api")
	api.Use(middleware.Auth(jwt), middleware.ProvisionProfile(svc.profiles))
	if rateStore != nil && cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(rateStore, cfg.RateLimit.MiddlewareConfig()))
	}

	registerProfileRoutes(api, handlers.NewProfileHandler(svc.profiles, svc.teams))
	registerTeamRoutes(api,
		handlers.NewTeamHandler(svc.teams, svc.members),
		handlers.NewInviteHandler(svc.requests, svc.invitations),
		handlers.NewLeaderboardHandler(svc.board),
		handlers.NewAuditHandler(svc.audit, svc.members),
	)
	registerFriendRoutes(api, handlers.NewFriendHandler(svc.friends))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

type serviceSet struct {
	audit       *services.AuditService
	profiles    *services.ProfileService
	teams       *services.TeamService
	members     *services.MembershipService
	requests    *services.JoinRequestService
	invitations *services.InvitationService
	board       *services.LeaderboardService
	friends     *services.FriendService
}

func newServiceSet(db *gorm.DB, standings *services.StandingsCache) (*serviceSet, error) {
	s := &serviceSet{}
	var err error

	if s.audit, err = services.NewAuditService(db); err != nil {
		return nil, err
	}
	if s.profiles, err = services.NewProfileService(db, s.audit); err != nil {
		return nil, err
	}
	if s.teams, err = services.NewTeamService(db, s.audit); err != nil {
		return nil, err
	}
	if s.members, err = services.NewMembershipService(db, s.audit); err != nil {
		return nil, err
	}
	if s.requests, err = services.NewJoinRequestService(db, s.audit); err != nil {
		return nil, err
	}
	if s.invitations, err = services.NewInvitationService(db, s.audit); err != nil {
		return nil, err
	}
	if s.board, err = services.NewLeaderboardService(db); err != nil {
		return nil, err
	}
	if s.friends, err = services.NewFriendService(db, s.audit); err != nil {
		return nil, err
	}

	s.profiles.UseStandingsCache(standings)
	s.teams.UseStandingsCache(standings)
	s.members.UseStandingsCache(standings)
	s.requests.UseStandingsCache(standings)
	s.invitations.UseStandingsCache(standings)
	s.board.UseStandingsCache(standings)
	return s, nil
}

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, probes []monitoring.Check) {
	readiness := monitoring.NewReadiness(checks.Database(db, 0))
	for _, probe := range probes {
		readiness.Register(probe)
	}
	health := handlers.Health(readiness)
	r.GET("/health", health)
	r.GET("/api/health", health)
}

func registerMetricsRoutes(r *gin.Engine, cfg *app.Config) {
	if !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
