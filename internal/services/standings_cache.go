package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/byterank/byterank/internal/cache"
	"github.com/byterank/byterank/internal/leaderboard"
	"github.com/byterank/byterank/pkg/logger"
)

// DefaultStandingsTTL bounds how long a cached leaderboard may be served.
const DefaultStandingsTTL = time.Minute

// StandingsCache keeps computed team leaderboards in a cache.Store. Services
// that change memberships, roles, counters or usernames drop the affected
// teams. Store failures are logged and treated as misses.
type StandingsCache struct {
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewStandingsCache returns nil when store is nil, which disables caching.
func NewStandingsCache(store cache.Store, ttl time.Duration) *StandingsCache {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultStandingsTTL
	}
	return &StandingsCache{store: store, ttl: ttl, log: logger.WithModule("standings_cache")}
}

func standingsKey(teamID string) string {
	return "leaderboard:team:" + teamID
}

func (c *StandingsCache) load(ctx context.Context, teamID string) (leaderboard.Standings, bool) {
	if c == nil {
		return leaderboard.Standings{}, false
	}
	raw, ok, err := c.store.Get(ctx, standingsKey(teamID))
	if err != nil {
		c.log.Warn("read cached standings", zap.String("team_id", teamID), zap.Error(err))
		return leaderboard.Standings{}, false
	}
	if !ok {
		return leaderboard.Standings{}, false
	}
	var ranked []leaderboard.Standing
	if err := json.Unmarshal(raw, &ranked); err != nil {
		c.log.Warn("decode cached standings", zap.String("team_id", teamID), zap.Error(err))
		return leaderboard.Standings{}, false
	}
	return leaderboard.Restore(ranked), true
}

func (c *StandingsCache) save(ctx context.Context, teamID string, standings leaderboard.Standings) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(standings.List())
	if err != nil {
		c.log.Warn("encode standings", zap.String("team_id", teamID), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, standingsKey(teamID), raw, c.ttl); err != nil {
		c.log.Warn("cache standings", zap.String("team_id", teamID), zap.Error(err))
	}
}

// Invalidate drops the cached leaderboards of the given teams.
func (c *StandingsCache) Invalidate(ctx context.Context, teamIDs ...string) {
	if c == nil || len(teamIDs) == 0 {
		return
	}
	keys := make([]string, len(teamIDs))
	for i, id := range teamIDs {
		keys[i] = standingsKey(id)
	}
	if err := c.store.Delete(ensureContext(ctx), keys...); err != nil {
		c.log.Warn("invalidate standings", zap.Strings("team_ids", teamIDs), zap.Error(err))
	}
}

// standingsAware is embedded by services that must keep cached leaderboards fresh.
type standingsAware struct {
	standings *StandingsCache
}

// UseStandingsCache attaches the leaderboard cache. A nil cache disables it.
func (s *standingsAware) UseStandingsCache(c *StandingsCache) {
	s.standings = c
}
