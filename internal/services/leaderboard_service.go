package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/database"
	"github.com/byterank/byterank/internal/leaderboard"
	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	"github.com/byterank/byterank/pkg/metrics"
)

// DefaultWindowDays is the span of the rolling activity leaderboard.
const DefaultWindowDays = 7

const maxWindowDays = 365

// SummaryRank is a profile's position in one team, read from the view.
type SummaryRank struct {
	TeamID       string `json:"team_id"`
	Rank         int    `json:"rank"`
	TotalCommits int64  `json:"total_commits"`
}

// LeaderboardService derives team rankings from membership counters.
type LeaderboardService struct {
	standingsAware
	db *gorm.DB
}

// NewLeaderboardService constructs a LeaderboardService.
func NewLeaderboardService(db *gorm.DB) (*LeaderboardService, error) {
	if db == nil {
		return nil, errors.New("leaderboard service: db is required")
	}
	return &LeaderboardService{db: db}, nil
}

// TeamLeaderboard ranks every member of the team by total commits. An empty
// team yields empty standings. Results are served from the standings cache
// when one is attached.
func (s *LeaderboardService) TeamLeaderboard(ctx context.Context, teamID string) (leaderboard.Standings, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	if cached, ok := s.standings.load(ctx, teamID); ok {
		metrics.LeaderboardComputations.WithLabelValues("cached").Inc()
		return cached, nil
	}

	if _, err := loadTeam(db, teamID, false); err != nil {
		return leaderboard.Standings{}, passThrough("leaderboard service: team leaderboard", err)
	}

	members, err := rankedMembers(db, teamID)
	if err != nil {
		return leaderboard.Standings{}, err
	}

	metrics.LeaderboardComputations.WithLabelValues("full").Inc()
	standings := leaderboard.Rank(lo.Map(members, func(m models.Membership, _ int) leaderboard.Entry {
		return entryFor(m, m.TotalCommits)
	}))
	s.standings.save(ctx, teamID, standings)
	return standings, nil
}

// MemberRank ranks the whole team and returns one member's standing.
func (s *LeaderboardService) MemberRank(ctx context.Context, teamID, profileID string) (leaderboard.Standing, error) {
	standings, err := s.TeamLeaderboard(ctx, teamID)
	if err != nil {
		return leaderboard.Standing{}, err
	}
	standing, ok := standings.Find(profileID)
	if !ok {
		return leaderboard.Standing{}, permissions.ErrMemberNotFound
	}
	return standing, nil
}

// SummaryRanks returns the profile's rank in each of its teams, keyed by team ID.
func (s *LeaderboardService) SummaryRanks(ctx context.Context, profileID string) (map[string]SummaryRank, error) {
	ctx = ensureContext(ctx)
	return summaryRanks(s.db.WithContext(ctx), profileID)
}

// WindowedLeaderboard ranks members by commits recorded in the last days
// days (today included), independent of their lifetime counters.
func (s *LeaderboardService) WindowedLeaderboard(ctx context.Context, teamID string, days int, now time.Time) (leaderboard.Standings, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	if days <= 0 {
		days = DefaultWindowDays
	}
	if days > maxWindowDays {
		days = maxWindowDays
	}

	if _, err := loadTeam(db, teamID, false); err != nil {
		return leaderboard.Standings{}, passThrough("leaderboard service: windowed leaderboard", err)
	}

	members, err := rankedMembers(db, teamID)
	if err != nil {
		return leaderboard.Standings{}, err
	}
	if len(members) == 0 {
		return leaderboard.Rank(nil), nil
	}

	since := models.Day(now).AddDate(0, 0, -(days - 1))
	ids := lo.Map(members, func(m models.Membership, _ int) string { return m.ProfileID })

	var sums []profileSum
	if err := db.Model(&models.DailyStat{}).
		Select("profile_id, SUM(commit_count) AS commits").
		Where("profile_id IN ? AND date >= ?", ids, since).
		Group("profile_id").
		Scan(&sums).Error; err != nil {
		return leaderboard.Standings{}, fmt.Errorf("leaderboard service: sum daily stats: %w", err)
	}
	byProfile := lo.SliceToMap(sums, func(r profileSum) (string, int64) {
		return r.ProfileID, r.Commits
	})

	metrics.LeaderboardComputations.WithLabelValues("window").Inc()
	return leaderboard.Rank(lo.Map(members, func(m models.Membership, _ int) leaderboard.Entry {
		return entryFor(m, lo.ToPtr(byProfile[m.ProfileID]))
	})), nil
}

type profileSum struct {
	ProfileID string
	Commits   int64
}

// rankedMembers loads memberships in the fetch order ranking relies on.
func rankedMembers(db *gorm.DB, teamID string) ([]models.Membership, error) {
	var members []models.Membership
	if err := db.Preload("Profile").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Order("profile_id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("leaderboard service: load members: %w", err)
	}
	return members, nil
}

func entryFor(m models.Membership, commits *int64) leaderboard.Entry {
	entry := leaderboard.Entry{
		ProfileID: m.ProfileID,
		Role:      string(m.Role),
		Commits:   commits,
		JoinedAt:  m.JoinedAt,
	}
	if m.Profile != nil {
		entry.Username = m.Profile.Username
		entry.AvatarURL = m.Profile.AvatarURL
	}
	return entry
}

func summaryRanks(db *gorm.DB, profileID string) (map[string]SummaryRank, error) {
	var rows []struct {
		TeamID       string
		TotalCommits int64
		RankPosition int
	}
	if err := db.Table(database.ViewTeamLeaderboard).
		Select("team_id, total_commits, rank_position").
		Where("profile_id = ?", profileID).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load summary ranks: %w", err)
	}

	metrics.LeaderboardComputations.WithLabelValues("view").Inc()
	out := make(map[string]SummaryRank, len(rows))
	for _, row := range rows {
		out[row.TeamID] = SummaryRank{TeamID: row.TeamID, Rank: row.RankPosition, TotalCommits: row.TotalCommits}
	}
	return out, nil
}
