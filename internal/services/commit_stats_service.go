package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/byterank/byterank/internal/models"
	apperrors "github.com/byterank/byterank/pkg/errors"
	"github.com/byterank/byterank/pkg/logger"
	"github.com/byterank/byterank/pkg/metrics"
)

// CommitStatsService is the boundary to the commit ingestion job. It stores
// daily activity and folds it into the per-membership counters.
type CommitStatsService struct {
	standingsAware
	db *gorm.DB
}

// NewCommitStatsService constructs a CommitStatsService.
func NewCommitStatsService(db *gorm.DB) (*CommitStatsService, error) {
	if db == nil {
		return nil, errors.New("commit stats service: db is required")
	}
	return &CommitStatsService{db: db}, nil
}

// DailyStatInput is one day of activity reported by the ingestion job.
type DailyStatInput struct {
	ProfileID   string
	Day         time.Time
	CommitCount int64
	LinesAdded  int64
}

// RecordDaily upserts the activity of a profile for one UTC day.
func (s *CommitStatsService) RecordDaily(ctx context.Context, input DailyStatInput) error {
	ctx = ensureContext(ctx)

	if input.ProfileID == "" {
		return apperrors.NewBadRequest("profile id is required")
	}
	if input.CommitCount < 0 || input.LinesAdded < 0 {
		return apperrors.NewBadRequest("activity counts must not be negative")
	}

	stat := models.DailyStat{
		ProfileID:   input.ProfileID,
		Date:        models.Day(input.Day),
		CommitCount: input.CommitCount,
		LinesAdded:  input.LinesAdded,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"commit_count", "lines_added", "updated_at"}),
	}).Create(&stat).Error
	if err != nil {
		return fmt.Errorf("commit stats service: record daily stat: %w", err)
	}
	return nil
}

// RefreshTeamTotals recomputes each member's counter as the sum of their
// daily commits since the day they joined. Counters only ever increase; a
// lower recomputed value leaves the stored total untouched. It returns the
// number of counters raised.
func (s *CommitStatsService) RefreshTeamTotals(ctx context.Context, teamID string) (int, error) {
	ctx = ensureContext(ctx)

	raised := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var members []models.Membership
		if err := tx.Where("team_id = ?", teamID).Find(&members).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}

		earliest := lo.MinBy(members, func(a, b models.Membership) bool { return a.JoinedAt.Before(b.JoinedAt) })
		ids := lo.Map(members, func(m models.Membership, _ int) string { return m.ProfileID })

		var stats []models.DailyStat
		if err := tx.Where("profile_id IN ? AND date >= ?", ids, models.Day(earliest.JoinedAt)).
			Find(&stats).Error; err != nil {
			return err
		}
		byProfile := lo.GroupBy(stats, func(st models.DailyStat) string { return st.ProfileID })

		for _, m := range members {
			since := models.Day(m.JoinedAt)
			total := lo.SumBy(byProfile[m.ProfileID], func(st models.DailyStat) int64 {
				if st.Date.Before(since) {
					return 0
				}
				return st.CommitCount
			})
			if total <= m.Commits() {
				continue
			}

			res := tx.Model(&models.Membership{}).
				Where("team_id = ? AND profile_id = ?", m.TeamID, m.ProfileID).
				Where("total_commits IS NULL OR total_commits < ?", total).
				Update("total_commits", total)
			if res.Error != nil {
				return res.Error
			}
			raised += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("commit stats service: refresh team totals: %w", err)
	}

	if raised > 0 {
		s.standings.Invalidate(ctx, teamID)
	}
	metrics.CommitTotalsRefreshed.Add(float64(raised))
	return raised, nil
}

// RefreshAll refreshes every team. Failures are logged per team and the
// first error is returned after all teams were attempted.
func (s *CommitStatsService) RefreshAll(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var teamIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Team{}).Order("created_at ASC").Pluck("id", &teamIDs).Error; err != nil {
		return 0, fmt.Errorf("commit stats service: list teams: %w", err)
	}

	log := logger.WithModule("commit_stats")
	total := 0
	var firstErr error
	for _, id := range teamIDs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.RefreshTeamTotals(ctx, id)
		if err != nil {
			log.Warn("refresh team totals failed", zap.String("team_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
	}
	return total, firstErr
}
