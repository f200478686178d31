package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/models"
)

// View names exposed to services.
const (
	ViewTeamMemberCounts = "v_team_member_counts"
	ViewTeamLeaderboard  = "v_team_leaderboard"
)

// AutoMigrate creates or updates the database schema for all models and
// recreates the aggregate views on top of it.
func AutoMigrate(db *gorm.DB) error {
	if err := dropViews(db); err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Team{},
		&models.Membership{},
		&models.JoinRequest{},
		&models.TeamInvitation{},
		&models.Friendship{},
		&models.FriendRequest{},
		&models.DailyStat{},
		&models.AuditLog{},
		&models.CacheEntry{},
	); err != nil {
		return err
	}

	return createViews(db)
}

// The leaderboard view orders ties exactly like leaderboard.Rank: commits
// descending, then join time, then profile ID.
var viewDefinitions = []struct {
	name  string
	query string
}{
	{
		name: ViewTeamMemberCounts,
		query: `SELECT team_id, COUNT(*) AS member_count
FROM team_members
GROUP BY team_id`,
	},
	{
		name: ViewTeamLeaderboard,
		query: `SELECT team_id, profile_id, role, joined_at,
	COALESCE(total_commits, 0) AS total_commits,
	ROW_NUMBER() OVER (
		PARTITION BY team_id
		ORDER BY COALESCE(total_commits, 0) DESC, joined_at ASC, profile_id ASC
	) AS rank_position
FROM team_members`,
	},
}

func dropViews(db *gorm.DB) error {
	for i := len(viewDefinitions) - 1; i >= 0; i-- {
		name := viewDefinitions[i].name
		if err := db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", name)).Error; err != nil {
			return fmt.Errorf("drop view %s: %w", name, err)
		}
	}
	return nil
}

func createViews(db *gorm.DB) error {
	for _, view := range viewDefinitions {
		if err := db.Exec(fmt.Sprintf("CREATE VIEW %s AS %s", view.name, view.query)).Error; err != nil {
			return fmt.Errorf("create view %s: %w", view.name, err)
		}
	}
	return nil
}
