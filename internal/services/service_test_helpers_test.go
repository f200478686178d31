package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/database/testutil"
	"github.com/byterank/byterank/internal/models"
)

type serviceFixture struct {
	db          *gorm.DB
	audit       *AuditService
	teams       *TeamService
	members     *MembershipService
	requests    *JoinRequestService
	invitations *InvitationService
	board       *LeaderboardService
	stats       *CommitStatsService
	profiles    *ProfileService
	friends     *FriendService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	f := &serviceFixture{db: db}

	var err error
	f.audit, err = NewAuditService(db)
	require.NoError(t, err)
	f.teams, err = NewTeamService(db, f.audit)
	require.NoError(t, err)
	f.members, err = NewMembershipService(db, f.audit)
	require.NoError(t, err)
	f.requests, err = NewJoinRequestService(db, f.audit)
	require.NoError(t, err)
	f.invitations, err = NewInvitationService(db, f.audit)
	require.NoError(t, err)
	f.board, err = NewLeaderboardService(db)
	require.NoError(t, err)
	f.stats, err = NewCommitStatsService(db)
	require.NoError(t, err)
	f.profiles, err = NewProfileService(db, f.audit)
	require.NoError(t, err)
	f.friends, err = NewFriendService(db, f.audit)
	require.NoError(t, err)

	return f
}

func (f *serviceFixture) profile(t *testing.T, username string) models.Profile {
	t.Helper()

	profile := models.Profile{Username: username}
	require.NoError(t, f.db.Create(&profile).Error)
	return profile
}

func (f *serviceFixture) team(t *testing.T, owner models.Profile, policy models.AccessPolicy) *models.Team {
	t.Helper()

	team, err := f.teams.Create(context.Background(), owner.ID, CreateTeamInput{
		Name:         owner.Username + "'s team",
		AccessPolicy: policy,
	})
	require.NoError(t, err)
	return team
}

// join adds profiles to an open team as plain members.
func (f *serviceFixture) join(t *testing.T, teamID string, profiles ...models.Profile) {
	t.Helper()

	for _, p := range profiles {
		_, err := f.members.Join(context.Background(), p.ID, teamID)
		require.NoError(t, err)
	}
}

func (f *serviceFixture) role(t *testing.T, teamID, profileID string) models.MemberRole {
	t.Helper()

	role, err := f.members.Role(context.Background(), teamID, profileID)
	require.NoError(t, err)
	return role
}

func (f *serviceFixture) setCommits(t *testing.T, teamID, profileID string, commits int64) {
	t.Helper()

	require.NoError(t, f.db.Model(&models.Membership{}).
		Where("team_id = ? AND profile_id = ?", teamID, profileID).
		Update("total_commits", commits).Error)
}
