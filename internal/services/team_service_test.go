package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

func TestTeamServiceCreateAddsOwnerMembership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "ada")

	desc := "  compilers  "
	team, err := f.teams.Create(ctx, owner.ID, CreateTeamInput{Name: " Lovelace ", Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "Lovelace", team.Name)
	require.Equal(t, models.AccessPolicyOpen, team.AccessPolicy)
	require.Equal(t, owner.ID, team.OwnerID)
	require.NotEmpty(t, team.InviteCode)
	require.NotNil(t, team.Description)
	require.Equal(t, "compilers", *team.Description)

	members, err := f.members.ListMembers(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, owner.ID, members[0].ProfileID)
	require.Equal(t, models.RoleOwner, members[0].Role)
	require.EqualValues(t, 0, members[0].Commits())

	var logs []models.AuditLog
	require.NoError(t, f.db.Where("action = ?", "team.create").Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, models.AuditSubjectTeam, logs[0].SubjectType)
	require.Equal(t, team.ID, logs[0].SubjectID)
}

func TestTeamServiceCreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "ada")

	_, err := f.teams.Create(ctx, owner.ID, CreateTeamInput{Name: "   "})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.teams.Create(ctx, owner.ID, CreateTeamInput{Name: "x", AccessPolicy: "secret"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.teams.Create(ctx, "00000000-0000-0000-0000-000000000000", CreateTeamInput{Name: "ghost"})
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestTeamServiceGetDisclosesInviteCodeToManagers(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	outsider := f.profile(t, "outsider")
	team := f.team(t, owner, models.AccessPolicyClosed)

	_, err := f.members.JoinByInviteCode(ctx, member.ID, team.InviteCode)
	require.NoError(t, err)

	detail, err := f.teams.Get(ctx, team.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, detail.ViewerRole)
	require.Equal(t, team.InviteCode, detail.InviteCode)
	require.EqualValues(t, 2, detail.MemberCount)
	require.Contains(t, detail.Capabilities, permissions.TransitionTransferOwnership)

	detail, err = f.teams.Get(ctx, team.ID, member.ID)
	require.NoError(t, err)
	require.Empty(t, detail.InviteCode)
	require.Equal(t, []permissions.Transition{permissions.TransitionLeave}, detail.Capabilities)

	detail, err = f.teams.Get(ctx, team.ID, outsider.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleNone, detail.ViewerRole)
	require.Equal(t, []permissions.Transition{permissions.TransitionRequestJoin}, detail.Capabilities)

	_, err = f.teams.Get(ctx, "missing", owner.ID)
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamServiceDiscoverAnnotatesViewer(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")
	viewer := f.profile(t, "viewer")

	open := f.team(t, alice, models.AccessPolicyOpen)
	closed := f.team(t, bob, models.AccessPolicyClosed)
	f.join(t, open.ID, viewer)

	_, err := f.requests.Request(ctx, viewer.ID, closed.ID)
	require.NoError(t, err)
	require.NoError(t, f.teams.SetFeatured(ctx, closed.ID))

	summaries, err := f.teams.Discover(ctx, viewer.ID, DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	require.Equal(t, closed.ID, summaries[0].ID)
	require.True(t, summaries[0].IsFeatured)
	require.False(t, summaries[0].IsMember)
	require.True(t, summaries[0].HasPendingRequest)
	require.EqualValues(t, 1, summaries[0].MemberCount)

	require.Equal(t, open.ID, summaries[1].ID)
	require.True(t, summaries[1].IsMember)
	require.Equal(t, models.RoleMember, summaries[1].ViewerRole)
	require.EqualValues(t, 2, summaries[1].MemberCount)

	filtered, err := f.teams.Discover(ctx, viewer.ID, DiscoverOptions{Query: "BOB"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, closed.ID, filtered[0].ID)
}

func TestTeamServiceDiscoverTreatsWildcardsLiterally(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")

	for _, name := range []string{"100% club", "1000 club", "night_owls", "nightXowls"} {
		_, err := f.teams.Create(ctx, owner.ID, CreateTeamInput{Name: name, AccessPolicy: models.AccessPolicyOpen})
		require.NoError(t, err)
	}

	percent, err := f.teams.Discover(ctx, owner.ID, DiscoverOptions{Query: "100%"})
	require.NoError(t, err)
	require.Len(t, percent, 1)
	require.Equal(t, "100% club", percent[0].Name)

	underscore, err := f.teams.Discover(ctx, owner.ID, DiscoverOptions{Query: "night_"})
	require.NoError(t, err)
	require.Len(t, underscore, 1)
	require.Equal(t, "night_owls", underscore[0].Name)

	all, err := f.teams.Discover(ctx, owner.ID, DiscoverOptions{Query: "%"})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestTeamServiceListForProfileIncludesRank(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member)
	f.setCommits(t, team.ID, member.ID, 12)
	f.setCommits(t, team.ID, owner.ID, 3)

	teams, err := f.teams.ListForProfile(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, team.ID, teams[0].Team.ID)
	require.Equal(t, models.RoleMember, teams[0].Role)
	require.Equal(t, 1, teams[0].Rank)
	require.EqualValues(t, 12, teams[0].TotalCommits)
	require.EqualValues(t, 2, teams[0].MemberCount)

	teams, err = f.teams.ListForProfile(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	require.Equal(t, 2, teams[0].Rank)

	none, err := f.teams.ListForProfile(ctx, f.profile(t, "loner").ID)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestTeamServiceFeatured(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	first := f.team(t, owner, models.AccessPolicyOpen)
	second := f.team(t, owner, models.AccessPolicyOpen)

	_, err := f.teams.Featured(ctx)
	require.ErrorIs(t, err, ErrTeamNotFound)

	require.NoError(t, f.teams.SetFeatured(ctx, first.ID))
	require.NoError(t, f.teams.SetFeatured(ctx, second.ID))

	featured, err := f.teams.Featured(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, featured.ID)

	var count int64
	require.NoError(t, f.db.Model(&models.Team{}).Where("is_featured = ?", true).Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.ErrorIs(t, f.teams.SetFeatured(ctx, "missing"), ErrTeamNotFound)
	require.NoError(t, f.teams.SetFeatured(ctx, ""))
	_, err = f.teams.Featured(ctx)
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamServiceUpdateOwnerOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	admin := f.profile(t, "admin")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, admin)
	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, admin.ID))

	name := "Renamed"
	closed := models.AccessPolicyClosed
	updated, err := f.teams.Update(ctx, owner.ID, team.ID, UpdateTeamInput{Name: &name, AccessPolicy: &closed})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, models.AccessPolicyClosed, updated.AccessPolicy)

	_, err = f.teams.Update(ctx, admin.ID, team.ID, UpdateTeamInput{Name: &name})
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	bad := models.AccessPolicy("invite-only")
	_, err = f.teams.Update(ctx, owner.ID, team.ID, UpdateTeamInput{AccessPolicy: &bad})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestTeamServiceRotateInviteCode(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member)

	code, err := f.teams.RotateInviteCode(ctx, owner.ID, team.ID)
	require.NoError(t, err)
	require.NotEqual(t, team.InviteCode, code)

	_, err = f.teams.RotateInviteCode(ctx, member.ID, team.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	_, err = f.members.JoinByInviteCode(ctx, f.profile(t, "late").ID, team.InviteCode)
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestTeamServiceDeleteRemovesDependents(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	admin := f.profile(t, "admin")
	requester := f.profile(t, "requester")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, admin)
	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, admin.ID))

	closed := models.AccessPolicyClosed
	_, err := f.teams.Update(ctx, owner.ID, team.ID, UpdateTeamInput{AccessPolicy: &closed})
	require.NoError(t, err)
	_, err = f.requests.Request(ctx, requester.ID, team.ID)
	require.NoError(t, err)

	err = f.teams.Delete(ctx, admin.ID, team.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	require.NoError(t, f.teams.Delete(ctx, owner.ID, team.ID))

	_, err = f.teams.Get(ctx, team.ID, owner.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	var memberships, requests int64
	require.NoError(t, f.db.Model(&models.Membership{}).Where("team_id = ?", team.ID).Count(&memberships).Error)
	require.NoError(t, f.db.Model(&models.JoinRequest{}).Where("team_id = ?", team.ID).Count(&requests).Error)
	require.Zero(t, memberships)
	require.Zero(t, requests)

	mine, err := f.requests.ListMine(ctx, requester.ID)
	require.NoError(t, err)
	require.Empty(t, mine)

	require.ErrorIs(t, f.teams.Delete(ctx, owner.ID, team.ID), ErrTeamNotFound)
}
