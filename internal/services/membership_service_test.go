package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

func requireSingleOwner(t *testing.T, f *serviceFixture, teamID string) string {
	t.Helper()

	var owners []models.Membership
	require.NoError(t, f.db.Where("team_id = ? AND role = ?", teamID, models.RoleOwner).Find(&owners).Error)
	require.Len(t, owners, 1)

	var team models.Team
	require.NoError(t, f.db.Take(&team, "id = ?", teamID).Error)
	require.Equal(t, team.OwnerID, owners[0].ProfileID)
	return team.OwnerID
}

func TestMembershipServiceJoinOpenTeam(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	joiner := f.profile(t, "joiner")
	team := f.team(t, owner, models.AccessPolicyOpen)

	membership, err := f.members.Join(ctx, joiner.ID, team.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, membership.Role)
	require.NotNil(t, membership.TotalCommits)
	require.EqualValues(t, 0, *membership.TotalCommits)
	require.False(t, membership.JoinedAt.IsZero())

	_, err = f.members.Join(ctx, joiner.ID, team.ID)
	require.ErrorIs(t, err, permissions.ErrAlreadyMember)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)

	_, err = f.members.Join(ctx, joiner.ID, "missing")
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestMembershipServiceJoinClosedTeamDenied(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	joiner := f.profile(t, "joiner")
	team := f.team(t, owner, models.AccessPolicyClosed)

	_, err := f.members.Join(ctx, joiner.ID, team.ID)
	require.ErrorIs(t, err, ErrTeamClosed)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	membership, err := f.members.JoinByInviteCode(ctx, joiner.ID, "  "+team.InviteCode+" ")
	require.NoError(t, err)
	require.Equal(t, team.ID, membership.TeamID)
	require.Equal(t, models.RoleMember, f.role(t, team.ID, joiner.ID))

	_, err = f.members.JoinByInviteCode(ctx, joiner.ID, "")
	require.ErrorIs(t, err, ErrTeamNotFound)
}

func TestMembershipServiceLeave(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member)

	require.NoError(t, f.members.Leave(ctx, member.ID, team.ID))
	require.Equal(t, models.RoleNone, f.role(t, team.ID, member.ID))

	err := f.members.Leave(ctx, member.ID, team.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.members.Leave(ctx, owner.ID, team.ID)
	require.ErrorIs(t, err, permissions.ErrOwnerCannotLeave)
	requireSingleOwner(t, f, team.ID)
}

func TestMembershipServiceRemoveRules(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	admin := f.profile(t, "admin")
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, admin, alice, bob)
	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, admin.ID))

	err := f.members.Remove(ctx, alice.ID, team.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	err = f.members.Remove(ctx, admin.ID, team.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	err = f.members.Remove(ctx, owner.ID, team.ID, owner.ID)
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	requireSingleOwner(t, f, team.ID)

	require.NoError(t, f.members.Remove(ctx, owner.ID, team.ID, bob.ID))
	require.Equal(t, models.RoleNone, f.role(t, team.ID, bob.ID))

	err = f.members.Remove(ctx, owner.ID, team.ID, bob.ID)
	require.ErrorIs(t, err, permissions.ErrMemberNotFound)

	require.NoError(t, f.members.Remove(ctx, owner.ID, team.ID, admin.ID))
	require.Equal(t, models.RoleNone, f.role(t, team.ID, admin.ID))
}

func TestMembershipServicePromoteDemoteRoundTrip(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	other := f.profile(t, "other")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member, other)
	f.setCommits(t, team.ID, member.ID, 42)

	before, err := f.members.ListMembers(ctx, team.ID)
	require.NoError(t, err)

	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, member.ID))
	require.Equal(t, models.RoleAdmin, f.role(t, team.ID, member.ID))

	err = f.members.Promote(ctx, owner.ID, team.ID, member.ID)
	require.ErrorIs(t, err, permissions.ErrInvalidTargetRole)

	require.NoError(t, f.members.Demote(ctx, owner.ID, team.ID, member.ID))
	require.Equal(t, models.RoleMember, f.role(t, team.ID, member.ID))

	err = f.members.Demote(ctx, owner.ID, team.ID, member.ID)
	require.ErrorIs(t, err, permissions.ErrInvalidTargetRole)

	after, err := f.members.ListMembers(ctx, team.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		require.Equal(t, before[i].ProfileID, after[i].ProfileID)
		require.Equal(t, before[i].Role, after[i].Role)
		require.Equal(t, before[i].Commits(), after[i].Commits())
	}
	requireSingleOwner(t, f, team.ID)

	err = f.members.Promote(ctx, other.ID, team.ID, member.ID)
	require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)

	err = f.members.Demote(ctx, owner.ID, team.ID, owner.ID)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)
}

func TestMembershipServiceTransferOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")
	team := f.team(t, alice, models.AccessPolicyOpen)
	f.join(t, team.ID, bob)

	require.NoError(t, f.members.TransferOwnership(ctx, alice.ID, team.ID, bob.ID))

	require.Equal(t, models.RoleOwner, f.role(t, team.ID, bob.ID))
	require.Equal(t, models.RoleAdmin, f.role(t, team.ID, alice.ID))
	require.Equal(t, bob.ID, requireSingleOwner(t, f, team.ID))

	// The new owner already owns the team.
	err := f.members.TransferOwnership(ctx, bob.ID, team.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)

	// The previous owner lost the right to transfer.
	err = f.members.TransferOwnership(ctx, alice.ID, team.ID, bob.ID)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	require.ErrorIs(t, err, permissions.ErrAlreadyOwner)
	require.Equal(t, bob.ID, requireSingleOwner(t, f, team.ID))

	// Alice, now an admin, may leave.
	require.NoError(t, f.members.Leave(ctx, alice.ID, team.ID))
	requireSingleOwner(t, f, team.ID)
}

func TestMembershipServiceTransferRequiresMemberTarget(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	stranger := f.profile(t, "stranger")
	team := f.team(t, alice, models.AccessPolicyOpen)

	err := f.members.TransferOwnership(ctx, alice.ID, team.ID, stranger.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, alice.ID, requireSingleOwner(t, f, team.ID))
}

func TestMembershipServiceStaleGuardRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member)

	err := f.members.transition(ctx, permissions.TransitionTransferOwnership, owner.ID, team.ID, member.ID,
		func(tx *gorm.DB, target *models.Membership) error {
			if err := guardedRoleUpdate(tx, team.ID, member.ID, target.Role, models.RoleOwner); err != nil {
				return err
			}
			// Simulate a concurrent demotion of the actor.
			return guardedRoleUpdate(tx, team.ID, owner.ID, models.RoleAdmin, models.RoleMember)
		})
	require.ErrorIs(t, err, ErrStaleMembership)
	require.ErrorIs(t, err, apperrors.ErrPreconditionFailed)

	require.Equal(t, models.RoleMember, f.role(t, team.ID, member.ID))
	require.Equal(t, owner.ID, requireSingleOwner(t, f, team.ID))
}

func TestMembershipServiceUnderprivilegedActorsAreDenied(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	admin := f.profile(t, "admin")
	member := f.profile(t, "member")
	stranger := f.profile(t, "stranger")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, admin, member)
	require.NoError(t, f.members.Promote(ctx, owner.ID, team.ID, admin.ID))

	cases := []struct {
		name string
		run  func() error
	}{
		{"member removes owner", func() error { return f.members.Remove(ctx, member.ID, team.ID, owner.ID) }},
		{"admin removes owner", func() error { return f.members.Remove(ctx, admin.ID, team.ID, owner.ID) }},
		{"member removes self", func() error { return f.members.Remove(ctx, member.ID, team.ID, member.ID) }},
		{"stranger demotes admin", func() error { return f.members.Demote(ctx, stranger.ID, team.ID, admin.ID) }},
		{"stranger demotes member", func() error { return f.members.Demote(ctx, stranger.ID, team.ID, member.ID) }},
		{"admin promotes admin", func() error { return f.members.Promote(ctx, admin.ID, team.ID, admin.ID) }},
		{"stranger transfers to owner", func() error { return f.members.TransferOwnership(ctx, stranger.ID, team.ID, owner.ID) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			require.ErrorIs(t, err, apperrors.ErrAuthorizationDenied)
			require.ErrorIs(t, err, permissions.ErrNotPermitted)
		})
	}

	require.Equal(t, models.RoleAdmin, f.role(t, team.ID, admin.ID))
	require.Equal(t, models.RoleMember, f.role(t, team.ID, member.ID))
	require.Equal(t, owner.ID, requireSingleOwner(t, f, team.ID))
}

func TestMembershipServiceTransferRollsBackWhenTeamUpdateFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	owner := f.profile(t, "owner")
	member := f.profile(t, "member")
	team := f.team(t, owner, models.AccessPolicyOpen)
	f.join(t, team.ID, member)

	failure := errors.New("teams table unavailable")
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_team_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "teams" {
			_ = tx.AddError(failure)
		}
	}))
	t.Cleanup(func() {
		_ = f.db.Callback().Update().Remove("test:fail_team_update")
	})

	err := f.members.TransferOwnership(ctx, owner.ID, team.ID, member.ID)
	require.ErrorIs(t, err, failure)

	require.Equal(t, models.RoleMember, f.role(t, team.ID, member.ID))
	require.Equal(t, models.RoleOwner, f.role(t, team.ID, owner.ID))
	require.Equal(t, owner.ID, requireSingleOwner(t, f, team.ID))
}
