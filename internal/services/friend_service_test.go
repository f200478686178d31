package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/byterank/byterank/internal/models"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

func TestFriendServiceRequestAndAccept(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")

	request, err := f.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Equal(t, models.FriendRequestPending, request.Status)

	_, err = f.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, ErrDuplicateFriendRequest)
	_, err = f.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.ErrorIs(t, err, ErrDuplicateFriendRequest)

	count, err := f.friends.PendingCount(ctx, bob.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	pending, err := f.friends.ListPending(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Requester)
	require.Equal(t, "alice", pending[0].Requester.Username)

	_, err = f.friends.Accept(ctx, alice.ID, request.ID)
	require.ErrorIs(t, err, ErrFriendRequestNotFound)

	friendship, err := f.friends.Accept(ctx, bob.ID, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.NewFriendship(alice.ID, bob.ID).ProfileLowID, friendship.ProfileLowID)

	_, err = f.friends.Accept(ctx, bob.ID, request.ID)
	require.ErrorIs(t, err, ErrRequestResolved)

	for _, who := range []models.Profile{alice, bob} {
		friends, err := f.friends.List(ctx, who.ID)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		require.Equal(t, friendship.Other(who.ID), friends[0].Profile.ID)
	}

	_, err = f.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestFriendServiceDeclineAndRemove(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")

	request, err := f.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, f.friends.Decline(ctx, bob.ID, request.ID))

	friends, err := f.friends.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Empty(t, friends)

	// Declined requests do not block a new one.
	again, err := f.friends.SendRequest(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = f.friends.Accept(ctx, alice.ID, again.ID)
	require.NoError(t, err)

	require.NoError(t, f.friends.Remove(ctx, bob.ID, alice.ID))
	require.ErrorIs(t, f.friends.Remove(ctx, alice.ID, bob.ID), ErrFriendshipNotFound)
}

func TestFriendServiceRejectsInvalidTargets(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")

	_, err := f.friends.SendRequest(ctx, alice.ID, alice.ID)
	require.ErrorIs(t, err, ErrSelfFriendship)
	require.ErrorIs(t, err, apperrors.ErrInvariantViolation)

	_, err = f.friends.SendRequest(ctx, alice.ID, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFriendServicePruneResolved(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.profile(t, "alice")
	bob := f.profile(t, "bob")
	carol := f.profile(t, "carol")

	declined, err := f.friends.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, f.friends.Decline(ctx, bob.ID, declined.ID))
	_, err = f.friends.SendRequest(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	removed, err := f.friends.PruneResolved(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	count, err := f.friends.PendingCount(ctx, carol.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}
