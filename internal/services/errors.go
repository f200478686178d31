package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/byterank/byterank/pkg/errors"
)

var (
	// ErrTeamNotFound indicates the requested team does not exist.
	ErrTeamNotFound = apperrors.ErrNotFound.Derive("TEAM_NOT_FOUND", "Team not found")
	// ErrProfileNotFound indicates the requested profile does not exist.
	ErrProfileNotFound = apperrors.ErrNotFound.Derive("PROFILE_NOT_FOUND", "Profile not found")
	// ErrJoinRequestNotFound indicates the join request does not exist or is no longer visible.
	ErrJoinRequestNotFound = apperrors.ErrNotFound.Derive("JOIN_REQUEST_NOT_FOUND", "Join request not found")
	// ErrInvitationNotFound indicates the invitation does not exist or belongs to someone else.
	ErrInvitationNotFound = apperrors.ErrNotFound.Derive("INVITATION_NOT_FOUND", "Invitation not found")
	// ErrFriendRequestNotFound indicates the friend request does not exist or belongs to someone else.
	ErrFriendRequestNotFound = apperrors.ErrNotFound.Derive("FRIEND_REQUEST_NOT_FOUND", "Friend request not found")
	// ErrFriendshipNotFound indicates the two profiles are not friends.
	ErrFriendshipNotFound = apperrors.ErrNotFound.Derive("FRIENDSHIP_NOT_FOUND", "Friendship not found")

	// ErrTeamClosed is returned when joining a closed team without approval.
	ErrTeamClosed = apperrors.ErrAuthorizationDenied.Derive("TEAM_CLOSED", "This team requires an approved join request")
	// ErrTeamOpen is returned when requesting to join a team anyone can join.
	ErrTeamOpen = apperrors.ErrInvariantViolation.Derive("TEAM_OPEN", "This team is open, join it directly")
	// ErrDuplicateJoinRequest is returned when a pending request already exists.
	ErrDuplicateJoinRequest = apperrors.ErrInvariantViolation.Derive("JOIN_REQUEST_PENDING", "A join request is already pending")
	// ErrDuplicateInvitation is returned when the profile already has a pending invitation.
	ErrDuplicateInvitation = apperrors.ErrInvariantViolation.Derive("INVITATION_PENDING", "An invitation is already pending")
	// ErrRequestResolved is returned when a join request or invitation is no longer pending.
	ErrRequestResolved = apperrors.ErrInvariantViolation.Derive("REQUEST_RESOLVED", "The request has already been resolved")
	// ErrDuplicateFriendRequest is returned when a pending request exists in either direction.
	ErrDuplicateFriendRequest = apperrors.ErrInvariantViolation.Derive("FRIEND_REQUEST_PENDING", "A friend request is already pending")
	// ErrAlreadyFriends is returned when the two profiles are already friends.
	ErrAlreadyFriends = apperrors.ErrInvariantViolation.Derive("ALREADY_FRIENDS", "You are already friends")
	// ErrSelfFriendship is returned when a profile targets itself.
	ErrSelfFriendship = apperrors.ErrInvariantViolation.Derive("SELF_FRIENDSHIP", "You cannot befriend yourself")
	// ErrUsernameTaken is returned when another profile owns the username.
	ErrUsernameTaken = apperrors.ErrInvariantViolation.Derive("USERNAME_TAKEN", "Username is already taken")

	// ErrStaleMembership is returned when a guarded membership write matched no row.
	ErrStaleMembership = apperrors.ErrPreconditionFailed.Derive("MEMBERSHIP_CHANGED", "Membership changed since it was read")
	// ErrStaleTeam is returned when a guarded team write matched no row.
	ErrStaleTeam = apperrors.ErrPreconditionFailed.Derive("TEAM_CHANGED", "Team changed since it was read")
	// ErrStaleRequest is returned when a request was resolved concurrently.
	ErrStaleRequest = apperrors.ErrPreconditionFailed.Derive("REQUEST_CHANGED", "Request changed since it was read")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}
