package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	apperrors "github.com/byterank/byterank/pkg/errors"
	"github.com/byterank/byterank/pkg/metrics"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func optionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// loadTeam reads a team, optionally under a row lock. SQLite ignores the
// locking clause; its writer lock serialises the transaction instead.
func loadTeam(tx *gorm.DB, teamID string, lock bool) (*models.Team, error) {
	query := tx
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var team models.Team
	err := query.Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// loadMembership returns nil without error when the profile is not a member.
func loadMembership(tx *gorm.DB, teamID, profileID string) (*models.Membership, error) {
	var membership models.Membership
	err := tx.Take(&membership, "team_id = ? AND profile_id = ?", teamID, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func roleOf(m *models.Membership) models.MemberRole {
	if m == nil {
		return models.RoleNone
	}
	return m.Role
}

// guardedRoleUpdate changes a member's role only when it still holds
// expected, failing with ErrStaleMembership otherwise.
func guardedRoleUpdate(tx *gorm.DB, teamID, profileID string, expected, next models.MemberRole) error {
	res := tx.Model(&models.Membership{}).
		Where("team_id = ? AND profile_id = ? AND role = ?", teamID, profileID, expected).
		Update("role", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleMembership
	}
	return nil
}

// observeTransition records the outcome of a membership transition.
func observeTransition(t permissions.Transition, err error) {
	metrics.MembershipTransitions.WithLabelValues(string(t), transitionResult(err)).Inc()
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrAuthorizationDenied):
		return "denied"
	case errors.Is(err, apperrors.ErrInvariantViolation):
		return "invariant"
	case errors.Is(err, apperrors.ErrPreconditionFailed):
		return "precondition"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// passThrough returns application errors unchanged and wraps everything else
// with the operation name.
func passThrough(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// likeEscaper escapes LIKE wildcards with '!', which every supported driver
// accepts as an ESCAPE character without string-literal quoting rules.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern returns a LIKE pattern matching term anywhere, with the
// wildcards inside term taken literally. Use with ESCAPE '!'.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
