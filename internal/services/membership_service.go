package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
)

// MembershipService applies membership transitions. Every transition is
// authorized through permissions.Authorize and executed in one transaction
// whose writes are guarded on the state that was authorized.
type MembershipService struct {
	standingsAware
	db           *gorm.DB
	auditService *AuditService
}

// NewMembershipService constructs a MembershipService.
func NewMembershipService(db *gorm.DB, auditService *AuditService) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	return &MembershipService{db: db, auditService: auditService}, nil
}

// Join adds profileID to an open team as a member with a zero counter.
func (s *MembershipService) Join(ctx context.Context, profileID, teamID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var membership *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID, false)
		if err != nil {
			return err
		}
		existing, err := loadMembership(tx, teamID, profileID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(existing), permissions.TransitionJoin, models.RoleNone, false); err != nil {
			return err
		}
		if team.AccessPolicy == models.AccessPolicyClosed {
			return ErrTeamClosed
		}
		membership, err = addMember(tx, teamID, profileID)
		return err
	})
	observeTransition(permissions.TransitionJoin, err)
	if err != nil {
		return nil, passThrough("membership service: join", err)
	}

	s.standings.Invalidate(ctx, teamID)
	recordAudit(s.auditService, ctx, teamActivity(profileID, "team.join", teamID, nil))
	return membership, nil
}

// JoinByInviteCode adds profileID to the team owning code regardless of its
// access policy.
func (s *MembershipService) JoinByInviteCode(ctx context.Context, profileID, code string) (*models.Membership, error) {
	ctx = ensureContext(ctx)
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrTeamNotFound
	}

	var membership *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		err := tx.Take(&team, "invite_code = ?", code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTeamNotFound
		}
		if err != nil {
			return err
		}
		existing, err := loadMembership(tx, team.ID, profileID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(existing), permissions.TransitionJoin, models.RoleNone, false); err != nil {
			return err
		}
		membership, err = addMember(tx, team.ID, profileID)
		return err
	})
	observeTransition(permissions.TransitionJoin, err)
	if err != nil {
		return nil, passThrough("membership service: join by invite code", err)
	}

	s.standings.Invalidate(ctx, membership.TeamID)
	recordAudit(s.auditService, ctx, teamActivity(profileID, "team.join", membership.TeamID, map[string]any{
		"via": "invite_code",
	}))
	return membership, nil
}

// Leave removes the caller's own membership. Owners must transfer first.
func (s *MembershipService) Leave(ctx context.Context, profileID, teamID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTeam(tx, teamID, false); err != nil {
			return err
		}
		self, err := loadMembership(tx, teamID, profileID)
		if err != nil {
			return err
		}
		role := roleOf(self)
		if err := permissions.Authorize(role, permissions.TransitionLeave, role, true); err != nil {
			return err
		}
		return guardedDelete(tx, teamID, profileID, role)
	})
	observeTransition(permissions.TransitionLeave, err)
	if err != nil {
		return passThrough("membership service: leave", err)
	}

	s.standings.Invalidate(ctx, teamID)
	recordAudit(s.auditService, ctx, teamActivity(profileID, "team.leave", teamID, nil))
	return nil
}

// Remove deletes another profile's membership.
func (s *MembershipService) Remove(ctx context.Context, actorID, teamID, targetID string) error {
	ctx = ensureContext(ctx)

	err := s.transition(ctx, permissions.TransitionRemove, actorID, teamID, targetID,
		func(tx *gorm.DB, target *models.Membership) error {
			return guardedDelete(tx, teamID, targetID, target.Role)
		})
	if err != nil {
		return passThrough("membership service: remove member", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.member.remove", teamID, map[string]any{
		"profile_id": targetID,
	}))
	return nil
}

// Promote raises a member to admin.
func (s *MembershipService) Promote(ctx context.Context, actorID, teamID, targetID string) error {
	ctx = ensureContext(ctx)

	err := s.transition(ctx, permissions.TransitionPromote, actorID, teamID, targetID,
		func(tx *gorm.DB, target *models.Membership) error {
			return guardedRoleUpdate(tx, teamID, targetID, models.RoleMember, models.RoleAdmin)
		})
	if err != nil {
		return passThrough("membership service: promote", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.member.promote", teamID, map[string]any{
		"profile_id": targetID,
	}))
	return nil
}

// Demote lowers an admin to member.
func (s *MembershipService) Demote(ctx context.Context, actorID, teamID, targetID string) error {
	ctx = ensureContext(ctx)

	err := s.transition(ctx, permissions.TransitionDemote, actorID, teamID, targetID,
		func(tx *gorm.DB, target *models.Membership) error {
			return guardedRoleUpdate(tx, teamID, targetID, models.RoleAdmin, models.RoleMember)
		})
	if err != nil {
		return passThrough("membership service: demote", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.member.demote", teamID, map[string]any{
		"profile_id": targetID,
	}))
	return nil
}

// TransferOwnership makes targetID the owner and the current owner an admin.
// The three writes share one transaction; any stale precondition rolls back
// all of them.
func (s *MembershipService) TransferOwnership(ctx context.Context, actorID, teamID, targetID string) error {
	ctx = ensureContext(ctx)

	err := s.transition(ctx, permissions.TransitionTransferOwnership, actorID, teamID, targetID,
		func(tx *gorm.DB, target *models.Membership) error {
			if err := guardedRoleUpdate(tx, teamID, targetID, target.Role, models.RoleOwner); err != nil {
				return err
			}

			res := tx.Model(&models.Team{}).
				Where("id = ? AND owner_id = ?", teamID, actorID).
				Update("owner_id", targetID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStaleTeam
			}

			return guardedRoleUpdate(tx, teamID, actorID, models.RoleOwner, models.RoleAdmin)
		})
	if err != nil {
		return passThrough("membership service: transfer ownership", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.transfer", teamID, map[string]any{
		"new_owner_id": targetID,
	}))
	return nil
}

// ListMembers returns the team's memberships with profiles, in join order.
func (s *MembershipService) ListMembers(ctx context.Context, teamID string) ([]models.Membership, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	if _, err := loadTeam(db, teamID, false); err != nil {
		return nil, passThrough("membership service: list members", err)
	}

	var members []models.Membership
	if err := db.Preload("Profile").
		Where("team_id = ?", teamID).
		Order("joined_at ASC").
		Order("profile_id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("membership service: list members: %w", err)
	}
	return members, nil
}

// Role returns profileID's role in the team, or RoleNone.
func (s *MembershipService) Role(ctx context.Context, teamID, profileID string) (models.MemberRole, error) {
	ctx = ensureContext(ctx)
	membership, err := loadMembership(s.db.WithContext(ctx), teamID, profileID)
	if err != nil {
		return models.RoleNone, fmt.Errorf("membership service: load membership: %w", err)
	}
	return roleOf(membership), nil
}

type targetMutation func(tx *gorm.DB, target *models.Membership) error

// transition runs an actor-on-target transition: it locks the team and the
// actor's membership, authorizes against the roles it read, then applies
// mutate inside the same transaction.
func (s *MembershipService) transition(ctx context.Context, t permissions.Transition, actorID, teamID, targetID string, mutate targetMutation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTeam(tx, teamID, true); err != nil {
			return err
		}
		actor, err := lockMembership(tx, teamID, actorID)
		if err != nil {
			return err
		}
		target, err := loadMembership(tx, teamID, targetID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), t, roleOf(target), actorID == targetID); err != nil {
			return err
		}
		return mutate(tx, target)
	})
	observeTransition(t, err)
	if err == nil {
		s.standings.Invalidate(ctx, teamID)
	}
	return err
}

func lockMembership(tx *gorm.DB, teamID, profileID string) (*models.Membership, error) {
	return loadMembership(tx.Clauses(clause.Locking{Strength: "UPDATE"}), teamID, profileID)
}

func addMember(tx *gorm.DB, teamID, profileID string) (*models.Membership, error) {
	membership := &models.Membership{
		TeamID:       teamID,
		ProfileID:    profileID,
		Role:         models.RoleMember,
		TotalCommits: lo.ToPtr(int64(0)),
		JoinedAt:     time.Now().UTC(),
	}
	if err := tx.Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, permissions.ErrAlreadyMember
		}
		return nil, err
	}

	// Joining settles any invitation still waiting for this profile.
	if err := tx.Model(&models.TeamInvitation{}).
		Where("team_id = ? AND invited_id = ? AND status = ?", teamID, profileID, models.InvitationPending).
		Updates(map[string]any{
			"status":       models.InvitationAccepted,
			"pending_slot": nil,
			"accepted_at":  membership.JoinedAt,
		}).Error; err != nil {
		return nil, err
	}

	return membership, nil
}

func guardedDelete(tx *gorm.DB, teamID, profileID string, expected models.MemberRole) error {
	res := tx.Where("team_id = ? AND profile_id = ? AND role = ?", teamID, profileID, expected).
		Delete(&models.Membership{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleMembership
	}
	return nil
}
