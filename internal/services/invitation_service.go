package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
)

// InvitationService lets owners and admins invite specific profiles.
type InvitationService struct {
	standingsAware
	db           *gorm.DB
	auditService *AuditService
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(db *gorm.DB, auditService *AuditService) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	return &InvitationService{db: db, auditService: auditService}, nil
}

// Invite creates a pending invitation for invitedID.
func (s *InvitationService) Invite(ctx context.Context, actorID, teamID, invitedID string) (*models.TeamInvitation, error) {
	ctx = ensureContext(ctx)

	var invitation *models.TeamInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTeam(tx, teamID, false); err != nil {
			return err
		}

		var invited int64
		if err := tx.Model(&models.Profile{}).Where("id = ?", invitedID).Count(&invited).Error; err != nil {
			return err
		}
		if invited == 0 {
			return ErrProfileNotFound
		}

		actor, err := loadMembership(tx, teamID, actorID)
		if err != nil {
			return err
		}
		target, err := loadMembership(tx, teamID, invitedID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), permissions.TransitionInvite, roleOf(target), actorID == invitedID); err != nil {
			return err
		}

		invitation = &models.TeamInvitation{
			TeamID:      teamID,
			InvitedID:   invitedID,
			CreatedBy:   actorID,
			Status:      models.InvitationPending,
			PendingSlot: models.PendingSlot(),
		}
		if err := tx.Create(invitation).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateInvitation
			}
			return err
		}
		return nil
	})
	observeTransition(permissions.TransitionInvite, err)
	if err != nil {
		return nil, passThrough("invitation service: invite", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.invite", teamID, map[string]any{
		"invited_id": invitedID,
	}))
	return invitation, nil
}

// Accept turns the caller's pending invitation into a membership. A pending
// join request for the same team is approved on the way.
func (s *InvitationService) Accept(ctx context.Context, profileID, invitationID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var membership *models.Membership
	var teamID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitation models.TeamInvitation
		err := tx.Take(&invitation, "id = ? AND invited_id = ?", invitationID, profileID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		if err != nil {
			return err
		}
		if invitation.Status != models.InvitationPending {
			return ErrRequestResolved
		}
		teamID = invitation.TeamID

		if _, err := loadTeam(tx, teamID, false); err != nil {
			return err
		}
		existing, err := loadMembership(tx, teamID, profileID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(existing), permissions.TransitionJoin, models.RoleNone, false); err != nil {
			return err
		}

		membership, err = addMember(tx, teamID, profileID)
		if err != nil {
			return err
		}

		// addMember settles the invitation; make sure this one was among them.
		var still int64
		if err := tx.Model(&models.TeamInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Count(&still).Error; err != nil {
			return err
		}
		if still > 0 {
			return ErrStaleRequest
		}

		now := time.Now().UTC()
		return tx.Model(&models.JoinRequest{}).
			Where("team_id = ? AND requester_id = ? AND status = ?", teamID, profileID, models.JoinRequestPending).
			Updates(map[string]any{
				"status":       models.JoinRequestApproved,
				"pending_slot": nil,
				"decided_by":   invitation.CreatedBy,
				"decided_at":   now,
			}).Error
	})
	observeTransition(permissions.TransitionJoin, err)
	if err != nil {
		return nil, passThrough("invitation service: accept", err)
	}

	s.standings.Invalidate(ctx, teamID)
	recordAudit(s.auditService, ctx, teamActivity(profileID, "team.invite.accept", teamID, map[string]any{
		"invitation_id": invitationID,
	}))
	return membership, nil
}

// ListForProfile returns the profile's pending invitations with their teams.
func (s *InvitationService) ListForProfile(ctx context.Context, profileID string) ([]models.TeamInvitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.TeamInvitation
	if err := s.db.WithContext(ctx).Preload("Team").
		Where("invited_id = ? AND status = ?", profileID, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	return invitations, nil
}
