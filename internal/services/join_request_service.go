package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
)

// JoinRequestService manages the approval workflow for closed teams.
type JoinRequestService struct {
	standingsAware
	db           *gorm.DB
	auditService *AuditService
}

// NewJoinRequestService constructs a JoinRequestService.
func NewJoinRequestService(db *gorm.DB, auditService *AuditService) (*JoinRequestService, error) {
	if db == nil {
		return nil, errors.New("join request service: db is required")
	}
	return &JoinRequestService{db: db, auditService: auditService}, nil
}

// Request files a pending join request for a closed team. A second pending
// request for the same pair is rejected without writing a row.
func (s *JoinRequestService) Request(ctx context.Context, profileID, teamID string) (*models.JoinRequest, error) {
	ctx = ensureContext(ctx)

	var request *models.JoinRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID, false)
		if err != nil {
			return err
		}
		existing, err := loadMembership(tx, teamID, profileID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(existing), permissions.TransitionRequestJoin, models.RoleNone, false); err != nil {
			return err
		}
		if team.AccessPolicy == models.AccessPolicyOpen {
			return ErrTeamOpen
		}

		var pending int64
		if err := tx.Model(&models.JoinRequest{}).
			Where("team_id = ? AND requester_id = ? AND status = ?", teamID, profileID, models.JoinRequestPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateJoinRequest
		}

		request = &models.JoinRequest{
			TeamID:      teamID,
			RequesterID: profileID,
			Status:      models.JoinRequestPending,
			PendingSlot: models.PendingSlot(),
		}
		if err := tx.Create(request).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateJoinRequest
			}
			return err
		}
		return nil
	})
	observeTransition(permissions.TransitionRequestJoin, err)
	if err != nil {
		return nil, passThrough("join request service: request", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(profileID, "team.request.create", teamID, map[string]any{
		"request_id": request.ID,
	}))
	return request, nil
}

// Approve resolves a pending request and adds the requester as a member.
func (s *JoinRequestService) Approve(ctx context.Context, actorID, requestID string) (*models.JoinRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.JoinRequestApproved)
}

// Reject resolves a pending request without creating a membership.
func (s *JoinRequestService) Reject(ctx context.Context, actorID, requestID string) (*models.JoinRequest, error) {
	return s.resolve(ctx, actorID, requestID, models.JoinRequestRejected)
}

func (s *JoinRequestService) resolve(ctx context.Context, actorID, requestID string, outcome models.JoinRequestStatus) (*models.JoinRequest, error) {
	ctx = ensureContext(ctx)

	var request models.JoinRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&request, "id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJoinRequestNotFound
		}
		if err != nil {
			return err
		}
		if _, err := loadTeam(tx, request.TeamID, false); err != nil {
			return err
		}

		actor, err := lockMembership(tx, request.TeamID, actorID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), permissions.TransitionResolveRequest, models.RoleNone, false); err != nil {
			return err
		}
		if request.Status != models.JoinRequestPending {
			return ErrRequestResolved
		}

		now := time.Now().UTC()
		res := tx.Model(&models.JoinRequest{}).
			Where("id = ? AND status = ?", request.ID, models.JoinRequestPending).
			Updates(map[string]any{
				"status":       outcome,
				"pending_slot": nil,
				"decided_by":   actorID,
				"decided_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleRequest
		}
		request.Status = outcome
		request.PendingSlot = nil
		request.DecidedBy = &actorID
		request.DecidedAt = &now

		if outcome != models.JoinRequestApproved {
			return nil
		}

		// The requester may have entered through an invite meanwhile.
		existing, err := loadMembership(tx, request.TeamID, request.RequesterID)
		if err != nil || existing != nil {
			return err
		}
		_, err = addMember(tx, request.TeamID, request.RequesterID)
		return err
	})
	observeTransition(permissions.TransitionResolveRequest, err)
	if err != nil {
		return nil, passThrough("join request service: resolve", err)
	}

	if outcome == models.JoinRequestApproved {
		s.standings.Invalidate(ctx, request.TeamID)
	}
	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.request."+resolveVerb(outcome), request.TeamID, map[string]any{
		"request_id":   request.ID,
		"requester_id": request.RequesterID,
	}))
	return &request, nil
}

// ListPending returns the team's pending requests. Only owners and admins may see them.
func (s *JoinRequestService) ListPending(ctx context.Context, actorID, teamID string) ([]models.JoinRequest, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	if _, err := loadTeam(db, teamID, false); err != nil {
		return nil, passThrough("join request service: list pending", err)
	}
	actor, err := loadMembership(db, teamID, actorID)
	if err != nil {
		return nil, fmt.Errorf("join request service: load membership: %w", err)
	}
	if err := permissions.Authorize(roleOf(actor), permissions.TransitionResolveRequest, models.RoleNone, false); err != nil {
		return nil, err
	}

	var requests []models.JoinRequest
	if err := db.Preload("Requester").
		Where("team_id = ? AND status = ?", teamID, models.JoinRequestPending).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("join request service: list pending: %w", err)
	}
	return requests, nil
}

// ListMine returns the profile's own pending requests with their teams.
func (s *JoinRequestService) ListMine(ctx context.Context, profileID string) ([]models.JoinRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.JoinRequest
	if err := s.db.WithContext(ctx).Preload("Team").
		Where("requester_id = ? AND status = ?", profileID, models.JoinRequestPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("join request service: list mine: %w", err)
	}
	return requests, nil
}

// PruneResolved deletes join requests and invitations that were resolved
// before cutoff.
func (s *JoinRequestService) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("status <> ? AND decided_at < ?", models.JoinRequestPending, cutoff).
			Delete(&models.JoinRequest{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("status = ? AND accepted_at < ?", models.InvitationAccepted, cutoff).
			Delete(&models.TeamInvitation{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("join request service: prune resolved: %w", err)
	}
	return removed, nil
}

func resolveVerb(status models.JoinRequestStatus) string {
	if status == models.JoinRequestApproved {
		return "approve"
	}
	return "reject"
}
