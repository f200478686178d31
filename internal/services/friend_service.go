package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/byterank/byterank/internal/models"
)

// Friend is one entry of a profile's friend list.
type Friend struct {
	Profile models.Profile `json:"profile"`
	Since   time.Time      `json:"since"`
}

// FriendService manages friend requests and the symmetric friendship relation.
type FriendService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewFriendService constructs a FriendService.
func NewFriendService(db *gorm.DB, auditService *AuditService) (*FriendService, error) {
	if db == nil {
		return nil, errors.New("friend service: db is required")
	}
	return &FriendService{db: db, auditService: auditService}, nil
}

// SendRequest files a pending friend request from requesterID to recipientID.
func (s *FriendService) SendRequest(ctx context.Context, requesterID, recipientID string) (*models.FriendRequest, error) {
	ctx = ensureContext(ctx)

	if requesterID == recipientID {
		return nil, ErrSelfFriendship
	}

	var request *models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipients int64
		if err := tx.Model(&models.Profile{}).Where("id = ?", recipientID).Count(&recipients).Error; err != nil {
			return err
		}
		if recipients == 0 {
			return ErrProfileNotFound
		}

		friends, err := areFriends(tx, requesterID, recipientID)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		var pending int64
		if err := tx.Model(&models.FriendRequest{}).
			Where("status = ?", models.FriendRequestPending).
			Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)",
				requesterID, recipientID, recipientID, requesterID).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicateFriendRequest
		}

		request = &models.FriendRequest{
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      models.FriendRequestPending,
			PendingSlot: models.PendingSlot(),
		}
		if err := tx.Create(request).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateFriendRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, passThrough("friend service: send request", err)
	}

	recordAudit(s.auditService, ctx, profileActivity(requesterID, "friend.request.create", recipientID, map[string]any{
		"request_id": request.ID,
	}))
	return request, nil
}

// Accept resolves a pending request addressed to recipientID and records the
// friendship in the same transaction.
func (s *FriendService) Accept(ctx context.Context, recipientID, requestID string) (*models.Friendship, error) {
	var friendship models.Friendship
	request, err := s.resolve(ctx, recipientID, requestID, models.FriendRequestAccepted, func(tx *gorm.DB, request *models.FriendRequest) error {
		friendship = models.NewFriendship(request.RequesterID, request.RecipientID)
		friendship.CreatedAt = time.Now().UTC()
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&friendship).Error
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, profileActivity(recipientID, "friend.request.accept", request.RequesterID, map[string]any{
		"request_id": request.ID,
	}))
	return &friendship, nil
}

// Decline resolves a pending request addressed to recipientID without
// creating a friendship.
func (s *FriendService) Decline(ctx context.Context, recipientID, requestID string) error {
	request, err := s.resolve(ctx, recipientID, requestID, models.FriendRequestDeclined, nil)
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, profileActivity(recipientID, "friend.request.decline", request.RequesterID, map[string]any{
		"request_id": request.ID,
	}))
	return nil
}

func (s *FriendService) resolve(ctx context.Context, recipientID, requestID string, outcome models.FriendRequestStatus, then func(*gorm.DB, *models.FriendRequest) error) (*models.FriendRequest, error) {
	ctx = ensureContext(ctx)

	var request models.FriendRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&request, "id = ? AND recipient_id = ?", requestID, recipientID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFriendRequestNotFound
		}
		if err != nil {
			return err
		}
		if request.Status != models.FriendRequestPending {
			return ErrRequestResolved
		}

		now := time.Now().UTC()
		res := tx.Model(&models.FriendRequest{}).
			Where("id = ? AND status = ?", request.ID, models.FriendRequestPending).
			Updates(map[string]any{
				"status":       outcome,
				"pending_slot": nil,
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
		request.DecidedAt = &now

		if then == nil {
			return nil
		}
		return then(tx, &request)
	})
	if err != nil {
		return nil, passThrough("friend service: resolve request", err)
	}
	return &request, nil
}

// List returns the profile's friends, most recent first.
func (s *FriendService) List(ctx context.Context, profileID string) ([]Friend, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var rows []models.Friendship
	if err := db.Where("profile_low_id = ? OR profile_high_id = ?", profileID, profileID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("friend service: list friendships: %w", err)
	}
	if len(rows) == 0 {
		return []Friend{}, nil
	}

	ids := lo.Map(rows, func(f models.Friendship, _ int) string { return f.Other(profileID) })
	var profiles []models.Profile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("friend service: load friends: %w", err)
	}
	byID := lo.KeyBy(profiles, func(p models.Profile) string { return p.ID })

	return lo.FilterMap(rows, func(f models.Friendship, _ int) (Friend, bool) {
		profile, ok := byID[f.Other(profileID)]
		return Friend{Profile: profile, Since: f.CreatedAt}, ok
	}), nil
}

// ListPending returns pending requests addressed to the profile.
func (s *FriendService) ListPending(ctx context.Context, profileID string) ([]models.FriendRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.FriendRequest
	if err := s.db.WithContext(ctx).Preload("Requester").
		Where("recipient_id = ? AND status = ?", profileID, models.FriendRequestPending).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("friend service: list pending: %w", err)
	}
	return requests, nil
}

// PendingCount counts pending requests addressed to the profile.
func (s *FriendService) PendingCount(ctx context.Context, profileID string) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("recipient_id = ? AND status = ?", profileID, models.FriendRequestPending).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("friend service: count pending: %w", err)
	}
	return count, nil
}

// Remove ends the friendship between profileID and friendID.
func (s *FriendService) Remove(ctx context.Context, profileID, friendID string) error {
	ctx = ensureContext(ctx)

	pair := models.NewFriendship(profileID, friendID)
	res := s.db.WithContext(ctx).
		Where("profile_low_id = ? AND profile_high_id = ?", pair.ProfileLowID, pair.ProfileHighID).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return fmt.Errorf("friend service: remove friendship: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFriendshipNotFound
	}

	recordAudit(s.auditService, ctx, profileActivity(profileID, "friend.remove", friendID, nil))
	return nil
}

// PruneResolved deletes friend requests decided before cutoff.
func (s *FriendService) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).
		Where("status <> ? AND decided_at < ?", models.FriendRequestPending, cutoff).
		Delete(&models.FriendRequest{})
	if res.Error != nil {
		return 0, fmt.Errorf("friend service: prune resolved: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func areFriends(tx *gorm.DB, a, b string) (bool, error) {
	pair := models.NewFriendship(a, b)
	var count int64
	if err := tx.Model(&models.Friendship{}).
		Where("profile_low_id = ? AND profile_high_id = ?", pair.ProfileLowID, pair.ProfileHighID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
