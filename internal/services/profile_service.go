package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/pkg/crypto"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

const (
	minUsernameLength  = 3
	maxUsernameLength  = 32
	usernameAttempts   = 5
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

var usernameDisallowed = regexp.MustCompile(`[^a-z0-9_-]+`)

// ProvisionInput carries the identity claims used to create a profile on
// first sign-in.
type ProvisionInput struct {
	ProfileID string
	Username  string
	AvatarURL *string
}

// UpdateProfileInput describes the fields a user may edit on their own profile.
type UpdateProfileInput struct {
	Username       *string
	AvatarURL      *string
	Description    *string
	GitHubUsername *string
}

// ProfileService manages public profiles.
type ProfileService struct {
	standingsAware
	db           *gorm.DB
	auditService *AuditService
}

// NewProfileService constructs a ProfileService.
func NewProfileService(db *gorm.DB, auditService *AuditService) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{db: db, auditService: auditService}, nil
}

// Get returns a profile by ID.
func (s *ProfileService) Get(ctx context.Context, profileID string) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	var profile models.Profile
	err := s.db.WithContext(ctx).Take(&profile, "id = ?", profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: get profile: %w", err)
	}
	return &profile, nil
}

// GetByUsername returns a profile by its username, case-insensitively.
func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	var profile models.Profile
	err := s.db.WithContext(ctx).Take(&profile, "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: get profile by username: %w", err)
	}
	return &profile, nil
}

// EnsureProfile returns the profile for input.ProfileID, creating it when the
// identity signs in for the first time. A taken username gets a numeric
// suffix.
func (s *ProfileService) EnsureProfile(ctx context.Context, input ProvisionInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.ProfileID) == "" {
		return nil, apperrors.NewBadRequest("profile id is required")
	}

	existing, err := s.Get(ctx, input.ProfileID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	base := sanitizeUsername(input.Username)
	if base == "" {
		base = "user"
	}

	candidate := base
	for attempt := 0; attempt < usernameAttempts; attempt++ {
		profile := &models.Profile{
			BaseModel: models.BaseModel{ID: input.ProfileID},
			Username:  candidate,
			AvatarURL: optionalString(input.AvatarURL),
		}
		err := s.db.WithContext(ctx).Create(profile).Error
		if err == nil {
			recordAudit(s.auditService, ctx, profileActivity(profile.ID, "profile.create", profile.ID, map[string]any{
				"username": profile.Username,
			}))
			return profile, nil
		}
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("profile service: create profile: %w", err)
		}

		// A concurrent request may have provisioned the same identity.
		if existing, getErr := s.Get(ctx, input.ProfileID); getErr == nil {
			return existing, nil
		}

		suffix, suffixErr := crypto.RandomDigits(4)
		if suffixErr != nil {
			return nil, fmt.Errorf("profile service: username suffix: %w", suffixErr)
		}
		candidate = truncateUsername(base, maxUsernameLength-len(suffix)-1) + "-" + suffix
	}

	return nil, ErrUsernameTaken
}

// Update edits the caller's own profile.
func (s *ProfileService) Update(ctx context.Context, profileID string, input UpdateProfileInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if input.Username != nil {
		username, err := validateUsername(*input.Username)
		if err != nil {
			return nil, err
		}
		updates["username"] = username
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = optionalString(input.AvatarURL)
	}
	if input.Description != nil {
		updates["description"] = optionalString(input.Description)
	}
	if input.GitHubUsername != nil {
		updates["github_username"] = optionalString(input.GitHubUsername)
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&profile, "id = ?", profileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}
		if len(updates) == 0 {
			return nil
		}

		if username, ok := updates["username"].(string); ok && !strings.EqualFold(username, profile.Username) {
			var taken int64
			if err := tx.Model(&models.Profile{}).
				Where("LOWER(username) = ? AND id <> ?", strings.ToLower(username), profileID).
				Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return ErrUsernameTaken
			}
		}

		if err := tx.Model(&profile).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrUsernameTaken
			}
			return err
		}
		return tx.Take(&profile, "id = ?", profileID).Error
	})
	if err != nil {
		return nil, passThrough("profile service: update profile", err)
	}

	if len(updates) > 0 {
		s.invalidateTeamsOf(ctx, profileID, updates)
		recordAudit(s.auditService, ctx, profileActivity(profileID, "profile.update", profileID, nil))
	}
	return &profile, nil
}

// invalidateTeamsOf drops cached leaderboards that display the profile's
// username or avatar.
func (s *ProfileService) invalidateTeamsOf(ctx context.Context, profileID string, updates map[string]any) {
	if s.standings == nil {
		return
	}
	_, renamed := updates["username"]
	_, avatar := updates["avatar_url"]
	if !renamed && !avatar {
		return
	}
	var teamIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Membership{}).
		Where("profile_id = ?", profileID).
		Pluck("team_id", &teamIDs).Error; err != nil {
		s.standings.log.Warn("list teams for invalidation", zap.String("profile_id", profileID), zap.Error(err))
		return
	}
	s.standings.Invalidate(ctx, teamIDs...)
}

// CompleteOnboarding sets the username and GitHub handle chosen during
// onboarding and marks the profile as onboarded.
func (s *ProfileService) CompleteOnboarding(ctx context.Context, profileID string, input UpdateProfileInput) (*models.Profile, error) {
	ctx = ensureContext(ctx)

	if _, err := s.Update(ctx, profileID, input); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("onboarding_completed", true).Error; err != nil {
		return nil, fmt.Errorf("profile service: complete onboarding: %w", err)
	}
	return s.Get(ctx, profileID)
}

// Search finds profiles whose username starts with or contains query.
func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	ctx = ensureContext(ctx)

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []models.Profile{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var profiles []models.Profile
	if err := s.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '!'", containsPattern(query)).
		Order("username ASC").
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("profile service: search profiles: %w", err)
	}
	return profiles, nil
}

func validateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return "", apperrors.NewBadRequest(fmt.Sprintf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength))
	}
	if sanitizeUsername(username) != strings.ToLower(username) {
		return "", apperrors.NewBadRequest("username may only contain letters, digits, '-' and '_'")
	}
	return username, nil
}

func sanitizeUsername(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if at := strings.IndexByte(lower, '@'); at > 0 {
		lower = lower[:at]
	}
	cleaned := strings.Trim(usernameDisallowed.ReplaceAllString(lower, "-"), "-")
	cleaned = truncateUsername(cleaned, maxUsernameLength)
	if len(cleaned) < minUsernameLength {
		return ""
	}
	return cleaned
}

func truncateUsername(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
