package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/database"
	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	"github.com/byterank/byterank/pkg/crypto"
	apperrors "github.com/byterank/byterank/pkg/errors"
)

const (
	maxTeamNameLength    = 100
	inviteCodeAttempts   = 3
	defaultDiscoverLimit = 50
	maxDiscoverLimit     = 200
)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name         string
	Description  *string
	AvatarURL    *string
	AccessPolicy models.AccessPolicy
}

// UpdateTeamInput describes mutable team fields.
type UpdateTeamInput struct {
	Name         *string
	Description  *string
	AvatarURL    *string
	AccessPolicy *models.AccessPolicy
}

// DiscoverOptions filters the public team directory.
type DiscoverOptions struct {
	Query string
	Limit int
}

// TeamSummary is a directory entry annotated for the viewing profile.
type TeamSummary struct {
	models.Team
	MemberCount       int64             `json:"member_count"`
	ViewerRole        models.MemberRole `json:"viewer_role,omitempty"`
	IsMember          bool              `json:"is_member"`
	HasPendingRequest bool              `json:"has_pending_request"`
}

// TeamDetail is a single team as seen by a profile.
type TeamDetail struct {
	Team         models.Team              `json:"team"`
	MemberCount  int64                    `json:"member_count"`
	ViewerRole   models.MemberRole        `json:"viewer_role,omitempty"`
	Capabilities []permissions.Transition `json:"capabilities"`
	InviteCode   string                   `json:"invite_code,omitempty"`
}

// MyTeam is one of the viewer's teams together with their standing in it.
type MyTeam struct {
	Team         models.Team       `json:"team"`
	Role         models.MemberRole `json:"role"`
	MemberCount  int64             `json:"member_count"`
	Rank         int               `json:"rank"`
	TotalCommits int64             `json:"total_commits"`
}

// TeamService handles team lifecycle: creation, discovery, edits and deletion.
type TeamService struct {
	standingsAware
	db           *gorm.DB
	auditService *AuditService
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, auditService *AuditService) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	return &TeamService{
		db:           db,
		auditService: auditService,
	}, nil
}

// Create registers a new team owned by ownerID. The owner membership is
// written in the same transaction as the team row.
func (s *TeamService) Create(ctx context.Context, ownerID string, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	name, err := validateTeamName(input.Name)
	if err != nil {
		return nil, err
	}

	policy := input.AccessPolicy
	if policy == "" {
		policy = models.AccessPolicyOpen
	}
	if !policy.Valid() {
		return nil, apperrors.NewBadRequest("access policy must be open or closed")
	}

	if err := s.ensureProfile(ctx, ownerID); err != nil {
		return nil, err
	}

	var team *models.Team
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := crypto.InviteCode()
		if err != nil {
			return nil, fmt.Errorf("team service: generate invite code: %w", err)
		}

		candidate := &models.Team{
			Name:         name,
			Description:  optionalString(input.Description),
			AvatarURL:    optionalString(input.AvatarURL),
			AccessPolicy: policy,
			OwnerID:      ownerID,
			InviteCode:   code,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(candidate).Error; err != nil {
				return err
			}
			return tx.Create(&models.Membership{
				TeamID:       candidate.ID,
				ProfileID:    ownerID,
				Role:         models.RoleOwner,
				TotalCommits: lo.ToPtr(int64(0)),
			}).Error
		})
		if err == nil {
			team = candidate
			break
		}
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("team service: create team: %w", err)
		}
	}
	if team == nil {
		return nil, errors.New("team service: could not allocate a unique invite code")
	}

	recordAudit(s.auditService, ctx, teamActivity(ownerID, "team.create", team.ID, map[string]any{
		"name":          team.Name,
		"access_policy": team.AccessPolicy,
	}))

	return team, nil
}

// Get returns a team with the viewer's role and what that role may do.
// The invite code is only disclosed to owners and admins.
func (s *TeamService) Get(ctx context.Context, teamID, viewerID string) (*TeamDetail, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	team, err := loadTeam(db, teamID, false)
	if err != nil {
		return nil, passThrough("team service: get team", err)
	}

	membership, err := loadMembership(db, teamID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("team service: load membership: %w", err)
	}

	counts, err := memberCounts(db, []string{teamID})
	if err != nil {
		return nil, err
	}

	role := roleOf(membership)
	detail := &TeamDetail{
		Team:         *team,
		MemberCount:  counts[teamID],
		ViewerRole:   role,
		Capabilities: permissions.Allowed(role),
	}
	if permissions.Authorize(role, permissions.TransitionInvite, models.RoleNone, false) == nil {
		detail.InviteCode = team.InviteCode
	}
	if team.AccessPolicy == models.AccessPolicyClosed && role == models.RoleNone {
		detail.Capabilities = lo.Without(detail.Capabilities, permissions.TransitionJoin)
	} else if team.AccessPolicy == models.AccessPolicyOpen {
		detail.Capabilities = lo.Without(detail.Capabilities, permissions.TransitionRequestJoin)
	}

	return detail, nil
}

// Discover lists teams for the directory, featured first, annotated with the
// viewer's membership and pending request state.
func (s *TeamService) Discover(ctx context.Context, viewerID string, opts DiscoverOptions) ([]TeamSummary, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultDiscoverLimit
	}
	if limit > maxDiscoverLimit {
		limit = maxDiscoverLimit
	}

	query := db.Model(&models.Team{}).
		Order("is_featured DESC").
		Order("created_at DESC").
		Limit(limit)
	if q := strings.TrimSpace(opts.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '!'", containsPattern(strings.ToLower(q)))
	}

	var teams []models.Team
	if err := query.Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team service: discover teams: %w", err)
	}
	if len(teams) == 0 {
		return []TeamSummary{}, nil
	}

	ids := lo.Map(teams, func(t models.Team, _ int) string { return t.ID })

	counts, err := memberCounts(db, ids)
	if err != nil {
		return nil, err
	}

	var memberships []models.Membership
	if err := db.Where("profile_id = ? AND team_id IN ?", viewerID, ids).Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("team service: load viewer memberships: %w", err)
	}
	roles := lo.SliceToMap(memberships, func(m models.Membership) (string, models.MemberRole) {
		return m.TeamID, m.Role
	})

	var pending []string
	if err := db.Model(&models.JoinRequest{}).
		Where("requester_id = ? AND status = ? AND team_id IN ?", viewerID, models.JoinRequestPending, ids).
		Pluck("team_id", &pending).Error; err != nil {
		return nil, fmt.Errorf("team service: load pending requests: %w", err)
	}

	return lo.Map(teams, func(t models.Team, _ int) TeamSummary {
		role := roles[t.ID]
		return TeamSummary{
			Team:              t,
			MemberCount:       counts[t.ID],
			ViewerRole:        role,
			IsMember:          role != models.RoleNone,
			HasPendingRequest: lo.Contains(pending, t.ID),
		}
	}), nil
}

// ListForProfile returns the profile's teams with their rank in each,
// read from the leaderboard view.
func (s *TeamService) ListForProfile(ctx context.Context, profileID string) ([]MyTeam, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	var memberships []models.Membership
	if err := db.Where("profile_id = ?", profileID).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("team service: list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []MyTeam{}, nil
	}

	ids := lo.Map(memberships, func(m models.Membership, _ int) string { return m.TeamID })

	var teams []models.Team
	if err := db.Where("id IN ?", ids).Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team service: load teams: %w", err)
	}
	byID := lo.KeyBy(teams, func(t models.Team) string { return t.ID })

	counts, err := memberCounts(db, ids)
	if err != nil {
		return nil, err
	}

	ranks, err := summaryRanks(db, profileID)
	if err != nil {
		return nil, err
	}

	out := make([]MyTeam, 0, len(memberships))
	for _, m := range memberships {
		team, ok := byID[m.TeamID]
		if !ok {
			continue
		}
		rank := ranks[m.TeamID]
		out = append(out, MyTeam{
			Team:         team,
			Role:         m.Role,
			MemberCount:  counts[m.TeamID],
			Rank:         rank.Rank,
			TotalCommits: rank.TotalCommits,
		})
	}
	return out, nil
}

// Featured returns the team currently promoted on the landing page.
func (s *TeamService) Featured(ctx context.Context) (*models.Team, error) {
	ctx = ensureContext(ctx)

	var team models.Team
	err := s.db.WithContext(ctx).
		Where("is_featured = ?", true).
		Order("created_at ASC").
		Take(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: load featured team: %w", err)
	}
	return &team, nil
}

// SetFeatured marks teamID as the only featured team. An empty ID clears the flag.
func (s *TeamService) SetFeatured(ctx context.Context, teamID string) error {
	ctx = ensureContext(ctx)
	teamID = strings.TrimSpace(teamID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Team{}).
			Where("is_featured = ?", true).
			Update("is_featured", false).Error; err != nil {
			return err
		}
		if teamID == "" {
			return nil
		}
		res := tx.Model(&models.Team{}).Where("id = ?", teamID).Update("is_featured", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTeamNotFound
		}
		return nil
	})
	return passThrough("team service: set featured", err)
}

// Update edits team metadata. Only the owner may do this; the write is
// guarded on the owner column.
func (s *TeamService) Update(ctx context.Context, actorID, teamID string, input UpdateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	updates := map[string]any{}
	if input.Name != nil {
		name, err := validateTeamName(*input.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = optionalString(input.Description)
	}
	if input.AvatarURL != nil {
		updates["avatar_url"] = optionalString(input.AvatarURL)
	}
	if input.AccessPolicy != nil {
		if !input.AccessPolicy.Valid() {
			return nil, apperrors.NewBadRequest("access policy must be open or closed")
		}
		updates["access_policy"] = *input.AccessPolicy
	}

	var team *models.Team
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		team, err = loadTeam(tx, teamID, true)
		if err != nil {
			return err
		}
		actor, err := loadMembership(tx, teamID, actorID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), permissions.TransitionUpdateTeam, models.RoleNone, false); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}

		res := tx.Model(&models.Team{}).
			Where("id = ? AND owner_id = ?", teamID, actorID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTeam
		}
		team, err = loadTeam(tx, teamID, false)
		return err
	})
	observeTransition(permissions.TransitionUpdateTeam, err)
	if err != nil {
		return nil, passThrough("team service: update team", err)
	}

	if len(updates) > 0 {
		recordAudit(s.auditService, ctx, teamActivity(actorID, "team.update", teamID, updates))
	}
	return team, nil
}

// RotateInviteCode replaces the team's invite code. Owners and admins may do this.
func (s *TeamService) RotateInviteCode(ctx context.Context, actorID, teamID string) (string, error) {
	ctx = ensureContext(ctx)

	code, err := crypto.InviteCode()
	if err != nil {
		return "", fmt.Errorf("team service: generate invite code: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTeam(tx, teamID, true); err != nil {
			return err
		}
		actor, err := loadMembership(tx, teamID, actorID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), permissions.TransitionInvite, models.RoleNone, false); err != nil {
			return err
		}
		return tx.Model(&models.Team{}).Where("id = ?", teamID).Update("invite_code", code).Error
	})
	if err != nil {
		return "", passThrough("team service: rotate invite code", err)
	}

	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.invite_code.rotate", teamID, nil))
	return code, nil
}

// Delete removes a team together with its memberships, join requests and
// invitations. The ownership check reads the team row under a lock in the
// same transaction as the delete, and the delete itself is guarded on owner_id.
func (s *TeamService) Delete(ctx context.Context, actorID, teamID string) error {
	ctx = ensureContext(ctx)

	var name string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := loadTeam(tx, teamID, true)
		if err != nil {
			return err
		}
		actor, err := loadMembership(tx, teamID, actorID)
		if err != nil {
			return err
		}
		if err := permissions.Authorize(roleOf(actor), permissions.TransitionDeleteTeam, models.RoleNone, false); err != nil {
			return err
		}
		if team.OwnerID != actorID {
			return ErrStaleTeam
		}
		name = team.Name

		for _, child := range []any{&models.JoinRequest{}, &models.TeamInvitation{}, &models.Membership{}} {
			if err := tx.Where("team_id = ?", teamID).Delete(child).Error; err != nil {
				return err
			}
		}

		res := tx.Where("id = ? AND owner_id = ?", teamID, actorID).Delete(&models.Team{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTeam
		}
		return nil
	})
	observeTransition(permissions.TransitionDeleteTeam, err)
	if err != nil {
		return passThrough("team service: delete team", err)
	}

	s.standings.Invalidate(ctx, teamID)
	recordAudit(s.auditService, ctx, teamActivity(actorID, "team.delete", teamID, map[string]any{
		"name": name,
	}))
	return nil
}

func (s *TeamService) ensureProfile(ctx context.Context, profileID string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profileID).Count(&count).Error; err != nil {
		return fmt.Errorf("team service: check profile: %w", err)
	}
	if count == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func validateTeamName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.NewBadRequest("team name is required")
	}
	if utf8.RuneCountInString(name) > maxTeamNameLength {
		return "", apperrors.NewBadRequest(fmt.Sprintf("team name must be at most %d characters", maxTeamNameLength))
	}
	return name, nil
}

// memberCounts reads member totals for the given teams from the counts view.
func memberCounts(db *gorm.DB, teamIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		TeamID      string
		MemberCount int64
	}
	if err := db.Table(database.ViewTeamMemberCounts).
		Where("team_id IN ?", teamIDs).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load member counts: %w", err)
	}
	for _, row := range rows {
		out[row.TeamID] = row.MemberCount
	}
	return out, nil
}
