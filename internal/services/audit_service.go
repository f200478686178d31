package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/byterank/byterank/internal/models"
)

const (
	defaultActivityPageSize = 50
	maxActivityPageSize     = 200
)

// AuditEntry is one team or profile activity record to persist.
type AuditEntry struct {
	ActorID   string
	Username  string
	Action    string
	Subject   models.AuditSubject
	SubjectID string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditFilters narrows activity queries. Zero fields match everything.
type AuditFilters struct {
	ActorID string
	Action  string
	// ActionPrefix selects a family of actions, e.g. "team.member.".
	ActionPrefix string
	Subject      models.AuditSubject
	SubjectID    string
	Result       string
	Since        *time.Time
	Until        *time.Time
}

// AuditListOptions pages through filtered activity.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService records and reads the activity log behind the team and
// profile feeds.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Log stores an entry. Action and result are required; a subject, when
// given, must be a known kind and name its record.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	action := strings.TrimSpace(entry.Action)
	result := strings.TrimSpace(entry.Result)
	if action == "" || result == "" {
		return errors.New("audit service: action and result are required")
	}
	if entry.Subject != "" {
		if !entry.Subject.Valid() {
			return fmt.Errorf("audit service: unknown subject %q", entry.Subject)
		}
		if strings.TrimSpace(entry.SubjectID) == "" {
			return fmt.Errorf("audit service: %s activity needs a subject id", entry.Subject)
		}
	}

	row := models.AuditLog{
		Action:      action,
		Result:      result,
		SubjectType: entry.Subject,
		SubjectID:   strings.TrimSpace(entry.SubjectID),
		Username:    strings.TrimSpace(entry.Username),
		IPAddress:   strings.TrimSpace(entry.IPAddress),
		UserAgent:   strings.TrimSpace(entry.UserAgent),
	}
	if id := strings.TrimSpace(entry.ActorID); id != "" {
		row.ActorID = &id
	}
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: encode metadata for %s: %w", action, err)
		}
		row.Metadata = datatypes.JSON(encoded)
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

// List returns one page of matching activity, newest first, with the total
// number of matches.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	page, size := opts.Page, opts.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxActivityPageSize {
		size = defaultActivityPageSize
	}

	query := filterActivity(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count activity: %w", err)
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list activity: %w", err)
	}
	return logs, total, nil
}

// TeamFeed pages through the activity recorded against one team.
func (s *AuditService) TeamFeed(ctx context.Context, teamID string, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	opts.Filters.Subject = models.AuditSubjectTeam
	opts.Filters.SubjectID = teamID
	return s.List(ctx, opts)
}

// Export returns every matching entry, newest first.
func (s *AuditService) Export(ctx context.Context, filters AuditFilters) ([]models.AuditLog, error) {
	ctx = ensureContext(ctx)

	var logs []models.AuditLog
	if err := filterActivity(s.db.WithContext(ctx).Model(&models.AuditLog{}), filters).
		Order("created_at DESC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit service: export activity: %w", err)
	}
	return logs, nil
}

// CleanupOlderThan deletes entries older than retentionDays.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retention must be at least one day")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup activity: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func filterActivity(query *gorm.DB, f AuditFilters) *gorm.DB {
	if f.ActorID != "" {
		query = query.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.ActionPrefix != "" {
		query = query.Where("action LIKE ? ESCAPE '!'", likeEscaper.Replace(f.ActionPrefix)+"%")
	}
	if f.Subject != "" {
		query = query.Where("subject_type = ?", f.Subject)
	}
	if f.SubjectID != "" {
		query = query.Where("subject_id = ?", f.SubjectID)
	}
	if f.Result != "" {
		query = query.Where("result = ?", f.Result)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		query = query.Where("created_at <= ?", *f.Until)
	}
	return query
}
