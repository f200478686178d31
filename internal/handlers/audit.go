package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/permissions"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// AuditHandler exposes the activity feed recorded by the audit log.
type AuditHandler struct {
	svc     *services.AuditService
	members *services.MembershipService
}

func NewAuditHandler(svc *services.AuditService, members *services.MembershipService) *AuditHandler {
	return &AuditHandler{svc: svc, members: members}
}

// GET /api/activity
func (h *AuditHandler) Mine(c *gin.Context) {
	filters := auditFilters(c)
	filters.ActorID = currentProfileID(c)
	h.list(c, filters, h.svc.List)
}

// Export returns the caller's whole activity history without pagination.
// GET /api/activity/export
func (h *AuditHandler) Export(c *gin.Context) {
	filters := auditFilters(c)
	filters.ActorID = currentProfileID(c)

	logs, err := h.svc.Export(requestContext(c), filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, logs)
}

// GET /api/teams/:id/activity
func (h *AuditHandler) Team(c *gin.Context) {
	teamID := c.Param("id")
	role, err := h.members.Role(requestContext(c), teamID, currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == models.RoleNone {
		response.Error(c, permissions.ErrNotPermitted)
		return
	}

	h.list(c, auditFilters(c), func(ctx context.Context, opts services.AuditListOptions) ([]models.AuditLog, int64, error) {
		return h.svc.TeamFeed(ctx, teamID, opts)
	})
}

type activityPager func(ctx context.Context, opts services.AuditListOptions) ([]models.AuditLog, int64, error)

func (h *AuditHandler) list(c *gin.Context, filters services.AuditFilters, fetch activityPager) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	per, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page <= 0 {
		page = 1
	}
	if per <= 0 || per > 200 {
		per = 50
	}

	logs, total, err := fetch(requestContext(c), services.AuditListOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, per, total))
}

func auditFilters(c *gin.Context) services.AuditFilters {
	var filters services.AuditFilters
	filters.Result = c.Query("result")

	// "team.member.*" selects every action in the family.
	if action := c.Query("action"); strings.HasSuffix(action, "*") {
		filters.ActionPrefix = strings.TrimSuffix(action, "*")
	} else {
		filters.Action = action
	}
	if subject := models.AuditSubject(c.Query("subject")); subject.Valid() {
		filters.Subject = subject
	}

	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}
	return filters
}
