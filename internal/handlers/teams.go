package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// TeamHandler exposes team lifecycle and membership endpoints.
type TeamHandler struct {
	teams   *services.TeamService
	members *services.MembershipService
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(teams *services.TeamService, members *services.MembershipService) *TeamHandler {
	return &TeamHandler{teams: teams, members: members}
}

type createTeamRequest struct {
	Name         string  `json:"name" validate:"required,min=1,max=64"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	AvatarURL    *string `json:"avatar_url" validate:"omitempty,url,max=512"`
	AccessPolicy string  `json:"access_policy" validate:"omitempty,access_policy"`
}

type updateTeamRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=64"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
	AvatarURL    *string `json:"avatar_url" validate:"omitempty,url,max=512"`
	AccessPolicy *string `json:"access_policy" validate:"omitempty,access_policy"`
}

type transferRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

// Discover lists teams for the directory.
// GET /api/teams?q=&limit=
func (h *TeamHandler) Discover(c *gin.Context) {
	teams, err := h.teams.Discover(requestContext(c), currentProfileID(c), services.DiscoverOptions{
		Query: strings.TrimSpace(c.Query("q")),
		Limit: parseIntQuery(c, "limit", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// Mine lists the caller's teams with their rank in each.
// GET /api/teams/mine
func (h *TeamHandler) Mine(c *gin.Context) {
	teams, err := h.teams.ListForProfile(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, teams)
}

// Featured returns the promoted team.
// GET /api/teams/featured
func (h *TeamHandler) Featured(c *gin.Context) {
	team, err := h.teams.Featured(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// Create provisions a new team owned by the caller.
// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var body createTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	team, err := h.teams.Create(requestContext(c), currentProfileID(c), services.CreateTeamInput{
		Name:         body.Name,
		Description:  body.Description,
		AvatarURL:    body.AvatarURL,
		AccessPolicy: models.AccessPolicy(body.AccessPolicy),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, team)
}

// Get returns a team as seen by the caller.
// GET /api/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	detail, err := h.teams.Get(requestContext(c), c.Param("id"), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, detail)
}

// Update modifies team metadata.
// PATCH /api/teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var body updateTeamRequest
	if !bindAndValidate(c, &body) {
		return
	}

	input := services.UpdateTeamInput{
		Name:        body.Name,
		Description: body.Description,
		AvatarURL:   body.AvatarURL,
	}
	if body.AccessPolicy != nil {
		policy := models.AccessPolicy(*body.AccessPolicy)
		input.AccessPolicy = &policy
	}

	team, err := h.teams.Update(requestContext(c), currentProfileID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, team)
}

// Delete removes a team and everything attached to it.
// DELETE /api/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	if err := h.teams.Delete(requestContext(c), currentProfileID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// RotateInviteCode replaces the team's invite code.
// POST /api/teams/:id/invite-code
func (h *TeamHandler) RotateInviteCode(c *gin.Context) {
	code, err := h.teams.RotateInviteCode(requestContext(c), currentProfileID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invite_code": code})
}

// JoinByCode joins the team owning the invite code.
// POST /api/teams/join/:code
func (h *TeamHandler) JoinByCode(c *gin.Context) {
	membership, err := h.members.JoinByInviteCode(requestContext(c), currentProfileID(c), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// ListMembers returns the team roster in join order.
// GET /api/teams/:id/members
func (h *TeamHandler) ListMembers(c *gin.Context) {
	members, err := h.members.ListMembers(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// Join adds the caller to an open team.
// POST /api/teams/:id/join
func (h *TeamHandler) Join(c *gin.Context) {
	membership, err := h.members.Join(requestContext(c), currentProfileID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// Leave removes the caller from the team.
// POST /api/teams/:id/leave
func (h *TeamHandler) Leave(c *gin.Context) {
	if err := h.members.Leave(requestContext(c), currentProfileID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// RemoveMember removes another member.
// DELETE /api/teams/:id/members/:profileID
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if err := h.members.Remove(requestContext(c), currentProfileID(c), c.Param("id"), c.Param("profileID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// Promote raises a member to admin.
// POST /api/teams/:id/members/:profileID/promote
func (h *TeamHandler) Promote(c *gin.Context) {
	if err := h.members.Promote(requestContext(c), currentProfileID(c), c.Param("id"), c.Param("profileID")); err != nil {
		response.Error(c, err)
		return
	}
	h.writeRole(c)
}

// Demote lowers an admin to member.
// POST /api/teams/:id/members/:profileID/demote
func (h *TeamHandler) Demote(c *gin.Context) {
	if err := h.members.Demote(requestContext(c), currentProfileID(c), c.Param("id"), c.Param("profileID")); err != nil {
		response.Error(c, err)
		return
	}
	h.writeRole(c)
}

// Transfer hands ownership to another member.
// POST /api/teams/:id/transfer
func (h *TeamHandler) Transfer(c *gin.Context) {
	var body transferRequest
	if !bindAndValidate(c, &body) {
		return
	}

	teamID := c.Param("id")
	if err := h.members.TransferOwnership(requestContext(c), currentProfileID(c), teamID, body.ProfileID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"team_id": teamID, "owner_id": body.ProfileID})
}

func (h *TeamHandler) writeRole(c *gin.Context) {
	teamID, profileID := c.Param("id"), c.Param("profileID")
	role, err := h.members.Role(requestContext(c), teamID, profileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"team_id": teamID, "profile_id": profileID, "role": role})
}
