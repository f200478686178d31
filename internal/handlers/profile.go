package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// ProfileHandler exposes the caller's profile and the public profile directory.
type ProfileHandler struct {
	profiles *services.ProfileService
	teams    *services.TeamService
}

// NewProfileHandler configures a profile handler with required services.
func NewProfileHandler(profiles *services.ProfileService, teams *services.TeamService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, teams: teams}
}

type updateProfileRequest struct {
	Username       *string `json:"username" validate:"omitempty,username"`
	AvatarURL      *string `json:"avatar_url" validate:"omitempty,url,max=512"`
	Description    *string `json:"description" validate:"omitempty,max=500"`
	GitHubUsername *string `json:"github_username" validate:"omitempty,github_handle"`
}

func (r updateProfileRequest) input() services.UpdateProfileInput {
	return services.UpdateProfileInput{
		Username:       r.Username,
		AvatarURL:      r.AvatarURL,
		Description:    r.Description,
		GitHubUsername: r.GitHubUsername,
	}
}

// Me returns the authenticated profile.
// GET /api/profile
func (h *ProfileHandler) Me(c *gin.Context) {
	profile, err := h.profiles.Get(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Update modifies the authenticated profile.
// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var body updateProfileRequest
	if !bindAndValidate(c, &body) {
		return
	}

	profile, err := h.profiles.Update(requestContext(c), currentProfileID(c), body.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// CompleteOnboarding applies the first-run profile edits and marks onboarding done.
// POST /api/profile/onboarding
func (h *ProfileHandler) CompleteOnboarding(c *gin.Context) {
	var body updateProfileRequest
	if !bindAndValidate(c, &body) {
		return
	}

	profile, err := h.profiles.CompleteOnboarding(requestContext(c), currentProfileID(c), body.input())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// Search lists profiles whose username contains q.
// GET /api/profiles?q=
func (h *ProfileHandler) Search(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 0)
	profiles, err := h.profiles.Search(requestContext(c), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profiles)
}

type publicProfileResponse struct {
	Profile *models.Profile   `json:"profile"`
	Teams   []services.MyTeam `json:"teams"`
}

// Get returns a public profile together with its teams and ranks. The path
// segment may be a profile ID or a username.
// GET /api/profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	ctx := requestContext(c)
	profile, err := h.profiles.Get(ctx, c.Param("id"))
	if errors.Is(err, services.ErrProfileNotFound) {
		profile, err = h.profiles.GetByUsername(ctx, c.Param("id"))
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	teams, err := h.teams.ListForProfile(ctx, profile.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, publicProfileResponse{Profile: profile, Teams: teams})
}
