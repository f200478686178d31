package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// InviteHandler serves join requests for closed teams and direct invitations.
type InviteHandler struct {
	requests    *services.JoinRequestService
	invitations *services.InvitationService
}

func NewInviteHandler(requests *services.JoinRequestService, invitations *services.InvitationService) *InviteHandler {
	return &InviteHandler{requests: requests, invitations: invitations}
}

type createInvitationRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

// ListTeamRequests returns the pending join requests of a team.
// GET /api/teams/:id/requests
func (h *InviteHandler) ListTeamRequests(c *gin.Context) {
	requests, err := h.requests.ListPending(requestContext(c), currentProfileID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, requests)
}

// CreateRequest asks to join a closed team.
// POST /api/teams/:id/requests
func (h *InviteHandler) CreateRequest(c *gin.Context) {
	request, err := h.requests.Request(requestContext(c), currentProfileID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, request)
}

// MyRequests lists the caller's pending join requests.
// GET /api/requests/mine
func (h *InviteHandler) MyRequests(c *gin.Context) {
	requests, err := h.requests.ListMine(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, requests)
}

// ApproveRequest admits the requester.
// POST /api/requests/:requestID/approve
func (h *InviteHandler) ApproveRequest(c *gin.Context) {
	request, err := h.requests.Approve(requestContext(c), currentProfileID(c), c.Param("requestID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// RejectRequest declines the requester.
// POST /api/requests/:requestID/reject
func (h *InviteHandler) RejectRequest(c *gin.Context) {
	request, err := h.requests.Reject(requestContext(c), currentProfileID(c), c.Param("requestID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, request)
}

// Invite sends a team invitation to a profile.
// POST /api/teams/:id/invitations
func (h *InviteHandler) Invite(c *gin.Context) {
	var body createInvitationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	invitation, err := h.invitations.Invite(requestContext(c), currentProfileID(c), c.Param("id"), body.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invitation)
}

// MyInvitations lists invitations waiting for the caller.
// GET /api/invitations
func (h *InviteHandler) MyInvitations(c *gin.Context) {
	invitations, err := h.invitations.ListForProfile(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// AcceptInvitation joins the inviting team.
// POST /api/invitations/:invitationID/accept
func (h *InviteHandler) AcceptInvitation(c *gin.Context) {
	membership, err := h.invitations.Accept(requestContext(c), currentProfileID(c), c.Param("invitationID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}
