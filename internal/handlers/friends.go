package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/response"
)

// FriendHandler serves friend requests and the friend list.
type FriendHandler struct {
	friends *services.FriendService
}

// NewFriendHandler constructs a FriendHandler.
func NewFriendHandler(friends *services.FriendService) *FriendHandler {
	return &FriendHandler{friends: friends}
}

type friendRequestBody struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

// List returns the caller's friends.
// GET /api/friends
func (h *FriendHandler) List(c *gin.Context) {
	friends, err := h.friends.List(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, friends)
}

// Remove ends a friendship.
// DELETE /api/friends/:profileID
func (h *FriendHandler) Remove(c *gin.Context) {
	if err := h.friends.Remove(requestContext(c), currentProfileID(c), c.Param("profileID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// Pending lists requests addressed to the caller.
// GET /api/friends/requests
func (h *FriendHandler) Pending(c *gin.Context) {
	requests, err := h.friends.ListPending(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, requests)
}

// PendingCount reports how many requests wait for the caller.
// GET /api/friends/requests/count
func (h *FriendHandler) PendingCount(c *gin.Context) {
	count, err := h.friends.PendingCount(requestContext(c), currentProfileID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": count})
}

// Send files a friend request.
// POST /api/friends/requests
func (h *FriendHandler) Send(c *gin.Context) {
	var body friendRequestBody
	if !bindAndValidate(c, &body) {
		return
	}

	request, err := h.friends.SendRequest(requestContext(c), currentProfileID(c), body.ProfileID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, request)
}

// Accept confirms a request addressed to the caller.
// POST /api/friends/requests/:requestID/accept
func (h *FriendHandler) Accept(c *gin.Context) {
	friendship, err := h.friends.Accept(requestContext(c), currentProfileID(c), c.Param("requestID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, friendship)
}

// Decline refuses a request addressed to the caller.
// POST /api/friends/requests/:requestID/decline
func (h *FriendHandler) Decline(c *gin.Context) {
	if err := h.friends.Decline(requestContext(c), currentProfileID(c), c.Param("requestID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"declined": true})
}
