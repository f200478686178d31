package api

import (
	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/handlers"
)

func registerTeamRoutes(
	api *gin.RouterGroup,
	teams *handlers.TeamHandler,
	invites *handlers.InviteHandler,
	board *handlers.LeaderboardHandler,
	activity *handlers.AuditHandler,
) {
	group := api.Group("/teams")
	{
		group.GET("", teams.Discover)
		group.GET("/mine", teams.Mine)
		group.GET("/featured", teams.Featured)
		group.POST("", teams.Create)
		group.POST("/join/:code", teams.JoinByCode)

		group.GET("/:id", teams.Get)
		group.PATCH("/:id", teams.Update)
		group.DELETE("/:id", teams.Delete)
		group.POST("/:id/invite-code", teams.RotateInviteCode)

		group.GET("/:id/members", teams.ListMembers)
		group.POST("/:id/join", teams.Join)
		group.POST("/:id/leave", teams.Leave)
		group.DELETE("/:id/members/:profileID", teams.RemoveMember)
		group.POST("/:id/members/:profileID/promote", teams.Promote)
		group.POST("/:id/members/:profileID/demote", teams.Demote)
		group.POST("/:id/transfer", teams.Transfer)

		group.GET("/:id/requests", invites.ListTeamRequests)
		group.POST("/:id/requests", invites.CreateRequest)
		group.POST("/:id/invitations", invites.Invite)

		group.GET("/:id/leaderboard", board.Team)
		group.GET("/:id/leaderboard/me", board.Me)

		group.GET("/:id/activity", activity.Team)
	}

	requests := api.Group("/requests")
	{
		requests.GET("/mine", invites.MyRequests)
		requests.POST("/:requestID/approve", invites.ApproveRequest)
		requests.POST("/:requestID/reject", invites.RejectRequest)
	}

	invitations := api.Group("/invitations")
	{
		invitations.GET("", invites.MyInvitations)
		invitations.POST("/:invitationID/accept", invites.AcceptInvitation)
	}

	api.GET("/activity", activity.Mine)
	api.GET("/activity/export", activity.Export)
}
