package api

import (
	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/handlers"
)

func registerFriendRoutes(api *gin.RouterGroup, handler *handlers.FriendHandler) {
	friends := api.Group("/friends")
	{
		friends.GET("", handler.List)
		friends.DELETE("/:profileID", handler.Remove)
		friends.GET("/requests", handler.Pending)
		friends.POST("/requests", handler.Send)
		friends.GET("/requests/count", handler.PendingCount)
		friends.POST("/requests/:requestID/accept", handler.Accept)
		friends.POST("/requests/:requestID/decline", handler.Decline)
	}
}
