package api

import (
	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	profile := api.Group("/profile")
	{
		profile.GET("", handler.Me)
		profile.PATCH("", handler.Update)
		profile.POST("/onboarding", handler.CompleteOnboarding)
	}

	profiles := api.Group("/profiles")
	{
		profiles.GET("", handler.Search)
		profiles.GET("/:id", handler.Get)
	}
}
