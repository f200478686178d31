package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/byterank/byterank/internal/auditctx"
	iauth "github.com/byterank/byterank/internal/auth"
	"github.com/byterank/byterank/internal/models"
	"github.com/byterank/byterank/internal/services"
	"github.com/byterank/byterank/pkg/errors"
	"github.com/byterank/byterank/pkg/metrics"
	"github.com/byterank/byterank/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxProfileIDKey = "profileID"
	CtxProfileKey   = "profile"
)

// Auth enforces bearer token authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			metrics.AuthAttempts.WithLabelValues("missing").Inc()
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		metrics.AuthAttempts.WithLabelValues("success").Inc()

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxProfileIDKey, claims.ProfileID())

		c.Request = c.Request.WithContext(auditctx.WithCaller(c.Request.Context(), auditctx.Caller{
			ProfileID: claims.ProfileID(),
			Username:  claims.Username(),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}

// ProfileProvisioner creates the profile of an identity on its first request.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, input services.ProvisionInput) (*models.Profile, error)
}

// ProvisionProfile makes sure the authenticated identity has a profile row
// and exposes it to handlers. It must run after Auth.
func ProvisionProfile(profiles ProfileProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get(CtxClaimsKey)
		claims, _ := raw.(*iauth.Claims)
		if !ok || claims == nil {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		var avatar *string
		if claims.Picture != "" {
			picture := claims.Picture
			avatar = &picture
		}

		profile, err := profiles.EnsureProfile(c.Request.Context(), services.ProvisionInput{
			ProfileID: claims.ProfileID(),
			Username:  claims.Username(),
			AvatarURL: avatar,
		})
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(CtxProfileKey, profile)

		c.Request = c.Request.WithContext(auditctx.Renamed(c.Request.Context(), profile.Username))

		c.Next()
	}
}
