package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/pkg/auth"
)

const (
	// ContextActor holds the authenticated *model.User.
	ContextActor = "actor"
	// ContextImpersonator holds the admin's ID when the session is an
	// impersonation session.
	ContextImpersonator = "impersonator_id"
)

type AuthMiddleware struct {
	tokens auth.TokenService
	users  repository.UserRepository
}

func NewAuthMiddleware(tokens auth.TokenService, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Authenticate verifies the bearer token and loads the acting user. The
// user row is re-read on every request so deactivation and flag changes
// take effect before token expiry.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		actor, err := m.users.Get(c.Request.Context(), claims.UserID)
		if err != nil || !actor.IsActive {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		c.Set(ContextActor, actor)
		if claims.ImpersonatorID != uuid.Nil {
			c.Set(ContextImpersonator, claims.ImpersonatorID)
		}
		c.Next()
	}
}

// RequireAdmin gates configuration surfaces. The admin flag grants no
// client-data access; record routes use the access guard instead.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil || !actor.IsAdmin {
			c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated user, or nil outside an
// authenticated route.
func ActorFrom(c *gin.Context) *model.User {
	if v, exists := c.Get(ContextActor); exists {
		if actor, ok := v.(*model.User); ok {
			return actor
		}
	}
	return nil
}
