package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/service/user"
)

type Handler struct {
	users *user.Service
}

func NewHandler(users *user.Service) *Handler {
	return &Handler{users: users}
}

// RegisterPublicRoutes mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
	r.POST("/invites/accept", h.AcceptInvite)
}

// RegisterRoutes mounts endpoints that need a session.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/impersonate", h.Impersonate)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	token, actor, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"token": token,
		"user": gin.H{
			"id":           actor.ID,
			"username":     actor.Username,
			"display_name": actor.DisplayName,
			"is_admin":     actor.IsAdmin,
			"is_demo":      actor.IsDemo,
		},
	}))
}

func (h *Handler) AcceptInvite(c *gin.Context) {
	var req model.AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	created, err := h.users.AcceptInvite(c.Request.Context(), &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"id":       created.ID,
		"username": created.Username,
	}))
}

// Impersonate lets an admin act as a demo account. The response token
// carries both identities; audit records keep naming the admin.
func (h *Handler) Impersonate(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req model.ImpersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid target ID"))
		return
	}

	token, err := h.users.Impersonate(c.Request.Context(), actor, targetID)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"token": token}))
}
