package user

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
	service *user.Service
}

func NewHandler(service *user.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts user administration; everything here is behind
// the admin gate.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users", middleware.RequireAdmin())
	{
		users.POST("", h.Provision)
		users.GET("/:id", h.Get)
	}
	r.POST("/invites", middleware.RequireAdmin(), h.CreateInvite)
}

type provisionRequest struct {
	Username    string `json:"username" binding:"required,min=3"`
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=10"`
	IsDemo      bool   `json:"is_demo"`
}

func (h *Handler) Provision(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	created, err := h.service.Provision(c.Request.Context(), actor,
		req.Username, req.DisplayName, req.Email, req.Password, req.IsDemo)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user ID"))
		return
	}

	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

// CreateInvite returns the invite without its code; the code reaches
// the recipient by mail only.
func (h *Handler) CreateInvite(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req model.CreateInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	invite, err := h.service.CreateInvite(c.Request.Context(), actor, &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"id":         invite.ID,
		"role":       invite.Role,
		"expires_at": invite.ExpiresAt,
	}))
}
