package client

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/service/client"
)

type Handler struct {
	service *client.Service
	guard   *middleware.AccessGuard
}

func NewHandler(service *client.Service, guard *middleware.AccessGuard) *Handler {
	return &Handler{service: service, guard: guard}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clients := r.Group("/clients")
	{
		clients.POST("", h.Create)
		clients.GET("", h.List)
		clients.GET("/:id", h.guard.RequirePermission(model.PermClientView, "id"), h.Get)
		clients.PUT("/:id", h.guard.RequirePermission(model.PermClientEdit, "id"), h.Update)
		clients.POST("/:id/blocks", middleware.RequireAdmin(), h.Block)
	}
}

func (h *Handler) Create(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req model.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	programIDs := make([]uuid.UUID, 0, len(req.Programs))
	for _, raw := range req.Programs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid program ID"))
			return
		}
		programIDs = append(programIDs, id)
	}

	created, err := h.service.Create(c.Request.Context(), actor, &req, programIDs)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

// List returns only records the actor can see: same universe, shared
// program, no active block. There is no unfiltered listing.
func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	clients, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(clients))
}

func (h *Handler) Get(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	clientFileID, _ := uuid.Parse(c.Param("id"))

	found, err := h.service.Get(c.Request.Context(), actor, clientFileID)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) Update(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	clientFileID, _ := uuid.Parse(c.Param("id"))

	var req model.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), actor, clientFileID, &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

type blockRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) Block(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	clientFileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid client ID"))
		return
	}

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	if err := h.service.Block(c.Request.Context(), actor, userID, clientFileID, req.Reason); err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(nil))
}
