package program

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/service/program"
)

type Handler struct {
	service *program.Service
}

func NewHandler(service *program.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	programs := r.Group("/programs")
	{
		programs.POST("", middleware.RequireAdmin(), h.Create)
		programs.GET("", h.List)
		programs.GET("/:id", h.Get)
		programs.PUT("/:id", middleware.RequireAdmin(), h.Update)

		// Grant management is open to program managers of the target
		// program; the service checks.
		programs.POST("/:id/grants", h.GrantRole)
		programs.DELETE("/:id/grants/:userID", h.RevokeRole)
	}
}

func (h *Handler) Create(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	var req model.CreateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	programs, err := h.service.List(c.Request.Context())
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(programs))
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid program ID"))
		return
	}

	found, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) Update(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid program ID"))
		return
	}

	var req model.UpdateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) GrantRole(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid program ID"))
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required,uuid"`
		Role   string `json:"role" binding:"required,rolename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	grant, err := h.service.GrantRole(c.Request.Context(), actor, userID, programID, model.Role(req.Role))
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(grant))
}

func (h *Handler) RevokeRole(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid program ID"))
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid user ID"))
		return
	}

	if err := h.service.RevokeRole(c.Request.Context(), actor, userID, programID); err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
