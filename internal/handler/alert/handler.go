package alert

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/service/alert"
)

type Handler struct {
	service *alert.Service
	guard   *middleware.AccessGuard
}

func NewHandler(service *alert.Service, guard *middleware.AccessGuard) *Handler {
	return &Handler{service: service, guard: guard}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/clients/:id/alerts", h.guard.RequirePermission(model.PermAlertCreate, "id"), h.Create)
	r.GET("/clients/:id/alerts", h.guard.RequirePermission(model.PermClientView, "id"), h.List)

	alerts := r.Group("/alerts")
	{
		alerts.POST("/:id/cancel", h.Cancel)
		alerts.POST("/:id/recommendations", h.RecommendCancellation)
		alerts.GET("/:id/recommendations/pending", h.PendingRecommendation)
	}
	r.POST("/recommendations/:id/review", h.Review)
}

func (h *Handler) Create(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	clientFileID, _ := uuid.Parse(c.Param("id"))

	var req model.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), actor, clientFileID, req.Content)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	clientFileID, _ := uuid.Parse(c.Param("id"))

	views, err := h.service.ListForClient(c.Request.Context(), actor, clientFileID)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(views))
}

// Cancel is the program-manager path: a direct cancellation without a
// recommendation. Staff requests land on the recommendation flow.
func (h *Handler) Cancel(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
		return
	}

	var req model.CancelAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	if err := h.service.CancelDirect(c.Request.Context(), actor, alertID, req.Reason); err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

// RecommendCancellation submits the staff half of the two-person rule.
// When a pending recommendation already exists the caller is sent to
// it instead of getting an error page.
func (h *Handler) RecommendCancellation(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
		return
	}

	var req model.RecommendCancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	rec, err := h.service.RecommendCancellation(c.Request.Context(), actor, alertID, req.Assessment)
	if err != nil {
		if errors.Is(err, alert.ErrDuplicatePending) {
			c.Header("Location", "/api/v1/alerts/"+alertID.String()+"/recommendations/pending")
			c.JSON(http.StatusSeeOther, handler.NewErrorResponse("a pending recommendation already exists"))
			return
		}
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"id":       rec.ID,
		"alert_id": rec.AlertID,
		"status":   rec.Status,
	}))
}

func (h *Handler) PendingRecommendation(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
		return
	}

	view, err := h.service.PendingForReview(c.Request.Context(), actor, alertID)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(view))
}

// Review resolves a pending recommendation. A recommendation that was
// already resolved sends the reviewer back to the alert rather than
// failing.
func (h *Handler) Review(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	recommendationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusForbidden, handler.NewErrorResponse("forbidden"))
		return
	}

	var req model.ReviewRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request"))
		return
	}

	err = h.service.Review(c.Request.Context(), actor, recommendationID, req.Action == "approve", req.ReviewNote)
	if err != nil {
		if errors.Is(err, alert.ErrAlreadyReviewed) {
			c.JSON(http.StatusSeeOther, handler.NewErrorResponse("recommendation already resolved"))
			return
		}
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
