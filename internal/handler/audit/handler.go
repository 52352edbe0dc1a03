package audit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
	"github.com/gilliankerr/KoNote-sub000/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit", middleware.RequireAdmin(), h.List)
}

// List exposes the audit trail to admins. Records hold identifiers and
// metadata only, never decrypted field values.
func (h *Handler) List(c *gin.Context) {
	filters := make(map[string]interface{})

	if v := c.Query("actor_id"); v != "" {
		filters["actor_id"] = v
	}
	if v := c.Query("action"); v != "" {
		filters["action"] = v
	}
	if v := c.Query("resource_type"); v != "" {
		filters["resource_type"] = v
	}
	if v := c.Query("resource_id"); v != "" {
		filters["resource_id"] = v
	}
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters["start_date"] = t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters["end_date"] = t
		}
	}

	records, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}
