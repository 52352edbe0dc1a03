package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	apperrors "github.com/gilliankerr/KoNote-sub000/pkg/errors"
)

// Handler contains dependencies for all handlers
type Handler struct{}

// NewHandler creates a new handler instance
func NewHandler() *Handler {
	return &Handler{}
}

// RegisterValidators installs custom binding validators. "rolename"
// accepts only the closed role set.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("rolename", func(fl validator.FieldLevel) bool {
			return model.Role(fl.Field().String()).Valid()
		})
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now(),
	})
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}

// WriteError maps application error codes onto HTTP statuses. Forbidden
// responses carry no detail beyond the status.
func WriteError(c *gin.Context, err error) {
	var app *Response
	status := http.StatusInternalServerError

	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
		app = NewErrorResponse("not found")
	case apperrors.ErrBadRequest, apperrors.ErrValidation:
		status = http.StatusBadRequest
		app = NewErrorResponse(messageOf(err))
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
		app = NewErrorResponse("unauthorized")
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
		app = NewErrorResponse("forbidden")
	default:
		app = NewErrorResponse("internal server error")
	}
	c.JSON(status, app)
}

// messageOf returns the presentable message, never the wrapped cause.
func messageOf(err error) string {
	var app *apperrors.AppError
	if errors.As(err, &app) {
		return app.Message
	}
	return "bad request"
}
