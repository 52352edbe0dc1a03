package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gilliankerr/KoNote-sub000/internal/handler"
	"github.com/gilliankerr/KoNote-sub000/internal/middleware"
)

// Handler registers its routes on a group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler additionally has routes reachable without a session.
type PublicHandler interface {
	Handler
	RegisterPublicRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	RateLimit rate.Limit
	RateBurst int
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    PublicHandler
	userH    Handler
	programH Handler
	clientH  Handler
	alertH   Handler
	auditH   Handler
	h        *handler.Handler
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH PublicHandler,
	userH Handler,
	programH Handler,
	clientH Handler,
	alertH Handler,
	auditH Handler,
	h *handler.Handler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	handler.RegisterValidators()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:   engine,
		auth:     auth,
		authH:    authH,
		userH:    userH,
		programH: programH,
		clientH:  clientH,
		alertH:   alertH,
		auditH:   auditH,
		h:        h,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.setupHealthCheck(api)

	// Public routes: login and invite acceptance only.
	r.authH.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.authH.RegisterRoutes(protected)
	r.userH.RegisterRoutes(protected)
	r.programH.RegisterRoutes(protected)
	r.clientH.RegisterRoutes(protected)
	r.alertH.RegisterRoutes(protected)
	r.auditH.RegisterRoutes(protected)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
		health.GET("/metrics", r.h.MetricsHandler)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
