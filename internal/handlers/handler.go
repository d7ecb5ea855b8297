package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"coffee_roaster/internal/logger"
	"coffee_roaster/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/", h.index)
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live relay stream for the dashboard page
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorIDMiddleware)
	{
		h.registerRoasterRoutes(api)
		h.registerRoastRoutes(api)
		h.registerLogRoutes(api)
		api.GET("/messages", h.getMessages)
	}
}

func (h *Handler) registerRoasterRoutes(api *gin.RouterGroup) {
	roaster := api.Group("/roaster")
	{
		roaster.GET("/state", h.getState)
	}
}

func (h *Handler) registerRoastRoutes(api *gin.RouterGroup) {
	roasts := api.Group("/roasts")
	{
		roasts.GET("", h.listRoasts)
		roasts.GET("/:id", h.getRoast)
		roasts.GET("/:id/ticks", h.getRoastTicks)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
