package handlers

import (
	"petfeeder/internal/logger"
	"petfeeder/internal/service"

	_ "petfeeder/docs"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
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

	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// status stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerFeederRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerFeederRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.POST("/feed", h.feed)

	schedule := api.Group("/schedule")
	{
		schedule.GET("", h.getSchedule)
		// Body: [{"hour":8,"minute":0,"portion":2}, ... x3]
		schedule.PUT("", h.putSchedule)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
	}
}
