package router

import (
	"github.com/gin-gonic/gin"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/http/handler"
)

type Handlers struct {
	Health   *handler.HealthHandler
	Imports  *handler.ImportHandler
	Runs     *handler.RunHandler
	Failures *handler.FailureHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/healthz", h.Health.Check)

	api := router.Group("/api")
	{
		ImportRouter(api.Group("/imports"), h.Imports)
		RunRouter(api.Group("/runs"), h.Runs)
		FailureRouter(api.Group("/failures"), h.Failures)
	}
}

func ImportRouter(rg *gin.RouterGroup, h *handler.ImportHandler) {
	rg.GET("", h.List)
}

func RunRouter(rg *gin.RouterGroup, h *handler.RunHandler) {
	rg.GET("/latest", h.Latest)
	rg.GET("/events", h.Events)
}

func FailureRouter(rg *gin.RouterGroup, h *handler.FailureHandler) {
	rg.GET("", h.List)
}
