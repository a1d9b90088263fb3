package router

import (
	"furusatoReco/internal/rest"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler) {
	reco := api.Group("/recommendations")
	reco.POST("/next", handler.Next)
	reco.DELETE("/sessions/:id", handler.EndSession)
}

func SetModuleAdminRoutes(api *echo.Group, handler *rest.ModuleAdminHandler) {
	admin := api.Group("/admin")
	admin.GET("/modules", handler.List)
	admin.PUT("/modules", handler.Upsert)
}

func SetOpsRoutes(e *echo.Echo, health *rest.HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
