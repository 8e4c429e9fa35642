package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with middleware and every route
func NewRouter(handler *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(handler.logger), CORS(allowedOrigins))
	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.GET("/properties", handler.GetAllProperties)
		api.POST("/properties", handler.CreateProperty)
		api.PATCH("/properties/:id", handler.UpdateProperty)
		api.GET("/properties/template", handler.GetTemplate)
		api.GET("/properties/export", handler.ExportProperties)
		api.GET("/properties/geojson", handler.GetGeoJSON)
		api.POST("/properties/batch", handler.BatchImport)
	}
}
