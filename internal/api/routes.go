package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, h *Handler, corsOrigins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/me", h.RequireAuth(), h.Me)
		authGroup.POST("/logout", h.RequireAuth(), h.Logout)
	}

	// Public lead capture from the property site.
	router.POST("/api/leads", h.CreateLead)

	api := router.Group("/api", h.RequireAuth())
	{
		api.GET("/properties", h.GetProperties)
		api.POST("/properties", h.CreateProperty)
		api.GET("/properties/export", h.ExportProperties)
		api.GET("/properties/template", h.ImportTemplate)
		api.POST("/properties/import", h.ImportProperties)
		api.GET("/properties/:id", h.GetProperty)
		api.PUT("/properties/:id", h.UpdateProperty)
		api.DELETE("/properties/:id", h.DeleteProperty)

		api.GET("/stats", h.GetPropertyStats)
		api.GET("/districts/hulls", h.GetDistrictHulls)
		api.POST("/districts/hulls", h.UpdateDistrictHulls)
		api.GET("/districts/:district/stats", h.GetDistrictStats)

		api.GET("/leads", h.GetLeads)
		api.PUT("/leads/:id/status", h.UpdateLeadStatus)

		api.GET("/regions", h.GetRegions)
		api.PUT("/regions", h.UpdateRegion)
		api.GET("/regions/:name", h.GetRegion)
		api.DELETE("/regions/:name", h.DeleteRegion)
	}
}
