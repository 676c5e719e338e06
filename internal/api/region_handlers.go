package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brickdesk/server/config"
	"brickdesk/server/internal/models"
)

func (h *Handler) GetRegions(c *gin.Context) {
	regions := config.GetRegions()
	if regions == nil {
		regions = []models.Region{}
	}
	c.JSON(http.StatusOK, regions)
}

func (h *Handler) GetRegion(c *gin.Context) {
	region := config.GetRegionByName(c.Param("name"))
	if region == nil {
		respondError(c, http.StatusNotFound, "Region not found")
		return
	}
	c.JSON(http.StatusOK, region)
}

func (h *Handler) UpdateRegion(c *gin.Context) {
	var region models.Region
	if err := c.ShouldBindJSON(&region); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid region payload")
		return
	}
	if region.Name == "" {
		respondError(c, http.StatusBadRequest, "Region name is required")
		return
	}

	if err := config.UpdateRegion(region); err != nil {
		h.logger.WithError(err).Error("Failed to update region")
		respondError(c, http.StatusInternalServerError, "Failed to update region")
		return
	}

	c.JSON(http.StatusOK, region)
}

func (h *Handler) DeleteRegion(c *gin.Context) {
	if err := config.DeleteRegion(c.Param("name")); err != nil {
		respondError(c, http.StatusNotFound, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}
