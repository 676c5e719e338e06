package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"brickdesk/server/config"
	"brickdesk/server/internal/auth"
	"brickdesk/server/internal/database"
	"brickdesk/server/internal/export"
	"brickdesk/server/internal/geometry"
	"brickdesk/server/internal/models"
	"brickdesk/server/internal/normalize"
	"brickdesk/server/internal/notify"
	"brickdesk/server/internal/queue"
)

type Handler struct {
	db          *database.Database
	cfg         *config.Config
	logger      *logrus.Logger
	auth        *auth.Service
	districts   *geometry.DistrictManager
	notifier    *notify.Service
	importQueue *queue.ImportQueue
}

func NewHandler(
	db *database.Database,
	cfg *config.Config,
	authService *auth.Service,
	districts *geometry.DistrictManager,
	notifier *notify.Service,
	importQueue *queue.ImportQueue,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Handler{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		auth:        authService,
		districts:   districts,
		notifier:    notifier,
		importQueue: importQueue,
	}
}

// respondError writes the API error payload shape: {"error":{"message":...}}.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"message": message}})
}

// PropertyView is a listing plus the derived fields the dashboard renders.
// The raw status stays visible for auditing; display logic uses the derived ones.
type PropertyView struct {
	models.Property
	CanonicalStatus normalize.Status `json:"canonical_status"`
	DisplayPriceWan *float64         `json:"display_price_wan"`
	UnitPricePerSqm *float64         `json:"unit_price_yuan_per_sqm"`
}

func toView(p *models.Property) PropertyView {
	return PropertyView{
		Property:        *p,
		CanonicalStatus: normalize.NormalizeStatus(p.Status),
		DisplayPriceWan: normalize.DisplayPriceWan(p),
		UnitPricePerSqm: normalize.UnitPriceYuanPerSqm(p),
	}
}

func (h *Handler) GetProperties(c *gin.Context) {
	var filter models.PropertyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid filter parameters")
		return
	}
	if filter.Region != "" {
		cities := config.GetCitiesInRegion(filter.Region)
		if cities == nil {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Unknown region: %s", filter.Region))
			return
		}
		filter.Cities = cities
	}

	properties, err := h.db.GetProperties(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get properties")
		respondError(c, http.StatusInternalServerError, "Failed to get properties")
		return
	}

	views := make([]PropertyView, len(properties))
	for i := range properties {
		views[i] = toView(&properties[i])
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) GetProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid property ID")
		return
	}

	property, err := h.db.GetPropertyByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		respondError(c, http.StatusInternalServerError, "Failed to get property")
		return
	}
	if property == nil {
		respondError(c, http.StatusNotFound, "Property not found")
		return
	}

	c.JSON(http.StatusOK, toView(property))
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var property models.Property
	if err := c.ShouldBindJSON(&property); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid property payload")
		return
	}
	if property.Title == "" {
		respondError(c, http.StatusBadRequest, "Title is required")
		return
	}

	if err := h.db.CreateProperty(&property); err != nil {
		h.logger.WithError(err).Error("Failed to create property")
		respondError(c, http.StatusInternalServerError, "Failed to create property")
		return
	}

	c.JSON(http.StatusCreated, toView(&property))
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid property ID")
		return
	}

	var property models.Property
	if err := c.ShouldBindJSON(&property); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid property payload")
		return
	}
	property.ID = id

	if err := h.db.UpdateProperty(&property); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "Property not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update property")
		respondError(c, http.StatusInternalServerError, "Failed to update property")
		return
	}

	c.JSON(http.StatusOK, toView(&property))
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid property ID")
		return
	}

	if err := h.db.DeleteProperty(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "Property not found")
			return
		}
		h.logger.WithError(err).Error("Failed to delete property")
		respondError(c, http.StatusInternalServerError, "Failed to delete property")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetPropertyStats(c *gin.Context) {
	var filter models.PropertyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid filter parameters")
		return
	}

	stats, err := h.db.GetPropertyStats(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property stats")
		respondError(c, http.StatusInternalServerError, "Failed to get property stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetDistrictStats(c *gin.Context) {
	district := c.Param("district")
	stats, err := h.db.GetDistrictStats(district)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get district stats")
		respondError(c, http.StatusInternalServerError, "Failed to get district stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetDistrictHulls(c *gin.Context) {
	c.JSON(http.StatusOK, h.districts.GetHulls())
}

func (h *Handler) UpdateDistrictHulls(c *gin.Context) {
	if err := h.districts.UpdateDistrictHulls(); err != nil {
		h.logger.WithError(err).Error("Failed to update district hulls")
		respondError(c, http.StatusInternalServerError, "Failed to update district hulls")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "District hulls updated successfully"})
}

func (h *Handler) ExportProperties(c *gin.Context) {
	var filter models.PropertyFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid filter parameters")
		return
	}

	properties, err := h.db.GetProperties(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to export properties")
		respondError(c, http.StatusInternalServerError, "Failed to export properties")
		return
	}

	filename := fmt.Sprintf("properties-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteProperties(c.Writer, properties); err != nil {
		h.logger.WithError(err).Error("Failed to write CSV export")
	}
}

func (h *Handler) ImportTemplate(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="import-template.csv"`)
	if err := export.WriteTemplate(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to write import template")
	}
}

// ImportProperties accepts a CSV upload and feeds the listings through the
// batch pipeline. Oversized uploads get a distinct 413 so staff know to
// split the file rather than retry it.
func (h *Handler) ImportProperties(c *gin.Context) {
	maxBytes := h.cfg.Import.MaxUploadBytes
	if c.Request.ContentLength > maxBytes {
		respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload exceeds the %d byte limit; split the file and retry", maxBytes))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds the %d byte limit; split the file and retry", maxBytes))
			return
		}
		respondError(c, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	properties, err := export.ParseProperties(file)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	batchSize := h.cfg.Import.MaxBatchSize
	if batchSize <= 0 {
		batchSize = len(properties)
	}
	queued := 0
	for start := 0; start < len(properties); start += batchSize {
		end := start + batchSize
		if end > len(properties) {
			end = len(properties)
		}
		if err := h.importQueue.Push(properties[start:end]); err != nil {
			h.logger.WithError(err).Error("Failed to queue import batch")
			respondError(c, http.StatusServiceUnavailable, "Import queue is full, try again later")
			return
		}
		queued += end - start
	}

	h.logger.WithField("listings", queued).Info("Queued CSV import")
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) GetLeads(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "100")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 100
	}

	leads, err := h.db.GetLeads(c.Query("status"), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get leads")
		respondError(c, http.StatusInternalServerError, "Failed to get leads")
		return
	}

	c.JSON(http.StatusOK, leads)
}

func (h *Handler) CreateLead(c *gin.Context) {
	var lead models.Lead
	if err := c.ShouldBindJSON(&lead); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid lead payload")
		return
	}
	if lead.Name == "" || lead.Phone == "" {
		respondError(c, http.StatusBadRequest, "Name and phone are required")
		return
	}
	lead.Status = models.LeadStatusNew

	if err := h.db.CreateLead(&lead); err != nil {
		h.logger.WithError(err).Error("Failed to create lead")
		respondError(c, http.StatusInternalServerError, "Failed to create lead")
		return
	}

	if h.notifier != nil && h.notifier.Enabled() {
		var property *models.Property
		if lead.PropertyID != nil {
			property, _ = h.db.GetPropertyByID(*lead.PropertyID)
		}
		go func(lead models.Lead) {
			if err := h.notifier.NotifyNewLead(&lead, property); err != nil {
				h.logger.WithError(err).Error("Failed to notify new lead")
			}
		}(lead)
	}

	c.JSON(http.StatusCreated, lead)
}

func (h *Handler) UpdateLeadStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid lead ID")
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Status is required")
		return
	}
	switch req.Status {
	case models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusClosed:
	default:
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Unknown lead status: %s", req.Status))
		return
	}

	if err := h.db.UpdateLeadStatus(id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "Lead not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update lead")
		respondError(c, http.StatusInternalServerError, "Failed to update lead")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
