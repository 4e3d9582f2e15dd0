package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"planogram/internal/models"
	"planogram/internal/repository"
)

// DeviceHandler serves the vending fleet roster. Eligibility here decides
// which devices future experiments draw their assignments from.
type DeviceHandler struct {
	Repo   repository.Store
	Logger *zap.Logger
}

func (h *DeviceHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/v1/devices")
	grp.GET("", h.list)
	grp.PUT("", h.upsert)
}

func (h *DeviceHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	eligible := boolQueryPtr(c, "eligible")
	location := strQueryPtr(c, "location")
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"device_id":  "device_id",
		"updated_at": "updated_at",
		"location":   "location",
	})
	asc := boolQueryPtr(c, "ascending")

	params := repository.ListDevicesParams{
		Limit:    limit,
		Offset:   offset,
		Eligible: eligible,
		Location: location,
		OrderBy:  orderBy,
		Asc:      asc,
	}
	items, err := h.Repo.ListDevices(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDevices(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type deviceItem struct {
	DeviceID string          `json:"device_id"`
	Location string          `json:"location"`
	Eligible *bool           `json:"eligible"`
	Metadata json.RawMessage `json:"metadata"`
}

type upsertDevicesRequest struct {
	Items []deviceItem `json:"items"`
}

func (h *DeviceHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req upsertDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if len(req.Items) == 0 {
		Error(c, http.StatusBadRequest, "items required", nil)
		return
	}
	rows := make([]models.Device, 0, len(req.Items))
	for _, item := range req.Items {
		deviceID := strings.TrimSpace(item.DeviceID)
		if deviceID == "" {
			Error(c, http.StatusBadRequest, "device_id required on every item", nil)
			return
		}
		eligible := true
		if item.Eligible != nil {
			eligible = *item.Eligible
		}
		rows = append(rows, models.Device{
			DeviceID: deviceID,
			Location: strings.TrimSpace(item.Location),
			Eligible: eligible,
			Metadata: datatypes.JSON(item.Metadata),
		})
	}
	if err := h.Repo.UpsertDevices(c.Request.Context(), rows); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("upsert devices failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"upserted": len(rows)}, nil)
}
