package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"planogram/internal/models"
	"planogram/internal/perfcache"
	"planogram/internal/repository"
)

// ProductHandler serves the historical performance store. Upserts invalidate
// the prediction cache so the next prediction sees fresh numbers.
type ProductHandler struct {
	Repo   repository.Store
	Cache  *perfcache.ReadThrough
	Logger *zap.Logger
}

func (h *ProductHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/v1/products")
	grp.GET("/performance", h.list)
	grp.PUT("/performance", h.upsert)
}

func (h *ProductHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	category := strQueryPtr(c, "category")
	minDays := intQueryPtr(c, "min_days")
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"updated_at":        "updated_at",
		"product_id":        "product_id",
		"avg_daily_revenue": "avg_daily_revenue",
		"days_of_data":      "days_of_data",
	})
	asc := boolQueryPtr(c, "ascending")

	params := repository.ListProductPerformanceParams{
		Limit:    limit,
		Offset:   offset,
		Category: category,
		MinDays:  minDays,
		OrderBy:  orderBy,
		Asc:      asc,
	}
	items, err := h.Repo.ListProductPerformance(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountProductPerformance(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type productPerformanceItem struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	AvgDailyRevenue float64 `json:"avg_daily_revenue"`
	AvgDailyUnits   float64 `json:"avg_daily_units"`
	DaysOfData      int     `json:"days_of_data"`
}

type upsertProductPerformanceRequest struct {
	Items []productPerformanceItem `json:"items"`
}

func (h *ProductHandler) upsert(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	var req upsertProductPerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if len(req.Items) == 0 {
		Error(c, http.StatusBadRequest, "items required", nil)
		return
	}
	rows := make([]models.ProductPerformance, 0, len(req.Items))
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			Error(c, http.StatusBadRequest, "product_id required on every item", nil)
			return
		}
		if item.DaysOfData < 0 {
			Error(c, http.StatusBadRequest, "days_of_data must not be negative", nil)
			return
		}
		rows = append(rows, models.ProductPerformance{
			ProductID:       productID,
			Name:            strings.TrimSpace(item.Name),
			Category:        strings.TrimSpace(item.Category),
			AvgDailyRevenue: decimal.NewFromFloat(item.AvgDailyRevenue),
			AvgDailyUnits:   decimal.NewFromFloat(item.AvgDailyUnits),
			DaysOfData:      item.DaysOfData,
		})
		ids = append(ids, productID)
	}
	if err := h.Repo.UpsertProductPerformance(c.Request.Context(), rows); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("upsert product performance failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(c.Request.Context(), ids)
	}
	Ok(c, map[string]any{"upserted": len(rows)}, nil)
}
