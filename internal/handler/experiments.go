package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planogram/internal/experiment"
	"planogram/internal/repository"
)

// ExperimentHandler serves the experiment lifecycle: creation with device
// assignment, start/stop, metric intake, and the statistical read side.
type ExperimentHandler struct {
	Registry  *experiment.Registry
	Collector *experiment.Collector
	Analyzer  *experiment.Analyzer
	Repo      repository.Store
	Logger    *zap.Logger
}

func (h *ExperimentHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/v1/experiments")
	grp.POST("", h.create)
	grp.GET("", h.list)
	grp.GET("/sample-size", h.sampleSize)
	grp.GET("/:name", h.detail)
	grp.POST("/:name/start", h.start)
	grp.POST("/:name/stop", h.stop)
	grp.GET("/:name/status", h.status)
	grp.POST("/:name/metrics", h.track)
	grp.GET("/:name/analysis", h.analysis)
	grp.GET("/:name/power", h.power)
	grp.GET("/:name/assignments", h.listAssignments)
	grp.GET("/:name/assignments/:device_id", h.getAssignment)
}

func (h *ExperimentHandler) create(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	var req experiment.Config
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	exp, err := h.Registry.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, experiment.ErrInvalidConfig):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, experiment.ErrDuplicateExperiment):
			Error(c, http.StatusConflict, "experiment name already taken", nil)
		default:
			if h.Logger != nil {
				h.Logger.Warn("create experiment failed", zap.Error(err))
			}
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, exp, nil)
}

func (h *ExperimentHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	status := strQueryPtr(c, "status")
	feature := strQueryPtr(c, "feature")
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"started_at": "started_at",
		"name":       "name",
	})
	asc := boolQueryPtr(c, "ascending")

	params := repository.ListExperimentsParams{
		Limit:   limit,
		Offset:  offset,
		Status:  status,
		Feature: feature,
		OrderBy: orderBy,
		Asc:     asc,
	}
	items, err := h.Repo.ListExperiments(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountExperiments(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *ExperimentHandler) detail(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	exp, err := h.Registry.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, exp, nil)
}

func (h *ExperimentHandler) start(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	changed, err := h.Registry.Start(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"name": name, "changed": changed}, nil)
}

func (h *ExperimentHandler) stop(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	changed, err := h.Registry.Stop(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"name": name, "changed": changed}, nil)
}

func (h *ExperimentHandler) status(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	report, err := h.Registry.Status(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}

type trackMetricRequest struct {
	DeviceID string  `json:"device_id"`
	Metric   string  `json:"metric"`
	Value    float64 `json:"value"`
}

func (h *ExperimentHandler) track(c *gin.Context) {
	if h.Collector == nil {
		Error(c, http.StatusInternalServerError, "collector unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	var req trackMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.Metric = strings.TrimSpace(req.Metric)
	if req.DeviceID == "" || req.Metric == "" {
		Error(c, http.StatusBadRequest, "device_id and metric required", nil)
		return
	}
	accepted, err := h.Collector.Track(c.Request.Context(), name, req.DeviceID, req.Metric, req.Value)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"accepted": accepted}, nil)
}

func (h *ExperimentHandler) analysis(c *gin.Context) {
	if h.Analyzer == nil {
		Error(c, http.StatusInternalServerError, "analyzer unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	level := floatQueryPtr(c, "confidence_level")
	results, err := h.Analyzer.Analyze(c.Request.Context(), name, level)
	if err != nil {
		switch {
		case errors.Is(err, experiment.ErrExperimentNotFound):
			Error(c, http.StatusNotFound, "experiment not found", nil)
		case errors.Is(err, experiment.ErrInvalidConfig):
			Error(c, http.StatusBadRequest, err.Error(), nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, results, nil)
}

func (h *ExperimentHandler) power(c *gin.Context) {
	if h.Analyzer == nil {
		Error(c, http.StatusInternalServerError, "analyzer unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	reports, err := h.Analyzer.PowerAnalysis(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, reports, nil)
}

func (h *ExperimentHandler) listAssignments(c *gin.Context) {
	if h.Registry == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		Error(c, http.StatusBadRequest, "experiment name required", nil)
		return
	}
	exp, err := h.Registry.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	group := strQueryPtr(c, "group")
	items, err := h.Repo.ListAssignments(c.Request.Context(), exp.ID, group)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *ExperimentHandler) getAssignment(c *gin.Context) {
	if h.Registry == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "registry unavailable", nil)
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	deviceID := strings.TrimSpace(c.Param("device_id"))
	if name == "" || deviceID == "" {
		Error(c, http.StatusBadRequest, "experiment name and device id required", nil)
		return
	}
	exp, err := h.Registry.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, experiment.ErrExperimentNotFound) {
			Error(c, http.StatusNotFound, "experiment not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	item, err := h.Repo.GetAssignment(c.Request.Context(), exp.ID, deviceID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "assignment not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *ExperimentHandler) sampleSize(c *gin.Context) {
	if h.Analyzer == nil {
		Error(c, http.StatusInternalServerError, "analyzer unavailable", nil)
		return
	}
	baseline := floatQuery(c, "baseline_rate", 0)
	mde := floatQuery(c, "mde", 0)
	power := floatQuery(c, "power", 0.8)
	alpha := floatQuery(c, "alpha", 0.05)
	if baseline <= 0 || baseline >= 1 {
		Error(c, http.StatusBadRequest, "baseline_rate must be in (0, 1)", nil)
		return
	}
	if mde <= 0 {
		Error(c, http.StatusBadRequest, "mde must be positive", nil)
		return
	}
	n := h.Analyzer.RequiredSampleSize(baseline, mde, power, alpha)
	Ok(c, map[string]any{
		"sample_size_per_group": n,
		"baseline_rate":         baseline,
		"mde":                   mde,
		"power":                 power,
		"alpha":                 alpha,
	}, nil)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

func intQueryPtr(c *gin.Context, key string) *int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return &i
		}
	}
	return nil
}

func floatQuery(c *gin.Context, key string, def float64) float64 {
	if val := c.Query(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

func floatQueryPtr(c *gin.Context, key string) *float64 {
	if val := c.Query(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return &f
		}
	}
	return nil
}

func boolQueryPtr(c *gin.Context, key string) *bool {
	if val := c.Query(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
	}
	return nil
}

func strQueryPtr(c *gin.Context, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func parseOrder(value string, allow map[string]string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return ""
	}
	if mapped, ok := allow[key]; ok {
		return mapped
	}
	return ""
}

func paginationMeta(limit, offset int, total int64) map[string]any {
	if limit <= 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	hasNext := int64(offset+limit) < total
	return map[string]any{
		"limit":    limit,
		"offset":   offset,
		"total":    total,
		"has_next": hasNext,
	}
}
