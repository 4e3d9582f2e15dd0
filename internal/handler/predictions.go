package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"planogram/internal/planogram"
	"planogram/internal/predictor"
	"planogram/internal/risk"
)

// PredictionHandler serves layout impact predictions and risk findings. Both
// endpoints are pure reads over one performance snapshot per request.
type PredictionHandler struct {
	Predictor *predictor.Predictor
	Risk      *risk.Analyzer
	History   predictor.History
	Logger    *zap.Logger
}

func (h *PredictionHandler) Register(r *gin.Engine) {
	grp := r.Group("/api/v1/predictions")
	grp.POST("/impact", h.predictImpact)
	grp.POST("/risks", h.identifyRisks)
}

type layoutSlotRequest struct {
	Position  string `json:"position"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type predictionRequest struct {
	CurrentLayout  []layoutSlotRequest `json:"current_layout"`
	ProposedLayout []layoutSlotRequest `json:"proposed_layout"`
}

// @Summary Predict revenue impact of a proposed layout
// @Tags predictions
// @Param request body predictionRequest true "current and proposed layouts"
// @Success 200 {object} apiResponse
// @Router /api/v1/predictions/impact [post]
func (h *PredictionHandler) predictImpact(c *gin.Context) {
	if h.Predictor == nil {
		Error(c, http.StatusInternalServerError, "predictor unavailable", nil)
		return
	}
	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	current, proposed, ok := parseLayouts(c, req)
	if !ok {
		return
	}
	result, err := h.Predictor.PredictImpact(c.Request.Context(), current, proposed)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("predict impact failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Identify risks in a proposed layout
// @Tags predictions
// @Param request body predictionRequest true "current and proposed layouts"
// @Success 200 {object} apiResponse
// @Router /api/v1/predictions/risks [post]
func (h *PredictionHandler) identifyRisks(c *gin.Context) {
	if h.Risk == nil || h.History == nil {
		Error(c, http.StatusInternalServerError, "risk analyzer unavailable", nil)
		return
	}
	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	current, proposed, ok := parseLayouts(c, req)
	if !ok {
		return
	}
	ids := append(current.ProductIDs(), proposed.ProductIDs()...)
	snap, err := h.History.Snapshot(c.Request.Context(), ids)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("history snapshot failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	findings := h.Risk.Identify(snap, current, proposed)
	Ok(c, findings, map[string]any{"count": len(findings)})
}

func parseLayouts(c *gin.Context, req predictionRequest) (planogram.Layout, planogram.Layout, bool) {
	current, err := buildLayout(req.CurrentLayout)
	if err != nil {
		Error(c, http.StatusBadRequest, "current_layout: "+err.Error(), nil)
		return planogram.Layout{}, planogram.Layout{}, false
	}
	proposed, err := buildLayout(req.ProposedLayout)
	if err != nil {
		Error(c, http.StatusBadRequest, "proposed_layout: "+err.Error(), nil)
		return planogram.Layout{}, planogram.Layout{}, false
	}
	return current, proposed, true
}

func buildLayout(slots []layoutSlotRequest) (planogram.Layout, error) {
	out := make([]planogram.LayoutSlot, 0, len(slots))
	for _, s := range slots {
		pos, err := planogram.ParsePosition(s.Position)
		if err != nil {
			return planogram.Layout{}, err
		}
		out = append(out, planogram.LayoutSlot{
			Position:  pos,
			ProductID: s.ProductID,
			Quantity:  s.Quantity,
		})
	}
	return planogram.NewLayout(out)
}
