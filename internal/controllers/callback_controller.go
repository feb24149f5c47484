package controllers

import (
	"net/http"
	"tgmed/internal/providers"
	"tgmed/internal/services"
)

// CallbackController receives results pushed back by the analysis pipeline.
type CallbackController struct {
	logger     providers.Logger
	reconciler services.ReconcilerInterface
}

func NewCallbackController(logger providers.Logger, reconciler services.ReconcilerInterface) *CallbackController {
	return &CallbackController{
		logger:     logger,
		reconciler: reconciler,
	}
}

type analysisResultRequest struct {
	TgID      string `json:"tgid" validate:"required"`
	Text      string `json:"text" validate:"required"`
	FileName  string `json:"fileName"`
	CreatedAt string `json:"createdAt"`
}

type lastReportCallback struct {
	TgID       string         `json:"tgid" validate:"required"`
	LastReport map[string]any `json:"last_report"`
}

type recommendationCallback struct {
	TgID       string `json:"tgid" validate:"required"`
	AnalysisID string `json:"analysisId" validate:"required"`
	Text       string `json:"text" validate:"required"`
}

func (cc *CallbackController) AnalysisResult(w http.ResponseWriter, r *http.Request) {
	var req analysisResultRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	rec, err := cc.reconciler.AppendReport(r.Context(), req.TgID, req.Text, req.FileName, req.CreatedAt)
	if err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	cc.logger.Infof(providers.TypeWebhook, "Analysis result for %s stored (%s)", req.TgID, req.FileName)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "analyses": rec.Analyses})
}

func (cc *CallbackController) LastReport(w http.ResponseWriter, r *http.Request) {
	var req lastReportCallback
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	rec, err := cc.reconciler.PatchLastReportText(r.Context(), req.TgID, req.LastReport)
	if err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	cc.logger.Infof(providers.TypeWebhook, "Last report of %s revised", req.TgID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "analyses": rec.Analyses})
}

func (cc *CallbackController) Recommendation(w http.ResponseWriter, r *http.Request) {
	var req recommendationCallback
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	if err := cc.reconciler.PutRecommendation(r.Context(), req.TgID, req.AnalysisID, req.Text); err != nil {
		writeError(w, r, cc.logger, err)
		return
	}
	cc.logger.Infof(providers.TypeWebhook, "Recommendation %s for %s stored", req.AnalysisID, req.TgID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
