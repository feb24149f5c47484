package controllers

import (
	"net/http"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"tgmed/internal/services"
	"tgmed/internal/webhook"
)

const generateEvent = "generate_recommendation"

type RecommendationController struct {
	logger     providers.Logger
	reconciler services.ReconcilerInterface
	webhook    webhook.Interface
}

func NewRecommendationController(logger providers.Logger, reconciler services.ReconcilerInterface, hook webhook.Interface) *RecommendationController {
	return &RecommendationController{
		logger:     logger,
		reconciler: reconciler,
		webhook:    hook,
	}
}

func (rc *RecommendationController) Get(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	analysisID := r.PathValue("analysisId")
	text, err := rc.reconciler.GetRecommendation(r.Context(), tgid, analysisID)
	if err != nil {
		writeError(w, r, rc.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysisId": analysisID, "text": text})
}

// Generate asks the pipeline for a fresh recommendation. The result arrives
// later on /webhook/recommendation.
func (rc *RecommendationController) Generate(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	analysisID := r.PathValue("analysisId")
	if analysisID == "" {
		writeError(w, r, rc.logger, services.NewValidationError("analysisId", "is required"))
		return
	}
	rec, err := rc.reconciler.GetOrCreate(r.Context(), tgid)
	if err != nil {
		writeError(w, r, rc.logger, err)
		return
	}

	payload := map[string]any{
		"tgid":       tgid,
		"analysisId": analysisID,
		"profile":    rec.Profile,
	}
	if last, ok := models.LastReportOf(rec.Analyses); ok {
		payload["last_report"] = last
	}
	delivery := rc.webhook.Notify(r.Context(), generateEvent, payload)

	resp := map[string]any{"analysisId": analysisID, "webhookStatus": delivery.Status}
	if delivery.Error != "" {
		resp["webhookError"] = delivery.Error
	}
	writeJSON(w, http.StatusOK, resp)
}
