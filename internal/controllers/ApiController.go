package controllers

import (
	"net/http"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"tgmed/internal/services"
)

type ApiController struct {
	logger     providers.Logger
	reconciler services.ReconcilerInterface
}

func NewApiController(logger providers.Logger, reconciler services.ReconcilerInterface) *ApiController {
	return &ApiController{
		logger:     logger,
		reconciler: reconciler,
	}
}

type profileRequest struct {
	Profile map[string]any `json:"profile"`
}

type analysesRequest struct {
	Analyses map[string]any `json:"analyses"`
}

type lastReportRequest struct {
	LastReport map[string]any `json:"last_report"`
}

type recommendationsRequest struct {
	Recommendations map[string]any `json:"recommendations"`
}

type notifyUploadRequest struct {
	FileName string `json:"fileName" validate:"required"`
	Mime     string `json:"mime" validate:"required"`
	Size     int64  `json:"size" validate:"required|min:1"`
}

type meResponse struct {
	TgID            string         `json:"tgid"`
	Profile         map[string]any `json:"profile"`
	Analyses        map[string]any `json:"analyses"`
	Recommendations map[string]any `json:"recommendations"`
}

func (ac *ApiController) GetMe(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	rec, err := ac.reconciler.GetOrCreate(r.Context(), tgid)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		TgID:            rec.TgID,
		Profile:         rec.Profile,
		Analyses:        rec.Analyses,
		Recommendations: rec.Recommendations,
	})
}

func (ac *ApiController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	if req.Profile == nil {
		writeError(w, r, ac.logger, services.NewValidationError("profile", "is required"))
		return
	}
	rec, err := ac.reconciler.MergeProfile(r.Context(), tgid, req.Profile)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tgid": rec.TgID, "profile": rec.Profile})
}

func (ac *ApiController) UpdateAnalyses(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	var req analysesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	rec, err := ac.reconciler.ReplaceAnalyses(r.Context(), tgid, req.Analyses)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": rec.Analyses})
}

func (ac *ApiController) GetHistory(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	history, err := ac.reconciler.History(r.Context(), tgid)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": history})
}

func (ac *ApiController) UpdateLastReport(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	var req lastReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	rec, err := ac.reconciler.PatchLastReportText(r.Context(), tgid, req.LastReport)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	last, _ := models.LastReportOf(rec.Analyses)
	writeJSON(w, http.StatusOK, map[string]any{"last_report": last, "analyses": rec.Analyses})
}

func (ac *ApiController) UpdateRecommendations(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	var req recommendationsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	rec, err := ac.reconciler.ReplaceRecommendations(r.Context(), tgid, req.Recommendations)
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": rec.Recommendations})
}

func (ac *ApiController) NotifyUpload(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}
	var req notifyUploadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	rec, err := ac.reconciler.NotifyUpload(r.Context(), tgid, services.UploadInfo{
		FileName: req.FileName,
		Mime:     req.Mime,
		Size:     req.Size,
	})
	if err != nil {
		writeError(w, r, ac.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fileName": req.FileName,
		"mime":     req.Mime,
		"size":     req.Size,
		"analyses": rec.Analyses,
	})
}
