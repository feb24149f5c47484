package controllers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"tgmed/internal/providers"
	"tgmed/internal/services"
	"tgmed/internal/structures"
	"tgmed/internal/textextract"
	"tgmed/internal/webhook"
)

// multipartOverhead is allowed on top of upload.maxSize for headers and
// boundaries.
const multipartOverhead = 64 << 10

type UploadController struct {
	logger     providers.Logger
	reconciler services.ReconcilerInterface
	extractor  textextract.Extractor
	webhook    webhook.Interface
	maxSize    int64
}

func NewUploadController(conf *structures.Config, logger providers.Logger, reconciler services.ReconcilerInterface, extractor textextract.Extractor, hook webhook.Interface) *UploadController {
	maxSize := conf.Upload.MaxSize
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &UploadController{
		logger:     logger,
		reconciler: reconciler,
		extractor:  extractor,
		webhook:    hook,
		maxSize:    maxSize,
	}
}

type uploadResponse struct {
	Success         bool           `json:"success"`
	FileName        string         `json:"fileName"`
	Mime            string         `json:"mime"`
	Size            int64          `json:"size"`
	Analyses        map[string]any `json:"analyses"`
	WebhookStatus   webhook.Status `json:"webhookStatus"`
	WebhookResponse any            `json:"webhookResponse,omitempty"`
	WebhookError    string         `json:"webhookError,omitempty"`
}

// Upload extracts PDF text, forwards the file to the webhook and records the
// upload. A failed delivery is reported in the response, not as an error.
func (uc *UploadController) Upload(w http.ResponseWriter, r *http.Request) {
	tgid, ok := tgidOf(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, uc.maxSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			providers.WriteJSONError(w, http.StatusRequestEntityTooLarge, "File is too large")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, r, uc.logger, services.NewValidationError("file", "is required"))
		default:
			writeError(w, r, uc.logger, errBadBody)
		}
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if header.Size > uc.maxSize {
		providers.WriteJSONError(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, uc.logger, err)
		return
	}
	if len(data) == 0 {
		writeError(w, r, uc.logger, services.NewValidationError("file", "is empty"))
		return
	}

	fileName := filepath.Base(header.Filename)
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	var text string
	if textextract.IsSupported(mime) {
		text, err = uc.extractor.Extract(r.Context(), data, mime)
		if err != nil {
			uc.logger.Warnf(providers.TypePost, "Text extraction for %s (%s) failed: %s", fileName, tgid, err)
			text = ""
		}
	}

	delivery := uc.webhook.ForwardFile(r.Context(), webhook.FileUpload{
		TgID:          tgid,
		FileName:      fileName,
		Mime:          mime,
		Size:          int64(len(data)),
		Data:          data,
		ExtractedText: text,
	})

	rec, err := uc.reconciler.NotifyUpload(r.Context(), tgid, services.UploadInfo{
		FileName: fileName,
		Mime:     mime,
		Size:     int64(len(data)),
	})
	if err != nil {
		writeError(w, r, uc.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:         true,
		FileName:        fileName,
		Mime:            mime,
		Size:            int64(len(data)),
		Analyses:        rec.Analyses,
		WebhookStatus:   delivery.Status,
		WebhookResponse: delivery.Response,
		WebhookError:    delivery.Error,
	})
}
