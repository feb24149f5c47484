package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"tgmed/internal/store"
	"time"

	"golang.org/x/sync/singleflight"
)

type ReconcilerInterface interface {
	GetOrCreate(ctx context.Context, tgid string) (*models.UserRecord, error)
	MergeProfile(ctx context.Context, tgid string, partial map[string]any) (*models.UserRecord, error)
	ReplaceAnalyses(ctx context.Context, tgid string, analyses map[string]any) (*models.UserRecord, error)
	ReplaceRecommendations(ctx context.Context, tgid string, recommendations map[string]any) (*models.UserRecord, error)
	AppendReport(ctx context.Context, tgid, text, fileName, createdAt string) (*models.UserRecord, error)
	PatchLastReportText(ctx context.Context, tgid string, updated map[string]any) (*models.UserRecord, error)
	NotifyUpload(ctx context.Context, tgid string, upload UploadInfo) (*models.UserRecord, error)
	History(ctx context.Context, tgid string) ([]any, error)
	GetRecommendation(ctx context.Context, tgid, analysisID string) (string, error)
	PutRecommendation(ctx context.Context, tgid, analysisID, text string) error
}

type UploadInfo struct {
	FileName string
	Mime     string
	Size     int64
}

// Reconciler owns every read-modify-write of a UserRecord. Mutations on the
// same tgid run under the locker; the store only ever receives full field
// values.
type Reconciler struct {
	store    store.DocumentStore
	locker   Locker
	fallback FallbackDocument
	logger   providers.Logger
	now      func() time.Time
	group    singleflight.Group
}

func NewReconciler(documents store.DocumentStore, locker Locker, fallback FallbackDocument, logger providers.Logger) ReconcilerInterface {
	return newReconciler(documents, locker, fallback, logger)
}

func newReconciler(documents store.DocumentStore, locker Locker, fallback FallbackDocument, logger providers.Logger) *Reconciler {
	return &Reconciler{
		store:    documents,
		locker:   locker,
		fallback: fallback,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) GetOrCreate(ctx context.Context, tgid string) (*models.UserRecord, error) {
	if tgid == "" {
		return nil, required("tgid")
	}
	rec, err := r.store.Get(ctx, tgid)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	rec = models.NewUserRecord(tgid, r.now())
	err = r.store.Insert(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		r.logger.Debugf(providers.TypeStore, "Record %s created concurrently, reading it back", tgid)
		return r.store.Get(ctx, tgid)
	}
	if err != nil {
		return nil, err
	}
	r.logger.Infof(providers.TypeStore, "Created record for %s", tgid)
	return rec, nil
}

// mutate loads the record under the tgid lock and hands a private copy to
// fn. fn returns the fields to persist; nil means nothing to write.
func (r *Reconciler) mutate(ctx context.Context, tgid string, fn func(rec *models.UserRecord) ([]models.Field, error)) (*models.UserRecord, error) {
	if tgid == "" {
		return nil, required("tgid")
	}
	unlock, err := r.locker.Lock(ctx, tgid)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", tgid, err)
	}
	defer unlock()

	current, err := r.GetOrCreate(ctx, tgid)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	fields, err := fn(next)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return current, nil
	}

	next.UpdatedAt = r.now()
	if err := r.store.Update(ctx, next, fields...); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Reconciler) MergeProfile(ctx context.Context, tgid string, partial map[string]any) (*models.UserRecord, error) {
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		profile := models.CloneObject(rec.Profile)
		for k, v := range partial {
			profile[k] = models.DeepCopy(v)
		}
		rec.Profile = profile
		return []models.Field{models.FieldProfile}, nil
	})
}

func (r *Reconciler) ReplaceAnalyses(ctx context.Context, tgid string, analyses map[string]any) (*models.UserRecord, error) {
	if analyses == nil {
		return nil, required("analyses")
	}
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		rec.Analyses = models.CloneObject(analyses)
		return []models.Field{models.FieldAnalyses}, nil
	})
}

func (r *Reconciler) ReplaceRecommendations(ctx context.Context, tgid string, recommendations map[string]any) (*models.UserRecord, error) {
	if recommendations == nil {
		return nil, required("recommendations")
	}
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		rec.Recommendations = models.CloneObject(recommendations)
		return []models.Field{models.FieldRecommendations}, nil
	})
}

// AppendReport records a new analysis report. analyses.reports always grows;
// allHistory skips events it already holds.
func (r *Reconciler) AppendReport(ctx context.Context, tgid, text, fileName, createdAt string) (*models.UserRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, required("text")
	}
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		report := models.NewReport(text, fileName, createdAt, r.now())

		reports := r.reports(rec)
		reports = append(slices.Clone(reports), report.ToMap())
		rec.Analyses = map[string]any{
			"reports":     reports,
			"last_report": report.ToMap(),
		}

		history, added := models.AppendHistory(slices.Clone(r.history(rec)), report)
		if !added {
			r.logger.Debugf(providers.TypeStore, "Report %s@%s already in history of %s", report.FileName, report.CreatedAt, tgid)
		}
		rec.AllHistory = history

		return []models.Field{models.FieldAnalyses, models.FieldAllHistory}, nil
	})
}

// PatchLastReportText applies a revised last report. The matching history
// entry is updated in place when one is found.
func (r *Reconciler) PatchLastReportText(ctx context.Context, tgid string, updated map[string]any) (*models.UserRecord, error) {
	if models.ReportFromMap(updated).Text == "" {
		return nil, required("last_report.text")
	}
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		merged := map[string]any{}
		previousText := ""
		if prev, ok := models.LastReportOf(rec.Analyses); ok {
			merged = models.CloneObject(prev)
			previousText = models.ReportFromMap(prev).Text
		}
		for k, v := range updated {
			merged[k] = models.DeepCopy(v)
		}

		fields := []models.Field{models.FieldAnalyses}

		history := slices.Clone(r.history(rec))
		if idx := models.FindHistoryEntry(history, models.ReportFromMap(merged), previousText); idx >= 0 {
			entry, _ := models.AsObject(history[idx])
			entry = models.CloneObject(entry)
			for k, v := range updated {
				entry[k] = models.DeepCopy(v)
			}
			history[idx] = entry
			rec.AllHistory = history
			fields = append(fields, models.FieldAllHistory)
		} else {
			r.logger.Infof(providers.TypeStore, "No history entry matches the revised last report of %s", tgid)
		}

		reports := slices.Clone(r.reports(rec))
		if len(reports) > 0 {
			reports[len(reports)-1] = models.CloneObject(merged)
		} else {
			reports = []any{models.CloneObject(merged)}
		}
		rec.Analyses = map[string]any{
			"reports":     reports,
			"last_report": merged,
		}

		return fields, nil
	})
}

// NotifyUpload records that a file was uploaded. Upload metadata is not
// kept in analyses; only reports and last_report survive.
func (r *Reconciler) NotifyUpload(ctx context.Context, tgid string, upload UploadInfo) (*models.UserRecord, error) {
	if upload.FileName == "" {
		return nil, required("fileName")
	}
	return r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		rec.Analyses = models.PruneAnalyses(rec.Analyses)
		r.logger.Infof(providers.TypeStore, "Upload from %s: %s (%s, %d bytes)", tgid, upload.FileName, upload.Mime, upload.Size)
		return []models.Field{models.FieldAnalyses}, nil
	})
}

func (r *Reconciler) History(ctx context.Context, tgid string) ([]any, error) {
	rec, err := r.GetOrCreate(ctx, tgid)
	if err != nil {
		return nil, err
	}
	return r.history(rec), nil
}

// GetRecommendation serves the cached text for analysisID, falling back to
// the static document. An empty fallback is returned but not cached.
func (r *Reconciler) GetRecommendation(ctx context.Context, tgid, analysisID string) (string, error) {
	if analysisID == "" {
		return "", required("analysisId")
	}
	rec, err := r.GetOrCreate(ctx, tgid)
	if err != nil {
		return "", err
	}
	if text, ok := rec.RecommendationCache[analysisID]; ok {
		return text, nil
	}

	text := r.loadFallback(analysisID)
	if text == "" {
		return "", nil
	}

	_, err = r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		if existing, ok := rec.RecommendationCache[analysisID]; ok {
			text = existing
			return nil, nil
		}
		rec.RecommendationCache[analysisID] = text
		return []models.Field{models.FieldRecommendationCache}, nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (r *Reconciler) PutRecommendation(ctx context.Context, tgid, analysisID, text string) error {
	if analysisID == "" {
		return required("analysisId")
	}
	if text == "" {
		return required("text")
	}
	_, err := r.mutate(ctx, tgid, func(rec *models.UserRecord) ([]models.Field, error) {
		rec.RecommendationCache[analysisID] = text
		return []models.Field{models.FieldRecommendationCache}, nil
	})
	return err
}

func (r *Reconciler) loadFallback(analysisID string) string {
	v, err, _ := r.group.Do("fallback:"+analysisID, func() (any, error) {
		return r.fallback.Load()
	})
	if err != nil {
		r.logger.Warnf(providers.TypeApp, "Read fallback recommendation: %s", err)
		return ""
	}
	return v.(string)
}

func (r *Reconciler) history(rec *models.UserRecord) []any {
	history, shape := models.NormalizeHistory(rec.AllHistory)
	if shape == models.HistoryUnknown {
		r.logger.Warnf(providers.TypeStore, "allHistory of %s has unexpected type %T, treating as empty", rec.TgID, rec.AllHistory)
	}
	return history
}

func (r *Reconciler) reports(rec *models.UserRecord) []any {
	reports, ok := models.ReportsOf(rec.Analyses)
	if !ok {
		r.logger.Warnf(providers.TypeStore, "analyses.reports of %s is %T, treating as empty", rec.TgID, rec.Analyses["reports"])
	}
	return reports
}
