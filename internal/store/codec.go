package store

import (
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"time"

	json "github.com/goccy/go-json"
)

var emptyObject = []byte("{}")
var emptySequence = []byte("[]")

func defaultColumn(f models.Field) []byte {
	if f == models.FieldAllHistory {
		return emptySequence
	}
	return emptyObject
}

func encodeField(rec *models.UserRecord, f models.Field) ([]byte, error) {
	v := rec.Value(f)
	if isNil(v) {
		return defaultColumn(f), nil
	}
	return json.Marshal(v)
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return t == nil
	case map[string]string:
		return t == nil
	}
	return false
}

func encodeColumns(rec *models.UserRecord, fields []models.Field) (map[models.Field][]byte, error) {
	out := make(map[models.Field][]byte, len(fields))
	for _, f := range fields {
		data, err := encodeField(rec, f)
		if err != nil {
			return nil, err
		}
		out[f] = data
	}
	return out, nil
}

// decodeRecord rebuilds a record from raw JSON columns. Columns that are
// unreadable or hold the wrong shape are reset to empty defaults.
func decodeRecord(tgid string, cols map[models.Field][]byte, createdAt, updatedAt time.Time, logger providers.Logger) *models.UserRecord {
	rec := models.NewUserRecord(tgid, createdAt)
	rec.UpdatedAt = updatedAt

	rec.Profile = decodeObject(tgid, models.FieldProfile, cols[models.FieldProfile], logger)
	rec.Analyses = decodeObject(tgid, models.FieldAnalyses, cols[models.FieldAnalyses], logger)
	rec.Recommendations = decodeObject(tgid, models.FieldRecommendations, cols[models.FieldRecommendations], logger)

	cache := decodeObject(tgid, models.FieldRecommendationCache, cols[models.FieldRecommendationCache], logger)
	for id, v := range cache {
		text, ok := v.(string)
		if !ok {
			logger.Warnf(providers.TypeStore, "tgid %s: recommendationCache[%s] is %T, dropped", tgid, id, v)
			continue
		}
		rec.RecommendationCache[id] = text
	}

	if raw := cols[models.FieldAllHistory]; len(raw) > 0 {
		var history any
		if err := json.Unmarshal(raw, &history); err != nil {
			logger.Warnf(providers.TypeStore, "tgid %s: unreadable allHistory reset: %s", tgid, err)
		} else if history != nil {
			rec.AllHistory = history
		}
	}
	return rec
}

func decodeObject(tgid string, f models.Field, raw []byte, logger providers.Logger) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.Warnf(providers.TypeStore, "tgid %s: unreadable %s reset: %s", tgid, f, err)
		return map[string]any{}
	}
	if v == nil {
		return map[string]any{}
	}
	m, ok := models.AsObject(v)
	if !ok {
		logger.Warnf(providers.TypeStore, "tgid %s: %s is %T, reset to empty object", tgid, f, v)
		return map[string]any{}
	}
	return m
}
