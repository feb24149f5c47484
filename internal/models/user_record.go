package models

import "time"

// Field names a JSON column of a UserRecord.
type Field string

const (
	FieldProfile             Field = "profile"
	FieldAnalyses            Field = "analyses"
	FieldAllHistory          Field = "allHistory"
	FieldRecommendationCache Field = "recommendationCache"
	FieldRecommendations     Field = "recommendations"
)

// AllFields lists every JSON column in storage order.
var AllFields = []Field{
	FieldProfile,
	FieldAnalyses,
	FieldAllHistory,
	FieldRecommendationCache,
	FieldRecommendations,
}

type UserRecord struct {
	TgID     string         `json:"tgid"`
	Profile  map[string]any `json:"profile"`
	Analyses map[string]any `json:"analyses"`
	// AllHistory holds whatever shape was stored. Read it through NormalizeHistory.
	AllHistory          any               `json:"allHistory"`
	RecommendationCache map[string]string `json:"recommendationCache"`
	Recommendations     map[string]any    `json:"recommendations"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

func NewUserRecord(tgid string, now time.Time) *UserRecord {
	return &UserRecord{
		TgID:                tgid,
		Profile:             map[string]any{},
		Analyses:            map[string]any{},
		AllHistory:          []any{},
		RecommendationCache: map[string]string{},
		Recommendations:     map[string]any{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// EnsureDefaults replaces nil JSON fields with empty values.
func (r *UserRecord) EnsureDefaults() {
	if r.Profile == nil {
		r.Profile = map[string]any{}
	}
	if r.Analyses == nil {
		r.Analyses = map[string]any{}
	}
	if r.AllHistory == nil {
		r.AllHistory = []any{}
	}
	if r.RecommendationCache == nil {
		r.RecommendationCache = map[string]string{}
	}
	if r.Recommendations == nil {
		r.Recommendations = map[string]any{}
	}
}

// Clone returns a deep copy that shares no maps or slices with r.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Profile = CloneObject(r.Profile)
	out.Analyses = CloneObject(r.Analyses)
	out.AllHistory = DeepCopy(r.AllHistory)
	out.Recommendations = CloneObject(r.Recommendations)
	out.RecommendationCache = make(map[string]string, len(r.RecommendationCache))
	for k, v := range r.RecommendationCache {
		out.RecommendationCache[k] = v
	}
	return &out
}

// Value returns the current value of a JSON column.
func (r *UserRecord) Value(f Field) any {
	switch f {
	case FieldProfile:
		return r.Profile
	case FieldAnalyses:
		return r.Analyses
	case FieldAllHistory:
		return r.AllHistory
	case FieldRecommendationCache:
		return r.RecommendationCache
	case FieldRecommendations:
		return r.Recommendations
	}
	return nil
}
