package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"tgmed/internal/models"
	"tgmed/internal/store"
	"tgmed/internal/testutil"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFallback struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *countingFallback) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

func (f *countingFallback) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	rec      *Reconciler
	store    *store.MemoryStore
	fallback *countingFallback
	logger   *testutil.MockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &testutil.MockLogger{}
	mem := store.NewMemoryStore(logger)
	fb := &countingFallback{}
	r := newReconciler(mem, NewLocalLocker(), fb, logger)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{rec: r, store: mem, fallback: fb, logger: logger}
}

func TestReconciler_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.rec.GetOrCreate(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, rec.Profile)
	assert.Empty(t, rec.Analyses)

	_, err = f.rec.MergeProfile(ctx, "42", map[string]any{"height": float64(180)})
	require.NoError(t, err)

	rec, err = f.rec.GetOrCreate(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"height": float64(180)}, rec.Profile)

	_, err = f.rec.AppendReport(ctx, "42", "report text", "scan.pdf", "")
	require.NoError(t, err)

	rec, err = f.rec.GetOrCreate(ctx, "42")
	require.NoError(t, err)
	reports, ok := models.ReportsOf(rec.Analyses)
	require.True(t, ok)
	assert.Len(t, reports, 1)
	last, ok := models.LastReportOf(rec.Analyses)
	require.True(t, ok)
	assert.Equal(t, "scan.pdf", last["fileName"])
	assert.Equal(t, 1, f.store.Len())
}

func TestReconciler_MergeProfileIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.MergeProfile(ctx, "1", map[string]any{"age": float64(30)})
	require.NoError(t, err)
	rec, err := f.rec.MergeProfile(ctx, "1", map[string]any{"age": float64(30)})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"age": float64(30)}, rec.Profile)
}

func TestReconciler_MergeProfileByKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.MergeProfile(ctx, "1", map[string]any{"a": float64(1)})
	require.NoError(t, err)
	rec, err := f.rec.MergeProfile(ctx, "1", map[string]any{"b": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, rec.Profile)

	rec, err = f.rec.MergeProfile(ctx, "1", map[string]any{"a": "overwritten"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "overwritten", "b": float64(2)}, rec.Profile)
}

func TestReconciler_MergeProfileDoesNotAliasInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	partial := map[string]any{"meds": []any{"a"}}

	_, err := f.rec.MergeProfile(ctx, "1", partial)
	require.NoError(t, err)
	partial["meds"].([]any)[0] = "changed"

	rec, err := f.rec.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []any{"a"}, rec.Profile["meds"])
}

func TestReconciler_UpdatedAtAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.rec.GetOrCreate(ctx, "1")
	require.NoError(t, err)
	updated, err := f.rec.MergeProfile(ctx, "1", map[string]any{"x": true})
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
}

func TestReconciler_AppendReportDedupsHistoryNotReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.rec.AppendReport(ctx, "1", "x", "f.pdf", "2024-01-01T00:00:00Z")
		require.NoError(t, err)
	}

	rec, err := f.rec.GetOrCreate(ctx, "1")
	require.NoError(t, err)

	history, shape := models.NormalizeHistory(rec.AllHistory)
	assert.Equal(t, models.HistorySequence, shape)
	assert.Len(t, history, 1)

	reports, _ := models.ReportsOf(rec.Analyses)
	assert.Len(t, reports, 2, "analyses.reports keeps every submission")
}

func TestReconciler_LastReportIsNthAppended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var rec *models.UserRecord
	var err error
	for i := 1; i <= 5; i++ {
		rec, err = f.rec.AppendReport(ctx, "1", fmt.Sprintf("text %d", i), fmt.Sprintf("f%d.pdf", i), "")
		require.NoError(t, err)

		last, ok := models.LastReportOf(rec.Analyses)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("text %d", i), last["text"])

		reports, _ := models.ReportsOf(rec.Analyses)
		assert.Equal(t, reports[len(reports)-1], last)
	}
	history, _ := models.NormalizeHistory(rec.AllHistory)
	assert.Len(t, history, 5)
}

func TestReconciler_AppendReportDefaults(t *testing.T) {
	f := newFixture(t)

	rec, err := f.rec.AppendReport(context.Background(), "1", "body", "", "")
	require.NoError(t, err)

	last, _ := models.LastReportOf(rec.Analyses)
	assert.Equal(t, models.UnknownFileName, last["fileName"])
	assert.Equal(t, "2024-03-01T12:00:02Z", last["createdAt"])
}

func TestReconciler_AppendReportDropsUploadMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.rec.ReplaceAnalyses(ctx, "1", map[string]any{"fileName": "a.pdf", "mime": "application/pdf", "size": float64(3)})
	require.NoError(t, err)

	rec, err := f.rec.AppendReport(ctx, "1", "body", "a.pdf", "")
	require.NoError(t, err)

	assert.Len(t, rec.Analyses, 2)
	assert.Contains(t, rec.Analyses, "reports")
	assert.Contains(t, rec.Analyses, "last_report")
}

func TestReconciler_AppendReportUnwrapsLegacyHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy := models.NewUserRecord("1", time.Now())
	legacy.AllHistory = map[string]any{"history": []any{
		map[string]any{"text": "old", "fileName": "o.pdf", "createdAt": "2023-01-01T00:00:00Z"},
		map[string]any{"reports": []any{}, "last_report": map[string]any{"text": "old"}},
	}}
	require.NoError(t, f.store.Insert(ctx, legacy))

	rec, err := f.rec.AppendReport(ctx, "1", "new", "n.pdf", "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	history, shape := models.NormalizeHistory(rec.AllHistory)
	assert.Equal(t, models.HistorySequence, shape)
	require.Len(t, history, 2)
	assert.Equal(t, "old", history[0].(map[string]any)["text"])
	assert.Equal(t, "new", history[1].(map[string]any)["text"])
}

func TestReconciler_UnknownHistoryShapeIsReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy := models.NewUserRecord("1", time.Now())
	legacy.AllHistory = "garbage"
	legacy.Analyses = map[string]any{"reports": "also garbage"}
	require.NoError(t, f.store.Insert(ctx, legacy))

	rec, err := f.rec.AppendReport(ctx, "1", "new", "n.pdf", "")
	require.NoError(t, err)

	history, _ := models.NormalizeHistory(rec.AllHistory)
	assert.Len(t, history, 1)
	reports, _ := models.ReportsOf(rec.Analyses)
	assert.Len(t, reports, 1)
	assert.Len(t, f.logger.Entries("warn"), 2)
}

func TestReconciler_AppendReportRequiresText(t *testing.T) {
	f := newFixture(t)

	_, err := f.rec.AppendReport(context.Background(), "1", "  ", "f.pdf", "")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, f.store.Len())
}

func TestReconciler_PatchLastReportByEventKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.rec.AppendReport(ctx, "1", "first", "a.pdf", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	_, err = f.rec.AppendReport(ctx, "1", "draft", "b.pdf", "2024-01-02T00:00:00Z")
	require.NoError(t, err)

	rec, err := f.rec.PatchLastReportText(ctx, "1", map[string]any{
		"text": "final", "fileName": "b.pdf", "createdAt": "2024-01-02T00:00:00Z",
	})
	require.NoError(t, err)

	history, _ := models.NormalizeHistory(rec.AllHistory)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].(map[string]any)["text"])
	assert.Equal(t, "final", history[1].(map[string]any)["text"])

	last, _ := models.LastReportOf(rec.Analyses)
	assert.Equal(t, "final", last["text"])
	reports, _ := models.ReportsOf(rec.Analyses)
	assert.Equal(t, last, reports[len(reports)-1])
}

func TestReconciler_PatchLastReportByPreviousText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy := models.NewUserRecord("1", time.Now())
	legacy.Analyses = map[string]any{
		"reports":     []any{map[string]any{"text": "draft"}},
		"last_report": map[string]any{"text": "draft"},
	}
	legacy.AllHistory = []any{map[string]any{"text": "draft"}}
	require.NoError(t, f.store.Insert(ctx, legacy))

	rec, err := f.rec.PatchLastReportText(ctx, "1", map[string]any{"text": "final"})
	require.NoError(t, err)

	history, _ := models.NormalizeHistory(rec.AllHistory)
	require.Len(t, history, 1)
	assert.Equal(t, "final", history[0].(map[string]any)["text"])
}

func TestReconciler_PatchLastReportNoMatchLeavesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.rec.AppendReport(ctx, "1", "first", "a.pdf", "2024-01-01T00:00:00Z")
	require.NoError(t, err)

	legacy, err := f.store.Get(ctx, "1")
	require.NoError(t, err)
	legacy.Analyses["last_report"] = map[string]any{"text": "unrelated"}
	require.NoError(t, f.store.Update(ctx, legacy, models.FieldAnalyses))

	rec, err := f.rec.PatchLastReportText(ctx, "1", map[string]any{"text": "revised", "fileName": "zzz.pdf", "createdAt": "2030-01-01T00:00:00Z"})
	require.NoError(t, err)

	history, _ := models.NormalizeHistory(rec.AllHistory)
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].(map[string]any)["text"])

	last, _ := models.LastReportOf(rec.Analyses)
	assert.Equal(t, "revised", last["text"])
}

func TestReconciler_PatchLastReportRequiresText(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.PatchLastReportText(context.Background(), "1", map[string]any{"fileName": "a.pdf"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReconciler_NotifyUploadPrunesAnalyses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rec.ReplaceAnalyses(ctx, "1", map[string]any{"fileName": "a.pdf", "uploadedAt": "2024"})
	require.NoError(t, err)
	rec, err := f.rec.NotifyUpload(ctx, "1", UploadInfo{FileName: "b.pdf", Mime: "application/pdf", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, rec.Analyses)

	_, err = f.rec.AppendReport(ctx, "1", "body", "b.pdf", "")
	require.NoError(t, err)
	rec, err = f.rec.NotifyUpload(ctx, "1", UploadInfo{FileName: "c.pdf", Size: 1})
	require.NoError(t, err)
	assert.Len(t, rec.Analyses, 2)
}

func TestReconciler_ReplaceRecommendations(t *testing.T) {
	f := newFixture(t)
	rec, err := f.rec.ReplaceRecommendations(context.Background(), "1", map[string]any{"basic": "walk more"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"basic": "walk more"}, rec.Recommendations)
	assert.Empty(t, rec.RecommendationCache)

	_, err = f.rec.ReplaceRecommendations(context.Background(), "1", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReconciler_HistoryNormalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := models.NewUserRecord("1", time.Now())
	legacy.AllHistory = map[string]any{"analyses": []any{map[string]any{"text": "a"}}}
	require.NoError(t, f.store.Insert(ctx, legacy))

	history, err := f.rec.History(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestReconciler_GetRecommendationWithoutFallback(t *testing.T) {
	f := newFixture(t)

	text, err := f.rec.GetRecommendation(context.Background(), "1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "", text)

	rec, err := f.rec.GetOrCreate(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, rec.RecommendationCache)
}

func TestReconciler_GetRecommendationCachesFallback(t *testing.T) {
	f := newFixture(t)
	f.fallback.text = "Eat vegetables."
	ctx := context.Background()

	first, err := f.rec.GetRecommendation(ctx, "1", "a1")
	require.NoError(t, err)
	second, err := f.rec.GetRecommendation(ctx, "1", "a1")
	require.NoError(t, err)

	assert.Equal(t, "Eat vegetables.", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.fallback.Calls())

	f.fallback.text = "changed"
	third, err := f.rec.GetRecommendation(ctx, "1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Eat vegetables.", third)
}

func TestReconciler_GetRecommendationFallbackError(t *testing.T) {
	f := newFixture(t)
	f.fallback.err = errors.New("permission denied")

	text, err := f.rec.GetRecommendation(context.Background(), "1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.NotEmpty(t, f.logger.Entries("warn"))
}

func TestReconciler_PutRecommendationOverwrites(t *testing.T) {
	f := newFixture(t)
	f.fallback.text = "fallback"
	ctx := context.Background()

	require.NoError(t, f.rec.PutRecommendation(ctx, "1", "a1", "generated v1"))
	require.NoError(t, f.rec.PutRecommendation(ctx, "1", "a1", "generated v2"))

	text, err := f.rec.GetRecommendation(ctx, "1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "generated v2", text)
	assert.Equal(t, 0, f.fallback.Calls())

	assert.ErrorIs(t, f.rec.PutRecommendation(ctx, "1", "", "x"), ErrValidation)
	assert.ErrorIs(t, f.rec.PutRecommendation(ctx, "1", "a2", ""), ErrValidation)
}

func TestReconciler_ConcurrentMergesLoseNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.rec.MergeProfile(ctx, "shared", map[string]any{fmt.Sprintf("k%d", i): float64(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, err := f.rec.GetOrCreate(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, rec.Profile, 50)
}

func TestReconciler_ConcurrentFirstAccessCreatesOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := f.rec.GetOrCreate(ctx, "new")
			assert.NoError(t, err)
			assert.Equal(t, "new", rec.TgID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.store.Len())
}

// racingStore reports a miss on the first Get, then loses the insert race.
type racingStore struct {
	store.DocumentStore
	missed bool
}

func (s *racingStore) Get(ctx context.Context, tgid string) (*models.UserRecord, error) {
	if !s.missed {
		s.missed = true
		return nil, store.ErrNotFound
	}
	return s.DocumentStore.Get(ctx, tgid)
}

func TestReconciler_GetOrCreateFallsBackToReadOnDuplicate(t *testing.T) {
	mem := store.NewMemoryStore(&testutil.MockLogger{})
	existing := models.NewUserRecord("1", time.Now())
	existing.Profile["winner"] = true
	require.NoError(t, mem.Insert(context.Background(), existing))

	r := newReconciler(&racingStore{DocumentStore: mem}, NewLocalLocker(), &countingFallback{}, &testutil.MockLogger{})
	rec, err := r.GetOrCreate(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, true, rec.Profile["winner"])
}

type failingStore struct {
	store.DocumentStore
}

func (s *failingStore) Update(_ context.Context, _ *models.UserRecord, _ ...models.Field) error {
	return fmt.Errorf("%w: update: disk full", store.ErrStore)
}

func TestReconciler_StoreFailureLeavesRecordUntouched(t *testing.T) {
	mem := store.NewMemoryStore(&testutil.MockLogger{})
	require.NoError(t, mem.Insert(context.Background(), models.NewUserRecord("1", time.Now())))

	r := newReconciler(&failingStore{DocumentStore: mem}, NewLocalLocker(), &countingFallback{}, &testutil.MockLogger{})
	_, err := r.AppendReport(context.Background(), "1", "text", "a.pdf", "")
	assert.ErrorIs(t, err, store.ErrStore)

	rec, err := mem.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, rec.Analyses)
}

func TestReconciler_EmptyTgID(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.GetOrCreate(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.rec.MergeProfile(context.Background(), "", map[string]any{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReconciler_LockCancelled(t *testing.T) {
	f := newFixture(t)
	unlock, err := f.rec.locker.Lock(context.Background(), "1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.rec.MergeProfile(ctx, "1", map[string]any{"a": 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReconciler_PatchLastReportDropsUploadMetadata(t *testing.T) {
	tests := []struct {
		name     string
		analyses map[string]any
	}{
		{
			name:     "metadata only",
			analyses: map[string]any{"fileName": "old.pdf", "mime": "application/pdf", "size": 10, "uploadedAt": "2023-01-01"},
		},
		{
			name: "metadata next to reports",
			analyses: map[string]any{
				"fileName":    "old.pdf",
				"mime":        "application/pdf",
				"reports":     []any{map[string]any{"text": "draft", "fileName": "a.pdf", "createdAt": "2024-01-01T00:00:00Z"}},
				"last_report": map[string]any{"text": "draft", "fileName": "a.pdf", "createdAt": "2024-01-01T00:00:00Z"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			legacy := models.NewUserRecord("1", time.Now())
			legacy.Analyses = tt.analyses
			require.NoError(t, f.store.Insert(ctx, legacy))

			rec, err := f.rec.PatchLastReportText(ctx, "1", map[string]any{"text": "revised", "fileName": "a.pdf", "createdAt": "2024-01-01T00:00:00Z"})
			require.NoError(t, err)

			assert.ElementsMatch(t, []string{"reports", "last_report"}, slices.Collect(maps.Keys(rec.Analyses)))
			last, ok := models.LastReportOf(rec.Analyses)
			require.True(t, ok)
			assert.Equal(t, "revised", last["text"])

			stored, err := f.store.Get(ctx, "1")
			require.NoError(t, err)
			assert.NotContains(t, stored.Analyses, "mime")
			assert.NotContains(t, stored.Analyses, "fileName")
		})
	}
}
