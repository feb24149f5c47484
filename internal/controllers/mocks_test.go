package controllers

import (
	"context"
	"net/http"
	"sync"
	"tgmed/internal/models"
	"tgmed/internal/providers"
	"tgmed/internal/services"
	"tgmed/internal/webhook"
	"time"
)

// --- local mocks (scoped to controller tests) ---

type mockLogger struct{}

func (m *mockLogger) Errorf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Warnf(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Debugf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Infof(_ providers.TypeEnum, _ string, _ ...interface{})  {}
func (m *mockLogger) Fatalf(_ providers.TypeEnum, _ string, _ ...interface{}) {}
func (m *mockLogger) Close()                                                  {}

type call struct {
	method string
	tgid   string
	args   []any
}

// mockReconciler records calls and answers from rec. err, when set, is
// returned by every method.
type mockReconciler struct {
	mu    sync.Mutex
	calls []call
	rec   *models.UserRecord
	text  string
	err   error
}

func newMockReconciler() *mockReconciler {
	return &mockReconciler{rec: models.NewUserRecord("42", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (m *mockReconciler) record(method, tgid string, args ...any) (*models.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call{method: method, tgid: tgid, args: args})
	if m.err != nil {
		return nil, m.err
	}
	return m.rec, nil
}

func (m *mockReconciler) last() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockReconciler) GetOrCreate(_ context.Context, tgid string) (*models.UserRecord, error) {
	return m.record("GetOrCreate", tgid)
}
func (m *mockReconciler) MergeProfile(_ context.Context, tgid string, partial map[string]any) (*models.UserRecord, error) {
	return m.record("MergeProfile", tgid, partial)
}
func (m *mockReconciler) ReplaceAnalyses(_ context.Context, tgid string, analyses map[string]any) (*models.UserRecord, error) {
	if analyses == nil {
		return nil, services.NewValidationError("analyses", "is required")
	}
	return m.record("ReplaceAnalyses", tgid, analyses)
}
func (m *mockReconciler) ReplaceRecommendations(_ context.Context, tgid string, recommendations map[string]any) (*models.UserRecord, error) {
	return m.record("ReplaceRecommendations", tgid, recommendations)
}
func (m *mockReconciler) AppendReport(_ context.Context, tgid, text, fileName, createdAt string) (*models.UserRecord, error) {
	return m.record("AppendReport", tgid, text, fileName, createdAt)
}
func (m *mockReconciler) PatchLastReportText(_ context.Context, tgid string, updated map[string]any) (*models.UserRecord, error) {
	return m.record("PatchLastReportText", tgid, updated)
}
func (m *mockReconciler) NotifyUpload(_ context.Context, tgid string, upload services.UploadInfo) (*models.UserRecord, error) {
	return m.record("NotifyUpload", tgid, upload)
}
func (m *mockReconciler) History(_ context.Context, tgid string) ([]any, error) {
	if _, err := m.record("History", tgid); err != nil {
		return nil, err
	}
	history, _ := models.NormalizeHistory(m.rec.AllHistory)
	return history, nil
}
func (m *mockReconciler) GetRecommendation(_ context.Context, tgid, analysisID string) (string, error) {
	if _, err := m.record("GetRecommendation", tgid, analysisID); err != nil {
		return "", err
	}
	return m.text, nil
}
func (m *mockReconciler) PutRecommendation(_ context.Context, tgid, analysisID, text string) error {
	_, err := m.record("PutRecommendation", tgid, analysisID, text)
	return err
}

type mockWebhook struct {
	delivery webhook.Delivery
	uploads  []webhook.FileUpload
	events   []string
	payloads []map[string]any
}

func (m *mockWebhook) ForwardFile(_ context.Context, upload webhook.FileUpload) webhook.Delivery {
	m.uploads = append(m.uploads, upload)
	return m.delivery
}

func (m *mockWebhook) Notify(_ context.Context, event string, payload map[string]any) webhook.Delivery {
	m.events = append(m.events, event)
	m.payloads = append(m.payloads, payload)
	return m.delivery
}

type mockExtractor struct {
	text  string
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte, _ string) (string, error) {
	m.calls++
	return m.text, m.err
}

// --- helpers ---

func authed(r *http.Request, tgid string) *http.Request {
	return r.WithContext(providers.WithTgID(r.Context(), tgid))
}
