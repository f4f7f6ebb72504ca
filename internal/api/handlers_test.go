package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resumecoach/internal/config"
	"resumecoach/internal/extract/extracttest"
	"resumecoach/internal/models"
	"resumecoach/internal/service/ai"
	"resumecoach/internal/service/coach"
	"resumecoach/internal/service/history"
	"resumecoach/internal/storage"
	"resumecoach/internal/worker"
)

type mockAnalyzer struct {
	calls int
	err   error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, reviewPrompt string) (*ai.Analysis, error) {
	m.calls++
	if m.err != nil {
		return nil, &ai.ServiceError{Provider: "groq", Model: "mock", Err: m.err}
	}
	return &ai.Analysis{
		Content: "## Key Strengths\nSolid.\n\nTemplate: Modern Creative",
		Model:   "mock",
	}, nil
}

func (m *mockAnalyzer) Model() string { return "mock" }

type busyRunner struct{}

func (busyRunner) Enqueue(ctx context.Context, batchID string, docs []models.Document) (*worker.Ticket, error) {
	return nil, worker.ErrDispatcherBusy
}

func (busyRunner) Pending() int { return 0 }

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

type upload struct {
	name string
	data []byte
}

func TestAnalyzeEndToEndFlow(t *testing.T) {
	router, analyzer := newTestServer(t, Limits{})

	rec := postFiles(t, router, "/api/resumes/analyze",
		upload{"jane.pdf", extracttest.PDF("Jane Doe", "Education: BSc\nExperience: Acme\nSkills: Go")},
		upload{"cats.pdf", extracttest.PDF("I like cats")},
		upload{"notes.txt", []byte("Education and Experience in plain text")},
	)
	assertStatus(t, rec, http.StatusOK)
	var body struct {
		BatchID string           `json:"batch_id"`
		Reports []*models.Report `json:"reports"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body.BatchID == "" || len(body.Reports) != 3 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	jane := body.Reports[0]
	if jane.State != models.StateTemplateFound || jane.TemplateName != models.TemplateModernCreative {
		t.Fatalf("jane not analysed: %+v", jane)
	}
	if jane.Template == nil || jane.Template.ImageURL == "" {
		t.Fatalf("template info missing: %+v", jane)
	}
	if body.Reports[1].Failure != models.FailureClassification {
		t.Fatalf("cats.pdf should be rejected by classification: %+v", body.Reports[1])
	}
	if body.Reports[2].Failure != models.FailureExtraction || body.Reports[2].State != models.StateRejected {
		t.Fatalf("notes.txt should be rejected as non-PDF: %+v", body.Reports[2])
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected one remote call, got %d", analyzer.calls)
	}

	getResp := doRequest(t, router, http.MethodGet, "/api/reports/"+jane.ID)
	assertStatus(t, getResp, http.StatusOK)
	var stored models.Report
	decodeJSON(t, getResp.Body.Bytes(), &stored)
	if stored.Feedback != jane.Feedback || stored.BatchID != body.BatchID {
		t.Fatalf("stored report mismatch: %+v", stored)
	}

	batchResp := doRequest(t, router, http.MethodGet, "/api/batches/"+body.BatchID)
	assertStatus(t, batchResp, http.StatusOK)
	var batch struct {
		Reports []*models.Report `json:"reports"`
	}
	decodeJSON(t, batchResp.Body.Bytes(), &batch)
	if len(batch.Reports) != 3 || batch.Reports[2].FileName != "notes.txt" {
		t.Fatalf("batch listing mismatch: %s", batchResp.Body.String())
	}

	listResp := doRequest(t, router, http.MethodGet, "/api/reports?limit=2")
	assertStatus(t, listResp, http.StatusOK)
	var list struct {
		Reports []*models.Report `json:"reports"`
	}
	decodeJSON(t, listResp.Body.Bytes(), &list)
	if len(list.Reports) != 2 || list.Reports[0].FileName != "notes.txt" {
		t.Fatalf("recent listing mismatch: %s", listResp.Body.String())
	}
}

func TestAnalyzeServiceErrorIsReported(t *testing.T) {
	router, analyzer := newTestServer(t, Limits{})
	analyzer.err = errors.New("rate limited upstream")

	rec := postFiles(t, router, "/api/resumes/analyze",
		upload{"a.pdf", extracttest.PDF("Education Skills")},
		upload{"b.pdf", extracttest.PDF("Projects Profile")},
	)
	assertStatus(t, rec, http.StatusOK)
	var body struct {
		Reports []*models.Report `json:"reports"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if len(body.Reports) != 2 {
		t.Fatalf("expected both documents processed, got %d", len(body.Reports))
	}
	for _, r := range body.Reports {
		if r.State != models.StateAnalysisFailed || r.Failure != models.FailureService {
			t.Fatalf("expected service error, got %+v", r)
		}
		if !strings.Contains(r.Error, "rate limited upstream") || r.Template != nil {
			t.Fatalf("error not surfaced: %+v", r)
		}
	}
}

func TestAnalyzeStreamEvents(t *testing.T) {
	router, _ := newTestServer(t, Limits{})

	rec := postFiles(t, router, "/api/resumes/analyze/stream",
		upload{"a.pdf", extracttest.PDF("Education Skills")},
		upload{"b.pdf", extracttest.PDF("nothing here")},
	)
	assertStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	events := parseSSE(t, rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("expected 4 SSE events, got %d: %s", len(events), rec.Body.String())
	}
	wantNames := []string{"accepted", "report", "report", "done"}
	for i, want := range wantNames {
		if events[i].Name != want {
			t.Fatalf("event %d: want %s got %s", i, want, events[i].Name)
		}
	}
	var first models.Report
	decodeJSON(t, []byte(events[1].Data), &first)
	if first.FileName != "a.pdf" || first.State != models.StateTemplateFound {
		t.Fatalf("first report mismatch: %+v", first)
	}
	var done struct {
		Count int `json:"count"`
	}
	decodeJSON(t, []byte(events[3].Data), &done)
	if done.Count != 2 {
		t.Fatalf("done count mismatch: %d", done.Count)
	}
}

func TestUploadValidation(t *testing.T) {
	router, _ := newTestServer(t, Limits{MaxUploadBytes: 64, MaxFiles: 2})

	rec := postFiles(t, router, "/api/resumes/analyze")
	assertStatus(t, rec, http.StatusBadRequest)

	rec = postFiles(t, router, "/api/resumes/analyze",
		upload{"a.pdf", []byte("%PDF-1")},
		upload{"b.pdf", []byte("%PDF-1")},
		upload{"c.pdf", []byte("%PDF-1")},
	)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = postFiles(t, router, "/api/resumes/analyze", upload{"big.pdf", bytes.Repeat([]byte("x"), 65)})
	assertStatus(t, rec, http.StatusRequestEntityTooLarge)

	req := httptest.NewRequest(http.MethodPost, "/api/resumes/analyze", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestBusyQueueReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(busyRunner{}, nil, Limits{}).RegisterRoutes(router)

	for _, path := range []string{"/api/resumes/analyze", "/api/resumes/analyze/stream"} {
		rec := postFiles(t, router, path, upload{"a.pdf", extracttest.PDF("Education Skills")})
		assertStatus(t, rec, http.StatusTooManyRequests)
		var body struct {
			Error string `json:"error"`
		}
		decodeJSON(t, rec.Body.Bytes(), &body)
		if body.Error != "server is busy, please retry" {
			t.Fatalf("unexpected error body: %s", rec.Body.String())
		}
	}
}

func TestTemplatesAndLookups(t *testing.T) {
	router, _ := newTestServer(t, Limits{})

	rec := doRequest(t, router, http.MethodGet, "/api/templates")
	assertStatus(t, rec, http.StatusOK)
	var body struct {
		Templates []map[string]string `json:"templates"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if len(body.Templates) != 3 || body.Templates[0]["name"] != string(models.TemplateMinimalistClassic) {
		t.Fatalf("unexpected catalogue: %s", rec.Body.String())
	}
	for _, entry := range body.Templates {
		if len(entry) != 3 || entry["image_url"] == "" || entry["link_url"] == "" {
			t.Fatalf("entry should carry name, image_url and link_url: %v", entry)
		}
	}

	assertStatus(t, doRequest(t, router, http.MethodGet, "/api/reports/unknown"), http.StatusNotFound)
	assertStatus(t, doRequest(t, router, http.MethodGet, "/api/batches/unknown"), http.StatusNotFound)
	assertStatus(t, doRequest(t, router, http.MethodGet, "/api/reports?limit=abc"), http.StatusBadRequest)

	empty := doRequest(t, router, http.MethodGet, "/api/reports")
	assertStatus(t, empty, http.StatusOK)
	if !strings.Contains(empty.Body.String(), `"reports":[]`) {
		t.Fatalf("expected empty list, got %s", empty.Body.String())
	}
	assertStatus(t, doRequest(t, router, http.MethodGet, "/healthz"), http.StatusOK)
}

func TestHealthChecksCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		opts   []Option
		status int
		cache  string
	}{
		{"no cache", nil, http.StatusOK, ""},
		{"cache up", []Option{WithCacheCheck(stubPinger{})}, http.StatusOK, "ok"},
		{"cache down", []Option{WithCacheCheck(stubPinger{err: errors.New("dial tcp: connection refused")})}, http.StatusServiceUnavailable, "dial tcp: connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			NewHandler(busyRunner{}, nil, Limits{}, tc.opts...).RegisterRoutes(router)
			rec := doRequest(t, router, http.MethodGet, "/healthz")
			assertStatus(t, rec, tc.status)
			var body map[string]any
			decodeJSON(t, rec.Body.Bytes(), &body)
			got, _ := body["cache"].(string)
			if got != tc.cache {
				t.Fatalf("cache field: want %q got %q", tc.cache, got)
			}
		})
	}
}

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(t *testing.T, payload string) []sseEvent {
	t.Helper()
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	chunks := strings.Split(payload, "\n\n")
	var events []sseEvent
	for _, chunk := range chunks {
		lines := strings.Split(strings.TrimSpace(chunk), "\n")
		if len(lines) == 0 {
			continue
		}
		var evt sseEvent
		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "event:"):
				evt.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if evt.Data == "" {
					evt.Data = data
				} else {
					evt.Data += "\n" + data
				}
			}
		}
		events = append(events, evt)
	}
	return events
}

func newTestServer(t *testing.T, limits Limits) (*gin.Engine, *mockAnalyzer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{
		"sqlite3": {DSN: filepath.Join(t.TempDir(), "api.db")},
	}}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	reports := history.NewService(db)
	analyzer := &mockAnalyzer{}
	pipeline := coach.NewPipeline(analyzer, coach.WithRecorder(reports))
	dispatcher := worker.NewDispatcher(4, pipeline)
	t.Cleanup(func() {
		dispatcher.Stop()
		db.Close()
	})

	router := gin.New()
	NewHandler(dispatcher, reports, limits).RegisterRoutes(router)
	return router, analyzer
}

func postFiles(t *testing.T, router *gin.Engine, path string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doRequest(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode json: %v (%s)", err, data)
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("unexpected status %d, body: %s", rec.Code, rec.Body.String())
	}
}

