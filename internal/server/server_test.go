package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loopai/internal/cache"
	"loopai/internal/config"
	"loopai/internal/model"
	"loopai/internal/runtime"
	"loopai/internal/sampling"
	"loopai/internal/store"
	"loopai/internal/validate"
)

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, task *model.Task, version int, constraints string) (*model.ProgramArtifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ProgramArtifact{TaskID: task.ID, Version: version, Source: "x", Language: "python3"}, nil
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, artifact *model.ProgramArtifact, input model.Document, correlationID string) *model.ExecutionRecord {
	return &model.ExecutionRecord{
		TaskID:        artifact.TaskID,
		Version:       artifact.Version,
		Input:         input,
		Output:        model.Document{"total": 42.0},
		Outcome:       model.OutcomeSuccess,
		LatencyMS:     5,
		CorrelationID: correlationID,
		ExecutedAt:    time.Now().UTC(),
	}
}

func testServer(t *testing.T, genErr error, records store.Store) *Server {
	t.Helper()
	sampler, err := sampling.NewController(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := runtime.New(runtime.Options{
		Cache: cache.New(config.CacheConfig{
			Enabled:         true,
			TaskTTLMinutes:  60,
			ArtifactTTLMins: 30,
			StatsTTLMinutes: 15,
			SweepSeconds:    60,
		}, nil),
		Generator: &fakeGenerator{err: genErr},
		Executor:  fakeExecutor{},
		Sampler:   sampler,
		Validator: validate.NewEngine(config.ValidateConfig{NumericTolerance: 1e-4, BatchWorkers: 4}, nil),
		Store:     records,
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(rt, records, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

const executeBody = `{
	"task": {"id": "t1", "name": "extract", "description": "d", "target_runtime": "python3"},
	"version": 1,
	"input": {"n": 1},
	"expected": {"total": 42},
	"correlation_id": "corr-1"
}`

func TestHealth(t *testing.T) {
	s := testServer(t, nil, nil)
	w := doJSON(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("body: %s", w.Body.String())
	}
}

func TestExecute_OK(t *testing.T) {
	s := testServer(t, nil, nil)
	w := doJSON(t, s, http.MethodPost, "/v1/execute", executeBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", w.Code, w.Body.String())
	}

	var result struct {
		Record     *model.ExecutionRecord  `json:"record"`
		Validation *model.ValidationResult `json:"validation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Record.Outcome != model.OutcomeSuccess || result.Record.CorrelationID != "corr-1" {
		t.Errorf("record: %+v", result.Record)
	}
	if result.Validation == nil || !result.Validation.Valid {
		t.Errorf("validation: %+v", result.Validation)
	}
}

func TestExecute_BadRequest(t *testing.T) {
	s := testServer(t, nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing task", `{"version": 1, "input": {"n": 1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/v1/execute", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: %d", w.Code)
			}
		})
	}
}

func TestExecute_GenerationFailureStatuses(t *testing.T) {
	cases := []struct {
		kind   model.GenerationFailureKind
		status int
		code   string
	}{
		{model.GenerationTimeout, http.StatusGatewayTimeout, "generation_timeout"},
		{model.GenerationTransport, http.StatusBadGateway, "generation_transport"},
		{model.GenerationTerminal, http.StatusUnprocessableEntity, "generation_terminal"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			failure := &model.GenerationFailure{Kind: tc.kind, TaskID: "t1", Version: 1, Message: "m"}
			s := testServer(t, failure, nil)

			w := doJSON(t, s, http.MethodPost, "/v1/execute", executeBody)
			if w.Code != tc.status {
				t.Errorf("status: got %d want %d", w.Code, tc.status)
			}
			if !strings.Contains(w.Body.String(), tc.code) {
				t.Errorf("body missing code %q: %s", tc.code, w.Body.String())
			}
		})
	}
}

func TestValidateBatch_Endpoint(t *testing.T) {
	s := testServer(t, nil, nil)
	body := `{
		"task_id": "t1",
		"items": [
			{"correlation_id": "a", "actual": {"x": 1}, "expected": {"x": 1}},
			{"correlation_id": "b", "actual": {"x": 1}, "expected": {"x": 2}}
		]
	}`

	w := doJSON(t, s, http.MethodPost, "/v1/validate", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", w.Code, w.Body.String())
	}

	var report model.BatchValidationReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.TotalItems != 2 || report.ValidCount != 1 || report.InvalidCount != 1 {
		t.Errorf("report: %+v", report)
	}
	if report.Results[0].CorrelationID != "a" || report.Results[1].CorrelationID != "b" {
		t.Error("results must preserve request order")
	}
}

func TestTaskStats(t *testing.T) {
	s := testServer(t, nil, nil)

	w := doJSON(t, s, http.MethodGet, "/v1/tasks/t1/stats", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status before any execution: %d", w.Code)
	}

	doJSON(t, s, http.MethodPost, "/v1/execute", executeBody)

	w = doJSON(t, s, http.MethodGet, "/v1/tasks/t1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", w.Code, w.Body.String())
	}
	var snap cache.StatsSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Executions != 1 {
		t.Errorf("snapshot: %+v", snap)
	}
}

func TestTaskSummary(t *testing.T) {
	records := store.NewMemStore()
	s := testServer(t, nil, records)

	doJSON(t, s, http.MethodPost, "/v1/execute", executeBody)

	w := doJSON(t, s, http.MethodGet, "/v1/tasks/t1/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", w.Code, w.Body.String())
	}
	var sum store.ExecutionSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Count != 1 {
		t.Errorf("summary: %+v", sum)
	}
}

func TestTaskSummary_NoStore(t *testing.T) {
	s := testServer(t, nil, nil)
	w := doJSON(t, s, http.MethodGet, "/v1/tasks/t1/summary", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status: %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, nil, nil)
	w := doJSON(t, s, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loopai_") {
		t.Error("expected loopai metrics in exposition")
	}
}
