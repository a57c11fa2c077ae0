package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/nacplan/pkg/cache"
	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/observability"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (http.Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
	t.Cleanup(func() { runner.Close() })
	s := New(runner, st, nil, WithClock(func() time.Time { return fixedNow }))
	return s.Handler(), st
}

func devices(lvl string, n int) []device.Load {
	out := make([]device.Load, n)
	for i := range out {
		out[i] = device.Load{
			ID:        fmt.Sprintf("%s-%03d", lvl, i),
			Level:     lvl,
			X:         float64(i),
			CurrentA:  0.1,
			UnitLoads: 1,
			HasStrobe: true,
		}
	}
	return out
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func createPlan(t *testing.T, h http.Handler, req PlanRequest) PlanResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/plans", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /v1/plans = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp PlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if got := rec.Header().Get("Location"); got != "/v1/plans/"+resp.Plan.ID {
		t.Errorf("Location = %q, want /v1/plans/%s", got, resp.Plan.ID)
	}
	return resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPlanLifecycle(t *testing.T) {
	h, st := newTestServer(t)

	resp := createPlan(t, h, PlanRequest{Name: "tower-a", Devices: devices("Level 1", 40)})
	p := resp.Plan
	if p.ID == "" {
		t.Fatal("created plan has no ID")
	}
	if p.Name != "tower-a" {
		t.Errorf("Name = %q, want tower-a", p.Name)
	}
	if !p.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, fixedNow)
	}
	if len(p.Branches) != 2 {
		t.Errorf("branches = %d, want 2", len(p.Branches))
	}
	if p.Summary.Errors != 0 {
		t.Errorf("errors = %d, want 0", p.Summary.Errors)
	}

	if _, err := st.Get(context.Background(), p.ID); err != nil {
		t.Fatalf("plan not stored: %v", err)
	}

	rec := do(t, h, http.MethodGet, "/v1/plans/"+p.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET plan = %d, body %s", rec.Code, rec.Body.String())
	}
	var got plan.Plan
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != p.ID || len(got.Branches) != len(p.Branches) {
		t.Errorf("fetched plan %s with %d branches, want %s with %d", got.ID, len(got.Branches), p.ID, len(p.Branches))
	}

	rec = do(t, h, http.MethodGet, "/v1/plans", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var list ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Plans) != 1 || list.Plans[0].ID != p.ID {
		t.Fatalf("list = %+v, want one entry for %s", list.Plans, p.ID)
	}
	if list.Plans[0].Branches != 2 {
		t.Errorf("summary branches = %d, want 2", list.Plans[0].Branches)
	}

	rec = do(t, h, http.MethodDelete, "/v1/plans/"+p.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/v1/plans/"+p.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after delete = %d, want 404", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "PLAN_NOT_FOUND" {
		t.Errorf("code = %q, want PLAN_NOT_FOUND", e.Code)
	}
}

func TestListEmpty(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/plans", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"plans": []`) {
		t.Errorf("body = %s, want empty plans array", rec.Body.String())
	}
}

func TestListLimit(t *testing.T) {
	h, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		createPlan(t, h, PlanRequest{Devices: devices(fmt.Sprintf("Level %d", i+1), 5)})
	}
	rec := do(t, h, http.MethodGet, "/v1/plans?limit=2", nil)
	var list ListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Plans) != 2 {
		t.Errorf("plans = %d, want 2", len(list.Plans))
	}
}

func TestPolicyOverride(t *testing.T) {
	h, _ := newTestServer(t)
	resp := createPlan(t, h, PlanRequest{
		Devices: devices("Level 1", 40),
		Policy:  json.RawMessage(`{"current_limit_a": 6.0}`),
	})
	if resp.Plan.Policy.CurrentLimitA != 6.0 {
		t.Errorf("CurrentLimitA = %v, want 6.0", resp.Plan.Policy.CurrentLimitA)
	}
	// Omitted fields keep the server defaults.
	if resp.Plan.Policy.ULLimit != 139 {
		t.Errorf("ULLimit = %v, want 139", resp.Plan.Policy.ULLimit)
	}
	if len(resp.Plan.Branches) != 1 {
		t.Errorf("branches = %d, want 1 with the raised limit", len(resp.Plan.Branches))
	}
}

func TestRequestErrors(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		status   int
		wantCode string
	}{
		{"malformed json", http.MethodPost, "/v1/plans", `{"devices": [`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", http.MethodPost, "/v1/plans", `{"devices": [], "colour": "red"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad policy type", http.MethodPost, "/v1/plans", `{"devices": [], "policy": {"current_limit_a": "high"}}`, http.StatusBadRequest, "INVALID_POLICY"},
		{"negative limit", http.MethodPost, "/v1/plans", `{"devices": [], "policy": {"current_limit_a": -1}}`, http.StatusBadRequest, "INVALID_POLICY"},
		{"negative detection", http.MethodPost, "/v1/plans", `{"devices": [], "detection_devices": -3}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad limit", http.MethodGet, "/v1/plans?limit=many", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad id", http.MethodGet, "/v1/plans/-dash", nil, http.StatusBadRequest, "INVALID_PLAN_ID"},
		{"missing plan", http.MethodGet, "/v1/plans/nope", nil, http.StatusNotFound, "PLAN_NOT_FOUND"},
		{"delete missing", http.MethodDelete, "/v1/plans/nope", nil, http.StatusNotFound, "PLAN_NOT_FOUND"},
		{"bad format", http.MethodGet, "/v1/plans/nope/artifacts/gif", nil, http.StatusBadRequest, "INVALID_FORMAT"},
		{"no route", http.MethodGet, "/v2/plans", nil, http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodPut, "/v1/plans", nil, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if e := decodeError(t, rec); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestEmptyDevicesStillPlans(t *testing.T) {
	h, _ := newTestServer(t)
	resp := createPlan(t, h, PlanRequest{Devices: []device.Load{}})
	if len(resp.Plan.Branches) != 0 {
		t.Errorf("branches = %d, want 0", len(resp.Plan.Branches))
	}
	found := false
	for _, d := range resp.Plan.Diagnostics {
		if d.Code == "NO_DEVICES" {
			found = true
		}
	}
	if !found {
		t.Error("missing NO_DEVICES diagnostic")
	}
}

func TestRenderArtifacts(t *testing.T) {
	h, _ := newTestServer(t)
	resp := createPlan(t, h, PlanRequest{Devices: devices("Level 1", 40)})

	rec := do(t, h, http.MethodGet, "/v1/plans/"+resp.Plan.ID+"/artifacts/dot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dot = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "digraph nac") {
		t.Errorf("dot output missing graph header: %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/plans/"+resp.Plan.ID+"/artifacts/json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("json = %d", rec.Code)
	}
	var p plan.Plan
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode json artifact: %v", err)
	}
	if p.ID != resp.Plan.ID {
		t.Errorf("artifact plan ID = %q, want %q", p.ID, resp.Plan.ID)
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	mu        sync.Mutex
	routes    []string
	statuses  []int
	requested int
}

func (h *recordingHTTPHooks) OnRequest(context.Context, string, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requested++
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _ string, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, route)
	h.statuses = append(h.statuses, status)
}

func TestHTTPHooksSeeRoutePattern(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	h, _ := newTestServer(t)
	do(t, h, http.MethodGet, "/v1/plans/abc", nil)
	do(t, h, http.MethodGet, "/healthz", nil)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if hooks.requested != 2 {
		t.Errorf("requests = %d, want 2", hooks.requested)
	}
	if len(hooks.routes) != 2 {
		t.Fatalf("routes = %v, want 2 entries", hooks.routes)
	}
	if !strings.HasPrefix(hooks.routes[0], "/v1/plans/{id}") {
		t.Errorf("route = %q, want the /v1/plans/{id} pattern", hooks.routes[0])
	}
	if hooks.routes[1] != "/healthz" {
		t.Errorf("route = %q, want /healthz", hooks.routes[1])
	}
	if hooks.statuses[0] != http.StatusNotFound || hooks.statuses[1] != http.StatusOK {
		t.Errorf("statuses = %v, want [404 200]", hooks.statuses)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.Canceled, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
