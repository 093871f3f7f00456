package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/solatis/farekeeper/internal/core/api"
	"github.com/solatis/farekeeper/internal/core/config"
	"github.com/solatis/farekeeper/internal/core/logging"
	"github.com/solatis/farekeeper/internal/core/store"
	"github.com/solatis/farekeeper/internal/fare"
	"github.com/solatis/farekeeper/internal/types"
)

// stubStore is a test double for store.PolicyStore.
type stubStore struct {
	loaded  types.PolicyCollection
	loadErr error
	saveErr error
	saved   types.PolicyCollection
	block   bool
}

func (s *stubStore) Load(ctx context.Context) (types.PolicyCollection, error) {
	if s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", types.ErrCorruptStore, ctx.Err())
	}
	return s.loaded, s.loadErr
}

func (s *stubStore) Save(_ context.Context, c types.PolicyCollection) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = c
	return nil
}

func (s *stubStore) Close() error { return nil }

func referencePolicy() types.FarePolicy {
	return types.FarePolicy{
		City:                 types.CityBangalore,
		VehicleClass:         types.VehicleSedan,
		Zone:                 types.ZoneDefault,
		BaseDistance:         4,
		BaseFare:             110,
		BaseMarginalRate:     19,
		PickupSurcharge:      20,
		Breakpoints:          []types.RateBreakpoint{},
		PeakSurchargePercent: 10,
	}
}

// buildTestRouter wires a gin engine around the given store.
func buildTestRouter(t *testing.T, policies store.PolicyStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.DefaultConfig()
	cfg.Store.Timeout = 200 * time.Millisecond
	svc, err := api.NewService(policies, fare.NewEngine(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return api.NewRouter(svc)
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, w.Body.String())
	}
}

func TestPolicies_RoundTripThroughFileStore(t *testing.T) {
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "policies.json"), logging.Discard())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	r := buildTestRouter(t, fs)

	w := doRequest(r, http.MethodGet, "/api/policies", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "[]" {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}

	saved := []types.SavedPolicy{{Name: "BAN_SED_DEF", Policy: referencePolicy(), SavedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}}
	w = doRequest(r, http.MethodPost, "/api/policies", map[string]any{"policies": saved})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var ack map[string]bool
	decode(t, w, &ack)
	if !ack["success"] {
		t.Errorf("expected success true, got %s", w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/api/policies", nil)
	var got []types.SavedPolicy
	decode(t, w, &got)
	if len(got) != 1 || got[0].Name != "BAN_SED_DEF" || got[0].Policy.BaseFare != 110 {
		t.Errorf("unexpected collection: %+v", got)
	}
}

func TestPolicies_AcceptsBareArray(t *testing.T) {
	st := &stubStore{}
	r := buildTestRouter(t, st)

	w := doRequest(r, http.MethodPost, "/api/policies", []types.SavedPolicy{
		{Name: "a", Policy: referencePolicy()},
		{Name: "b", Policy: referencePolicy()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(st.saved) != 2 {
		t.Errorf("expected 2 saved policies, got %d", len(st.saved))
	}
}

func TestPolicies_RejectsMalformedBodyKeepsStore(t *testing.T) {
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "policies.json"), logging.Discard())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	seed := types.PolicyCollection{{Name: "BAN_SED_DEF", Policy: referencePolicy(), SavedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}}
	if err := fs.Save(context.Background(), seed); err != nil {
		t.Fatalf("seed Save failed: %v", err)
	}
	r := buildTestRouter(t, fs)

	bodies := []string{
		`{}`,
		`{"polices":[{"name":"x"}]}`,
		`{"policies":null}`,
		`{"policies":{"name":"x"}}`,
		`null`,
		`"policies"`,
		``,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/policies", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}

			got, err := fs.Load(context.Background())
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got) != 1 || got[0].Name != "BAN_SED_DEF" {
				t.Errorf("store changed after rejected body: %+v", got)
			}
		})
	}
}

func TestPolicies_ETag(t *testing.T) {
	st := &stubStore{loaded: types.PolicyCollection{{Name: "a", Policy: referencePolicy()}}}
	r := buildTestRouter(t, st)

	w := doRequest(r, http.MethodGet, "/api/policies", nil)
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", w.Code)
	}
}

func TestPolicies_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		store      *stubStore
		method     string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "corrupt store on list",
			store:      &stubStore{loadErr: fmt.Errorf("%w: bad json", types.ErrCorruptStore)},
			method:     http.MethodGet,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "store timeout on list",
			store:      &stubStore{block: true},
			method:     http.MethodGet,
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "write failure on save",
			store:      &stubStore{saveErr: fmt.Errorf("%w: disk full", types.ErrWriteFailed)},
			method:     http.MethodPost,
			body:       []types.SavedPolicy{{Name: "a", Policy: referencePolicy()}},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "invalid collection on save",
			store:      &stubStore{saveErr: fmt.Errorf("%w: policy name is required", types.ErrInvalidInput)},
			method:     http.MethodPost,
			body:       []types.SavedPolicy{{Policy: referencePolicy()}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body on save",
			store:      &stubStore{},
			method:     http.MethodPost,
			body:       `{"policies": 42}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildTestRouter(t, tt.store)
			w := doRequest(r, tt.method, "/api/policies", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			var resp map[string]json.RawMessage
			decode(t, w, &resp)
			if _, ok := resp["error"]; !ok {
				t.Errorf("response missing error field: %s", w.Body.String())
			}
		})
	}
}

func TestPolicies_CorruptStoreReturnsEmptyList(t *testing.T) {
	r := buildTestRouter(t, &stubStore{loadErr: fmt.Errorf("%w: truncated", types.ErrCorruptStore)})

	w := doRequest(r, http.MethodGet, "/api/policies", nil)
	var resp struct {
		Error    string              `json:"error"`
		Policies []types.SavedPolicy `json:"policies"`
	}
	decode(t, w, &resp)
	if resp.Policies == nil || len(resp.Policies) != 0 {
		t.Errorf("expected empty policies array, got %s", w.Body.String())
	}
	if resp.Error == "" {
		t.Error("expected error message")
	}
}

func TestFare(t *testing.T) {
	r := buildTestRouter(t, &stubStore{
		loaded: types.PolicyCollection{{Name: "saved", Policy: referencePolicy()}},
	})

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantFare   float64
		wantPeak   float64
	}{
		{
			name:       "inline policy",
			body:       map[string]any{"policy": referencePolicy(), "distance": 10},
			wantStatus: http.StatusOK,
			wantFare:   244,
			wantPeak:   268.4,
		},
		{
			name:       "saved policy by name",
			body:       map[string]any{"name": "saved", "distance": 10},
			wantStatus: http.StatusOK,
			wantFare:   244,
			wantPeak:   268.4,
		},
		{
			name:       "unknown name",
			body:       map[string]any{"name": "missing", "distance": 10},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing distance",
			body:       map[string]any{"policy": referencePolicy()},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing policy",
			body:       map[string]any{"distance": 10},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid policy",
			body: map[string]any{"policy": map[string]any{
				"baseDistance": 4, "baseFare": -1, "baseMarginalRate": 19,
				"pickupSurcharge": 0, "breakpoints": []any{}, "peakSurchargePercent": 0,
			}, "distance": 10},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"distance": `,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/fare", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Fare     float64 `json:"fare"`
				PeakFare float64 `json:"peakFare"`
			}
			decode(t, w, &resp)
			if resp.Fare != tt.wantFare || resp.PeakFare != tt.wantPeak {
				t.Errorf("got fare %v peak %v, want %v / %v", resp.Fare, resp.PeakFare, tt.wantFare, tt.wantPeak)
			}
		})
	}
}

func TestSeries(t *testing.T) {
	r := buildTestRouter(t, &stubStore{})

	w := doRequest(r, http.MethodPost, "/api/series", map[string]any{
		"policy":      referencePolicy(),
		"maxDistance": 10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var samples []types.FareSample
	decode(t, w, &samples)
	if len(samples) != 9 { // 2..10
		t.Fatalf("expected 9 samples, got %d", len(samples))
	}
	last := samples[len(samples)-1]
	if last.Distance != 10 || last.Fare != 244 || last.PeakFare != 268.4 {
		t.Errorf("unexpected last sample: %+v", last)
	}

	w = doRequest(r, http.MethodPost, "/api/series", map[string]any{
		"policy":      referencePolicy(),
		"maxDistance": 10,
		"step":        0,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero step, got %d", w.Code)
	}
}

func TestSeries_DefaultMax(t *testing.T) {
	r := buildTestRouter(t, &stubStore{})

	w := doRequest(r, http.MethodPost, "/api/series", map[string]any{"policy": referencePolicy()})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var samples []types.FareSample
	decode(t, w, &samples)
	if got := samples[len(samples)-1].Distance; got != 50 {
		t.Errorf("expected series to end at default max 50, got %v", got)
	}
}

func TestCompare(t *testing.T) {
	r := buildTestRouter(t, &stubStore{})

	b := referencePolicy()
	b.Breakpoints = []types.RateBreakpoint{{ThresholdDistance: 10, MarginalRatePerUnit: 17}}

	w := doRequest(r, http.MethodPost, "/api/compare", map[string]any{
		"a":         referencePolicy(),
		"b":         b,
		"distances": []float64{15},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Rows        []fare.ComparisonRow   `json:"rows"`
		Differences []fare.FieldDifference `json:"differences"`
	}
	decode(t, w, &resp)
	if len(resp.Rows) != 1 || resp.Rows[0].FareA != 339 || resp.Rows[0].FareB != 329 || resp.Rows[0].Difference != -10 {
		t.Errorf("unexpected rows: %+v", resp.Rows)
	}
	if len(resp.Differences) != 1 || resp.Differences[0].Field != "breakpoints" {
		t.Errorf("unexpected differences: %+v", resp.Differences)
	}
}

func TestCompare_DefaultDistances(t *testing.T) {
	r := buildTestRouter(t, &stubStore{})

	w := doRequest(r, http.MethodPost, "/api/compare", map[string]any{
		"a": referencePolicy(),
		"b": referencePolicy(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Rows        []fare.ComparisonRow   `json:"rows"`
		Differences []fare.FieldDifference `json:"differences"`
	}
	decode(t, w, &resp)
	if len(resp.Rows) != 50 {
		t.Errorf("expected 50 rows, got %d", len(resp.Rows))
	}
	if resp.Differences == nil || len(resp.Differences) != 0 {
		t.Errorf("expected empty differences, got %s", w.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	r := buildTestRouter(t, &stubStore{})

	w := doRequest(r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "trace-123" {
		t.Errorf("expected propagated request ID, got %q", got)
	}
}

func TestNewService_RejectsNilDependencies(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := logging.Discard()
	engine := fare.NewEngine()

	if _, err := api.NewService(nil, engine, cfg, logger); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := api.NewService(&stubStore{}, nil, cfg, logger); err == nil {
		t.Error("expected error for nil engine")
	}
	if _, err := api.NewService(&stubStore{}, engine, nil, logger); err == nil {
		t.Error("expected error for nil cfg")
	}
}
