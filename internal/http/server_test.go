package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentsplit/internal/household"
	"rentsplit/internal/log"
	"rentsplit/internal/services"
	"rentsplit/internal/storage"
)

type testServer struct {
	srv   *Server
	store *storage.MemoryStore
	dir   string
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, rpm int) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	dir := t.TempDir()
	svc, err := services.NewHouseholdService(context.Background(), services.Options{
		Store:     store,
		OutputDir: dir,
		Logger:    log.Discard(),
		Now:       fixedClock,
	})
	require.NoError(t, err)

	srv := NewServer(":0", svc, Options{Logger: log.Discard(), RequestsPerMinute: rpm, Now: fixedClock})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, store: store, dir: dir}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// setup builds rent 20000 + maintenance 1000 + utilities 2000 for two tenants.
func (ts *testServer) setup(t *testing.T) {
	t.Helper()
	rr := ts.do(t, http.MethodPut, "/basics", `{"rent_amount": 20000, "maintenance": "1000", "security_deposit": 4000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/charges/quick", `{"name": "Electricity"}`).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/charges", "name=Water&amount=500").Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/occupants", `{"name": "Alice"}`).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/occupants", `{"name": "Bob"}`).Code)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, 0)

	rr := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])

	rr = ts.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]any)["snapshot"])
}

func TestReadyReportsCorruptSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	store.SetRaw([]byte("[1, 2"))
	svc, err := services.NewHouseholdService(context.Background(), services.Options{Store: store, Logger: log.Discard()})
	require.NoError(t, err)
	srv := NewServer(":0", svc, Options{Logger: log.Discard()})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "warning: ")
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, 0)
	rr := ts.do(t, http.MethodGet, "/snapshot", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestSnapshotDefault(t *testing.T) {
	ts := newTestServer(t, 0)
	v := decode[snapshotView](t, ts.do(t, http.MethodGet, "/snapshot", ""))

	assert.Equal(t, "0.00", v.Rent)
	assert.Equal(t, "equal", v.Policy)
	assert.Equal(t, "Equal", v.PolicyLabel)
	assert.NotNil(t, v.Occupants)
	assert.Empty(t, v.Occupants)
}

func TestCalculationFlow(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.setup(t)

	rr := ts.do(t, http.MethodGet, "/calculation?month=3&year=2025", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	v := decode[calculationView](t, rr)

	assert.Equal(t, "March 2025", v.Period)
	assert.Equal(t, "23000.00", v.Total)
	assert.Equal(t, "2000.00", v.DepositPerOccupant)
	require.Len(t, v.Shares, 2)
	assert.Equal(t, shareView{Name: "Alice", Amount: "11500.00"}, v.Shares[0])
	assert.Equal(t, shareView{Name: "Bob", Amount: "11500.00"}, v.Shares[1])
	assert.Contains(t, v.Text, "RENT CALCULATION FOR MARCH 2025")

	snap := decode[snapshotView](t, ts.do(t, http.MethodGet, "/snapshot", ""))
	assert.Equal(t, "23000.00", snap.MonthlyTotal)
	require.Len(t, snap.Charges, 2)
	assert.Equal(t, "Electricity", snap.Charges[0].Name)
	assert.Equal(t, "Water", snap.Charges[1].Name)
}

func TestCalculationDefaultsToCurrentMonth(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.setup(t)

	v := decode[calculationView](t, ts.do(t, http.MethodGet, "/calculation", ""))
	assert.Equal(t, 3, v.Month)
	assert.Equal(t, 2025, v.Year)

	rr := ts.do(t, http.MethodGet, "/calculation?month=13", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCalculationRoomPolicy(t *testing.T) {
	ts := newTestServer(t, 0)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/basics", `{"rent_amount": 6000}`).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/policy", `{"split_type": "room"}`).Code)
	for _, body := range []string{
		`{"name": "A", "room_size": 100}`,
		`{"name": "B", "room_size": 200}`,
		`{"name": "C", "room_size": "300"}`,
	} {
		rr := ts.do(t, http.MethodPost, "/occupants", body)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	v := decode[calculationView](t, ts.do(t, http.MethodGet, "/calculation", ""))
	require.Len(t, v.Shares, 3)
	assert.Equal(t, shareView{Name: "A", Amount: "1000.00", RoomSize: 100, Percentage: "16.7"}, v.Shares[0])
	assert.Equal(t, shareView{Name: "C", Amount: "3000.00", RoomSize: 300, Percentage: "50.0"}, v.Shares[2])

	for _, size := range []string{`"inf"`, `"+Inf"`, `"NaN"`} {
		rr := ts.do(t, http.MethodPost, "/occupants", `{"name": "D", "room_size": `+size+`}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, size)
	}
	rr := ts.do(t, http.MethodGet, "/calculation", "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestCalculationErrors(t *testing.T) {
	ts := newTestServer(t, 0)

	rr := ts.do(t, http.MethodGet, "/calculation", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[errorBody](t, rr).Error, "rent")

	ts.setup(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/policy", `{"split_type": "custom"}`).Code)
	rr = ts.do(t, http.MethodGet, "/calculation", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decode[errorBody](t, rr).Error, "current: 0.0")
}

func TestOccupantsEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)

	rr := ts.do(t, http.MethodPost, "/occupants", `{"name": "  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = ts.do(t, http.MethodPost, "/occupants", `{"name": "A", "room_size": "big"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/occupants", `{"name": "A"}`).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/occupants", `{"name": "B"}`).Code)

	rr = ts.do(t, http.MethodPost, "/occupants", `{"name": "A"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, rr)["replaced"])

	list := decode[[]occupantView](t, ts.do(t, http.MethodGet, "/occupants", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[0].Name)
	assert.Equal(t, "A", list[1].Name)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/occupants?name=Zed", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodDelete, "/occupants", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/occupants?name=A", "").Code)

	rr = ts.do(t, http.MethodPatch, "/occupants", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, POST, DELETE", rr.Header().Get("Allow"))
}

func TestChargesEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/charges", `{"name": "Gas"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/charges", `{"name": "Gas", "amount": -4}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/charges", `{"name": "Gas", "amount": 4, "split_method": "odd"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPost, "/charges/quick", `{"name": "Parking"}`).Code)

	rr := ts.do(t, http.MethodPost, "/charges", `{"name": "Gas", "amount": 400.5, "split_method": "By Usage", "notes": "meter"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, chargeView{Name: "Gas", Amount: "400.50", SplitMethod: "By Usage", Notes: "meter"}, decode[chargeView](t, rr))

	presets := decode[[]chargeView](t, ts.do(t, http.MethodGet, "/charges/quick", ""))
	assert.Len(t, presets, 5)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/charges?name=Gas", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/charges?name=Gas", "").Code)
	assert.Empty(t, decode[[]chargeView](t, ts.do(t, http.MethodGet, "/charges", "")))
}

func TestBasicsAndPolicyValidation(t *testing.T) {
	ts := newTestServer(t, 0)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPut, "/basics", `{"rent_amount": "abc"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/basics", `{"rent_amount": `).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/basics", "").Code)

	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPut, "/policy", `{"split_type": "weighted"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ts.do(t, http.MethodPut, "/policy", `{}`).Code)

	v := decode[snapshotView](t, ts.do(t, http.MethodPost, "/basics", "maintenance=250"))
	assert.Equal(t, "250.00", v.Maintenance)
	assert.Equal(t, "0.00", v.Rent)
}

func TestSaveAndClear(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.setup(t)
	assert.Zero(t, ts.store.Saves())

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/save", "").Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/save", "").Code)
	assert.Equal(t, 1, ts.store.Saves())

	loaded, err := ts.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Occupants.Len())

	rr := ts.do(t, http.MethodPost, "/clear", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[snapshotView](t, rr).Occupants)
	loaded, err = ts.store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.Equal(household.Default()))
}

func TestReportEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.setup(t)

	v := decode[calculationView](t, ts.do(t, http.MethodGet, "/report?month=march&year=2025", ""))
	assert.Contains(t, v.Text, "RENT PAYMENT REPORT")
	assert.Contains(t, v.Text, "Generated on: 2025-03-10 12:00")

	rr := ts.do(t, http.MethodPost, "/report", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	file := decode[map[string]string](t, rr)["file"]
	assert.Equal(t, "rent_report_20250310_120000.txt", file)
	_, err := os.Stat(filepath.Join(ts.dir, file))
	assert.NoError(t, err)

	rr = ts.do(t, http.MethodPost, "/calculation?month=3&year=2025", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "rent_calculation_March_2025.txt", decode[map[string]string](t, rr)["file"])
}

func TestStatementsEndpoint(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.setup(t)

	rr := ts.do(t, http.MethodGet, "/statements", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/statements", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRateLimitOnMutations(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/save", "").Code)
	}
	rr := ts.do(t, http.MethodPost, "/save", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/snapshot", "").Code)

	metrics := ts.do(t, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "rate_limit_hits_total 1")
	assert.Contains(t, metrics, "http_requests_total 4")
}

func TestUnknownPath(t *testing.T) {
	ts := newTestServer(t, 0)
	rr := ts.do(t, http.MethodGet, "/invoices", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "no such endpoint", decode[errorBody](t, rr).Error)
}

func TestRequestIDPropagation(t *testing.T) {
	ts := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/snapshot", nil)
	req.Header.Set("X-Request-ID", "edge-0001")
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, "edge-0001", rr.Header().Get("X-Request-ID"))

	// health checks carry an id as well
	rr = ts.do(t, http.MethodGet, "/healthz", "")
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
}

func TestSuspiciousRequestsAreCounted(t *testing.T) {
	ts := newTestServer(t, 0)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/wp-login.php", "").Code)
	metrics := ts.do(t, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, metrics, "suspicious_requests_total 1")
}

func TestInternalErrorCarriesRequestID(t *testing.T) {
	ts := newTestServer(t, 0)
	h := log.RequestIDMiddleware(func(*http.Request) string { return "req_77" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ts.srv.fail(w, r, log.OpSave, errors.New("disk full"))
		}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/save", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error, request req_77", decode[errorBody](t, rr).Error)
	assert.NotContains(t, rr.Body.String(), "disk full")
}
