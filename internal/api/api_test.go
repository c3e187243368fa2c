package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/errors"
	"github.com/vladimiradmaev/wellnest/internal/owner"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/services"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

type fakeReadings struct {
	readings []domain.RawReading
}

func (f fakeReadings) History(ctx context.Context) ([]domain.RawReading, error) {
	return f.readings, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return serve(t, testServices())
}

func serve(t *testing.T, svc Services) *httptest.Server {
	t.Helper()
	app := NewApplication(config.HTTPConfig{Addr: ":0"}, svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(app.Mount())
	t.Cleanup(srv.Close)
	return srv
}

func testServices() Services {
	s := store.NewMemory()
	logs := repository.NewLogRepository(s)
	tracking := repository.NewTrackingRepository(s)
	owners := owner.ContextResolver{}

	cgm := services.NewCGMService(logs, tracking, owners)
	return Services{
		CGM:       cgm,
		Insulin:   services.NewInsulinService(logs, tracking, owners),
		Nutrition: services.NewNutritionService(logs, owners, nil),
		Activity:  services.NewActivityService(logs, owners),
		Import:    services.NewImportService(logs, owners),
		LibreLink: services.NewLibreLinkService(fakeReadings{readings: []domain.RawReading{
			{Date: "2024-03-10 09:00:00", Value: 140},
		}}, cgm),
		Features: services.NewFeatureService(logs, tracking, owners),
	}
}

func do(t *testing.T, method, url, ownerID string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerID != "" {
		req.Header.Set(ownerHeader, ownerID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, b)
	}
}

type recordBody struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	OwnerID   string          `json:"owner_id"`
	LocalTime string          `json:"local_time"`
	Payload   json.RawMessage `json:"payload"`
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/health", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if id := resp.Header.Get(requestIDHeader); id == "" {
		t.Fatal("missing request id header")
	}

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `wellnest_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Fatalf("metrics missing health request:\n%s", body)
	}
}

func TestLogLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/logs/cgm", "u1", map[string]any{
		"timestamp": "2024-03-10 08:00:00",
		"value":     112,
	})
	expectStatus(t, resp, http.StatusCreated)
	var created recordBody
	decode(t, resp, &created)
	if created.ID != "cgm_u1_20240310_023000" || created.Kind != "cgm" || created.OwnerID != "u1" {
		t.Fatalf("created = %+v", created)
	}
	if created.LocalTime != "10 Mar 2024, 08:00:00 AM" {
		t.Fatalf("local time = %q", created.LocalTime)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/logs/glucose?from=2024-03-10%2000:00:00&to=2024-03-10%2023:59:59", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	var list struct {
		Count   int          `json:"count"`
		Records []recordBody `json:"records"`
	}
	decode(t, resp, &list)
	if list.Count != 1 || list.Records[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm/"+created.ID, "u1", nil), http.StatusOK)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm/"+created.ID, "u2", nil), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm/latest", "u1", nil), http.StatusOK)

	expectStatus(t, do(t, http.MethodDelete, srv.URL+"/v1/logs/cgm/"+created.ID, "u2", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodDelete, srv.URL+"/v1/logs/cgm/"+created.ID, "u1", nil), http.StatusNoContent)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm/latest", "u1", nil), http.StatusNotFound)
}

func TestLogErrors(t *testing.T) {
	srv := newTestServer(t)

	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm", "", nil), http.StatusUnauthorized)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/weight", "u1", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/cgm?from=yesterday", "u1", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/logs/cgm", "u1", map[string]any{"value": -3}), http.StatusBadRequest)

	resp := do(t, http.MethodPost, srv.URL+"/v1/logs/insulin/batch-delete", "u1", map[string]any{
		"ids": []string{"insulin_u2_20240310_023000"},
	})
	expectStatus(t, resp, http.StatusBadRequest)
	var body errorResponse
	decode(t, resp, &body)
	if !strings.Contains(body.Message, "insulin_u2_20240310_023000") {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestNutritionUpsertAndDoses(t *testing.T) {
	srv := newTestServer(t)
	meal := map[string]any{"timestamp": "2024-03-10 13:00:00", "carb_input": 45, "food_intake": "rice"}

	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/nutrition", "u1", meal), http.StatusCreated)
	meal["carb_input"] = 50
	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/nutrition", "u1", meal), http.StatusOK)

	resp := do(t, http.MethodGet, srv.URL+"/v1/nutrition?from=2024-03-10%2000:00&to=2024-03-10%2023:59", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	var meals struct {
		Count int                  `json:"count"`
		Meals []services.CarbEntry `json:"meals"`
	}
	decode(t, resp, &meals)
	if meals.Count != 1 || meals.Meals[0].CarbInput != 50 || meals.Meals[0].FoodIntake != "rice" {
		t.Fatalf("meals = %+v", meals)
	}

	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/logs/insulin", "u1", map[string]any{
		"timestamp": "2024-03-10 13:05:00",
		"bolus":     4.5,
	}), http.StatusCreated)

	resp = do(t, http.MethodGet, srv.URL+"/v1/insulin/latest-bolus", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	var rec recordBody
	decode(t, resp, &rec)
	if rec.ID != "insulin_u1_20240310_073500" {
		t.Fatalf("latest bolus = %+v", rec)
	}

	resp = do(t, http.MethodGet, srv.URL+"/v1/insulin/doses?from=2024-03-10%2000:00&to=2024-03-10%2023:59", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	var doses struct {
		Count int `json:"count"`
	}
	decode(t, resp, &doses)
	if doses.Count != 1 {
		t.Fatalf("doses = %d, want 1 (meal-only record excluded)", doses.Count)
	}
}

func TestReadingsUploadAndLibreLinkSync(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/cgm/readings", "u1", []map[string]any{
		{"date": "2024-03-10 08:00:00", "value": 120},
		{"date": "garbage", "value": 130},
	})
	expectStatus(t, resp, http.StatusOK)
	var res domain.UploadResult
	decode(t, resp, &res)
	if res.Saved != 1 || res.Invalid != 1 {
		t.Fatalf("upload = %+v", res)
	}

	resp = do(t, http.MethodPost, srv.URL+"/v1/sync/librelink", "u1", nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &res)
	if res.Saved != 1 {
		t.Fatalf("librelink sync = %+v", res)
	}

	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/sync/fitbit", "u1", nil), http.StatusBadGateway)
}

func TestImportUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "export.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write([]byte("Timestamp,Glucose_mg/dl,Bolus_Insulin_U\n2024-03-10 08:00:00,110,2\nnot a time,100,0\n"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(ownerHeader, "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	var summary domain.ImportSummary
	decode(t, resp, &summary)
	if summary.Glucose != 1 || summary.Insulin != 1 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestFeatureCalculators(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/v1/features/isf", "u1", map[string]any{"total_daily_dose": 40})
	expectStatus(t, resp, http.StatusOK)
	var isf struct {
		ISF  float64 `json:"isf"`
		Unit string  `json:"unit"`
	}
	decode(t, resp, &isf)
	if isf.ISF != 45 || isf.Unit != "mg/dL per U" {
		t.Fatalf("isf = %+v", isf)
	}

	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/features/isf", "u1", map[string]any{"total_daily_dose": 0}), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/features/iss", "u1", map[string]any{"glucose": []float64{0}}), http.StatusBadRequest)

	resp = do(t, http.MethodPost, srv.URL+"/v1/features/iss", "u1", map[string]any{
		"glucose":       []float64{100, 100},
		"insulin_units": []float64{0},
	})
	expectStatus(t, resp, http.StatusOK)
	var iss issResponse
	decode(t, resp, &iss)
	if iss.ISS != 100 {
		t.Fatalf("iss = %+v", iss)
	}

	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/features/sequence?window=2", "u1", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/features/dashboard-snapshot", "u1", nil), http.StatusOK)
	expectStatus(t, do(t, http.MethodPost, srv.URL+"/v1/features/recent", "u1", map[string]any{"lookback_minutes": 1}), http.StatusBadRequest)
}

func TestFailedRequestsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	svc := testServices()
	svc.Errors = errors.NewHandler(slog.New(slog.NewTextHandler(&buf, nil)))
	srv := serve(t, svc)

	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/glucose", "", nil), http.StatusUnauthorized)
	expectStatus(t, do(t, http.MethodGet, srv.URL+"/v1/logs/glucose?from=yesterday", "u1", nil), http.StatusBadRequest)

	out := buf.String()
	for _, want := range []string{
		`level=WARN msg="Permission error"`,
		`level=WARN msg="Validation error"`,
		"owner_id=u1",
		"status=400",
		"request_id=",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
