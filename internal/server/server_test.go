package server

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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Skufu/vetdiag/internal/dataset"
	"github.com/Skufu/vetdiag/internal/model"
	"github.com/Skufu/vetdiag/internal/treatment"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

type fakeClassifier struct {
	err error
}

func (f fakeClassifier) Predict(_ context.Context, in model.Input) (model.Prediction, error) {
	if f.err != nil {
		return model.Prediction{}, f.err
	}
	return model.Prediction{
		Diagnosis:    "Bloat",
		Confidence:   0.75,
		Alternatives: []model.Alternative{{Diagnosis: "Diare", Confidence: 0.2}},
		Source:       "fake",
	}, nil
}

func localClassifier(t *testing.T) *model.Local {
	t.Helper()
	p := &model.Pipeline{
		Vectorizer: &model.Vectorizer{
			Vocabulary: map[string]int{"kembung": 0, "mencret": 1},
			NgramRange: [2]int{1, 1},
			Lowercase:  true,
			Norm:       "l2",
		},
		Classifier: &model.LinearClassifier{
			Coef:      [][]float64{{3, 0}, {0, 3}},
			Intercept: []float64{0, 0},
			Classes:   []int{0, 1},
		},
	}
	require.NoError(t, p.Init())
	e, err := model.NewLabelEncoder([]string{"Bloat", "Diare"})
	require.NoError(t, err)
	l, err := model.NewLocal(p, e)
	require.NoError(t, err)
	return l
}

func testDataset(t *testing.T) *dataset.Store {
	t.Helper()
	dir := t.TempDir()
	body := "tanggal,hewan,diagnosa,dosis\n" +
		strings.Repeat("2023-01-10,sapi,Bloat,2 ekor\n", 3) +
		strings.Repeat("2023-02-10,kambing,Bloat,1 ekor\n", 2) +
		strings.Repeat("2023-02-11,kambing,Scabies,3 ekor\n", 5) +
		"2023-02-12,sapi,Tidak Sakit,\n" +
		"2023-03-01,sapi,Anthrax,\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log.csv"), []byte(body), 0o644))
	ds := dataset.New(dir, treatment.DefaultRules(), nil)
	require.NoError(t, ds.Reload(context.Background()))
	return ds
}

func newTestRouter(t *testing.T, deps Deps, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return New(deps, opts).Router()
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, Deps{}, Options{})

	w := do(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRouterReadyz(t *testing.T) {
	reg := model.NewRegistry(func() (model.Classifier, error) { return localClassifier(t), nil })

	router := newTestRouter(t, Deps{Registry: reg}, Options{})
	w := do(router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not loaded", decode(t, w)["model"])

	require.NoError(t, reg.Reload())
	w = do(router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", decode(t, w)["db"])

	router = newTestRouter(t, Deps{Registry: reg, Checks: map[string]HealthChecker{
		"db":    fakeDB{},
		"redis": fakeDB{err: errors.New("connection refused")},
	}}, Options{})
	w = do(router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["db"])
	assert.Contains(t, body["redis"], "connection refused")
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("12345"))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/echo", strings.NewReader("01234567890"))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestPredictLegacyContract(t *testing.T) {
	reg := model.NewRegistry(func() (model.Classifier, error) { return localClassifier(t), nil })
	require.NoError(t, reg.Reload())
	router := newTestRouter(t, Deps{Registry: reg}, Options{})

	w := do(router, http.MethodPost, "/predict", `{"ciri_kasus": "perut kembung"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "perut kembung", body["input_ciri_kasus"])
	assert.Equal(t, "Bloat", body["predicted_diagnosis"])

	for _, payload := range []string{`{}`, `not json`, `{"ciri_kasus": "   "}`, `{"text": "x"}`} {
		w = do(router, http.MethodPost, "/predict", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code, payload)
		assert.Contains(t, decode(t, w)["error"], "ciri_kasus", payload)
	}
}

func TestPredictLegacyFailure(t *testing.T) {
	router := newTestRouter(t, Deps{Classifier: fakeClassifier{err: errors.New("boom")}}, Options{})
	w := do(router, http.MethodPost, "/predict", `{"ciri_kasus": "demam"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "prediction failed: boom", decode(t, w)["error"])
}

func TestAPIPredict(t *testing.T) {
	router := newTestRouter(t, Deps{Classifier: fakeClassifier{}}, Options{})

	w := do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": " nafsu makan turun ", "hewan": "Sapi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "nafsu makan turun", body["input_ciri_kasus"])
	assert.Equal(t, "Sapi", body["hewan"])
	assert.Equal(t, 0.75, body["confidence"])
	assert.Len(t, body["alternatives"], 1)
	assert.Nil(t, body["id"], "no id without a prediction log")
}

func TestAPIPredictValidation(t *testing.T) {
	router := newTestRouter(t, Deps{Classifier: fakeClassifier{}}, Options{})

	w := do(router, http.MethodPost, "/api/predict", `{"hewan": "Sapi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
	assert.Contains(t, body["error"], "field 'ciri_kasus' is required")

	w = do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": "`+strings.Repeat("a", 5001)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "too long")
}

func TestAPIPredictModelNotLoaded(t *testing.T) {
	reg := model.NewRegistry(func() (model.Classifier, error) { return nil, errors.New("missing") })
	router := newTestRouter(t, Deps{Registry: reg}, Options{})

	w := do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": "demam"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "MODEL_NOT_LOADED", decode(t, w)["code"])

	w = do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": "demam"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPredictRateLimit(t *testing.T) {
	router := newTestRouter(t, Deps{Classifier: fakeClassifier{}}, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	w := do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": "demam"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(router, http.MethodPost, "/api/predict", `{"ciri_kasus": "demam"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/healthz", "").Code, "only prediction routes are limited")
}

func TestModelInfo(t *testing.T) {
	reg := model.NewRegistry(func() (model.Classifier, error) { return localClassifier(t), nil })
	require.NoError(t, reg.Reload())
	router := newTestRouter(t, Deps{Registry: reg}, Options{})

	w := do(router, http.MethodGet, "/api/model", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["loaded"])
	assert.Equal(t, "local", body["backend"])
	assert.Equal(t, []any{"Bloat", "Diare"}, body["classes"])
}

func TestRecentPredictionsWithoutDB(t *testing.T) {
	router := newTestRouter(t, Deps{}, Options{})
	w := do(router, http.MethodGet, "/api/predictions/recent", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DB_DISABLED", decode(t, w)["code"])
}

func TestStatsEndpoints(t *testing.T) {
	router := newTestRouter(t, Deps{Dataset: testDataset(t)}, Options{TopN: 5})

	w := do(router, http.MethodGet, "/api/stats/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]any)
	assert.Equal(t, 10.0, summary["total_cases"])
	assert.Equal(t, 2.0, summary["diagnoses"])
	assert.Equal(t, 23.0, summary["total_heads"])

	w = do(router, http.MethodGet, "/api/stats/top?n=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	top := decode(t, w)["diagnoses"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "Bloat", top[0].(map[string]any)["key"])

	w = do(router, http.MethodGet, "/api/stats/trends", "")
	require.Equal(t, http.StatusOK, w.Code)
	pivot := decode(t, w)["pivot"].(map[string]any)
	assert.Equal(t, []any{"2023-01", "2023-02"}, pivot["months"])
	assert.Equal(t, []any{"Bloat", "Scabies"}, pivot["diagnoses"])
	assert.Equal(t, []any{[]any{3.0, 0.0}, []any{2.0, 5.0}}, pivot["cells"])

	w = do(router, http.MethodGet, "/api/stats/species", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["species"], 2)

	w = do(router, http.MethodGet, "/api/stats/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode(t, w)["report"].(map[string]any)
	assert.Equal(t, 12.0, report["input_rows"])
	assert.Equal(t, 1.0, report["dropped_not_sick"])
	assert.Equal(t, 1.0, report["dropped_rare_class"])

	for _, path := range []string{"/api/stats/top?n=0", "/api/stats/top?n=abc", "/api/stats/trends?top=-1"} {
		w = do(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "INVALID_PARAMETER", decode(t, w)["code"], path)
	}
}

func TestStatsWithoutDataset(t *testing.T) {
	router := newTestRouter(t, Deps{}, Options{})
	w := do(router, http.MethodGet, "/api/stats/summary", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExports(t *testing.T) {
	router := newTestRouter(t, Deps{Dataset: testDataset(t)}, Options{})

	w := do(router, http.MethodGet, "/api/export/trends.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "trends.csv")
	assert.Contains(t, w.Body.String(), "month,Bloat,Scabies\n2023-01,3,0\n2023-02,2,5\n")

	w = do(router, http.MethodGet, "/api/export/top.csv?n=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bloat,5,8")

	w = do(router, http.MethodGet, "/api/export/report.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Trends")
}

func TestAdminReload(t *testing.T) {
	calls := 0
	router := newTestRouter(t, Deps{Reloaders: []Reloader{
		{Name: "model", Reload: func(context.Context) error { calls++; return nil }},
		{Name: "dataset", Reload: func(context.Context) error { return errors.New("bad csv") }},
	}}, Options{})

	w := do(router, http.MethodPost, "/api/admin/reload", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, calls)
	results := decode(t, w)["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "ok", results[0].(map[string]any)["status"])
	assert.Equal(t, "bad csv", results[1].(map[string]any)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, Deps{}, Options{})
	do(router, http.MethodGet, "/healthz", "")
	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vetdiag_http_requests_total")
}

func TestRecoveryReturnsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := New(Deps{}, Options{}).Router()
	router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := do(router, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", decode(t, w)["code"])
}
