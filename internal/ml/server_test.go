package ml

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-predictor/internal/storage"
)

const sampleBody = `{
	"Gender": "Male",
	"Married": "Yes",
	"Dependents": "0",
	"Education": "Graduate",
	"Self_Employed": "No",
	"ApplicantIncome": 5000,
	"CoapplicantIncome": 0,
	"LoanAmount": 128,
	"Loan_Amount_Term": 360,
	"Credit_History": 1,
	"Property_Area": "Urban"
}`

type stubHistory struct {
	records []storage.ModelRecord
	err     error
	limit   int
}

func (h *stubHistory) ModelLoads(limit int) ([]storage.ModelRecord, error) {
	h.limit = limit
	return h.records, h.err
}

func newTestServer(t *testing.T, m Model, opts ...ServerOption) (*ModelServer, *MockMetrics) {
	t.Helper()
	metrics := &MockMetrics{}
	lm := NewLoadedModel(m, ModelInfo{Version: "v-test", ModelType: TypeRandomForest})
	p := NewPredictor(lm, nil, metrics)
	opts = append([]ServerOption{WithMetrics(metrics)}, opts...)
	return NewModelServer(p, lm, ServerConfig{Port: 8000}, opts...), metrics
}

func serve(ms *ModelServer, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, req)
	return rec
}

func postPredict(ms *ModelServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(ms, req)
}

func TestPredictHandler_Success(t *testing.T) {
	m := &stubProbaModel{stubModel: stubModel{label: "Y"}, proba: []float64{0.13, 0.87}, schema: trainingSchema}
	ms, metrics := newTestServer(t, m)

	rec := postPredict(ms, sampleBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var d Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, Decision{Status: "Y", Confidence: 0.87, Message: approvedMessage}, d)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Len(t, raw, 3)

	assert.Equal(t, 1, metrics.predictionCount("Y"))
	assert.Zero(t, metrics.validationErrors)
}

func TestPredictHandler_ZeroValuesAreNotMissing(t *testing.T) {
	m := &stubModel{label: "N"}
	ms, _ := newTestServer(t, m)

	body := strings.Replace(sampleBody, `"Credit_History": 1`, `"Credit_History": 0`, 1)
	body = strings.Replace(body, `"Loan_Amount_Term": 360`, `"Loan_Amount_Term": 0`, 1)
	rec := postPredict(ms, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var d Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, StatusRejected, d.Status)
	assert.Equal(t, DefaultConfidence, d.Confidence)
	assert.Equal(t, rejectedMessage, d.Message)
}

func TestPredictHandler_MissingFields(t *testing.T) {
	ms, metrics := newTestServer(t, &stubModel{label: "Y"})

	body := strings.Replace(sampleBody, `"Gender": "Male",`, "", 1)
	body = strings.Replace(body, `"Credit_History": 1,`, "", 1)
	rec := postPredict(ms, body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.ElementsMatch(t, []FieldError{
		{Field: "Gender", Rule: "required"},
		{Field: "Credit_History", Rule: "required"},
	}, resp.Fields)
	assert.Equal(t, 1, metrics.validationErrors)
}

func TestPredictHandler_BadRequests(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", "", "request body is empty"},
		{"malformed json", `{"Gender": "Male",`, "invalid request"},
		{"string income", strings.Replace(sampleBody, `"ApplicantIncome": 5000`, `"ApplicantIncome": "5000"`, 1), "invalid request"},
		{"numeric gender", strings.Replace(sampleBody, `"Gender": "Male"`, `"Gender": 1`, 1), "invalid request"},
		{"array body", `[1,2,3]`, "invalid request"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := &stubModel{label: "Y"}
			ms, metrics := newTestServer(t, m)

			rec := postPredict(ms, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tc.wantErr)
			assert.Equal(t, 1, metrics.validationErrors)
			assert.Nil(t, m.lastRow().Values, "model must not be called")
		})
	}
}

func TestPredictHandler_ModelFailure(t *testing.T) {
	ms, metrics := newTestServer(t, &stubModel{err: errors.New("boom")})

	rec := postPredict(ms, sampleBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "prediction failed", resp.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Equal(t, 1, metrics.failures)
}

func TestPredictHandler_MethodNotAllowed(t *testing.T) {
	ms, _ := newTestServer(t, &stubModel{label: "Y"})

	rec := serve(ms, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	ms, _ := newTestServer(t, &stubModel{label: "Y"})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
		req.Header.Set("Origin", "http://frontend.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")

		rec := serve(ms, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://frontend.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("simple request with origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(sampleBody))
		req.Header.Set("Origin", "http://other.example")

		rec := serve(ms, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://other.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origin", func(t *testing.T) {
		rec := serve(ms, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestRequestID(t *testing.T) {
	ms, _ := newTestServer(t, &stubModel{label: "Y"})

	rec := postPredict(ms, sampleBody)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = serve(ms, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = postPredict(ms, "")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader), "error responses carry the id too")
}

func TestHealthHandler(t *testing.T) {
	m := &stubModel{label: "Y"}
	lm := NewLoadedModel(m, ModelInfo{Version: "v-test"})
	ms := NewModelServer(NewPredictor(lm, nil, nil), lm, ServerConfig{Port: 8000})

	rec := serve(ms, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var h HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.True(t, h.Healthy)
	assert.True(t, h.ModelLoaded)
	assert.Equal(t, "v-test", h.ModelVersion)
	assert.GreaterOrEqual(t, h.UptimeSeconds, 0.0)

	lm.Close()
	rec = serve(ms, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModelInfoHandler(t *testing.T) {
	m := &stubProbaModel{
		stubModel: stubModel{label: "Y"},
		proba:     []float64{0.5, 0.5},
		schema:    append(append([]string{}, trainingSchema...), "LoanAmount_log"),
	}
	ms, _ := newTestServer(t, m)

	rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info ModelInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "v-test", info.Version)
	assert.Equal(t, TypeRandomForest, info.ModelType)
	assert.Equal(t, Capabilities{SupportsProbabilities: true, HasDeclaredSchema: true}, info.Capabilities)
	assert.Len(t, info.FeatureNames, len(trainingSchema)+1)
	assert.Equal(t, []string{"LoanAmount_log"}, info.UnmappedFeatures)
}

func TestModelInfoHandler_NoSchema(t *testing.T) {
	ms, _ := newTestServer(t, &stubModel{label: "Y"})

	rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"feature_names":null`)
	assert.Contains(t, rec.Body.String(), `"unmapped_features":[]`)
}

func TestModelHistoryHandler(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ms, _ := newTestServer(t, &stubModel{label: "Y"})
		rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/history", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("records", func(t *testing.T) {
		h := &stubHistory{records: []storage.ModelRecord{
			{Version: "v2", Checksum: "bbb", LoadedAt: time.Unix(200, 0).UTC()},
			{Version: "v1", Checksum: "aaa", LoadedAt: time.Unix(100, 0).UTC()},
		}}
		ms, _ := newTestServer(t, &stubModel{label: "Y"}, WithHistory(h))

		rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/history", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got []storage.ModelRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "v2", got[0].Version)
		assert.Equal(t, historyLimit, h.limit)
	})

	t.Run("empty", func(t *testing.T) {
		ms, _ := newTestServer(t, &stubModel{label: "Y"}, WithHistory(&stubHistory{}))
		rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/history", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		ms, _ := newTestServer(t, &stubModel{label: "Y"}, WithHistory(&stubHistory{err: errors.New("db closed")}))
		rec := serve(ms, httptest.NewRequest(http.MethodGet, "/model/history", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMetricsHandlerOption(t *testing.T) {
	called := false
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("# metrics"))
	})
	ms, _ := newTestServer(t, &stubModel{label: "Y"}, WithMetricsHandler(h))

	rec := serve(ms, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
	assert.Equal(t, ":8000", ms.Addr())
}
