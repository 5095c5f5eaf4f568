package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/internal/server"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/metrics"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/pricing"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/providers"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/storage"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

type testEnv struct {
	handler http.Handler
	store   storage.Storage
	azure   *httptest.Server
	calls   *atomic.Int32
}

// setupServer wires the real stack against a stub Azure endpoint. A negative
// spent leaves the ledger empty.
func setupServer(t *testing.T, spent float64, azureStatus int, azureBody string) *testEnv {
	t.Helper()

	calls := &atomic.Int32{}
	azure := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(azureStatus)
		io.WriteString(w, azureBody)
	}))
	t.Cleanup(azure.Close)

	provider, err := providers.NewAzureOpenAI(providers.AzureConfig{
		Endpoint:   azure.URL,
		APIKey:     "test-key",
		APIVersion: "2024-02-01",
		Deployment: "dall-e-3",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	store, err := storage.NewJSONFile(filepath.Join(t.TempDir(), "cost_tracking.json"))
	require.NoError(t, err)
	if spent >= 0 {
		require.NoError(t, store.Save(context.Background(), &model.CostRecord{
			Month:           model.MonthKey(time.Now()),
			TotalSpent:      spent,
			GenerationCount: 5,
		}))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	ledger := tracker.NewLedger(store, nil, m, logger)
	guard := tracker.NewGuard(ledger, tracker.GuardConfig{MonthlyLimit: 4.00}, nil, logger)
	gen := tracker.NewGenerator(guard, pricing.Default(), provider, m, logger)

	srv := server.NewServer(gen, m, server.Options{AllowedOrigin: testOrigin}, logger)
	return &testEnv{handler: srv.Handler(), store: store, azure: azure, calls: calls}
}

const azureOK = `{"created":1760870400,"data":[{"url":"https://img.example/a.png","revised_prompt":"A calm lighthouse"}]}`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func spentOf(t *testing.T, s storage.Storage) float64 {
	t.Helper()
	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	return rec.TotalSpent
}

func TestServer_Health(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "ImageGen.AI Backend", resp["service"])
	assert.Equal(t, "dall-e-3", resp["dall_e_deployment"])
}

func TestServer_CostStatus(t *testing.T) {
	env := setupServer(t, 1.00, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodGet, "/api/cost-status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status model.BudgetStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, 4.00, status.Limit)
	assert.Equal(t, 1.00, status.Spent)
	assert.Equal(t, 3.00, status.Remaining)
	assert.Equal(t, 25.0, status.Percentage)
	assert.False(t, status.IsLimited)
}

func TestServer_Generate(t *testing.T) {
	env := setupServer(t, 3.96, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodPost, "/api/generate", `{"prompt":"a lighthouse","quality":"standard"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])

	data := resp["data"].(map[string]any)
	assert.Equal(t, "https://img.example/a.png", data["url"])
	assert.Equal(t, "A calm lighthouse", data["revised_prompt"])
	assert.Equal(t, "a lighthouse", data["original_prompt"])
	assert.Equal(t, 0.04, data["cost"])
	assert.Equal(t, float64(1760870400), data["timestamp"])
	assert.Equal(t, map[string]any{"size": "1024x1024", "quality": "standard", "style": "vivid", "n": float64(1)}, data["parameters"])

	costStatus := resp["cost_status"].(map[string]any)
	assert.Equal(t, 4.00, costStatus["spent"])
	assert.Equal(t, true, costStatus["is_limited"])
	assert.Equal(t, 4.00, spentOf(t, env.store))

	// The budget is now exhausted.
	w = do(t, env.handler, http.MethodPost, "/api/generate", `{"prompt":"a lighthouse"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	resp = decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.Contains(t, resp["error"], "Monthly budget limit reached")
	assert.NotNil(t, resp["cost_status"])
	assert.Equal(t, int32(1), env.calls.Load())
}

func TestServer_Generate_Preflight(t *testing.T) {
	env := setupServer(t, 3.95, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodPost, "/api/generate", `{"prompt":"a lighthouse","quality":"hd"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	resp := decode(t, w)
	assert.Contains(t, resp["error"], "$4.03")
	assert.Equal(t, 3.95, resp["cost_status"].(map[string]any)["spent"])
	assert.Equal(t, int32(0), env.calls.Load())
	assert.Equal(t, 3.95, spentOf(t, env.store))
}

func TestServer_Generate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing prompt", `{"size":"1024x1024"}`, "Prompt is required"},
		{"empty body", ``, "Prompt is required"},
		{"bad size", `{"prompt":"cat","size":"10x10"}`, "Invalid size. Must be one of: 1024x1024, 1792x1024, 1024x1792"},
		{"bad quality", `{"prompt":"cat","quality":"ultra"}`, "Invalid quality. Must be one of: standard, hd"},
		{"bad style", `{"prompt":"cat","style":"noir"}`, "Invalid style. Must be one of: vivid, natural"},
		{"malformed json", `{"prompt":`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t, -1, http.StatusOK, azureOK)

			w := do(t, env.handler, http.MethodPost, "/api/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
			assert.Equal(t, int32(0), env.calls.Load())
		})
	}
}

func TestServer_Generate_ExhaustedBeforeValidation(t *testing.T) {
	env := setupServer(t, 4.00, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodPost, "/api/generate", `{"quality":"ultra"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(t, env.handler, http.MethodPost, "/api/generate", `not json`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestServer_Generate_ProviderError(t *testing.T) {
	env := setupServer(t, 1.00, http.StatusBadRequest,
		`{"error":{"code":"content_policy_violation","message":"Your request was rejected by the safety system."}}`)

	w := do(t, env.handler, http.MethodPost, "/api/generate", `{"prompt":"something"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Your request was rejected by the safety system.", resp["error"])
	assert.Equal(t, 1.00, spentOf(t, env.store))
}

func TestServer_Generate_BodyTooLarge(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	body := `{"prompt":"` + strings.Repeat("a", 2<<20) + `"}`
	w := do(t, env.handler, http.MethodPost, "/api/generate", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, int32(0), env.calls.Load())
}

func TestServer_CalculateCost(t *testing.T) {
	env := setupServer(t, 2.00, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodPost, "/api/calculate-cost", `{"quality":"hd"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"quality": "hd", "cost": 0.08, "currency": "USD"}, decode(t, w))

	w = do(t, env.handler, http.MethodPost, "/api/calculate-cost", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.04, decode(t, w)["cost"])

	w = do(t, env.handler, http.MethodPost, "/api/calculate-cost", `{"quality":"ultra"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["error"])

	assert.Equal(t, 2.00, spentOf(t, env.store))
	assert.Equal(t, int32(0), env.calls.Load())
}

func TestServer_CORS(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, testOrigin, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RequestID(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodGet, "/api/health", "")
	assert.Len(t, w.Header().Get(server.RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(server.RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(server.RequestIDHeader))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodGet, "/api/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	env := setupServer(t, -1, http.StatusOK, azureOK)

	w := do(t, env.handler, http.MethodPost, "/api/generate", `{"prompt":"cat","quality":"hd"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, env.handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `imagegen_generations_total{quality="hd",size="1024x1024"} 1`)
	assert.Contains(t, body, "imagegen_budget_spent_usd 0.08")
	assert.Contains(t, body, "imagegen_prompt_tokens_count 1")
}
