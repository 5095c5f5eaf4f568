package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordGeneration("hd", "1024x1024")
	m.RecordGeneration("hd", "1024x1024")
	m.RecordRejection(ReasonBudgetPreflight)
	m.RecordProviderCall(2*time.Second, "content_policy_violation")
	m.RecordProviderCall(time.Second, "")
	m.RecordLedgerError("read")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.generations.WithLabelValues("hd", "1024x1024")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues(ReasonBudgetPreflight)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerErrors.WithLabelValues("content_policy_violation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerErrors.WithLabelValues("read")))
}

func TestMetrics_PromptTokens(t *testing.T) {
	m := New()
	m.RecordPromptTokens(12)
	m.RecordPromptTokens(300)

	assert.Equal(t, 1, testutil.CollectAndCount(m.promptTokens, "imagegen_prompt_tokens"))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "imagegen_prompt_tokens_count 2")
	assert.Contains(t, w.Body.String(), "imagegen_prompt_tokens_sum 312")
}

func TestMetrics_UpdateBudget(t *testing.T) {
	m := New()
	m.UpdateBudget(3.96, 99)

	assert.Equal(t, 3.96, testutil.ToFloat64(m.spend))
	assert.Equal(t, 99.0, testutil.ToFloat64(m.usage))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordGeneration("standard", "1024x1024")
		m.RecordRejection(ReasonValidation)
		m.RecordProviderCall(time.Second, "x")
		m.UpdateBudget(1, 2)
		m.RecordPromptTokens(5)
		m.RecordLedgerError("write")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordGeneration("standard", "1024x1024")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "imagegen_generations_total")
}
