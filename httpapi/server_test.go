package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthzReturnsOK(t *testing.T) {
	s := New()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestDebugHashReturnsDeterministicHash(t *testing.T) {
	s := New()
	body, _ := json.Marshal(map[string]any{
		"strategy_name":    "sma_cross",
		"strategy_params":  map[string]any{"fast": 10, "slow": 20},
		"step_frequency":   "daily",
		"capital_per_trade": 10000,
	})

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/debug/hash", bytes.NewReader(body))
	s.engine.ServeHTTP(w1, req1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w1.Code, w1.Body.String())
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/debug/hash", bytes.NewReader(body))
	s.engine.ServeHTTP(w2, req2)

	var r1, r2 struct {
		HashID string `json:"hash_id"`
	}
	if err := json.Unmarshal(w1.Body.Bytes(), &r1); err != nil {
		t.Fatalf("decode response 1: %v", err)
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &r2); err != nil {
		t.Fatalf("decode response 2: %v", err)
	}
	if r1.HashID == "" || r1.HashID != r2.HashID {
		t.Fatalf("expected identical non-empty hash ids, got %q vs %q", r1.HashID, r2.HashID)
	}
}

func TestDebugHashRejectsMissingStrategyName(t *testing.T) {
	s := New()
	body, _ := json.Marshal(map[string]any{"step_frequency": "daily"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/debug/hash", bytes.NewReader(body))
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
