package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
)

// ============ StatusHandler Tests ============

func TestStatusHandler_GetStatus(t *testing.T) {
	t.Run("returns flat state", func(t *testing.T) {
		mockState := NewMockStateReader()
		mockState.SetStatus(models.StatusRunning)
		handler := NewStatusHandler(mockState)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		handler.GetStatus(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Status != models.StatusRunning {
			t.Errorf("expected status RUNNING, got %s", response.Status)
		}
		if response.InPosition {
			t.Error("expected no position")
		}
		if response.Entry != nil {
			t.Error("expected nil entry when flat")
		}
		if !response.QuoteBalance.Equal(decimal.NewFromInt(10000)) {
			t.Errorf("expected quote balance 10000, got %s", response.QuoteBalance)
		}
	})

	t.Run("returns entry details in position", func(t *testing.T) {
		mockState := NewMockStateReader()
		mockState.SetStatus(models.StatusRunning)
		mockState.SetPosition(&models.EntryDetails{
			EntryPrice:    decimal.RequireFromString("100.5"),
			Quantity:      decimal.RequireFromString("0.5"),
			StopLossPrice: decimal.RequireFromString("99.99"),
			EntryTime:     time.Now().UTC(),
			StrategyType:  models.StrategyScalping,
		})
		handler := NewStatusHandler(mockState)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		handler.GetStatus(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if !response.InPosition {
			t.Error("expected in_position true")
		}
		if response.Entry == nil {
			t.Fatal("expected entry details")
		}
		if !response.Entry.EntryPrice.Equal(decimal.RequireFromString("100.5")) {
			t.Errorf("expected entry price 100.5, got %s", response.Entry.EntryPrice)
		}
	})

	t.Run("returns 500 when state is nil", func(t *testing.T) {
		handler := &StatusHandler{state: nil}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		w := httptest.NewRecorder()

		handler.GetStatus(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}
