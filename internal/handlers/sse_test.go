package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sales-dashboard/internal/services"
)

func newTestSSE(t *testing.T) (*SSEHandlers, *services.LedgerStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := services.NewLedgerStore(logger)
	return NewSSEHandlers(store, logger, 30), store
}

func TestHandleKPIs_NoLedger(t *testing.T) {
	sse, _ := newTestSSE(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/kpis", nil)

	sse.HandleKPIs(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(w.Body.String(), "Upload a spreadsheet") {
		t.Error("expected the empty-state placeholder before any upload")
	}
}

func TestHandleKPIs(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/kpis", nil)

	sse.HandleKPIs(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "kpi-grid") {
		t.Error("expected the kpi grid fragment")
	}
	if !strings.Contains(body, "Total Revenue") {
		t.Error("expected kpi labels in the fragment")
	}
	if !strings.Contains(body, "datastar-patch-signals") {
		t.Error("expected chart data signals alongside the fragment")
	}
}

func TestHandleKPIs_InvalidFilter(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/kpis?from=bogus", nil)

	sse.HandleKPIs(w, r)

	if !strings.Contains(w.Body.String(), "Invalid filter parameters") {
		t.Error("expected the invalid-filter placeholder")
	}
}

func TestHandleABCCurve(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/abc-curve", nil)

	sse.HandleABCCurve(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "abc-content") {
		t.Error("expected the abc table fragment")
	}
	if !strings.Contains(body, "Widget") {
		t.Error("expected product rows in the abc table")
	}
}

func TestHandleRFM(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/rfm", nil)

	sse.HandleRFM(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "rfm-content") {
		t.Error("expected the rfm table fragment")
	}
	if !strings.Contains(body, "C1") {
		t.Error("expected customer rows in the rfm table")
	}
}

func TestHandleRefreshAll(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/refresh-all", nil)

	sse.HandleRefreshAll(w, r)

	body := w.Body.String()
	for _, fragment := range []string{"kpi-content", "abc-content", "rfm-content"} {
		if !strings.Contains(body, fragment) {
			t.Errorf("refresh-all should patch %q", fragment)
		}
	}
	if !strings.Contains(body, "topProducts") {
		t.Error("refresh-all should include the top products signal")
	}
}

func TestHandleRefreshAll_ProductFilter(t *testing.T) {
	sse, store := newTestSSE(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/refresh-all?products=Gadget", nil)

	sse.HandleRefreshAll(w, r)

	body := w.Body.String()
	if !strings.Contains(body, "Gadget") {
		t.Error("expected the filtered product in the fragments")
	}
}
