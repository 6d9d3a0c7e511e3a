package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sales-dashboard/internal/services"
)

const sampleCSV = `date,customer_id,product,amount
2024-01-15,C1,Widget,100.50
2024-02-10,C2,Gadget,59.90
2024-02-20,C1,Widget,75.25`

func newTestAPI(t *testing.T) (*APIHandlers, *services.LedgerStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := services.NewLedgerStore(logger)
	return NewAPIHandlers(store, services.NewExporter(logger), logger, 16<<20, 30), store
}

func seedLedger(t *testing.T, store *services.LedgerStore) {
	t.Helper()
	ledger, fingerprint, err := store.Load("seed.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	store.SetCurrent("seed.csv", fingerprint, ledger)
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func decodeEnvelope(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var envelope map[string]any
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("invalid json envelope: %v", err)
	}
	return envelope
}

func TestHandleUpload(t *testing.T) {
	api, _ := newTestAPI(t)
	body, contentType := multipartUpload(t, "sales.csv", []byte(sampleCSV))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/upload", body)
	r.Header.Set("Content-Type", contentType)

	api.HandleUpload(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	envelope := decodeEnvelope(t, w.Body)
	if success, _ := envelope["success"].(bool); !success {
		t.Error("expected success=true")
	}
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data object")
	}
	if records, _ := data["records"].(float64); records != 3 {
		t.Errorf("records = %v, want 3", data["records"])
	}
	if data["fingerprint"] == "" {
		t.Error("upload summary should carry the content fingerprint")
	}
	if data["total_amount"] != "235.65" {
		t.Errorf("total_amount = %v, want 235.65", data["total_amount"])
	}
	if data["first_date"] != "2024-01-15" || data["last_date"] != "2024-02-20" {
		t.Errorf("date span = %v..%v", data["first_date"], data["last_date"])
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	api, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/upload", strings.NewReader("not multipart"))

	api.HandleUpload(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleUpload_MissingColumn(t *testing.T) {
	api, _ := newTestAPI(t)
	bad := "date,customer_id,amount\n2024-01-15,C1,100"
	body, contentType := multipartUpload(t, "bad.csv", []byte(bad))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/upload", body)
	r.Header.Set("Content-Type", contentType)

	api.HandleUpload(w, r)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}

	envelope := decodeEnvelope(t, w.Body)
	errObj, ok := envelope["error"].(map[string]any)
	if !ok {
		t.Fatal("expected error object")
	}
	if errObj["code"] != "MALFORMED_INPUT" {
		t.Errorf("error code = %v, want MALFORMED_INPUT", errObj["code"])
	}
}

func TestHandleMetrics_NoLedger(t *testing.T) {
	api, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics", nil)

	api.HandleMetrics(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics", nil)

	api.HandleMetrics(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	envelope := decodeEnvelope(t, w.Body)
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data object")
	}
	revenue, ok := data["revenue"].(map[string]any)
	if !ok {
		t.Fatal("expected revenue block")
	}
	if count, _ := revenue["count"].(float64); count != 3 {
		t.Errorf("revenue count = %v, want 3", revenue["count"])
	}
	if _, ok := data["advisories"].([]any); !ok {
		t.Error("expected advisories array")
	}
}

func TestHandleMetrics_ProductFilter(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics?products=Widget", nil)

	api.HandleMetrics(w, r)

	envelope := decodeEnvelope(t, w.Body)
	data := envelope["data"].(map[string]any)
	revenue := data["revenue"].(map[string]any)
	if count, _ := revenue["count"].(float64); count != 2 {
		t.Errorf("filtered revenue count = %v, want 2", revenue["count"])
	}
}

func TestHandleMetrics_InvalidDate(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics?from=15-01-2024", nil)

	api.HandleMetrics(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleMetrics_InvalidHorizon(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/metrics?horizon=0", nil)

	api.HandleMetrics(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleExportCSV(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/export/csv", nil)

	api.HandleExportCSV(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Errorf("content-type = %q, want text/csv", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("content-disposition = %q, want attachment", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "date,customer_id,product,amount") {
		t.Error("csv body should start with the header row")
	}
}

func TestHandleExportWorkbook(t *testing.T) {
	api, store := newTestAPI(t)
	seedLedger(t, store)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/export/xlsx", nil)

	api.HandleExportWorkbook(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content-type = %q, want xlsx", ct)
	}
	// xlsx containers start with the zip magic.
	if body := w.Body.Bytes(); len(body) < 2 || body[0] != 'P' || body[1] != 'K' {
		t.Error("workbook body should be a zip container")
	}
}

func TestHandleExport_NoLedger(t *testing.T) {
	api, _ := newTestAPI(t)

	for _, handler := range []http.HandlerFunc{api.HandleExportCSV, api.HandleExportWorkbook} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/api/export/csv", nil)
		handler(w, r)
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409 before any upload", w.Code)
		}

		envelope := decodeEnvelope(t, w.Body)
		errObj, ok := envelope["error"].(map[string]any)
		if !ok {
			t.Fatal("expected error object")
		}
		if errObj["code"] != "EMPTY_RESULT" {
			t.Errorf("error code = %v, want EMPTY_RESULT", errObj["code"])
		}
	}
}
