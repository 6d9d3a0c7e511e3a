package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

const filterDateLayout = "2006-01-02"

type APIHandlers struct {
	store          *services.LedgerStore
	exporter       *services.Exporter
	logger         *slog.Logger
	maxUploadBytes int64
	defaultHorizon int
}

func NewAPIHandlers(store *services.LedgerStore, exporter *services.Exporter, logger *slog.Logger,
	maxUploadBytes int64, defaultHorizon int) *APIHandlers {
	return &APIHandlers{
		store:          store,
		exporter:       exporter,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		defaultHorizon: defaultHorizon,
	}
}

type uploadSummary struct {
	Records     int      `json:"records"`
	Products    []string `json:"products"`
	TotalAmount string   `json:"total_amount"`
	FirstDate   string   `json:"first_date"`
	LastDate    string   `json:"last_date"`
	Fingerprint string   `json:"fingerprint"`
}

// HandleUpload ingests a spreadsheet and makes it the active ledger.
// Re-uploading identical bytes hits the memoization cache instead of
// re-parsing.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "missing or oversized upload"), requestID)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "cannot read upload"), requestID)
		return
	}

	ledger, fingerprint, err := h.store.Load(header.Filename, data)
	if err != nil {
		// Loader failures surface verbatim; no partial dashboard state.
		errors.WriteError(w, h.logger, err, requestID)
		return
	}
	h.store.SetCurrent(header.Filename, fingerprint, ledger)

	summary := uploadSummary{
		Records:     len(ledger),
		Products:    ledger.Products(),
		TotalAmount: ledger.TotalAmount().StringFixed(2),
		Fingerprint: fingerprint,
	}
	if len(ledger) > 0 {
		summary.FirstDate = ledger.MinDate().Format(filterDateLayout)
		summary.LastDate = ledger.MaxDate().Format(filterDateLayout)
	}

	errors.WriteSuccess(w, summary)
}

// HandleMetrics recomputes the full bundle for the requested filter view.
func (h *APIHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	full, ok := h.store.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.NotFound("no ledger loaded yet"), requestID)
		return
	}

	filtered, horizon, err := filteredView(r, full, h.defaultHorizon)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	bundle := services.Compute(full, filtered, full.MaxDate(), horizon)
	errors.WriteSuccess(w, bundle)
}

func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	full, ok := h.store.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.EmptyResult("nothing to export before an upload"), requestID)
		return
	}

	filtered, _, err := filteredView(r, full, h.defaultHorizon)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	data, err := h.exporter.FilteredCSV(filtered)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "csv export failed"), requestID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=sales_%s.csv", time.Now().Format("20060102")))
	w.Write(data)
}

func (h *APIHandlers) HandleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	full, ok := h.store.Current()
	if !ok {
		errors.WriteError(w, h.logger, errors.EmptyResult("nothing to export before an upload"), requestID)
		return
	}

	filtered, horizon, err := filteredView(r, full, h.defaultHorizon)
	if err != nil {
		errors.WriteError(w, h.logger, err, requestID)
		return
	}

	bundle := services.Compute(full, filtered, full.MaxDate(), horizon)
	data, err := h.exporter.Workbook(filtered, bundle)
	if err != nil {
		errors.WriteError(w, h.logger, errors.InternalWrap(err, "workbook export failed"), requestID)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=report_%s.xlsx", time.Now().Format("20060102")))
	w.Write(data)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}
	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.store.Stats())
}

// filteredView applies the request's product/date filters and resolves the
// projection horizon. Shared by the REST and SSE surfaces.
func filteredView(r *http.Request, full models.Ledger, defaultHorizon int) (models.Ledger, int, error) {
	q := r.URL.Query()

	var products []string
	if raw := q.Get("products"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				products = append(products, p)
			}
		}
	}

	var from, to time.Time
	var err error
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse(filterDateLayout, raw); err != nil {
			return nil, 0, errors.BadRequest(fmt.Sprintf("invalid 'from' date %q, want YYYY-MM-DD", raw))
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse(filterDateLayout, raw); err != nil {
			return nil, 0, errors.BadRequest(fmt.Sprintf("invalid 'to' date %q, want YYYY-MM-DD", raw))
		}
	}

	horizon := defaultHorizon
	if raw := q.Get("horizon"); raw != "" {
		horizon, err = strconv.Atoi(raw)
		if err != nil || horizon < 1 {
			return nil, 0, errors.BadRequest(fmt.Sprintf("invalid projection horizon %q, want integer >= 1", raw))
		}
	}

	return services.FilterLedger(full, products, from, to), horizon, nil
}
