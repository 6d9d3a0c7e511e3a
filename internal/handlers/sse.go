package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
)

const maxTableRows = 50

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var kpiTemplate = template.Must(template.New("kpiGrid").Funcs(templateFuncs).Parse(`
<div id="kpi-content">
<div class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Revenue</span><strong>${{money .Revenue.Total}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Transactions</span><strong>{{.Revenue.Count}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Unique Customers</span><strong>{{.Customers.UniqueCustomers}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Avg Ticket</span><strong>${{printf "%.2f" .Revenue.Mean}}</strong></div>
<div class="kpi-card"><span class="kpi-label">MoM Growth</span><strong>{{printf "%.1f" .Series.MoMGrowthPct}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Recurrence</span><strong>{{printf "%.1f" .Customers.RecurrenceRate}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Churn</span><strong>{{printf "%.1f" .Churn.ChurnRate}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Retention</span><strong>{{printf "%.1f" .Churn.RetentionRate}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Projection ({{.Projection.HorizonDays}}d)</span><strong>${{printf "%.2f" .Projection.ProjectedRevenue}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Best Product</span><strong>{{.Products.Best.Product}}</strong></div>
</div>
<div class="advisories">
{{range .Advisories}}<p class="advisory">{{.}}</p>
{{end}}</div>
</div>`))

var abcTableTemplate = template.Must(template.New("abcTable").Funcs(templateFuncs).Parse(`
<div id="abc-content">
<table class="modern-table">
<thead><tr><th>Product</th><th>Revenue</th><th>Share %</th><th>Cumulative %</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.Product}}</td>
<td><strong>${{money .Revenue}}</strong></td>
<td>{{printf "%.1f" .SharePct}}</td>
<td>{{printf "%.1f" .CumulativePct}}</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var rfmTableTemplate = template.Must(template.New("rfmTable").Funcs(templateFuncs).Parse(`
<div id="rfm-content">
<table class="modern-table">
<thead><tr><th>Customer</th><th>Recency (days)</th><th>Frequency</th><th>Monetary</th></tr></thead>
<tbody>
{{range .Rows}}<tr>
<td>{{.CustomerID}}</td>
<td>{{.RecencyDays}}</td>
<td>{{.Frequency}}</td>
<td><strong>${{money .Monetary}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

type SSEHandlers struct {
	store          *services.LedgerStore
	logger         *slog.Logger
	defaultHorizon int
}

func NewSSEHandlers(store *services.LedgerStore, logger *slog.Logger, defaultHorizon int) *SSEHandlers {
	return &SSEHandlers{
		store:          store,
		logger:         logger,
		defaultHorizon: defaultHorizon,
	}
}

// bundleFor recomputes the metrics bundle for the request's filter view.
// ok is false before any upload, in which case a placeholder was patched.
func (h *SSEHandlers) bundleFor(sse *datastar.ServerSentEventGenerator, r *http.Request, target string) (*models.MetricsBundle, bool) {
	full, ok := h.store.Current()
	if !ok {
		sse.PatchElements(`<div id="` + target + `">Upload a spreadsheet to see metrics</div>`)
		return nil, false
	}

	filtered, horizon, err := filteredView(r, full, h.defaultHorizon)
	if err != nil {
		h.logger.Warn("invalid sse filter", "error", err)
		sse.PatchElements(`<div id="` + target + `">Invalid filter parameters</div>`)
		return nil, false
	}

	return services.Compute(full, filtered, full.MaxDate(), horizon), true
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	bundle, ok := h.bundleFor(sse, r, "kpi-content")
	if !ok {
		flush(w)
		return
	}

	var buf strings.Builder
	if err := kpiTemplate.Execute(&buf, bundle); err != nil {
		h.logger.Error("render kpi grid", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	signals, err := json.Marshal(map[string]any{
		"monthlyData": bundle.Series.Monthly,
		"weekdayData": bundle.Series.Weekday,
		"cohortData":  bundle.Series.Cohorts,
	})
	if err != nil {
		h.logger.Error("marshal series signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	flush(w)
}

func (h *SSEHandlers) HandleABCCurve(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	bundle, ok := h.bundleFor(sse, r, "abc-content")
	if !ok {
		flush(w)
		return
	}

	rows := bundle.Products.ABC
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}

	var buf strings.Builder
	if err := abcTableTemplate.Execute(&buf, struct{ Rows []models.ABCRow }{rows}); err != nil {
		h.logger.Error("render abc table", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	flush(w)
}

func (h *SSEHandlers) HandleRFM(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	bundle, ok := h.bundleFor(sse, r, "rfm-content")
	if !ok {
		flush(w)
		return
	}

	rows := bundle.RFM
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}

	var buf strings.Builder
	if err := rfmTableTemplate.Execute(&buf, struct{ Rows []models.RFMRow }{rows}); err != nil {
		h.logger.Error("render rfm table", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	flush(w)
}

// HandleRefreshAll patches every dashboard fragment and chart signal in
// one SSE response, used after uploads and filter changes.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	bundle, ok := h.bundleFor(sse, r, "kpi-content")
	if !ok {
		flush(w)
		return
	}

	var kpis strings.Builder
	if err := kpiTemplate.Execute(&kpis, bundle); err != nil {
		h.logger.Error("render kpi grid", "error", err)
		return
	}
	sse.PatchElements(kpis.String())

	abcRows := bundle.Products.ABC
	if len(abcRows) > maxTableRows {
		abcRows = abcRows[:maxTableRows]
	}
	var abc strings.Builder
	if err := abcTableTemplate.Execute(&abc, struct{ Rows []models.ABCRow }{abcRows}); err != nil {
		h.logger.Error("render abc table", "error", err)
		return
	}
	sse.PatchElements(abc.String())

	rfmRows := bundle.RFM
	if len(rfmRows) > maxTableRows {
		rfmRows = rfmRows[:maxTableRows]
	}
	var rfm strings.Builder
	if err := rfmTableTemplate.Execute(&rfm, struct{ Rows []models.RFMRow }{rfmRows}); err != nil {
		h.logger.Error("render rfm table", "error", err)
		return
	}
	sse.PatchElements(rfm.String())

	signals, err := json.Marshal(map[string]any{
		"monthlyData": bundle.Series.Monthly,
		"weekdayData": bundle.Series.Weekday,
		"cohortData":  bundle.Series.Cohorts,
		"topProducts": bundle.Products.TopByFrequency,
	})
	if err != nil {
		h.logger.Error("marshal refresh signals", "error", err)
		return
	}
	sse.PatchSignals(signals)

	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
