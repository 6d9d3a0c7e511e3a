package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Dashboard is the single-page shell. All metric fragments arrive over
// SSE and replace the placeholder divs below, so the page itself carries
// no data.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardPage)
		return err
	})
}

const dashboardPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Sales Dashboard</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<style>
:root { --bg: #0f1419; --panel: #1a2029; --accent: #4fc3f7; --text: #e6e8ea; }
* { box-sizing: border-box; margin: 0; }
body { background: var(--bg); color: var(--text); font-family: "Segoe UI", system-ui, sans-serif; padding: 1.5rem; }
h1 { font-size: 1.4rem; margin-bottom: 1rem; }
h2 { font-size: 1.1rem; margin: 1.5rem 0 0.5rem; color: var(--accent); }
.toolbar { display: flex; gap: 0.75rem; flex-wrap: wrap; align-items: center; background: var(--panel); padding: 1rem; border-radius: 8px; }
.toolbar input, .toolbar button { background: var(--bg); color: var(--text); border: 1px solid #2c3440; border-radius: 4px; padding: 0.4rem 0.6rem; }
.toolbar button { cursor: pointer; border-color: var(--accent); }
.kpi-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(180px, 1fr)); gap: 0.75rem; margin-top: 0.75rem; }
.kpi-card { background: var(--panel); border-radius: 8px; padding: 0.9rem; display: flex; flex-direction: column; gap: 0.3rem; }
.kpi-label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #8a93a0; }
.kpi-card strong { font-size: 1.15rem; }
.modern-table { width: 100%; border-collapse: collapse; background: var(--panel); border-radius: 8px; overflow: hidden; }
.modern-table th, .modern-table td { padding: 0.5rem 0.75rem; text-align: left; border-bottom: 1px solid #2c3440; }
.modern-table th { color: var(--accent); font-size: 0.8rem; text-transform: uppercase; }
.advisories { margin-top: 1rem; }
.advisory { background: var(--panel); border-left: 3px solid var(--accent); padding: 0.6rem 0.9rem; margin-bottom: 0.4rem; border-radius: 0 6px 6px 0; }
</style>
</head>
<body>
<h1>Sales Dashboard</h1>

<div class="toolbar" data-signals="{products: '', from: '', to: '', horizon: 30}">
<form id="upload-form" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,.xlsx" required>
<button data-on-click="@post('/api/upload', {contentType: 'form'})">Upload</button>
</form>
<input type="text" data-bind-products placeholder="products (comma separated)">
<input type="date" data-bind-from>
<input type="date" data-bind-to>
<input type="number" data-bind-horizon min="1" title="projection horizon in days">
<button data-on-click="@get('/sse/refresh-all?products='+$products+'&from='+$from+'&to='+$to+'&horizon='+$horizon)">Apply Filters</button>
<a href="/api/export/csv">Export CSV</a>
<a href="/api/export/xlsx">Export Workbook</a>
</div>

<h2>Key Metrics</h2>
<div id="kpi-content" data-on-load="@get('/sse/kpis')">Upload a spreadsheet to see metrics</div>

<h2>ABC Curve</h2>
<div id="abc-content" data-on-load="@get('/sse/abc-curve')">Waiting for data</div>

<h2>RFM Matrix</h2>
<div id="rfm-content" data-on-load="@get('/sse/rfm')">Waiting for data</div>

</body>
</html>
`
