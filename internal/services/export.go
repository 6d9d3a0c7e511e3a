package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

// Sheet names of the multi-sheet workbook export. Table identity is part
// of the export contract.
const (
	sheetFilteredSales = "Filtered Sales"
	sheetABCCurve      = "ABC Curve"
	sheetTopCustomers  = "Top Customers"
	sheetRFM           = "RFM"
)

const exportDateLayout = "2006-01-02"

// Exporter renders the core tables as delimited text and as a multi-sheet
// spreadsheet. It holds no state beyond a logger.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

// FilteredCSV writes the filtered ledger as comma-delimited text.
func (e *Exporter) FilteredCSV(ledger models.Ledger) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "customer_id", "product", "amount"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range ledger {
		row := []string{
			rec.Date.Format(exportDateLayout),
			rec.CustomerID,
			rec.Product,
			rec.Amount.StringFixed(2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Workbook builds the xlsx export: one sheet per table, in the order the
// dashboard presents them.
func (e *Exporter) Workbook(ledger models.Ledger, bundle *models.MetricsBundle) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetFilteredSales); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetABCCurve, sheetTopCustomers, sheetRFM} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	if err := writeRow(f, sheetFilteredSales, 1, []any{"date", "customer_id", "product", "amount"}); err != nil {
		return nil, err
	}
	for i, rec := range ledger {
		row := []any{
			rec.Date.Format(exportDateLayout),
			rec.CustomerID,
			rec.Product,
			rec.Amount.InexactFloat64(),
		}
		if err := writeRow(f, sheetFilteredSales, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, sheetABCCurve, 1, []any{"product", "revenue", "share_pct", "cumulative_pct"}); err != nil {
		return nil, err
	}
	for i, r := range bundle.Products.ABC {
		row := []any{r.Product, r.Revenue.InexactFloat64(), r.SharePct, r.CumulativePct}
		if err := writeRow(f, sheetABCCurve, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, sheetTopCustomers, 1, []any{"customer_id", "total_spend"}); err != nil {
		return nil, err
	}
	for i, c := range bundle.Lifetime.TopCustomers {
		if err := writeRow(f, sheetTopCustomers, i+2, []any{c.CustomerID, c.Total.InexactFloat64()}); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, sheetRFM, 1, []any{"customer_id", "recency_days", "frequency", "monetary"}); err != nil {
		return nil, err
	}
	for i, r := range bundle.RFM {
		row := []any{r.CustomerID, r.RecencyDays, r.Frequency, r.Monetary.InexactFloat64()}
		if err := writeRow(f, sheetRFM, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Debug("workbook export built",
		"rows", len(ledger),
		"abc_rows", len(bundle.Products.ABC),
		"rfm_rows", len(bundle.RFM),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %s: %w", strconv.Itoa(row), err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
