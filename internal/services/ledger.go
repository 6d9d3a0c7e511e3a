package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
)

const (
	parseBatchSize  = 5000
	parseMaxWorkers = 8
)

// Column roles the input must provide. Header names are matched
// case-insensitively against these aliases; the roles are the contract,
// not the literal names.
var columnAliases = map[string][]string{
	"date":        {"date", "data"},
	"customer_id": {"customer_id", "cliente_id"},
	"product":     {"product", "produto"},
	"amount":      {"amount", "valor"},
}

// Textual date layouts accepted within a single column. Day-first layouts
// come before any ambiguous numeric interpretation.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02-01-2006",
}

// LedgerStore owns the loader/normalizer and the process-scoped memoization
// cache. Parsing is keyed by a SHA-256 fingerprint of the input bytes and
// runs at most once per distinct input, even under concurrent uploads.
type LedgerStore struct {
	mu     sync.RWMutex
	cache  map[string]models.Ledger
	state  ledgerState
	group  singleflight.Group
	logger *slog.Logger
}

type ledgerState struct {
	ledger      models.Ledger
	fingerprint string
	source      string
	loadedAt    time.Time
}

func NewLedgerStore(logger *slog.Logger) *LedgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerStore{
		cache:  make(map[string]models.Ledger),
		logger: logger,
	}
}

// Load parses a spreadsheet into a normalized ledger, memoizing on the
// content fingerprint. Repeated calls with identical bytes return the
// cached ledger without re-parsing.
func (s *LedgerStore) Load(source string, data []byte) (models.Ledger, string, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		cached, ok := s.cache[key]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		start := time.Now()
		ledger, err := parseSpreadsheet(source, data)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[key] = ledger
		s.mu.Unlock()

		s.logger.Info("ledger parsed",
			"source", source,
			"records", len(ledger),
			"fingerprint", key[:12],
			"duration", time.Since(start),
		)
		return ledger, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.(models.Ledger), key, nil
}

// SetCurrent replaces the ledger the dashboard serves from.
func (s *LedgerStore) SetCurrent(source, fingerprint string, ledger models.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ledgerState{
		ledger:      ledger,
		fingerprint: fingerprint,
		source:      source,
		loadedAt:    time.Now(),
	}
}

// Current returns the active full ledger. ok is false before any upload.
func (s *LedgerStore) Current() (models.Ledger, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ledger, s.state.ledger != nil
}

func (s *LedgerStore) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"records":       len(s.state.ledger),
		"products":      len(s.state.ledger.Products()),
		"source":        s.state.source,
		"fingerprint":   s.state.fingerprint,
		"loaded_at":     s.state.loadedAt,
		"cached_inputs": len(s.cache),
	}
}

// FilterLedger returns the view matching the active dashboard filters.
// An empty product set means all products; zero times mean unbounded.
// Date bounds compare calendar dates, inclusive on both ends.
func FilterLedger(ledger models.Ledger, products []string, from, to time.Time) models.Ledger {
	var want map[string]struct{}
	if len(products) > 0 {
		want = make(map[string]struct{}, len(products))
		for _, p := range products {
			want[p] = struct{}{}
		}
	}

	out := make(models.Ledger, 0, len(ledger))
	for _, rec := range ledger {
		if want != nil {
			if _, ok := want[rec.Product]; !ok {
				continue
			}
		}
		d := dateOnly(rec.Date)
		if !from.IsZero() && d.Before(dateOnly(from)) {
			continue
		}
		if !to.IsZero() && d.After(dateOnly(to)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseSpreadsheet turns raw upload bytes into a ledger. The format is
// sniffed from the content: xlsx workbooks start with the zip magic,
// anything else is treated as delimited text.
func parseSpreadsheet(source string, data []byte) (models.Ledger, error) {
	var (
		rows [][]string
		err  error
	)
	if isZip(data) || strings.HasSuffix(strings.ToLower(source), ".xlsx") {
		rows, err = workbookRows(data)
	} else {
		rows, err = delimitedRows(data)
	}
	if err != nil {
		return nil, err
	}
	return buildLedger(rows)
}

func isZip(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] == 'K'
}

func workbookRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedInput, "cannot open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.MalformedInput("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedInput, "cannot read worksheet rows")
	}
	return rows, nil
}

func delimitedRows(data []byte) ([][]string, error) {
	delim := ','
	if i := bytes.IndexByte(data, '\n'); i > 0 {
		head := string(data[:i])
		if strings.Count(head, ";") > strings.Count(head, ",") {
			delim = ';'
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformedInput, "cannot read delimited input")
	}
	return rows, nil
}

// buildLedger maps header columns to roles and parses data rows in
// index-preserving batches. The first row error aborts the whole load;
// there is no silent recovery.
func buildLedger(rows [][]string) (models.Ledger, error) {
	if len(rows) == 0 {
		return nil, errors.MalformedInput("input is empty")
	}

	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	dataRows := rows[1:]
	records := make([]models.TransactionRecord, len(dataRows))
	blank := make([]bool, len(dataRows))

	for start := 0; start < len(dataRows); start += parseBatchSize {
		end := min(start+parseBatchSize, len(dataRows))

		var g errgroup.Group
		g.SetLimit(parseMaxWorkers)

		for i := start; i < end; i++ {
			g.Go(func() error {
				row := dataRows[i]
				if isBlankRow(row) {
					blank[i] = true
					return nil
				}
				// Row numbers are 1-based and count the header, matching
				// what the user sees in their spreadsheet.
				rec, err := parseRecord(row, cols, i+2)
				if err != nil {
					return err
				}
				records[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	ledger := make(models.Ledger, 0, len(records))
	for i, rec := range records {
		if !blank[i] {
			ledger = append(ledger, rec)
		}
	}
	return ledger, nil
}

type columnIndexes struct {
	date, customer, product, amount int
}

func mapColumns(header []string) (columnIndexes, error) {
	found := map[string]int{}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range columnAliases {
			for _, alias := range aliases {
				if name == alias {
					if _, dup := found[role]; !dup {
						found[role] = i
					}
				}
			}
		}
	}

	var missing []string
	for role := range columnAliases {
		if _, ok := found[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return columnIndexes{}, errors.MalformedInput(
			fmt.Sprintf("missing required column(s): %s", strings.Join(missing, ", ")))
	}

	return columnIndexes{
		date:     found["date"],
		customer: found["customer_id"],
		product:  found["product"],
		amount:   found["amount"],
	}, nil
}

func parseRecord(row []string, cols columnIndexes, rowNum int) (models.TransactionRecord, error) {
	date, err := parseLedgerDate(cell(row, cols.date))
	if err != nil {
		return models.TransactionRecord{}, errors.RecordParseWrap(err, rowNum,
			fmt.Sprintf("row %d: unparseable date %q", rowNum, cell(row, cols.date)))
	}

	amount, err := parseAmount(cell(row, cols.amount))
	if err != nil {
		return models.TransactionRecord{}, errors.RecordParseWrap(err, rowNum,
			fmt.Sprintf("row %d: invalid amount %q", rowNum, cell(row, cols.amount)))
	}

	customer := strings.TrimSpace(cell(row, cols.customer))
	product := strings.TrimSpace(cell(row, cols.product))
	if customer == "" {
		return models.TransactionRecord{}, errors.RecordParse(rowNum,
			fmt.Sprintf("row %d: empty customer id", rowNum))
	}
	if product == "" {
		return models.TransactionRecord{}, errors.RecordParse(rowNum,
			fmt.Sprintf("row %d: empty product", rowNum))
	}

	return models.TransactionRecord{
		Date:       date,
		CustomerID: customer,
		Product:    product,
		Amount:     amount,
	}, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseLedgerDate accepts ISO and day-first textual dates plus Excel date
// serials, mixed freely within one column.
func parseLedgerDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Unstyled xlsx date cells surface as raw serial numbers (days since
	// 1899-12-30).
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1000 {
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		days := int(serial)
		frac := serial - float64(days)
		t := epoch.AddDate(0, 0, days)
		if frac > 0 {
			t = t.Add(time.Duration(math.Round(frac * 24 * float64(time.Hour))))
		}
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date format")
}

// parseAmount reads a non-negative currency value, normalizing comma
// decimal separators ("59,90", "1.234,56").
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("empty amount")
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount")
	}
	return d, nil
}
