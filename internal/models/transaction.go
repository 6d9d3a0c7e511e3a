package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is one row of the sales ledger: a single sale of one
// product to one customer. Records are immutable once loaded.
type TransactionRecord struct {
	Date       time.Time       `json:"date"`
	CustomerID string          `json:"customer_id"`
	Product    string          `json:"product"`
	Amount     decimal.Decimal `json:"amount"`
}

// Ledger is a batch of transaction records. Insertion order carries no
// meaning; every derived view groups by customer, product or month.
type Ledger []TransactionRecord

// MaxDate returns the latest transaction date, which callers fix as the
// engine's reference "today". Zero time for an empty ledger.
func (l Ledger) MaxDate() time.Time {
	var max time.Time
	for _, rec := range l {
		if rec.Date.After(max) {
			max = rec.Date
		}
	}
	return max
}

// MinDate returns the earliest transaction date, zero time when empty.
func (l Ledger) MinDate() time.Time {
	var min time.Time
	for i, rec := range l {
		if i == 0 || rec.Date.Before(min) {
			min = rec.Date
		}
	}
	return min
}

// TotalAmount sums all record amounts.
func (l Ledger) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range l {
		total = total.Add(rec.Amount)
	}
	return total
}

// Products returns the distinct product names in ascending order.
func (l Ledger) Products() []string {
	seen := make(map[string]struct{}, len(l))
	out := make([]string, 0)
	for _, rec := range l {
		if _, ok := seen[rec.Product]; !ok {
			seen[rec.Product] = struct{}{}
			out = append(out, rec.Product)
		}
	}
	slices.SortFunc(out, strings.Compare)
	return out
}
