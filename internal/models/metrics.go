package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer recency status bands, keyed on days since the last purchase
// relative to the reference date. Dormant and Churn overlap on purpose:
// every churned customer is also dormant, and both counts are reported
// independently.
const (
	StatusActive  = "Active"
	StatusAtRisk  = "AtRisk"
	StatusDormant = "Dormant"
	StatusChurn   = "Churn"
)

// RevenueStats describes the distribution of transaction amounts in the
// filtered view.
type RevenueStats struct {
	Count         int             `json:"count"`
	Total         decimal.Decimal `json:"total"`
	Mean          float64         `json:"mean"`
	Median        float64         `json:"median"`
	Min           float64         `json:"min"`
	Max           float64         `json:"max"`
	StdDev        float64         `json:"std_dev"`
	P25           float64         `json:"p25"`
	P50           float64         `json:"p50"`
	P75           float64         `json:"p75"`
	P90           float64         `json:"p90"`
	CoefVariation float64         `json:"coef_variation"`
}

type CustomerBase struct {
	UniqueCustomers    int     `json:"unique_customers"`
	RecurringCustomers int     `json:"recurring_customers"`
	RecurrenceRate     float64 `json:"recurrence_rate"`
	AvgOrderValue      float64 `json:"avg_order_value"`
}

// CustomerSpend is a customer with their total historical spend.
type CustomerSpend struct {
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
}

// LifetimeValue is always computed on the full unfiltered history so that
// product or date filters never truncate a customer's lifetime signal.
type LifetimeValue struct {
	MeanLTV      float64         `json:"mean_ltv"`
	MaxLTV       decimal.Decimal `json:"max_ltv"`
	BestCustomer CustomerSpend   `json:"best_customer"`
	TopCustomers []CustomerSpend `json:"top_customers"`
}

type Cadence struct {
	// MeanGapDays is the engine-wide mean of the per-customer mean
	// inter-purchase gaps. Customers with fewer than two purchases are
	// excluded, not treated as zero.
	MeanGapDays      float64 `json:"mean_gap_days"`
	CustomersWithGap int     `json:"customers_with_gap"`
}

type ChurnStats struct {
	Active        int     `json:"active"`
	AtRisk        int     `json:"at_risk"`
	Dormant       int     `json:"dormant"`
	Churned       int     `json:"churned"`
	ChurnRate     float64 `json:"churn_rate"`
	RetentionRate float64 `json:"retention_rate"`
	DormantRate   float64 `json:"dormant_rate"`
}

type Projection struct {
	HorizonDays      int     `json:"horizon_days"`
	DueCustomers     int     `json:"due_customers"`
	ProjectedRevenue float64 `json:"projected_revenue"`
}

// RFMRow is one customer's Recency/Frequency/Monetary profile against the
// reference date.
type RFMRow struct {
	CustomerID  string          `json:"customer_id"`
	RecencyDays int             `json:"recency_days"`
	Frequency   int             `json:"frequency"`
	Monetary    decimal.Decimal `json:"monetary"`
}

// Segmentation buckets customers by total-spend tertiles.
type Segmentation struct {
	Basic           int     `json:"basic"`
	Standard        int     `json:"standard"`
	Premium         int     `json:"premium"`
	BasicCeiling    float64 `json:"basic_ceiling"`
	StandardCeiling float64 `json:"standard_ceiling"`
}

type ProductStat struct {
	Product      string          `json:"product"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
	MeanValue    float64         `json:"mean_value"`
}

// ABCRow is one step of the revenue concentration curve. Rows are ordered
// descending by revenue and the cumulative column is non-decreasing.
type ABCRow struct {
	Product       string          `json:"product"`
	Revenue       decimal.Decimal `json:"revenue"`
	SharePct      float64         `json:"share_pct"`
	CumulativePct float64         `json:"cumulative_pct"`
}

type ProductRanking struct {
	Best           ProductStat   `json:"best"`
	Worst          ProductStat   `json:"worst"`
	TopByFrequency []ProductStat `json:"top_by_frequency"`
	ABC            []ABCRow      `json:"abc"`
}

type MonthRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type WeekdayRevenue struct {
	Weekday string          `json:"weekday"`
	Revenue decimal.Decimal `json:"revenue"`
}

type CohortSize struct {
	Month     string `json:"month"`
	Customers int    `json:"customers"`
}

type TimeSeries struct {
	Monthly      []MonthRevenue   `json:"monthly"`
	MoMGrowthPct float64          `json:"mom_growth_pct"`
	Weekday      []WeekdayRevenue `json:"weekday"`
	Cohorts      []CohortSize     `json:"cohorts"`
}

// MetricsBundle is the full statistics catalog for one compute pass. It is
// a pure function of the two ledgers, the reference date and the horizon;
// nothing in it survives the call that produced it.
type MetricsBundle struct {
	ReferenceDate time.Time      `json:"reference_date"`
	Revenue       RevenueStats   `json:"revenue"`
	Customers     CustomerBase   `json:"customers"`
	Lifetime      LifetimeValue  `json:"lifetime"`
	Cadence       Cadence        `json:"cadence"`
	Churn         ChurnStats     `json:"churn"`
	Projection    Projection     `json:"projection"`
	RFM           []RFMRow       `json:"rfm"`
	Segmentation  Segmentation   `json:"segmentation"`
	Products      ProductRanking `json:"products"`
	Series        TimeSeries     `json:"series"`
	Advisories    []string       `json:"advisories"`
}
