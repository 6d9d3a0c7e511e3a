package services

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/models"
)

// Recency bands in days since the last purchase. The dormant and churn
// bands overlap: anything past 180 days counts in both, and both counts
// are reported independently.
const (
	atRiskAfterDays  = 30
	dormantAfterDays = 90
	churnAfterDays   = 180

	topCustomerCount = 5
	topProductCount  = 5

	notApplicable = "n/a"
)

// Compute runs the full statistics catalog. It is a pure function of its
// inputs: same ledgers, reference date and horizon always produce an
// identical bundle, and concurrent invocations share no state.
//
// fullLedger is the entire unfiltered history and feeds every
// customer-lifetime measure (LTV, cadence, churn, RFM, segmentation,
// cohorts) so that product or date filters never truncate a customer's
// lifetime signal. filteredLedger feeds the period-scoped measures
// (revenue distribution, customer base, product ranking, monthly and
// weekday series).
func Compute(fullLedger, filteredLedger models.Ledger, referenceDate time.Time, horizonDays int) *models.MetricsBundle {
	if referenceDate.IsZero() {
		referenceDate = fullLedger.MaxDate()
	}
	if horizonDays < 1 {
		horizonDays = 1
	}

	fullTotals := customerTotals(fullLedger)
	fullDates := customerDates(fullLedger)
	gaps := meanGapByCustomer(fullDates)

	b := &models.MetricsBundle{ReferenceDate: referenceDate}
	b.Revenue = revenueStats(filteredLedger)
	b.Customers = customerBase(filteredLedger)
	b.Lifetime = lifetimeValue(fullTotals)
	b.Cadence = cadence(gaps)
	b.Churn = churnStats(fullDates, referenceDate)
	b.Projection = projection(fullLedger, fullDates, gaps, b.Cadence.MeanGapDays, referenceDate, horizonDays)
	b.RFM = rfmTable(fullLedger, referenceDate)
	b.Segmentation = segmentation(fullTotals)
	b.Products = productRanking(filteredLedger)
	b.Series = timeSeries(filteredLedger, fullLedger)
	b.Advisories = advisories(b)
	return b
}

// revenueStats describes the amount distribution of the filtered view.
// Every ratio short-circuits to zero on an empty group.
func revenueStats(ledger models.Ledger) models.RevenueStats {
	out := models.RevenueStats{Total: decimal.Zero}
	if len(ledger) == 0 {
		return out
	}

	values := make([]float64, 0, len(ledger))
	total := decimal.Zero
	for _, rec := range ledger {
		values = append(values, rec.Amount.InexactFloat64())
		total = total.Add(rec.Amount)
	}
	slices.Sort(values)

	out.Count = len(values)
	out.Total = total
	out.Mean = mean(values)
	out.Median = percentile(values, 0.50)
	out.Min = values[0]
	out.Max = values[len(values)-1]
	out.StdDev = sampleStdDev(values, out.Mean)
	out.P25 = percentile(values, 0.25)
	out.P50 = percentile(values, 0.50)
	out.P75 = percentile(values, 0.75)
	out.P90 = percentile(values, 0.90)
	if out.Mean != 0 {
		out.CoefVariation = out.StdDev / out.Mean * 100
	}
	return out
}

func customerBase(ledger models.Ledger) models.CustomerBase {
	counts := make(map[string]int)
	totals := customerTotals(ledger)
	for _, rec := range ledger {
		counts[rec.CustomerID]++
	}

	out := models.CustomerBase{UniqueCustomers: len(counts)}
	for _, n := range counts {
		if n >= 2 {
			out.RecurringCustomers++
		}
	}
	if out.UniqueCustomers > 0 {
		out.RecurrenceRate = float64(out.RecurringCustomers) / float64(out.UniqueCustomers) * 100
		sum := 0.0
		for _, t := range totals {
			sum += t.InexactFloat64()
		}
		out.AvgOrderValue = sum / float64(out.UniqueCustomers)
	}
	return out
}

func lifetimeValue(totals map[string]decimal.Decimal) models.LifetimeValue {
	out := models.LifetimeValue{
		MaxLTV:       decimal.Zero,
		BestCustomer: models.CustomerSpend{CustomerID: notApplicable, Total: decimal.Zero},
		TopCustomers: make([]models.CustomerSpend, 0),
	}
	if len(totals) == 0 {
		return out
	}

	ranked := rankCustomers(totals)
	sum := 0.0
	for _, cs := range ranked {
		sum += cs.Total.InexactFloat64()
	}
	out.MeanLTV = sum / float64(len(ranked))
	out.MaxLTV = ranked[0].Total
	out.BestCustomer = ranked[0]
	out.TopCustomers = ranked[:min(topCustomerCount, len(ranked))]
	return out
}

// rankCustomers orders by total spend descending, ties by customer id.
func rankCustomers(totals map[string]decimal.Decimal) []models.CustomerSpend {
	out := make([]models.CustomerSpend, 0, len(totals))
	for id, total := range totals {
		out = append(out, models.CustomerSpend{CustomerID: id, Total: total})
	}
	slices.SortFunc(out, func(a, b models.CustomerSpend) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return out
}

func cadence(gaps map[string]float64) models.Cadence {
	out := models.Cadence{CustomersWithGap: len(gaps)}
	if len(gaps) == 0 {
		return out
	}
	sum := 0.0
	for _, g := range gaps {
		sum += g
	}
	out.MeanGapDays = sum / float64(len(gaps))
	return out
}

func churnStats(dates map[string][]time.Time, referenceDate time.Time) models.ChurnStats {
	var out models.ChurnStats
	total := len(dates)
	if total == 0 {
		return out
	}

	for _, ds := range dates {
		days := daysSince(ds[len(ds)-1], referenceDate)
		switch {
		case days <= atRiskAfterDays:
			out.Active++
		case days <= dormantAfterDays:
			out.AtRisk++
		}
		// Dormant and churn are independent bands, not a partition.
		if days > dormantAfterDays {
			out.Dormant++
		}
		if days > churnAfterDays {
			out.Churned++
		}
	}

	out.ChurnRate = float64(out.Churned) / float64(total) * 100
	out.RetentionRate = 100 - out.ChurnRate
	out.DormantRate = float64(out.Dormant) / float64(total) * 100
	return out
}

// projection predicts near-term revenue from active customers' purchase
// rhythm: each active customer is expected back one mean gap after their
// last purchase, and contributes their historical mean transaction value
// if that lands inside the horizon. Customers with a single purchase fall
// back to the engine-wide mean gap.
func projection(full models.Ledger, dates map[string][]time.Time, gaps map[string]float64,
	fallbackGap float64, referenceDate time.Time, horizonDays int) models.Projection {

	out := models.Projection{HorizonDays: horizonDays}
	if len(dates) == 0 {
		return out
	}

	counts := make(map[string]int)
	totals := customerTotals(full)
	for _, rec := range full {
		counts[rec.CustomerID]++
	}

	horizon := referenceDate.AddDate(0, 0, horizonDays)
	for id, ds := range dates {
		last := ds[len(ds)-1]
		if daysSince(last, referenceDate) > atRiskAfterDays {
			continue
		}
		gap, ok := gaps[id]
		if !ok {
			gap = fallbackGap
		}
		predicted := last.Add(time.Duration(gap * 24 * float64(time.Hour)))
		if predicted.After(referenceDate) && !predicted.After(horizon) {
			out.DueCustomers++
			out.ProjectedRevenue += totals[id].InexactFloat64() / float64(counts[id])
		}
	}
	return out
}

func rfmTable(ledger models.Ledger, referenceDate time.Time) []models.RFMRow {
	type agg struct {
		last     time.Time
		count    int
		monetary decimal.Decimal
	}
	groups := make(map[string]*agg)
	for _, rec := range ledger {
		g := groups[rec.CustomerID]
		if g == nil {
			g = &agg{monetary: decimal.Zero}
			groups[rec.CustomerID] = g
		}
		if rec.Date.After(g.last) {
			g.last = rec.Date
		}
		g.count++
		g.monetary = g.monetary.Add(rec.Amount)
	}

	out := make([]models.RFMRow, 0, len(groups))
	for id, g := range groups {
		out = append(out, models.RFMRow{
			CustomerID:  id,
			RecencyDays: daysSince(g.last, referenceDate),
			Frequency:   g.count,
			Monetary:    g.monetary,
		})
	}
	slices.SortFunc(out, func(a, b models.RFMRow) int {
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return out
}

// segmentation buckets customers into spend tertiles. Bucketing is
// closed on the upper edge (v <= p33 is Basic, v <= p66 is Standard,
// above is Premium), so every customer lands in exactly one bucket even
// when the cut points collapse on degenerate data.
func segmentation(totals map[string]decimal.Decimal) models.Segmentation {
	var out models.Segmentation
	if len(totals) == 0 {
		return out
	}

	values := make([]float64, 0, len(totals))
	for _, t := range totals {
		values = append(values, t.InexactFloat64())
	}
	slices.Sort(values)

	out.BasicCeiling = percentile(values, 0.33)
	out.StandardCeiling = percentile(values, 0.66)

	for _, v := range values {
		switch {
		case v <= out.BasicCeiling:
			out.Basic++
		case v <= out.StandardCeiling:
			out.Standard++
		default:
			out.Premium++
		}
	}
	return out
}

func productRanking(ledger models.Ledger) models.ProductRanking {
	out := models.ProductRanking{
		Best:           models.ProductStat{Product: notApplicable, Revenue: decimal.Zero},
		Worst:          models.ProductStat{Product: notApplicable, Revenue: decimal.Zero},
		TopByFrequency: make([]models.ProductStat, 0),
		ABC:            make([]models.ABCRow, 0),
	}
	if len(ledger) == 0 {
		return out
	}

	type agg struct {
		revenue decimal.Decimal
		count   int
	}
	groups := make(map[string]*agg)
	for _, rec := range ledger {
		g := groups[rec.Product]
		if g == nil {
			g = &agg{revenue: decimal.Zero}
			groups[rec.Product] = g
		}
		g.revenue = g.revenue.Add(rec.Amount)
		g.count++
	}

	stats := make([]models.ProductStat, 0, len(groups))
	for name, g := range groups {
		stats = append(stats, models.ProductStat{
			Product:      name,
			Revenue:      g.revenue,
			Transactions: g.count,
			MeanValue:    g.revenue.InexactFloat64() / float64(g.count),
		})
	}

	// Revenue ranking and the ABC cumulative order are the same sort:
	// descending revenue, ties by product name.
	byRevenue := slices.Clone(stats)
	slices.SortFunc(byRevenue, func(a, b models.ProductStat) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return strings.Compare(a.Product, b.Product)
	})

	out.Best = byRevenue[0]
	out.Worst = byRevenue[len(byRevenue)-1]

	total := decimal.Zero
	for _, s := range byRevenue {
		total = total.Add(s.Revenue)
	}
	totalF := total.InexactFloat64()
	cum := 0.0
	for _, s := range byRevenue {
		share := 0.0
		if totalF > 0 {
			share = round1(s.Revenue.InexactFloat64() / totalF * 100)
		}
		cum = round1(cum + share)
		out.ABC = append(out.ABC, models.ABCRow{
			Product:       s.Product,
			Revenue:       s.Revenue,
			SharePct:      share,
			CumulativePct: cum,
		})
	}

	byFrequency := slices.Clone(stats)
	slices.SortFunc(byFrequency, func(a, b models.ProductStat) int {
		if a.Transactions != b.Transactions {
			return b.Transactions - a.Transactions
		}
		return strings.Compare(a.Product, b.Product)
	})
	out.TopByFrequency = byFrequency[:min(topProductCount, len(byFrequency))]

	return out
}

func timeSeries(filtered, full models.Ledger) models.TimeSeries {
	out := models.TimeSeries{
		Monthly: make([]models.MonthRevenue, 0),
		Weekday: make([]models.WeekdayRevenue, 0, 7),
		Cohorts: make([]models.CohortSize, 0),
	}

	monthly := make(map[string]decimal.Decimal)
	weekday := make(map[time.Weekday]decimal.Decimal)
	for _, rec := range filtered {
		m := rec.Date.Format("2006-01")
		monthly[m] = monthRevenueOrZero(monthly, m).Add(rec.Amount)
		weekday[rec.Date.Weekday()] = weekdayRevenueOrZero(weekday, rec.Date.Weekday()).Add(rec.Amount)
	}

	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	slices.Sort(months)
	for _, m := range months {
		out.Monthly = append(out.Monthly, models.MonthRevenue{Month: m, Revenue: monthly[m]})
	}

	if n := len(out.Monthly); n >= 2 {
		prev := out.Monthly[n-2].Revenue.InexactFloat64()
		last := out.Monthly[n-1].Revenue.InexactFloat64()
		if prev > 0 {
			out.MoMGrowthPct = (last - prev) / prev * 100
		}
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		out.Weekday = append(out.Weekday, models.WeekdayRevenue{
			Weekday: wd.String(),
			Revenue: weekdayRevenueOrZero(weekday, wd),
		})
	}

	// Cohorts group each customer by every month they transacted in, on
	// the full history: a period-activity count, not a first-purchase
	// acquisition cohort.
	cohorts := make(map[string]map[string]struct{})
	for _, rec := range full {
		m := rec.Date.Format("2006-01")
		if cohorts[m] == nil {
			cohorts[m] = make(map[string]struct{})
		}
		cohorts[m][rec.CustomerID] = struct{}{}
	}
	cohortMonths := make([]string, 0, len(cohorts))
	for m := range cohorts {
		cohortMonths = append(cohortMonths, m)
	}
	slices.Sort(cohortMonths)
	for _, m := range cohortMonths {
		out.Cohorts = append(out.Cohorts, models.CohortSize{Month: m, Customers: len(cohorts[m])})
	}

	return out
}

// advisories evaluates the rule list in fixed priority order and keeps
// every match, falling back to a single stable message.
func advisories(b *models.MetricsBundle) []string {
	out := make([]string, 0, 4)
	if b.Churn.ChurnRate > 30 {
		out = append(out, "Retention alert: churn rate above 30%.")
	}
	if b.Churn.DormantRate > 20 {
		out = append(out, "Reactivation alert: more than 20% of customers are dormant.")
	}
	if b.Series.MoMGrowthPct < 0 {
		out = append(out, "Sales declining month over month. Review pricing and campaigns.")
	}
	if b.Customers.RecurrenceRate > 50 {
		out = append(out, "Strong base: more than half of customers are recurring.")
	}
	if len(out) == 0 {
		out = append(out, "All indicators stable. Keep monitoring.")
	}
	return out
}

func customerTotals(ledger models.Ledger) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, rec := range ledger {
		if t, ok := totals[rec.CustomerID]; ok {
			totals[rec.CustomerID] = t.Add(rec.Amount)
		} else {
			totals[rec.CustomerID] = rec.Amount
		}
	}
	return totals
}

// customerDates returns each customer's purchase dates sorted ascending.
func customerDates(ledger models.Ledger) map[string][]time.Time {
	dates := make(map[string][]time.Time)
	for _, rec := range ledger {
		dates[rec.CustomerID] = append(dates[rec.CustomerID], rec.Date)
	}
	for _, ds := range dates {
		slices.SortFunc(ds, time.Time.Compare)
	}
	return dates
}

// meanGapByCustomer computes each customer's mean interval in days between
// consecutive purchases. Customers with fewer than two purchases have no
// entry.
func meanGapByCustomer(dates map[string][]time.Time) map[string]float64 {
	gaps := make(map[string]float64)
	for id, ds := range dates {
		if len(ds) < 2 {
			continue
		}
		sum := 0.0
		for i := 1; i < len(ds); i++ {
			sum += ds[i].Sub(ds[i-1]).Hours() / 24
		}
		gaps[id] = sum / float64(len(ds)-1)
	}
	return gaps
}

func daysSince(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev is the ddof=1 standard deviation; zero for fewer than two
// values.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile interpolates linearly between the two nearest ranks of a
// sorted slice.
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func monthRevenueOrZero(m map[string]decimal.Decimal, key string) decimal.Decimal {
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}

func weekdayRevenueOrZero(m map[time.Weekday]decimal.Decimal, key time.Weekday) decimal.Decimal {
	if v, ok := m[key]; ok {
		return v
	}
	return decimal.Zero
}
