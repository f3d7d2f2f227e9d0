package domain

// CategoryRollup is one row of the per-category aggregation. Categories with
// no matching transactions still produce a row with zero aggregates.
type CategoryRollup struct {
	CategoryID       string       `json:"category_id"`
	Name             string       `json:"name"`
	Icon             string       `json:"icon"`
	Color            string       `json:"color"`
	Type             CategoryType `json:"type"`
	TransactionCount int64        `json:"transaction_count"`
	TotalAmount      float64      `json:"total_amount"`
	AvgAmount        float64      `json:"avg_amount"`
	MinAmount        float64      `json:"min_amount"`
	MaxAmount        float64      `json:"max_amount"`
}

// CategoryTotal is a ranked expense category before percentage annotation.
type CategoryTotal struct {
	CategoryID       string  `json:"category_id"`
	Name             string  `json:"name"`
	Icon             string  `json:"icon"`
	Color            string  `json:"color"`
	TransactionCount int64   `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
}

// TopExpense annotates a ranked expense category with its share of the
// grand total over the same date range. Percentage is 0 when the range has
// no expenses at all.
type TopExpense struct {
	CategoryTotal
	Percentage float64 `json:"percentage"`
}

// HeatmapCell is one non-empty (day-of-week, hour-of-day) expense bucket.
// DayOfWeek is 1=Sunday..7=Saturday, derived from the transaction date;
// HourOfDay is 0..23, derived from the creation timestamp.
type HeatmapCell struct {
	DayOfWeek        int     `json:"day_of_week"`
	HourOfDay        int     `json:"hour_of_day"`
	TransactionCount int64   `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
}

// HeatmapPeaks carries the derived stats over a set of heatmap cells.
// Ties resolve to the lowest index.
type HeatmapPeaks struct {
	PeakDay     int     `json:"peak_day"`
	PeakHour    int     `json:"peak_hour"`
	TotalAmount float64 `json:"total_amount"`
}

// PeriodSummary is one side of a two-period comparison. Period is always
// "period1" or "period2", matching the request slot rather than
// chronological order.
type PeriodSummary struct {
	Period           string  `json:"period"`
	TotalIncome      float64 `json:"total_income"`
	TotalExpense     float64 `json:"total_expense"`
	TransactionCount int64   `json:"transaction_count"`
	CategoriesUsed   int64   `json:"categories_used"`
}

// ForecastPoint is one projected day of the linear balance forecast.
// Confidence is a cosmetic linear decay (100-2i floored at 0), not a
// statistical measure.
type ForecastPoint struct {
	Date             string  `json:"date"`
	PredictedBalance float64 `json:"predicted_balance"`
	Confidence       int     `json:"confidence"`
}

// ForecastResult is the full forecast response.
type ForecastResult struct {
	CurrentBalance float64         `json:"current_balance"`
	AvgDailyChange float64         `json:"avg_daily_change"`
	Forecast       []ForecastPoint `json:"forecast"`
}

// Granularity selects the trend bucket size.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return g == GranularityDay || g == GranularityWeek || g == GranularityMonth
}

// TrendBucket is one time bucket of the income/expense series. Period keys
// sort lexicographically in chronological order (YYYY-MM-DD, YYYY-Www,
// YYYY-MM).
type TrendBucket struct {
	Period  string  `json:"period"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// DailyFlow is the categorized income/expense totals of one calendar date.
// Dates whose only transactions are uncategorized produce no flow.
type DailyFlow struct {
	Date    string  `json:"date"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Net is the signed daily change (income minus expense).
func (f DailyFlow) Net() float64 {
	return f.Income - f.Expense
}

// SummaryTotals is the dashboard header aggregate for a date range.
// TransactionCount includes uncategorized transactions; the money totals
// do not.
type SummaryTotals struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpense     float64 `json:"total_expense"`
	Balance          float64 `json:"balance"`
	TransactionCount int64   `json:"transaction_count"`
}

// ExportRow is the flat projection used by the CSV and XLSX exports.
// Category and Type are empty for uncategorized transactions.
type ExportRow struct {
	Date        string
	Category    string
	Type        string
	Amount      float64
	Description string
}
