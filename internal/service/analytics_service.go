// Package service contains the analytics engine: pure read/derive logic on
// top of the ledger store, recomputed on every request.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"
	"github.com/fintrackhq/fintrack-go/internal/infra/observability"
	"github.com/fintrackhq/fintrack-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/analytics")

const (
	// DefaultTopExpensesLimit bounds the top-expenses ranking when the
	// caller does not ask for a specific count.
	DefaultTopExpensesLimit = 10

	// DefaultForecastDays is the default projection horizon.
	DefaultForecastDays = 30

	// forecastWindowDays is the trailing observation window for the
	// average daily change, ending today inclusive.
	forecastWindowDays = 90

	// trendUnits is the trailing window width for every granularity.
	trendUnits = 12
)

// AnalyticsService computes rollups, comparisons, forecasts and trends over
// a user's ledger. It holds no mutable state beyond its wiring.
type AnalyticsService struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService wires the engine to its store.
func NewAnalyticsService(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// CategoryRollups returns one row per category, including categories with
// zero activity in the filtered range.
func (s *AnalyticsService) CategoryRollups(ctx context.Context, f port.TransactionFilter) ([]domain.CategoryRollup, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.CategoryRollups")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("category_rollups", time.Since(start)) }()
	s.metrics.IncrStoreQuery("category_rollups")

	rollups, err := s.store.CategoryRollups(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("category_rollups")
		return nil, err
	}
	return rollups, nil
}

// TopExpenses ranks expense categories by total amount and annotates each
// with its share of the range's expense grand total. A zero grand total
// yields zero percentages rather than NaN.
func (s *AnalyticsService) TopExpenses(ctx context.Context, f port.TransactionFilter, limit int) ([]domain.TopExpense, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.TopExpenses")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("top_expenses", time.Since(start)) }()

	if limit <= 0 {
		limit = DefaultTopExpensesLimit
	}

	s.metrics.IncrStoreQuery("top_expenses")
	totals, grand, err := s.store.TopExpenseTotals(ctx, f, limit)
	if err != nil {
		s.metrics.IncrStoreError("top_expenses")
		return nil, err
	}

	out := make([]domain.TopExpense, 0, len(totals))
	for _, t := range totals {
		pct := float64(0)
		if grand > 0 {
			pct = t.TotalAmount / grand * 100
		}
		out = append(out, domain.TopExpense{CategoryTotal: t, Percentage: pct})
	}
	return out, nil
}

// Heatmap returns the non-empty expense buckets ordered by
// (day-of-week, hour-of-day).
func (s *AnalyticsService) Heatmap(ctx context.Context, f port.TransactionFilter) ([]domain.HeatmapCell, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Heatmap")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("heatmap", time.Since(start)) }()
	s.metrics.IncrStoreQuery("heatmap")

	cells, err := s.store.HeatmapCells(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("heatmap")
		return nil, err
	}
	return cells, nil
}

// HeatmapPeaks derives the peak day and hour over the same buckets.
func (s *AnalyticsService) HeatmapPeaks(ctx context.Context, f port.TransactionFilter) (*domain.HeatmapPeaks, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.HeatmapPeaks")
	defer span.End()

	cells, err := s.Heatmap(ctx, f)
	if err != nil {
		return nil, err
	}
	peaks := ComputeHeatmapPeaks(cells)
	return &peaks, nil
}

// ComputeHeatmapPeaks finds the day with the largest summed amount across
// all hours and the hour with the largest summed amount across all days.
// Ties resolve to the lowest index: the scan runs left to right and only a
// strictly larger sum displaces the current peak.
func ComputeHeatmapPeaks(cells []domain.HeatmapCell) domain.HeatmapPeaks {
	var dayTotals [8]float64  // index 1..7
	var hourTotals [24]float64
	var total float64

	for _, c := range cells {
		if c.DayOfWeek >= 1 && c.DayOfWeek <= 7 {
			dayTotals[c.DayOfWeek] += c.TotalAmount
		}
		if c.HourOfDay >= 0 && c.HourOfDay <= 23 {
			hourTotals[c.HourOfDay] += c.TotalAmount
		}
		total += c.TotalAmount
	}

	peaks := domain.HeatmapPeaks{TotalAmount: total}
	if len(cells) == 0 {
		return peaks
	}

	peaks.PeakDay = 1
	for d := 2; d <= 7; d++ {
		if dayTotals[d] > dayTotals[peaks.PeakDay] {
			peaks.PeakDay = d
		}
	}
	for h := 1; h < 24; h++ {
		if hourTotals[h] > hourTotals[peaks.PeakHour] {
			peaks.PeakHour = h
		}
	}
	return peaks
}

// ComparePeriods aggregates two date ranges independently. The output order
// always matches the request slots, never chronology; range semantics
// (overlap, length) are the caller's responsibility.
func (s *AnalyticsService) ComparePeriods(ctx context.Context, userID string, p1Start, p1End, p2Start, p2End time.Time) ([]domain.PeriodSummary, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.ComparePeriods")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("compare_periods", time.Since(start)) }()

	var period1, period2 domain.PeriodSummary

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.metrics.IncrStoreQuery("period_totals")
		p, err := s.store.PeriodTotals(gCtx, userID, p1Start, p1End)
		if err != nil {
			s.metrics.IncrStoreError("period_totals")
			return err
		}
		period1 = p
		return nil
	})
	g.Go(func() error {
		s.metrics.IncrStoreQuery("period_totals")
		p, err := s.store.PeriodTotals(gCtx, userID, p2Start, p2End)
		if err != nil {
			s.metrics.IncrStoreError("period_totals")
			return err
		}
		period2 = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	period1.Period = "period1"
	period2.Period = "period2"
	return []domain.PeriodSummary{period1, period2}, nil
}

// Forecast projects the balance days ahead by first-order linear
// extrapolation. The average daily change is taken over the trailing
// 90-day window, divided by the number of dates that had categorized
// activity, not by 90. The formulas are load-bearing for downstream
// displays; do not adjust them.
func (s *AnalyticsService) Forecast(ctx context.Context, userID string, days int) (*domain.ForecastResult, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Forecast")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("forecast", time.Since(start)) }()

	if days <= 0 {
		days = DefaultForecastDays
	}

	today := s.today()
	since := today.AddDate(0, 0, -(forecastWindowDays - 1))

	var (
		flows   []domain.DailyFlow
		balance float64
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.metrics.IncrStoreQuery("daily_flows")
		fl, err := s.store.DailyFlows(gCtx, userID, since, today)
		if err != nil {
			s.metrics.IncrStoreError("daily_flows")
			return err
		}
		flows = fl
		return nil
	})
	g.Go(func() error {
		s.metrics.IncrStoreQuery("lifetime_balance")
		b, err := s.store.LifetimeBalance(gCtx, userID)
		if err != nil {
			s.metrics.IncrStoreError("lifetime_balance")
			return err
		}
		balance = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sum float64
	for _, f := range flows {
		sum += f.Net()
	}
	observed := len(flows)
	if observed < 1 {
		observed = 1
	}
	avg := sum / float64(observed)

	forecast := make([]domain.ForecastPoint, 0, days)
	for i := 1; i <= days; i++ {
		confidence := 100 - 2*i
		if confidence < 0 {
			confidence = 0
		}
		forecast = append(forecast, domain.ForecastPoint{
			Date:             today.AddDate(0, 0, i).Format("2006-01-02"),
			PredictedBalance: balance + avg*float64(i),
			Confidence:       confidence,
		})
	}

	return &domain.ForecastResult{
		CurrentBalance: balance,
		AvgDailyChange: avg,
		Forecast:       forecast,
	}, nil
}

// Trends buckets the trailing 12 units of categorized activity by the
// requested granularity. Keys are chosen so a plain string sort equals
// chronological order: YYYY-MM-DD, YYYY-Www (ISO week), YYYY-MM. Flows
// are clipped at today, so future-dated entries never open a bucket.
func (s *AnalyticsService) Trends(ctx context.Context, userID string, g domain.Granularity) ([]domain.TrendBucket, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Trends")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("trends", time.Since(start)) }()

	if g == "" {
		g = domain.GranularityMonth
	}
	if !g.Valid() {
		return nil, &domain.ErrValidation{Field: "period", Message: "must be day, week or month"}
	}

	today := s.today()
	since := trendWindowStart(today, g)

	s.metrics.IncrStoreQuery("daily_flows")
	flows, err := s.store.DailyFlows(ctx, userID, since, today)
	if err != nil {
		s.metrics.IncrStoreError("daily_flows")
		return nil, err
	}

	buckets := make(map[string]*domain.TrendBucket)
	for _, f := range flows {
		day, err := time.Parse("2006-01-02", f.Date)
		if err != nil {
			s.logger.Warn("trends: unparsable flow date", zap.String("date", f.Date))
			continue
		}
		key := bucketKey(day, g)
		b, ok := buckets[key]
		if !ok {
			b = &domain.TrendBucket{Period: key}
			buckets[key] = b
		}
		b.Income += f.Income
		b.Expense += f.Expense
	}

	out := make([]domain.TrendBucket, 0, len(buckets))
	for _, b := range buckets {
		b.Balance = b.Income - b.Expense
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// Summary aggregates the dashboard header totals for an optional range.
func (s *AnalyticsService) Summary(ctx context.Context, f port.TransactionFilter) (*domain.SummaryTotals, error) {
	ctx, span := tracer.Start(ctx, "AnalyticsService.Summary")
	defer span.End()

	start := s.now()
	defer func() { s.metrics.RecordRequestDuration("summary", time.Since(start)) }()
	s.metrics.IncrStoreQuery("summary")

	totals, err := s.store.SummaryTotals(ctx, f)
	if err != nil {
		s.metrics.IncrStoreError("summary")
		return nil, err
	}
	return &totals, nil
}

// today truncates the clock to the local calendar date.
func (s *AnalyticsService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// trendWindowStart is the first date of the oldest of the trailing 12
// units containing today.
func trendWindowStart(today time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityDay:
		return today.AddDate(0, 0, -(trendUnits - 1))
	case domain.GranularityWeek:
		// Back to Monday of the current ISO week, then 11 weeks further.
		offset := (int(today.Weekday()) + 6) % 7
		monday := today.AddDate(0, 0, -offset)
		return monday.AddDate(0, 0, -7*(trendUnits-1))
	default: // month
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first.AddDate(0, -(trendUnits - 1), 0)
	}
}

// bucketKey formats the lexicographically chronological key for a date.
func bucketKey(day time.Time, g domain.Granularity) string {
	switch g {
	case domain.GranularityDay:
		return day.Format("2006-01-02")
	case domain.GranularityWeek:
		year, week := day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default: // month
		return day.Format("2006-01")
	}
}
