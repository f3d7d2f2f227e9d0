package port

import (
	"context"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"
)

// TransactionFilter scopes an aggregation. UserID is mandatory; nil date
// bounds leave that side of the range open, and both bounds are inclusive.
// Type narrows to categories of one direction when set.
type TransactionFilter struct {
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
	Type      domain.CategoryType
}

// LedgerStore answers filtered, grouped numeric aggregations over a user's
// transaction ledger. Implementations never mutate data on behalf of the
// analytics engine; the Insert* helpers exist for seeding and tests.
type LedgerStore interface {
	// CategoryRollups returns one row per category the user owns, ordered
	// by total amount descending. Categories without matching transactions
	// appear with zero aggregates.
	CategoryRollups(ctx context.Context, f TransactionFilter) ([]domain.CategoryRollup, error)

	// TopExpenseTotals returns up to limit expense categories ranked by
	// total descending, plus the grand total of all expenses in the same
	// range. Both scans observe a single read snapshot.
	TopExpenseTotals(ctx context.Context, f TransactionFilter, limit int) ([]domain.CategoryTotal, float64, error)

	// HeatmapCells buckets expense transactions by (day-of-week,
	// hour-of-day), returning only non-empty buckets ordered ascending.
	HeatmapCells(ctx context.Context, f TransactionFilter) ([]domain.HeatmapCell, error)

	// PeriodTotals aggregates one inclusive date range: income, expense,
	// distinct transaction count, distinct non-null categories used.
	PeriodTotals(ctx context.Context, userID string, start, end time.Time) (domain.PeriodSummary, error)

	// DailyFlows returns per-date income/expense totals for categorized
	// transactions between since and until inclusive, ordered by date
	// ascending. The upper bound keeps future-dated entries out of
	// trailing-window computations.
	DailyFlows(ctx context.Context, userID string, since, until time.Time) ([]domain.DailyFlow, error)

	// LifetimeBalance is the signed income-minus-expense sum over every
	// categorized transaction the user ever recorded.
	LifetimeBalance(ctx context.Context, userID string) (float64, error)

	// SummaryTotals aggregates income, expense and transaction count for
	// an optional date range.
	SummaryTotals(ctx context.Context, f TransactionFilter) (domain.SummaryTotals, error)

	// ExportRows projects transactions to flat export rows ordered by date
	// then creation time.
	ExportRows(ctx context.Context, f TransactionFilter) ([]domain.ExportRow, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
