package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"
	"github.com/fintrackhq/fintrack-go/internal/infra/sqlite"
	"github.com/fintrackhq/fintrack-go/internal/port"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "fintrack_test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func mustDateTime(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("parse datetime %q: %v", value, err)
	}
	return d
}

// seedLedger builds the recurring fixture: one user with three
// categories (two expense, one income), two grocery purchases and one
// salary payment, plus a second user whose data must never leak in.
type seedIDs struct {
	user      string
	groceries string
	transport string
	salary    string
	other     string
}

func seedLedger(t *testing.T, store *sqlite.Store) seedIDs {
	t.Helper()
	ctx := context.Background()

	user, err := store.InsertUser(ctx, domain.User{Email: "ana@example.com", Name: "Ana"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	other, err := store.InsertUser(ctx, domain.User{Email: "bo@example.com", Name: "Bo"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}

	groceries := seedCategory(t, store, user, "Groceries", domain.CategoryExpense)
	transport := seedCategory(t, store, user, "Transport", domain.CategoryExpense)
	salary := seedCategory(t, store, user, "Salary", domain.CategoryIncome)
	otherCat := seedCategory(t, store, other, "Groceries", domain.CategoryExpense)

	seedTx(t, store, user, &groceries, 100, "2024-01-10", "2024-01-10 09:30:00", "market")
	seedTx(t, store, user, &groceries, 50, "2024-01-20", "2024-01-20 18:15:00", "bakery")
	seedTx(t, store, user, &salary, 1000, "2024-01-05", "2024-01-05 08:00:00", "january pay")
	seedTx(t, store, other, &otherCat, 999, "2024-01-10", "2024-01-10 09:30:00", "not yours")

	return seedIDs{user: user, groceries: groceries, transport: transport, salary: salary, other: other}
}

func seedCategory(t *testing.T, store *sqlite.Store, userID, name string, typ domain.CategoryType) string {
	t.Helper()
	id, err := store.InsertCategory(context.Background(), domain.Category{
		UserID: userID,
		Name:   name,
		Type:   typ,
	})
	if err != nil {
		t.Fatalf("insert category %s: %v", name, err)
	}
	return id
}

func seedTx(t *testing.T, store *sqlite.Store, userID string, categoryID *string, amount float64, date, createdAt, desc string) {
	t.Helper()
	_, err := store.InsertTransaction(context.Background(), domain.Transaction{
		UserID:      userID,
		CategoryID:  categoryID,
		Amount:      amount,
		Date:        mustDate(t, date),
		CreatedAt:   mustDateTime(t, createdAt),
		Description: desc,
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
}

func rollupByName(rollups []domain.CategoryRollup, name string) (domain.CategoryRollup, bool) {
	for _, r := range rollups {
		if r.Name == name {
			return r, true
		}
	}
	return domain.CategoryRollup{}, false
}

func TestCategoryRollups(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)
	ctx := context.Background()

	rollups, err := store.CategoryRollups(ctx, port.TransactionFilter{UserID: ids.user})
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}
	if len(rollups) != 3 {
		t.Fatalf("expected 3 rollups, got %d", len(rollups))
	}

	groceries, ok := rollupByName(rollups, "Groceries")
	if !ok {
		t.Fatal("missing Groceries rollup")
	}
	if groceries.TransactionCount != 2 || groceries.TotalAmount != 150 || groceries.AvgAmount != 75 {
		t.Errorf("groceries rollup: %+v", groceries)
	}
	if groceries.MinAmount != 50 || groceries.MaxAmount != 100 {
		t.Errorf("groceries min/max: %+v", groceries)
	}

	salary, ok := rollupByName(rollups, "Salary")
	if !ok {
		t.Fatal("missing Salary rollup")
	}
	if salary.TotalAmount != 1000 || salary.Type != domain.CategoryIncome {
		t.Errorf("salary rollup: %+v", salary)
	}

	// Transport has no transactions but must still produce a zero row.
	transport, ok := rollupByName(rollups, "Transport")
	if !ok {
		t.Fatal("missing Transport rollup")
	}
	if transport.TransactionCount != 0 || transport.TotalAmount != 0 || transport.AvgAmount != 0 {
		t.Errorf("transport rollup should be all zeros: %+v", transport)
	}

	// Ordered by total descending; Salary (1000) leads.
	if rollups[0].Name != "Salary" || rollups[1].Name != "Groceries" {
		t.Errorf("unexpected order: %s, %s, %s", rollups[0].Name, rollups[1].Name, rollups[2].Name)
	}
}

func TestCategoryRollupsTypeFilter(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	rollups, err := store.CategoryRollups(context.Background(), port.TransactionFilter{
		UserID: ids.user,
		Type:   domain.CategoryExpense,
	})
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}
	if len(rollups) != 2 {
		t.Fatalf("expected 2 expense rollups, got %d", len(rollups))
	}
	for _, r := range rollups {
		if r.Type != domain.CategoryExpense {
			t.Errorf("unexpected type in %+v", r)
		}
	}
}

func TestCategoryRollupsDateBoundsAreInclusive(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	start := mustDate(t, "2024-01-10")
	end := mustDate(t, "2024-01-20")

	rollups, err := store.CategoryRollups(context.Background(), port.TransactionFilter{
		UserID:    ids.user,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}

	// Both grocery purchases sit exactly on the bounds.
	groceries, _ := rollupByName(rollups, "Groceries")
	if groceries.TransactionCount != 2 {
		t.Errorf("expected both boundary transactions, got %+v", groceries)
	}

	// The salary on Jan 5 is outside the range, but its category still
	// shows up with zero aggregates.
	salary, ok := rollupByName(rollups, "Salary")
	if !ok {
		t.Fatal("date filter must not drop categories")
	}
	if salary.TransactionCount != 0 || salary.TotalAmount != 0 {
		t.Errorf("salary should be zeroed by the range: %+v", salary)
	}
}

func TestCategoryRollupsScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	rollups, err := store.CategoryRollups(context.Background(), port.TransactionFilter{UserID: ids.other})
	if err != nil {
		t.Fatalf("rollups: %v", err)
	}
	if len(rollups) != 1 {
		t.Fatalf("expected 1 rollup for second user, got %d", len(rollups))
	}
	if rollups[0].TotalAmount != 999 {
		t.Errorf("second user total: %+v", rollups[0])
	}
}

func TestTopExpenseTotals(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)
	seedTx(t, store, ids.user, &ids.transport, 30, "2024-01-12", "2024-01-12 12:00:00", "bus")

	totals, grand, err := store.TopExpenseTotals(context.Background(), port.TransactionFilter{UserID: ids.user}, 10)
	if err != nil {
		t.Fatalf("top expenses: %v", err)
	}
	if grand != 180 {
		t.Errorf("expected grand total 180, got %v", grand)
	}
	if len(totals) != 2 || totals[0].Name != "Groceries" || totals[0].TotalAmount != 150 {
		t.Errorf("unexpected ranking: %+v", totals)
	}

	// Income never ranks as an expense.
	for _, c := range totals {
		if c.Name == "Salary" {
			t.Error("income category ranked among expenses")
		}
	}
}

func TestTopExpenseTotalsLimitKeepsGrandTotal(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)
	seedTx(t, store, ids.user, &ids.transport, 30, "2024-01-12", "2024-01-12 12:00:00", "bus")

	totals, grand, err := store.TopExpenseTotals(context.Background(), port.TransactionFilter{UserID: ids.user}, 1)
	if err != nil {
		t.Fatalf("top expenses: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("limit not applied: %d rows", len(totals))
	}
	// The grand total covers all expenses, not just the ranked rows.
	if grand != 180 {
		t.Errorf("expected grand total 180, got %v", grand)
	}
}

func TestHeatmapCells(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.InsertUser(ctx, domain.User{Email: "heat@example.com", Name: "Heat"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	food := seedCategory(t, store, user, "Food", domain.CategoryExpense)
	pay := seedCategory(t, store, user, "Pay", domain.CategoryIncome)

	// 2024-01-07 is a Sunday (dow 1), 2024-01-01 a Monday (dow 2).
	seedTx(t, store, user, &food, 20, "2024-01-07", "2024-01-07 09:30:00", "sunday brunch")
	seedTx(t, store, user, &food, 10, "2024-01-07", "2024-01-07 09:55:00", "sunday coffee")
	seedTx(t, store, user, &food, 40, "2024-01-01", "2024-01-01 23:10:00", "late snack")
	seedTx(t, store, user, &pay, 500, "2024-01-07", "2024-01-07 09:30:00", "income is invisible here")

	cells, err := store.HeatmapCells(ctx, port.TransactionFilter{UserID: user})
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells, got %d: %+v", len(cells), cells)
	}

	// Ordered by dow then hour.
	sunday := cells[0]
	if sunday.DayOfWeek != 1 || sunday.HourOfDay != 9 || sunday.TransactionCount != 2 || sunday.TotalAmount != 30 {
		t.Errorf("sunday cell: %+v", sunday)
	}
	monday := cells[1]
	if monday.DayOfWeek != 2 || monday.HourOfDay != 23 || monday.TotalAmount != 40 {
		t.Errorf("monday cell: %+v", monday)
	}
}

func TestHeatmapHourComesFromCreatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.InsertUser(ctx, domain.User{Email: "night@example.com", Name: "Night"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	food := seedCategory(t, store, user, "Food", domain.CategoryExpense)

	// Dated Sunday but recorded Monday morning: the day-of-week axis
	// follows the date, the hour axis follows the recording time.
	seedTx(t, store, user, &food, 15, "2024-01-07", "2024-01-08 01:20:00", "after midnight")

	cells, err := store.HeatmapCells(ctx, port.TransactionFilter{UserID: user})
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(cells))
	}
	if cells[0].DayOfWeek != 1 || cells[0].HourOfDay != 1 {
		t.Errorf("expected dow 1 hour 1, got %+v", cells[0])
	}
}

func TestHeatmapHourStoredInUTC(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.InsertUser(ctx, domain.User{Email: "tz@example.com", Name: "Tz"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	food := seedCategory(t, store, user, "Food", domain.CategoryExpense)

	// 14:30 at UTC+5 is 09:30 UTC; the stored hour follows UTC regardless
	// of the caller's zone, matching the column's datetime('now') default.
	zone := time.FixedZone("UTC+5", 5*3600)
	_, err = store.InsertTransaction(ctx, domain.Transaction{
		UserID:     user,
		CategoryID: &food,
		Amount:     25,
		Date:       mustDate(t, "2024-01-10"),
		CreatedAt:  time.Date(2024, 1, 10, 14, 30, 0, 0, zone),
	})
	if err != nil {
		t.Fatalf("insert transaction: %v", err)
	}

	cells, err := store.HeatmapCells(ctx, port.TransactionFilter{UserID: user})
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(cells) != 1 || cells[0].HourOfDay != 9 {
		t.Errorf("expected hour 9 (UTC), got %+v", cells)
	}
}

func TestPeriodTotalsCountsUncategorized(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	// An uncategorized entry counts as a transaction but neither as money
	// flow nor as a category used.
	seedTx(t, store, ids.user, nil, 77, "2024-01-15", "2024-01-15 10:00:00", "cash, unknown")

	p, err := store.PeriodTotals(context.Background(), ids.user,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("period totals: %v", err)
	}
	if p.TotalIncome != 1000 || p.TotalExpense != 150 {
		t.Errorf("money totals: %+v", p)
	}
	if p.TransactionCount != 4 {
		t.Errorf("expected 4 transactions incl. uncategorized, got %d", p.TransactionCount)
	}
	if p.CategoriesUsed != 2 {
		t.Errorf("expected 2 categories used, got %d", p.CategoriesUsed)
	}
}

func TestDailyFlowsSkipsUncategorized(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	// A date with only an uncategorized entry produces no flow at all.
	seedTx(t, store, ids.user, nil, 77, "2024-01-15", "2024-01-15 10:00:00", "cash, unknown")

	flows, err := store.DailyFlows(context.Background(), ids.user,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("daily flows: %v", err)
	}
	if len(flows) != 3 {
		t.Fatalf("expected 3 flow dates, got %d: %+v", len(flows), flows)
	}
	if flows[0].Date != "2024-01-05" || flows[0].Income != 1000 || flows[0].Expense != 0 {
		t.Errorf("first flow: %+v", flows[0])
	}
	if flows[1].Date != "2024-01-10" || flows[1].Expense != 100 {
		t.Errorf("second flow: %+v", flows[1])
	}
	for _, f := range flows {
		if f.Date == "2024-01-15" {
			t.Error("uncategorized-only date leaked into flows")
		}
	}
}

func TestDailyFlowsSinceBound(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	flows, err := store.DailyFlows(context.Background(), ids.user,
		mustDate(t, "2024-01-10"), mustDate(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("daily flows: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("expected 2 flows since Jan 10, got %d", len(flows))
	}
	if flows[0].Date != "2024-01-10" {
		t.Errorf("since bound must be inclusive, got %+v", flows[0])
	}
}

func TestDailyFlowsUntilBoundExcludesFutureDates(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	// A post-dated salary far past the window must not inflate the flows.
	seedTx(t, store, ids.user, &ids.salary, 9000, "2024-03-01", "2024-03-01 08:00:00", "post-dated")

	flows, err := store.DailyFlows(context.Background(), ids.user,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("daily flows: %v", err)
	}
	for _, f := range flows {
		if f.Date > "2024-01-31" {
			t.Errorf("flow beyond the until bound: %+v", f)
		}
	}
	if len(flows) != 3 {
		t.Errorf("expected 3 in-window flows, got %d: %+v", len(flows), flows)
	}

	// The bound is inclusive on the far side as well.
	flows, err = store.DailyFlows(context.Background(), ids.user,
		mustDate(t, "2024-03-01"), mustDate(t, "2024-03-01"))
	if err != nil {
		t.Fatalf("daily flows: %v", err)
	}
	if len(flows) != 1 || flows[0].Income != 9000 {
		t.Errorf("expected the boundary date itself, got %+v", flows)
	}
}

func TestLifetimeBalance(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)

	balance, err := store.LifetimeBalance(context.Background(), ids.user)
	if err != nil {
		t.Fatalf("lifetime balance: %v", err)
	}
	if balance != 850 {
		t.Errorf("expected 850, got %v", balance)
	}

	// Fresh user: zero, not an error.
	empty, err := store.InsertUser(context.Background(), domain.User{Email: "new@example.com", Name: "New"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	balance, err = store.LifetimeBalance(context.Background(), empty)
	if err != nil {
		t.Fatalf("lifetime balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("expected 0 for empty ledger, got %v", balance)
	}
}

func TestSummaryTotals(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)
	seedTx(t, store, ids.user, nil, 77, "2024-01-15", "2024-01-15 10:00:00", "cash, unknown")

	totals, err := store.SummaryTotals(context.Background(), port.TransactionFilter{UserID: ids.user})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if totals.TotalIncome != 1000 || totals.TotalExpense != 150 || totals.Balance != 850 {
		t.Errorf("summary totals: %+v", totals)
	}
	if totals.TransactionCount != 4 {
		t.Errorf("expected 4 transactions, got %d", totals.TransactionCount)
	}
}

func TestExportRows(t *testing.T) {
	store := newTestStore(t)
	ids := seedLedger(t, store)
	seedTx(t, store, ids.user, nil, 77, "2024-01-15", "2024-01-15 10:00:00", "cash, unknown")

	rows, err := store.ExportRows(context.Background(), port.TransactionFilter{UserID: ids.user})
	if err != nil {
		t.Fatalf("export rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0].Date != "2024-01-05" || rows[0].Category != "Salary" || rows[0].Type != "income" {
		t.Errorf("first row: %+v", rows[0])
	}
	// Uncategorized rows export with empty category and type.
	uncat := rows[2]
	if uncat.Date != "2024-01-15" || uncat.Category != "" || uncat.Type != "" || uncat.Amount != 77 {
		t.Errorf("uncategorized row: %+v", uncat)
	}
	if rows[3].Date != "2024-01-20" {
		t.Errorf("rows must sort by date: %+v", rows[3])
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
