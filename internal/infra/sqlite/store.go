// Package sqlite implements the ledger store on an embedded SQLite
// database. All aggregation queries are read-only and scoped by user id;
// filters are assembled as (condition, args) pairs rather than by string
// concatenation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fintrackhq/fintrack-go/internal/domain"
	"github.com/fintrackhq/fintrack-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Store implements port.LedgerStore.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (creating if needed) the database at dbPath, runs migrations,
// and returns a ready store.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping implements port.LedgerStore.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// predicate is one WHERE/ON condition with its bind arguments.
type predicate struct {
	cond string
	args []any
}

// dateRange returns inclusive bound predicates on col for whichever bounds
// are present.
func dateRange(col string, start, end *time.Time) []predicate {
	var ps []predicate
	if start != nil {
		ps = append(ps, predicate{col + " >= ?", []any{start.Format(dateLayout)}})
	}
	if end != nil {
		ps = append(ps, predicate{col + " <= ?", []any{end.Format(dateLayout)}})
	}
	return ps
}

// join collapses predicates into an AND-joined clause and flat arg list.
func join(ps []predicate) (string, []any) {
	conds := make([]string, 0, len(ps))
	var args []any
	for _, p := range ps {
		conds = append(conds, p.cond)
		args = append(args, p.args...)
	}
	return strings.Join(conds, " AND "), args
}

// CategoryRollups implements port.LedgerStore. Outer-join semantics: the
// date filter narrows which transactions join, never which categories
// appear.
func (s *Store) CategoryRollups(ctx context.Context, f port.TransactionFilter) ([]domain.CategoryRollup, error) {
	joinPs := append([]predicate{
		{"t.category_id = c.id", nil},
		{"t.user_id = c.user_id", nil},
	}, dateRange("t.date", f.StartDate, f.EndDate)...)

	wherePs := []predicate{{"c.user_id = ?", []any{f.UserID}}}
	if f.Type != "" {
		wherePs = append(wherePs, predicate{"c.type = ?", []any{string(f.Type)}})
	}

	onClause, onArgs := join(joinPs)
	whereClause, whereArgs := join(wherePs)

	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.icon, c.color, c.type,
		       COUNT(t.id),
		       COALESCE(SUM(t.amount), 0),
		       COALESCE(AVG(t.amount), 0),
		       COALESCE(MIN(t.amount), 0),
		       COALESCE(MAX(t.amount), 0)
		FROM categories c
		LEFT JOIN transactions t ON %s
		WHERE %s
		GROUP BY c.id, c.name, c.icon, c.color, c.type
		ORDER BY COALESCE(SUM(t.amount), 0) DESC, c.name ASC`,
		onClause, whereClause)

	rows, err := s.db.QueryContext(ctx, query, append(onArgs, whereArgs...)...)
	if err != nil {
		return nil, &domain.ErrStore{Op: "category_rollups", Err: err}
	}
	defer rows.Close()

	var out []domain.CategoryRollup
	for rows.Next() {
		var r domain.CategoryRollup
		if err := rows.Scan(&r.CategoryID, &r.Name, &r.Icon, &r.Color, &r.Type,
			&r.TransactionCount, &r.TotalAmount, &r.AvgAmount, &r.MinAmount, &r.MaxAmount); err != nil {
			return nil, &domain.ErrStore{Op: "category_rollups", Err: err}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopExpenseTotals implements port.LedgerStore. The ranked rows and the
// grand total are two independent scans over the same filtered expense
// set, run inside one read-only transaction so they observe a single
// snapshot.
func (s *Store) TopExpenseTotals(ctx context.Context, f port.TransactionFilter, limit int) ([]domain.CategoryTotal, float64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, &domain.ErrStore{Op: "top_expenses", Err: err}
	}
	defer tx.Rollback()

	ps := append([]predicate{
		{"t.user_id = ?", []any{f.UserID}},
		{"c.type = 'expense'", nil},
	}, dateRange("t.date", f.StartDate, f.EndDate)...)
	whereClause, whereArgs := join(ps)

	rankQuery := fmt.Sprintf(`
		SELECT c.id, c.name, c.icon, c.color,
		       COUNT(t.id), COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE %s
		GROUP BY c.id, c.name, c.icon, c.color
		ORDER BY COALESCE(SUM(t.amount), 0) DESC, c.name ASC
		LIMIT ?`, whereClause)

	rows, err := tx.QueryContext(ctx, rankQuery, append(whereArgs, limit)...)
	if err != nil {
		return nil, 0, &domain.ErrStore{Op: "top_expenses", Err: err}
	}

	var totals []domain.CategoryTotal
	for rows.Next() {
		var t domain.CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.Name, &t.Icon, &t.Color,
			&t.TransactionCount, &t.TotalAmount); err != nil {
			rows.Close()
			return nil, 0, &domain.ErrStore{Op: "top_expenses", Err: err}
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, &domain.ErrStore{Op: "top_expenses", Err: err}
	}
	rows.Close()

	grandQuery := fmt.Sprintf(`
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE %s`, whereClause)

	var grand float64
	if err := tx.QueryRowContext(ctx, grandQuery, whereArgs...).Scan(&grand); err != nil {
		return nil, 0, &domain.ErrStore{Op: "top_expenses", Err: err}
	}

	return totals, grand, tx.Commit()
}

// HeatmapCells implements port.LedgerStore. Day-of-week comes from the
// logical transaction date (1=Sunday..7=Saturday), hour-of-day from the
// creation timestamp; the two fields can disagree for entries recorded
// after midnight and that is the shape consumers expect.
func (s *Store) HeatmapCells(ctx context.Context, f port.TransactionFilter) ([]domain.HeatmapCell, error) {
	ps := append([]predicate{
		{"t.user_id = ?", []any{f.UserID}},
		{"c.type = 'expense'", nil},
	}, dateRange("t.date", f.StartDate, f.EndDate)...)
	whereClause, whereArgs := join(ps)

	query := fmt.Sprintf(`
		SELECT CAST(strftime('%%w', t.date) AS INTEGER) + 1 AS dow,
		       CAST(strftime('%%H', t.created_at) AS INTEGER) AS hour,
		       COUNT(t.id), SUM(t.amount)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE %s
		GROUP BY dow, hour
		ORDER BY dow ASC, hour ASC`, whereClause)

	rows, err := s.db.QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return nil, &domain.ErrStore{Op: "heatmap", Err: err}
	}
	defer rows.Close()

	var out []domain.HeatmapCell
	for rows.Next() {
		var c domain.HeatmapCell
		if err := rows.Scan(&c.DayOfWeek, &c.HourOfDay, &c.TransactionCount, &c.TotalAmount); err != nil {
			return nil, &domain.ErrStore{Op: "heatmap", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PeriodTotals implements port.LedgerStore. The transaction count includes
// uncategorized entries (LEFT JOIN); the categories-used count ignores
// NULL category ids by SQL semantics of COUNT(DISTINCT).
func (s *Store) PeriodTotals(ctx context.Context, userID string, start, end time.Time) (domain.PeriodSummary, error) {
	const query = `
		SELECT COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN c.type = 'expense' THEN t.amount ELSE 0 END), 0),
		       COUNT(DISTINCT t.id),
		       COUNT(DISTINCT t.category_id)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.date >= ? AND t.date <= ?`

	var p domain.PeriodSummary
	err := s.db.QueryRowContext(ctx, query,
		userID, start.Format(dateLayout), end.Format(dateLayout)).
		Scan(&p.TotalIncome, &p.TotalExpense, &p.TransactionCount, &p.CategoriesUsed)
	if err != nil {
		return domain.PeriodSummary{}, &domain.ErrStore{Op: "period_totals", Err: err}
	}
	return p, nil
}

// DailyFlows implements port.LedgerStore. The inner join drops
// uncategorized transactions, so a date whose only entries lack a category
// yields no row. Both bounds are inclusive; future-dated entries past
// until never appear.
func (s *Store) DailyFlows(ctx context.Context, userID string, since, until time.Time) ([]domain.DailyFlow, error) {
	const query = `
		SELECT t.date,
		       COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN c.type = 'expense' THEN t.amount ELSE 0 END), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.date >= ? AND t.date <= ?
		GROUP BY t.date
		ORDER BY t.date ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, since.Format(dateLayout), until.Format(dateLayout))
	if err != nil {
		return nil, &domain.ErrStore{Op: "daily_flows", Err: err}
	}
	defer rows.Close()

	var out []domain.DailyFlow
	for rows.Next() {
		var f domain.DailyFlow
		if err := rows.Scan(&f.Date, &f.Income, &f.Expense); err != nil {
			return nil, &domain.ErrStore{Op: "daily_flows", Err: err}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LifetimeBalance implements port.LedgerStore.
func (s *Store) LifetimeBalance(ctx context.Context, userID string) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE -t.amount END), 0)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?`

	var balance float64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		return 0, &domain.ErrStore{Op: "lifetime_balance", Err: err}
	}
	return balance, nil
}

// SummaryTotals implements port.LedgerStore.
func (s *Store) SummaryTotals(ctx context.Context, f port.TransactionFilter) (domain.SummaryTotals, error) {
	ps := append([]predicate{{"t.user_id = ?", []any{f.UserID}}},
		dateRange("t.date", f.StartDate, f.EndDate)...)
	whereClause, whereArgs := join(ps)

	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN c.type = 'expense' THEN t.amount ELSE 0 END), 0),
		       COUNT(t.id)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s`, whereClause)

	var t domain.SummaryTotals
	err := s.db.QueryRowContext(ctx, query, whereArgs...).
		Scan(&t.TotalIncome, &t.TotalExpense, &t.TransactionCount)
	if err != nil {
		return domain.SummaryTotals{}, &domain.ErrStore{Op: "summary", Err: err}
	}
	t.Balance = t.TotalIncome - t.TotalExpense
	return t, nil
}

// ExportRows implements port.LedgerStore.
func (s *Store) ExportRows(ctx context.Context, f port.TransactionFilter) ([]domain.ExportRow, error) {
	ps := append([]predicate{{"t.user_id = ?", []any{f.UserID}}},
		dateRange("t.date", f.StartDate, f.EndDate)...)
	whereClause, whereArgs := join(ps)

	query := fmt.Sprintf(`
		SELECT t.date, COALESCE(c.name, ''), COALESCE(c.type, ''), t.amount, t.description
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE %s
		ORDER BY t.date ASC, t.created_at ASC`, whereClause)

	rows, err := s.db.QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return nil, &domain.ErrStore{Op: "export_rows", Err: err}
	}
	defer rows.Close()

	var out []domain.ExportRow
	for rows.Next() {
		var r domain.ExportRow
		if err := rows.Scan(&r.Date, &r.Category, &r.Type, &r.Amount, &r.Description); err != nil {
			return nil, &domain.ErrStore{Op: "export_rows", Err: err}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ============================================================
// Seed / fixture helpers (not exposed over HTTP)
// ============================================================

// InsertUser stores a user, generating an id when absent.
func (s *Store) InsertUser(ctx context.Context, u domain.User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.Name)
	if err != nil {
		return "", &domain.ErrStore{Op: "insert_user", Err: err}
	}
	return u.ID, nil
}

// InsertCategory stores a category, generating an id when absent.
func (s *Store) InsertCategory(ctx context.Context, c domain.Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, icon, color, type) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Icon, c.Color, string(c.Type))
	if err != nil {
		return "", &domain.ErrStore{Op: "insert_category", Err: err}
	}
	return c.ID, nil
}

// InsertTransaction stores a transaction, generating an id when absent.
// A zero CreatedAt defaults to now. CreatedAt is stored in UTC, matching
// the column's datetime('now') default, so the heatmap hour axis reads
// one consistent timezone.
func (s *Store) InsertTransaction(ctx context.Context, t domain.Transaction) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	var categoryID any
	if t.CategoryID != nil {
		categoryID = *t.CategoryID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, category_id, amount, date, created_at, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, categoryID, t.Amount,
		t.Date.Format(dateLayout), t.CreatedAt.UTC().Format(dateTimeLayout), t.Description)
	if err != nil {
		return "", &domain.ErrStore{Op: "insert_transaction", Err: err}
	}
	return t.ID, nil
}

// InsertAccount stores an account, generating an id when absent.
func (s *Store) InsertAccount(ctx context.Context, a domain.Account) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, percentage, planned_balance, actual_balance)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Percentage, a.PlannedBalance, a.ActualBalance)
	if err != nil {
		return "", &domain.ErrStore{Op: "insert_account", Err: err}
	}
	return a.ID, nil
}
