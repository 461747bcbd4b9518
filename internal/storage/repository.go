package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendtrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Dates are persisted as TEXT so the month/year filters can lean on
// sqlite's strftime.
const dateTimeLayout = "2006-01-02 15:04:05"

// SQLiteRepository provides persistence for users, sessions and expenses
// over a single sqlite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations. Use ":memory:" for a throwaway database in tests.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// An in-memory database exists per connection; force a single one so
	// migrations and queries see the same schema.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

// CreateUser inserts a new user and returns it with the generated id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	createdAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, createdAt.Format(dateTimeLayout))
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "username", username)

	return core.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// GetUserByUsername returns the user with the given username or ErrNotFound.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByID returns the user with the given id or ErrNotFound.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if t, err := time.Parse(dateTimeLayout, createdAt); err == nil {
		u.CreatedAt = t
	}
	return u, nil
}

// --- sessions ---

// CreateSession stores a session token for a user.
func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)`,
		token, userID, expiresAt.UTC().Format(dateTimeLayout), time.Now().UTC().Format(dateTimeLayout))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionInfo pairs a session's user with its expiry.
type SessionInfo struct {
	User      core.User
	ExpiresAt time.Time
}

// SessionUser resolves a live session token to its user. Expired or unknown
// tokens return ErrNotFound.
func (r *SQLiteRepository) SessionUser(ctx context.Context, token string) (core.User, error) {
	info, err := r.GetSession(ctx, token)
	if err != nil {
		return core.User{}, err
	}
	return info.User, nil
}

// GetSession resolves a live session token to its user and expiry. Expired
// or unknown tokens return ErrNotFound.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (SessionInfo, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.password_hash, u.created_at, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC().Format(dateTimeLayout))

	var info SessionInfo
	var createdAt, expiresAt string
	if err := row.Scan(&info.User.ID, &info.User.Username, &info.User.PasswordHash, &createdAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionInfo{}, ErrNotFound
		}
		return SessionInfo{}, fmt.Errorf("scan session: %w", err)
	}
	if t, err := time.Parse(dateTimeLayout, createdAt); err == nil {
		info.User.CreatedAt = t
	}
	if t, err := time.Parse(dateTimeLayout, expiresAt); err == nil {
		info.ExpiresAt = t
	}
	return info, nil
}

// RenewSession pushes a session's expiry forward and stamps the activity.
func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ?, last_activity = ? WHERE token = ?`,
		expiresAt.UTC().Format(dateTimeLayout), time.Now().UTC().Format(dateTimeLayout), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew session count: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session by token.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanExpiredSessions removes all expired sessions and returns the count.
func (r *SQLiteRepository) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`,
		time.Now().UTC().Format(dateTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions count: %w", err)
	}
	return n, nil
}

// --- expenses ---

// SaveExpense persists an expense. A zero id inserts and fills in the
// generated id; a non-zero id updates the row scoped by id AND owner, so a
// stale or foreign id can never overwrite another user's record.
func (r *SQLiteRepository) SaveExpense(ctx context.Context, e *core.Expense) error {
	if e.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO expenses (user_id, date, category, amount_cents, description)
			 VALUES (?, ?, ?, ?, ?)`,
			e.UserID, e.Date.Format(dateTimeLayout), string(e.Category), e.Amount.Cents, e.Description)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("expense insert id: %w", err)
		}
		e.ID = id
		return nil
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		 SET date = ?, category = ?, amount_cents = ?, description = ?
		 WHERE id = ? AND user_id = ?`,
		e.Date.Format(dateTimeLayout), string(e.Category), e.Amount.Cents, e.Description, e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("expense update count: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertExpenses inserts all expenses inside a single transaction. Either
// every row lands or none do; the caller has already filtered out invalid
// rows, so any failure here is a persistence fault, not bad input.
func (r *SQLiteRepository) InsertExpenses(ctx context.Context, expenses []core.Expense) error {
	if len(expenses) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO expenses (user_id, date, category, amount_cents, description)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range expenses {
		if _, err := stmt.ExecContext(ctx,
			e.UserID, e.Date.Format(dateTimeLayout), string(e.Category), e.Amount.Cents, e.Description); err != nil {
			return fmt.Errorf("insert expense batch row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense batch: %w", err)
	}
	return nil
}

// GetExpense retrieves a single expense by id, or ErrNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, category, amount_cents, description FROM expenses WHERE id = ?`, id)

	var e core.Expense
	var date, category string
	if err := row.Scan(&e.ID, &e.UserID, &date, &category, &e.Amount.Cents, &e.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Category = core.Category(category)
	if t, err := time.Parse(dateTimeLayout, date); err == nil {
		e.Date = t
	}
	return e, nil
}

// DeleteExpense removes an expense by id.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

// ListExpenses returns one page of a user's expenses for a year/month,
// newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64, year, month, offset, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, date, category, amount_cents, description
		FROM expenses
		WHERE user_id = ? AND strftime('%Y', date) = ? AND strftime('%m', date) = ?
		ORDER BY date DESC
		LIMIT ? OFFSET ?`,
		userID, yearArg(year), monthArg(month), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var date, category string
		if err := rows.Scan(&e.ID, &e.UserID, &date, &category, &e.Amount.Cents, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		e.Category = core.Category(category)
		if t, err := time.Parse(dateTimeLayout, date); err == nil {
			e.Date = t
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// CountExpenses returns how many expenses a user has in a year/month.
func (r *SQLiteRepository) CountExpenses(ctx context.Context, userID int64, year, month int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM expenses
		WHERE user_id = ? AND strftime('%Y', date) = ? AND strftime('%m', date) = ?`,
		userID, yearArg(year), monthArg(month)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return count, nil
}

// ExpenditureYears returns the distinct years a user has expenses in,
// newest first.
func (r *SQLiteRepository) ExpenditureYears(ctx context.Context, userID int64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT CAST(strftime('%Y', date) AS INTEGER) AS year
		FROM expenses WHERE user_id = ? ORDER BY year DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenditure years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// SumAmounts returns the user's total spend in cents for a year/month.
func (r *SQLiteRepository) SumAmounts(ctx context.Context, userID int64, year, month int) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM expenses
		WHERE user_id = ? AND strftime('%Y', date) = ? AND strftime('%m', date) = ?`,
		userID, yearArg(year), monthArg(month)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum amounts: %w", err)
	}
	return total, nil
}

// SumAmountsByCategory returns per-category totals in cents for a year/month.
func (r *SQLiteRepository) SumAmountsByCategory(ctx context.Context, userID int64, year, month int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents) AS total
		FROM expenses
		WHERE user_id = ? AND strftime('%Y', date) = ? AND strftime('%m', date) = ?
		GROUP BY category ORDER BY category`,
		userID, yearArg(year), monthArg(month))
	if err != nil {
		return nil, fmt.Errorf("sum amounts by category: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var t core.CategoryTotal
		var category string
		if err := rows.Scan(&category, &t.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t.Category = core.Category(category)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// AverageAmountsByCategory returns per-category averages in fractional cents
// for a year/month.
func (r *SQLiteRepository) AverageAmountsByCategory(ctx context.Context, userID int64, year, month int) ([]core.CategoryAverage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, AVG(amount_cents) AS average
		FROM expenses
		WHERE user_id = ? AND strftime('%Y', date) = ? AND strftime('%m', date) = ?
		GROUP BY category ORDER BY category`,
		userID, yearArg(year), monthArg(month))
	if err != nil {
		return nil, fmt.Errorf("average amounts by category: %w", err)
	}
	defer rows.Close()

	var averages []core.CategoryAverage
	for rows.Next() {
		var a core.CategoryAverage
		var category string
		if err := rows.Scan(&category, &a.Cents); err != nil {
			return nil, fmt.Errorf("scan category average: %w", err)
		}
		a.Category = core.Category(category)
		averages = append(averages, a)
	}
	return averages, rows.Err()
}

func yearArg(year int) string {
	return fmt.Sprintf("%04d", year)
}

func monthArg(month int) string {
	return fmt.Sprintf("%02d", month)
}
