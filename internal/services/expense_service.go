package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// ErrForbidden is returned when a user operates on another user's expense.
var ErrForbidden = errors.New("expense belongs to another user")

// ExpenseInput carries the raw form values for a create or update.
type ExpenseInput struct {
	Date        string
	Category    string
	Amount      string
	Description string
}

// SkippedRow records one rejected CSV row and why it was rejected.
type SkippedRow struct {
	Line   int
	Reason string
	Raw    string
}

// ImportResult reports the outcome of a CSV import: how many rows landed,
// which ones were skipped, and the months the import touched.
type ImportResult struct {
	Imported int
	Skipped  []SkippedRow
	Months   []time.Time
}

// CSV row skip reasons, checked in this order.
const (
	skipColumnCount = "Invalid column count"
	skipCategory    = "Unknown category"
	skipDescription = "Empty description"
	skipDate        = "Invalid date"
	skipAmount      = "Invalid amount"
)

const csvDateLayout = "2006-01-02"

// ExpenseService validates and persists expenses, and notifies downstream
// workers over AMQP when a user's month changes.
type ExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	now        func() time.Time
}

func NewExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *ExpenseService {
	return &ExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
		now:        time.Now,
	}
}

// Create validates the input and inserts a new expense for the user.
// Only the first violated rule is reported; the edit path collects them all.
func (s *ExpenseService) Create(ctx context.Context, userID int64, in ExpenseInput) (core.Expense, error) {
	e, errs := s.buildExpense(userID, in)
	if len(errs) > 0 {
		return core.Expense{}, errs[0]
	}

	if err := s.storage.SaveExpense(ctx, &e); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publishEvent(ctx, userID, e.Date, "created")
	return e, nil
}

// Update validates the input and updates an existing expense. The expense
// must belong to the user; anything else is ErrForbidden.
func (s *ExpenseService) Update(ctx context.Context, userID, id int64, in ExpenseInput) (core.Expense, error) {
	existing, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if existing.UserID != userID {
		return core.Expense{}, ErrForbidden
	}

	e, errs := s.buildExpense(userID, in)
	if len(errs) > 0 {
		return core.Expense{}, errors.Join(errs...)
	}
	e.ID = id

	if err := s.storage.SaveExpense(ctx, &e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.publishEvent(ctx, userID, e.Date, "updated")
	return e, nil
}

// Delete removes an expense after an ownership check.
func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	existing, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrForbidden
	}

	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publishEvent(ctx, userID, existing.Date, "deleted")
	return nil
}

// Get retrieves one expense for the user, enforcing ownership.
func (s *ExpenseService) Get(ctx context.Context, userID, id int64) (core.Expense, error) {
	e, err := s.storage.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if e.UserID != userID {
		return core.Expense{}, ErrForbidden
	}
	return e, nil
}

// List returns one page of the user's expenses for a year/month.
func (s *ExpenseService) List(ctx context.Context, userID int64, year, month, offset, limit int) ([]core.Expense, error) {
	return s.storage.ListExpenses(ctx, userID, year, month, offset, limit)
}

// Count returns the number of the user's expenses in a year/month.
func (s *ExpenseService) Count(ctx context.Context, userID int64, year, month int) (int, error) {
	return s.storage.CountExpenses(ctx, userID, year, month)
}

// Years returns the distinct years the user has expenses in.
func (s *ExpenseService) Years(ctx context.Context, userID int64) ([]int, error) {
	return s.storage.ExpenditureYears(ctx, userID)
}

// buildExpense parses the raw input and returns every violated rule, so the
// edit form can show the complete list. An unparseable amount leaves Cents at
// zero and is reported through the positive-amount rule.
func (s *ExpenseService) buildExpense(userID int64, in ExpenseInput) (core.Expense, []error) {
	e := core.Expense{
		UserID:      userID,
		Category:    core.Category(strings.TrimSpace(in.Category)),
		Description: strings.TrimSpace(in.Description),
	}

	if cents, err := core.ParseDecimalToCents(in.Amount); err == nil {
		e.Amount = core.Money{Cents: cents}
	}

	var dateErr error
	if date, err := time.Parse(csvDateLayout, strings.TrimSpace(in.Date)); err == nil {
		e.Date = date
	} else {
		dateErr = fmt.Errorf("invalid date %q", in.Date)
	}

	errs := e.Violations(s.now())
	if dateErr != nil {
		errs = append(errs, dateErr)
	}
	if len(errs) > 0 {
		return core.Expense{}, errs
	}
	return e, nil
}

// ImportCSV reads comma-delimited rows (date, amount, description, category;
// no header) and inserts all valid ones for the user in a single transaction.
// Invalid rows are skipped with a reason; a persistence failure aborts the
// whole batch.
func (s *ExpenseService) ImportCSV(ctx context.Context, userID int64, r io.Reader) (ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result ImportResult
	var staged []core.Expense

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: skipColumnCount})
			continue
		}

		e, reason := s.parseRow(userID, record)
		if reason != "" {
			result.Skipped = append(result.Skipped, SkippedRow{
				Line:   line,
				Reason: reason,
				Raw:    strings.Join(record, ","),
			})
			continue
		}
		staged = append(staged, e)
	}

	if err := s.storage.InsertExpenses(ctx, staged); err != nil {
		return ImportResult{}, fmt.Errorf("import expenses: %w", err)
	}
	result.Imported = len(staged)

	seen := make(map[string]bool)
	for _, e := range staged {
		month := time.Date(e.Date.Year(), e.Date.Month(), 1, 0, 0, 0, 0, time.UTC)
		key := month.Format("2006-01")
		if !seen[key] {
			seen[key] = true
			result.Months = append(result.Months, month)
			s.publishEvent(ctx, userID, month, "imported")
		}
	}

	slog.InfoContext(ctx, "CSV import finished",
		"user_id", userID,
		"imported", result.Imported,
		"skipped", len(result.Skipped))

	return result, nil
}

// parseRow validates a single CSV record. The checks run in a fixed order so
// a row with several problems always reports the same reason.
func (s *ExpenseService) parseRow(userID int64, record []string) (core.Expense, string) {
	if len(record) != 4 {
		return core.Expense{}, skipColumnCount
	}

	category := core.Category(strings.TrimSpace(record[3]))
	if !category.Valid() {
		return core.Expense{}, skipCategory
	}

	description := strings.TrimSpace(record[2])
	if description == "" {
		return core.Expense{}, skipDescription
	}

	date, err := time.Parse(csvDateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		return core.Expense{}, skipDate
	}

	cents, err := core.ParseDecimalToCents(record[1])
	if err != nil {
		return core.Expense{}, skipAmount
	}

	return core.Expense{
		UserID:      userID,
		Date:        date,
		Category:    category,
		Amount:      core.Money{Cents: cents},
		Description: description,
	}, ""
}

func (s *ExpenseService) publishEvent(ctx context.Context, userID int64, date time.Time, action string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishExpenseEvent(ctx, userID, date.Year(), int(date.Month()), action); err != nil {
		// The expense is already persisted; a lost event only delays
		// downstream alerting.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"user_id", userID, "action", action, "error", err)
	}
}
