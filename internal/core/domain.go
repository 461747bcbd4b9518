package core

import (
	"errors"
	"strings"
	"time"
)

// Category classifies an expense. The set of valid categories is fixed and
// shared by the service layer, the HTTP handlers, and the CSV importer.
type Category string

const (
	CategoryGroceries     Category = "groceries"
	CategoryUtilities     Category = "utilities"
	CategoryEntertainment Category = "entertainment"
	CategoryTransport     Category = "transport"
	CategoryHousing       Category = "housing"
	CategoryHealthcare    Category = "healthcare"
	CategoryOther         Category = "other"
)

// Categories returns the valid categories in display order.
func Categories() []Category {
	return []Category{
		CategoryGroceries,
		CategoryUtilities,
		CategoryEntertainment,
		CategoryTransport,
		CategoryHousing,
		CategoryHealthcare,
		CategoryOther,
	}
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGroceries, CategoryUtilities, CategoryEntertainment,
		CategoryTransport, CategoryHousing, CategoryHealthcare, CategoryOther:
		return true
	}
	return false
}

type (
	// Money is a monetary amount in integer cents.
	Money struct {
		Cents int64
	}

	// User is a registered account. Users are created on registration and
	// never mutated afterwards.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}

	// Expense is a single expense record owned by exactly one user.
	Expense struct {
		ID          int64
		UserID      int64
		Date        time.Time
		Category    Category
		Amount      Money
		Description string
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be greater than 0")
	ErrEmptyDescription = errors.New("description cannot be empty")
	ErrFutureDate       = errors.New("date cannot be in the future")
	ErrUnknownCategory  = errors.New("unknown category")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the expense against the canonical rule set and returns the
// first violated rule. now anchors the future-date check; only the calendar
// date matters, an expense dated today is always acceptable.
func (e Expense) Validate(now time.Time) error {
	violations := e.Violations(now)
	if len(violations) == 0 {
		return nil
	}
	return violations[0]
}

// Violations returns every violated rule, in check order. The edit form uses
// this to show the full list at once.
func (e Expense) Violations(now time.Time) []error {
	var errs []error
	if err := e.Amount.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(e.Description) == "" {
		errs = append(errs, ErrEmptyDescription)
	}
	if dateOnly(e.Date).After(dateOnly(now)) {
		errs = append(errs, ErrFutureDate)
	}
	if !e.Category.Valid() {
		errs = append(errs, ErrUnknownCategory)
	}
	return errs
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
