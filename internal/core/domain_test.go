package core

import (
	"errors"
	"testing"
	"time"
)

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Fatalf("category %q should be valid", c)
		}
	}
	for _, c := range []Category{"", "Groceries", "food", "travel"} {
		if c.Valid() {
			t.Fatalf("category %q should be invalid", c)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	valid := Expense{
		UserID:      1,
		Date:        now,
		Category:    CategoryGroceries,
		Amount:      Money{Cents: 1250},
		Description: "weekly shop",
	}
	if err := valid.Validate(now); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero amount", func(e *Expense) { e.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount.Cents = -5 }, ErrInvalidAmount},
		{"blank description", func(e *Expense) { e.Description = "   " }, ErrEmptyDescription},
		{"future date", func(e *Expense) { e.Date = now.AddDate(0, 0, 1) }, ErrFutureDate},
		{"bad category", func(e *Expense) { e.Category = "gadgets" }, ErrUnknownCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(now); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestExpenseValidateTodayWithLaterClock(t *testing.T) {
	// Dated today but after the wall clock: still not "in the future".
	now := time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	e := Expense{
		Date:        time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC),
		Category:    CategoryOther,
		Amount:      Money{Cents: 100},
		Description: "late dinner",
	}
	if err := e.Validate(now); err != nil {
		t.Fatalf("expense dated today rejected: %v", err)
	}
}

func TestExpenseViolationsCollectsAll(t *testing.T) {
	now := time.Now()
	e := Expense{
		Date:        now.AddDate(0, 0, 2),
		Category:    "stuff",
		Amount:      Money{Cents: 0},
		Description: "",
	}
	got := e.Violations(now)
	if len(got) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(got), got)
	}
}
