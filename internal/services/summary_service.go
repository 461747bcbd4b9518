package services

import (
	"context"
	"fmt"
	"math"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// SummaryService aggregates monthly spending per category.
type SummaryService struct {
	storage *storage.SQLiteRepository
}

func NewSummaryService(storage *storage.SQLiteRepository) *SummaryService {
	return &SummaryService{storage: storage}
}

// MonthSummary returns a user's totals and averages for a year/month.
func (s *SummaryService) MonthSummary(ctx context.Context, userID int64, year, month int) (core.MonthSummary, error) {
	total, err := s.storage.SumAmounts(ctx, userID, year, month)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum total: %w", err)
	}

	totals, err := s.storage.SumAmountsByCategory(ctx, userID, year, month)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("sum by category: %w", err)
	}

	averages, err := s.storage.AverageAmountsByCategory(ctx, userID, year, month)
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("average by category: %w", err)
	}

	return core.MonthSummary{
		Year:       year,
		Month:      month,
		TotalCents: total,
		Totals:     totals,
		Averages:   averages,
	}, nil
}

// GenerateAlerts compares per-category totals against configured budgets
// (whole currency units) and reports the overspend for each exceeded one.
// Categories without a configured budget never alert.
func GenerateAlerts(totals []core.CategoryTotal, budgets map[core.Category]float64) []core.Alert {
	var alerts []core.Alert
	for _, t := range totals {
		budget, ok := budgets[t.Category]
		if !ok {
			continue
		}
		budgetCents := int64(math.Round(budget * 100))
		if t.Cents > budgetCents {
			alerts = append(alerts, core.Alert{
				Category: t.Category,
				Exceeded: core.FormatCents(t.Cents - budgetCents),
			})
		}
	}
	return alerts
}
