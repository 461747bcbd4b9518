package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

func TestMonthSummary(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	batch := []core.Expense{
		{UserID: user.ID, Date: day, Category: core.CategoryGroceries, Amount: core.Money{Cents: 2000}, Description: "a"},
		{UserID: user.ID, Date: day, Category: core.CategoryGroceries, Amount: core.Money{Cents: 4000}, Description: "b"},
		{UserID: user.ID, Date: day, Category: core.CategoryTransport, Amount: core.Money{Cents: 1500}, Description: "c"},
	}
	require.NoError(t, repo.InsertExpenses(ctx, batch))

	svc := NewSummaryService(repo)
	summary, err := svc.MonthSummary(ctx, user.ID, 2026, 8)
	require.NoError(t, err)

	assert.EqualValues(t, 7500, summary.TotalCents)
	require.Len(t, summary.Totals, 2)
	assert.Equal(t, core.CategoryGroceries, summary.Totals[0].Category)
	assert.EqualValues(t, 6000, summary.Totals[0].Cents)
	require.Len(t, summary.Averages, 2)
	assert.InDelta(t, 3000, summary.Averages[0].Cents, 0.001)

	// Rerunning the aggregation must not change anything.
	again, err := svc.MonthSummary(ctx, user.ID, 2026, 8)
	require.NoError(t, err)
	assert.Equal(t, summary, again)

	empty, err := svc.MonthSummary(ctx, user.ID, 2026, 9)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalCents)
	assert.Empty(t, empty.Totals)
}

func TestGenerateAlerts(t *testing.T) {
	budgets := map[core.Category]float64{
		core.CategoryGroceries: 100,
		core.CategoryTransport: 50,
	}

	totals := []core.CategoryTotal{
		{Category: core.CategoryGroceries, Cents: 12000},
		{Category: core.CategoryTransport, Cents: 5000},
		{Category: core.CategoryHousing, Cents: 999999},
	}

	alerts := GenerateAlerts(totals, budgets)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.CategoryGroceries, alerts[0].Category)
	assert.Equal(t, "20.00", alerts[0].Exceeded)
}

func TestGenerateAlertsEdges(t *testing.T) {
	budgets := map[core.Category]float64{core.CategoryOther: 10}

	// Spend exactly at the budget does not alert.
	assert.Empty(t, GenerateAlerts([]core.CategoryTotal{{Category: core.CategoryOther, Cents: 1000}}, budgets))

	// One cent over does.
	alerts := GenerateAlerts([]core.CategoryTotal{{Category: core.CategoryOther, Cents: 1001}}, budgets)
	require.Len(t, alerts, 1)
	assert.Equal(t, "0.01", alerts[0].Exceeded)

	// No budgets configured never alerts.
	assert.Empty(t, GenerateAlerts([]core.CategoryTotal{{Category: core.CategoryOther, Cents: 1001}}, nil))
}
