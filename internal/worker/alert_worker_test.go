package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

type capturingExporter struct {
	calls  int
	alerts []core.Alert
}

func (c *capturingExporter) AppendAlerts(ctx context.Context, userID int64, year, month int, alerts []core.Alert) error {
	c.calls++
	c.alerts = append(c.alerts, alerts...)
	return nil
}

func TestHandleExpenseEvent(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertExpenses(ctx, []core.Expense{
		{UserID: user.ID, Date: day, Category: core.CategoryGroceries, Amount: core.Money{Cents: 12000}, Description: "shop"},
		{UserID: user.ID, Date: day, Category: core.CategoryTransport, Amount: core.Money{Cents: 500}, Description: "bus"},
	}))

	budgets := map[core.Category]float64{core.CategoryGroceries: 100}
	exporter := &capturingExporter{}
	w := NewAlertWorker(repo, budgets, exporter)

	event := amqp.NewExpenseEvent(user.ID, 2026, 8, "created")
	require.NoError(t, w.HandleExpenseEvent(ctx, event))

	require.Len(t, exporter.alerts, 1)
	assert.Equal(t, core.CategoryGroceries, exporter.alerts[0].Category)
	assert.Equal(t, "20.00", exporter.alerts[0].Exceeded)

	// A month without overspend exports nothing.
	quiet := amqp.NewExpenseEvent(user.ID, 2026, 9, "created")
	require.NoError(t, w.HandleExpenseEvent(ctx, quiet))
	assert.Equal(t, 1, exporter.calls)
}

func TestHandleExpenseEventNoExporter(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, repo.InsertExpenses(ctx, []core.Expense{
		{UserID: user.ID, Date: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			Category: core.CategoryOther, Amount: core.Money{Cents: 99999}, Description: "x"},
	}))

	w := NewAlertWorker(repo, map[core.Category]float64{core.CategoryOther: 1}, nil)
	assert.NoError(t, w.HandleExpenseEvent(ctx, amqp.NewExpenseEvent(user.ID, 2026, 8, "imported")))
}
