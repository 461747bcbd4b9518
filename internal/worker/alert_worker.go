package worker

import (
	"context"
	"fmt"
	"log/slog"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/services"
	"spendtrack/internal/storage"
)

// AlertExporter ships generated alerts to an external sink. Nil means the
// worker only logs them.
type AlertExporter interface {
	AppendAlerts(ctx context.Context, userID int64, year, month int, alerts []core.Alert) error
}

// AlertWorker re-evaluates a user's monthly budget position whenever an
// expense event arrives.
type AlertWorker struct {
	storage  *storage.SQLiteRepository
	budgets  map[core.Category]float64
	exporter AlertExporter
}

func NewAlertWorker(storage *storage.SQLiteRepository, budgets map[core.Category]float64, exporter AlertExporter) *AlertWorker {
	return &AlertWorker{
		storage:  storage,
		budgets:  budgets,
		exporter: exporter,
	}
}

// HandleExpenseEvent processes a single expense event from AMQP.
func (w *AlertWorker) HandleExpenseEvent(ctx context.Context, msg *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"user_id", msg.UserID,
		"year", msg.Year,
		"month", msg.Month,
		"action", msg.Action)

	totals, err := w.storage.SumAmountsByCategory(ctx, msg.UserID, msg.Year, msg.Month)
	if err != nil {
		return fmt.Errorf("sum amounts by category: %w", err)
	}

	alerts := services.GenerateAlerts(totals, w.budgets)
	if len(alerts) == 0 {
		return nil
	}

	for _, a := range alerts {
		slog.WarnContext(ctx, "Budget exceeded",
			"user_id", msg.UserID,
			"year", msg.Year,
			"month", msg.Month,
			"category", a.Category,
			"exceeded", a.Exceeded)
	}

	if w.exporter != nil {
		if err := w.exporter.AppendAlerts(ctx, msg.UserID, msg.Year, msg.Month, alerts); err != nil {
			return fmt.Errorf("export alerts: %w", err)
		}
	}

	return nil
}
