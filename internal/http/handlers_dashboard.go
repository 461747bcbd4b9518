package http

import (
	"log/slog"
	"net/http"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
)

type categoryBar struct {
	Category string
	Total    string
	Average  string
	// Percent is the bar width relative to the biggest category, 0-100.
	Percent int
}

type alertView struct {
	Category string
	Exceeded string
}

type dashboardViewModel struct {
	Username string
	Year     int
	Month    int
	Years    []int
	Total    string
	Bars     []categoryBar
	Alerts   []alertView
	HasData  bool
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	year, month := parseYearMonth(r)

	key := summaryCacheKey(user.ID, year, month)
	summary, ok := s.summaryCache.Get(key)
	if !ok {
		summary, err = s.summaries.MonthSummary(r.Context(), user.ID, year, month)
		if err != nil {
			slog.ErrorContext(r.Context(), "Month summary failed", "error", err, "user_id", user.ID)
			http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
			return
		}
		s.summaryCache.Set(key, summary)
	}

	years, err := s.expenses.Years(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List years failed", "error", err)
	}

	vm := dashboardViewModel{
		Username: user.Username,
		Year:     year,
		Month:    month,
		Years:    years,
		Total:    core.FormatCents(summary.TotalCents),
		Bars:     buildBars(summary),
		HasData:  summary.TotalCents > 0,
	}

	// Overspend warnings only make sense for the month still in progress.
	now := time.Now()
	if year == now.Year() && month == int(now.Month()) {
		for _, a := range services.GenerateAlerts(summary.Totals, s.budgets) {
			vm.Alerts = append(vm.Alerts, alertView{Category: string(a.Category), Exceeded: a.Exceeded})
		}
	}

	s.render(w, r, "dashboard.html", vm)
}

// buildBars scales each category total against the biggest one so the
// largest bar always spans the full width.
func buildBars(summary core.MonthSummary) []categoryBar {
	var max int64
	for _, t := range summary.Totals {
		if t.Cents > max {
			max = t.Cents
		}
	}

	averages := make(map[core.Category]float64, len(summary.Averages))
	for _, a := range summary.Averages {
		averages[a.Category] = a.Cents
	}

	var bars []categoryBar
	for _, t := range summary.Totals {
		percent := 0
		if max > 0 {
			percent = int(t.Cents * 100 / max)
		}
		bars = append(bars, categoryBar{
			Category: string(t.Category),
			Total:    core.FormatCents(t.Cents),
			Average:  core.FormatCents(int64(averages[t.Category] + 0.5)),
			Percent:  percent,
		})
	}
	return bars
}
