package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
	"spendtrack/internal/storage"
)

type expenseRow struct {
	ID          int64
	Date        string
	Category    string
	Amount      string
	Description string
}

type expenseListViewModel struct {
	Username string
	Year     int
	Month    int
	Years    []int
	Expenses []expenseRow
	Page     int
	Pages    int
	PrevPage int
	NextPage int
}

type expenseFormViewModel struct {
	Username   string
	Categories []core.Category
	Errors     []string
	IsEdit     bool
	ID         int64

	Date        string
	Category    string
	Amount      string
	Description string
}

type importViewModel struct {
	Username string
	Error    string
	Result   *services.ImportResult
}

func (s *Server) handleExpenseList(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	year, month := parseYearMonth(r)
	page := parsePage(r)
	perPage := parsePageSize(r, pageSize)

	count, err := s.expenses.Count(r.Context(), user.ID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Count expenses failed", "error", err)
		http.Error(w, "failed to load expenses", http.StatusInternalServerError)
		return
	}

	pages := (count + perPage - 1) / perPage
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}

	items, err := s.expenses.List(r.Context(), user.ID, year, month, (page-1)*perPage, perPage)
	if err != nil {
		slog.ErrorContext(r.Context(), "List expenses failed", "error", err)
		http.Error(w, "failed to load expenses", http.StatusInternalServerError)
		return
	}

	years, err := s.expenses.Years(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List years failed", "error", err)
	}

	vm := expenseListViewModel{
		Username: user.Username,
		Year:     year,
		Month:    month,
		Years:    years,
		Page:     page,
		Pages:    pages,
		PrevPage: page - 1,
		NextPage: page + 1,
	}
	for _, e := range items {
		vm.Expenses = append(vm.Expenses, expenseRow{
			ID:          e.ID,
			Date:        e.Date.Format("2006-01-02"),
			Category:    string(e.Category),
			Amount:      core.FormatCents(e.Amount.Cents),
			Description: e.Description,
		})
	}

	s.render(w, r, "expenses.html", vm)
}

func (s *Server) handleExpenseForm(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	s.render(w, r, "expense_form.html", expenseFormViewModel{
		Username:   user.Username,
		Categories: core.Categories(),
		Date:       time.Now().Format("2006-01-02"),
	})
}

func (s *Server) handleExpenseCreate(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	in := expenseInputFromForm(r)
	// An unparseable date on create falls back to today; the service still
	// rejects genuinely future dates.
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		in.Date = time.Now().Format("2006-01-02")
	}
	e, err := s.expenses.Create(r.Context(), user.ID, in)
	if err != nil {
		s.render(w, r, "expense_form.html", expenseFormViewModel{
			Username:    user.Username,
			Categories:  core.Categories(),
			Errors:      splitViolations(err),
			Date:        in.Date,
			Category:    in.Category,
			Amount:      in.Amount,
			Description: in.Description,
		})
		return
	}

	s.invalidateSummary(user.ID, e.Date)
	http.Redirect(w, r, expenseListURL(e.Date), http.StatusFound)
}

func (s *Server) handleExpenseEditForm(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := expenseID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	e, err := s.expenses.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeExpenseError(w, r, err)
		return
	}

	s.render(w, r, "expense_form.html", expenseFormViewModel{
		Username:    user.Username,
		Categories:  core.Categories(),
		IsEdit:      true,
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Category:    string(e.Category),
		Amount:      core.FormatCents(e.Amount.Cents),
		Description: e.Description,
	})
}

func (s *Server) handleExpenseUpdate(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := expenseID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	in := expenseInputFromForm(r)
	previous, err := s.expenses.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeExpenseError(w, r, err)
		return
	}

	e, err := s.expenses.Update(r.Context(), user.ID, id, in)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) || errors.Is(err, storage.ErrNotFound) {
			s.writeExpenseError(w, r, err)
			return
		}
		s.render(w, r, "expense_form.html", expenseFormViewModel{
			Username:    user.Username,
			Categories:  core.Categories(),
			Errors:      splitViolations(err),
			IsEdit:      true,
			ID:          id,
			Date:        in.Date,
			Category:    in.Category,
			Amount:      in.Amount,
			Description: in.Description,
		})
		return
	}

	// An edit can move the expense to another month; both need a refresh.
	s.invalidateSummary(user.ID, previous.Date)
	s.invalidateSummary(user.ID, e.Date)
	http.Redirect(w, r, expenseListURL(e.Date), http.StatusFound)
}

func (s *Server) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := expenseID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	previous, err := s.expenses.Get(r.Context(), user.ID, id)
	if err != nil {
		s.writeExpenseError(w, r, err)
		return
	}

	if err := s.expenses.Delete(r.Context(), user.ID, id); err != nil {
		s.writeExpenseError(w, r, err)
		return
	}

	s.invalidateSummary(user.ID, previous.Date)
	http.Redirect(w, r, expenseListURL(previous.Date), http.StatusFound)
}

func (s *Server) handleImportForm(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	s.render(w, r, "import.html", importViewModel{Username: user.Username})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	user, err := userFrom(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "import.html", importViewModel{Username: user.Username, Error: "Invalid upload"})
		return
	}

	file, _, err := r.FormFile("csv")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.render(w, r, "import.html", importViewModel{Username: user.Username, Error: "Missing CSV file"})
		return
	}
	defer file.Close()

	result, err := s.expenses.ImportCSV(r.Context(), user.ID, file)
	if err != nil {
		slog.ErrorContext(r.Context(), "CSV import failed", "error", err, "user_id", user.ID)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "import.html", importViewModel{Username: user.Username, Error: "Import failed, nothing was saved"})
		return
	}

	for _, month := range result.Months {
		s.invalidateSummary(user.ID, month)
	}

	s.render(w, r, "import.html", importViewModel{Username: user.Username, Result: &result})
}

// writeExpenseError maps service errors onto status codes: a foreign
// expense is 403, a missing one 404.
func (s *Server) writeExpenseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, storage.ErrNotFound):
		http.NotFound(w, r)
	default:
		slog.ErrorContext(r.Context(), "Expense operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func expenseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func expenseInputFromForm(r *http.Request) services.ExpenseInput {
	return services.ExpenseInput{
		Date:        sanitizeInput(r.Form.Get("date")),
		Category:    sanitizeInput(r.Form.Get("category")),
		Amount:      sanitizeInput(r.Form.Get("amount")),
		Description: sanitizeInput(r.Form.Get("description")),
	}
}

func expenseListURL(date time.Time) string {
	return fmt.Sprintf("/expenses?year=%d&month=%d", date.Year(), int(date.Month()))
}

// splitViolations turns a joined validation error into one message per line
// for the form template.
func splitViolations(err error) []string {
	return strings.Split(err.Error(), "\n")
}
