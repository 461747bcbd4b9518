package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendtrack/internal/cache"
	"spendtrack/internal/core"
	"spendtrack/internal/log"
	"spendtrack/internal/services"
	appweb "spendtrack/web"
)

const pageSize = 5

// Server wires the HTTP surface: routing, templates, session auth,
// rate limiting and a small summary cache.
type Server struct {
	http.Server
	templates *template.Template

	auth      *services.AuthService
	expenses  *services.ExpenseService
	summaries *services.SummaryService
	budgets   map[core.Category]float64

	secureCookie bool
	rateLimiter  *rateLimiter

	// Dashboard aggregates are cached per user/month and invalidated on
	// any write for that user.
	summaryCache *cache.LRUCache[core.MonthSummary]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, auth *services.AuthService, expenses *services.ExpenseService, summaries *services.SummaryService, budgets map[core.Category]float64, secureCookie bool) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:             auth,
		expenses:         expenses,
		summaries:        summaries,
		budgets:          budgets,
		secureCookie:     secureCookie,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /register", s.withSecurityHeaders(s.handleRegisterForm))
	mux.HandleFunc("POST /register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("GET /login", s.withSecurityHeaders(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /logout", s.withSecurityHeaders(s.handleLogout))

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.requireAuth(s.handleDashboard)))
	mux.HandleFunc("GET /expenses", s.withSecurityHeaders(s.requireAuth(s.handleExpenseList)))
	mux.HandleFunc("GET /expenses/new", s.withSecurityHeaders(s.requireAuth(s.handleExpenseForm)))
	mux.HandleFunc("POST /expenses", s.withSecurityHeaders(s.requireAuth(s.handleExpenseCreate)))
	mux.HandleFunc("GET /expenses/{id}/edit", s.withSecurityHeaders(s.requireAuth(s.handleExpenseEditForm)))
	mux.HandleFunc("POST /expenses/{id}", s.withSecurityHeaders(s.requireAuth(s.handleExpenseUpdate)))
	mux.HandleFunc("POST /expenses/{id}/delete", s.withSecurityHeaders(s.requireAuth(s.handleExpenseDelete)))
	mux.HandleFunc("GET /expenses/import", s.withSecurityHeaders(s.requireAuth(s.handleImportForm)))
	mux.HandleFunc("POST /expenses/import", s.withSecurityHeaders(s.requireAuth(s.handleImport)))

	return s
}

var templateFuncs = template.FuncMap{
	"formatCents": core.FormatCents,
	"monthName":   func(m int) string { return time.Month(m).String() },
	"seq": func(from, to int) []int {
		out := make([]int, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
}

// startCacheCleanup runs periodic cleanup for the summary cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.summaryCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func summaryCacheKey(userID int64, year, month int) string {
	return fmt.Sprintf("summary:%d:%04d-%02d", userID, year, month)
}

// invalidateSummary drops the cached aggregates for a user's month after a
// write so the next dashboard load recomputes them.
func (s *Server) invalidateSummary(userID int64, date time.Time) {
	s.summaryCache.Delete(summaryCacheKey(userID, date.Year(), int(date.Month())))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a template, reporting a 500 when it fails.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			log.FieldError, err,
			"template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
