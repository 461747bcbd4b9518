package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"spendtrack/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Sessions
	SessionTTL   time.Duration
	SecureCookie bool

	// Budgets: category name -> monthly limit in currency units.
	// Raw JSON from CATEGORY_BUDGETS, parsed once at load.
	CategoryBudgets map[core.Category]float64
	budgetsRaw      string
	budgetsErr      error

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets alert export (optional)
	SheetsSpreadsheetID string
	SheetsSheetName     string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendtrack.db"),

		SessionTTL:   getEnvDuration("SESSION_TTL", 720*time.Hour),
		SecureCookie: getEnv("SECURE_COOKIE", "false") == "true",

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendtrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		SheetsSpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:     getEnv("SHEETS_SHEET_NAME", "Alerts"),
	}

	cfg.budgetsRaw = getEnv("CATEGORY_BUDGETS", "{}")
	cfg.CategoryBudgets, cfg.budgetsErr = parseBudgets(cfg.budgetsRaw)

	return cfg
}

// parseBudgets decodes the CATEGORY_BUDGETS JSON object. Unknown category
// keys are kept out of the map; they can never match a computed total, so
// silently carrying them would only hide configuration typos.
func parseBudgets(raw string) (map[core.Category]float64, error) {
	decoded := make(map[string]float64)
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("invalid CATEGORY_BUDGETS JSON: %w", err)
	}

	budgets := make(map[core.Category]float64, len(decoded))
	for name, limit := range decoded {
		c := core.Category(name)
		if !c.Valid() {
			return nil, fmt.Errorf("invalid CATEGORY_BUDGETS JSON: unknown category %q", name)
		}
		budgets[c] = limit
	}
	return budgets, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.budgetsErr != nil {
		errors = append(errors, c.budgetsErr.Error())
	}
	for category, limit := range c.CategoryBudgets {
		if limit < 0 {
			errors = append(errors, fmt.Sprintf("invalid budget for %q: must not be negative", category))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsSpreadsheetID != "" && c.SheetsSheetName == "" {
		errors = append(errors, "sheet name cannot be empty when a spreadsheet ID is provided")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
