package config

import (
	"strings"
	"testing"
	"time"

	"spendtrack/internal/core"
)

func TestParseBudgets(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[core.Category]float64
		wantErr bool
	}{
		{
			name: "typical budgets",
			raw:  `{"groceries": 100, "transport": 42.50}`,
			want: map[core.Category]float64{
				core.CategoryGroceries: 100,
				core.CategoryTransport: 42.5,
			},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: map[core.Category]float64{},
		},
		{
			name:    "malformed JSON",
			raw:     `{"groceries": }`,
			wantErr: true,
		},
		{
			name:    "unknown category key",
			raw:     `{"gadgets": 50}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBudgets(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d budgets, want %d", len(got), len(tt.want))
			}
			for c, limit := range tt.want {
				if got[c] != limit {
					t.Errorf("budget[%s] = %v, want %v", c, got[c], limit)
				}
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:            "8080",
			SQLiteDBPath:    "./test.db",
			SessionTTL:      time.Hour,
			CategoryBudgets: map[core.Category]float64{},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "empty db path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "session TTL too short",
			mutate:      func(c *Config) { c.SessionTTL = time.Second },
			wantErr:     true,
			errorString: "invalid session TTL",
		},
		{
			name: "negative budget",
			mutate: func(c *Config) {
				c.CategoryBudgets = map[core.Category]float64{core.CategoryOther: -1}
			},
			wantErr:     true,
			errorString: "must not be negative",
		},
		{
			name:        "bad AMQP scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "must be 'amqp' or 'amqps'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.errorString)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CATEGORY_BUDGETS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("default port = %q, want 8080", cfg.Port)
	}
	if cfg.CategoryBudgets == nil {
		t.Error("default budgets should be an empty map, not nil")
	}
	if len(cfg.CategoryBudgets) != 0 {
		t.Errorf("default budgets should be empty, got %v", cfg.CategoryBudgets)
	}
}
