/*
Package config loads server settings and builds the shared logger.

PRECEDENCE (lowest to highest):
  1. Built-in defaults
  2. .env file in the working directory (optional)
  3. Process environment
  4. Command-line flags

KEYS:
  PORT               HTTP port (default 8080)
  DB_PATH            SQLite path, ":memory:" for a throwaway database
  LOG_LEVEL          logrus level name (default info)
  LOG_FORMAT         "json" or "text" (default json)
  ALLOWED_ORIGINS    comma-separated CORS origins (default *)
  TIER_CONFIG        path to a JSON price-tier file (default: built-in table)
  REMINDER_SCHEDULE  cron spec with seconds field (default "0 0 8 * * *")
  REMINDERS_ENABLED  start the reminder scheduler (default true)
  CURRENCY_LABEL     label printed after amounts on exports (default DZD)
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             int
	DBPath           string
	LogLevel         string
	LogFormat        string
	AllowedOrigins   []string
	TierConfigPath   string
	ReminderSchedule string
	RemindersEnabled bool
	CurrencyLabel    string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:             8080,
		DBPath:           "ledger.db",
		LogLevel:         "info",
		LogFormat:        "json",
		AllowedOrigins:   []string{"*"},
		ReminderSchedule: "0 0 8 * * *",
		RemindersEnabled: true,
		CurrencyLabel:    "DZD",
	}
}

// Load reads .env, then the environment, then parses args as flags.
// A missing .env file is not an error.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.TierConfigPath, "tiers", cfg.TierConfigPath, "JSON price-tier file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := getenv("TIER_CONFIG"); v != "" {
		cfg.TierConfigPath = v
	}
	if v := getenv("REMINDER_SCHEDULE"); v != "" {
		cfg.ReminderSchedule = v
	}
	if v := strings.TrimSpace(getenv("REMINDERS_ENABLED")); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REMINDERS_ENABLED %q", v)
		}
		cfg.RemindersEnabled = enabled
	}
	if v := getenv("CURRENCY_LABEL"); v != "" {
		cfg.CurrencyLabel = v
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
