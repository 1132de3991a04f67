package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.RemindersEnabled)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":              "9090",
		"DB_PATH":           ":memory:",
		"LOG_FORMAT":        "TEXT",
		"ALLOWED_ORIGINS":   "https://a.example, https://b.example,",
		"TIER_CONFIG":       "/etc/ledger/tiers.json",
		"REMINDERS_ENABLED": "false",
		"CURRENCY_LABEL":    "DA",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "/etc/ledger/tiers.json", cfg.TierConfigPath)
	assert.False(t, cfg.RemindersEnabled)
	assert.Equal(t, "DA", cfg.CurrencyLabel)
}

func TestFromEnv_Invalid(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"PORT": "http"}))
	assert.ErrorContains(t, err, "PORT")

	_, err = FromEnv(envOf(map[string]string{"REMINDERS_ENABLED": "sometimes"}))
	assert.ErrorContains(t, err, "REMINDERS_ENABLED")
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "env.db")

	cfg, err := Load([]string{"-port", "3000", "-tiers", "tiers.json"})
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, "tiers.json", cfg.TierConfigPath)

	_, err = Load([]string{"-unknown"})
	assert.Error(t, err)
}

func TestNewLogger_LevelsAndFormat(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug", "json").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud", "json").GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, NewLogger("info", "text").Formatter)
}

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", "json")
	logger.SetOutput(&buf)

	LogError(logger, "api", "CreateSale", "req-42", map[string]int{"quantity": 9}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api", entry["module"])
	assert.Equal(t, "CreateSale", entry["funcName"])
	assert.Equal(t, "req-42", entry["context"])
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "error", entry["level"])
}
