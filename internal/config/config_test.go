package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Instruments, 10)
	assert.Equal(t, time.Second, cfg.Stream.ReconnectDelay.Duration)
	assert.Equal(t, time.Second, cfg.Snapshot.Interval.Duration)
	assert.Equal(t, time.Duration(0), cfg.Oracle.Timeout.Duration)
	assert.Equal(t, 6, cfg.Executor.Precision["BTC"])
	assert.Equal(t, 0, cfg.Executor.Precision["PEPE"])
	assert.Equal(t, 4, cfg.Executor.DefaultPrecision)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zeroxbot.toml")
	body := `
instruments = ["BTCUSDT", "ETHUSDT"]
log_level = "debug"

[stream]
reconnect_delay = "2s"

[oracle]
url = "http://oracle.local:9000"
timeout = "15s"

[executor.precision]
SOL = 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Instruments)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Stream.ReconnectDelay.Duration)
	assert.Equal(t, 15*time.Second, cfg.Oracle.Timeout.Duration)
	assert.Equal(t, 2, cfg.Executor.Precision["SOL"])
	// untouched defaults survive
	assert.Equal(t, "wss://ws.bitget.com/v2/ws/public", cfg.Stream.WsURL)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Oracle.URL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ZEROX_INSTRUMENTS", "BTCUSDT, PEPEUSDT ,")
	t.Setenv("ZEROX_EXCHANGE_API_KEY", "key-1")
	t.Setenv("BITGET_SECRET", "secret-1")
	t.Setenv("ZEROX_EXECUTOR_DRY_RUN", "true")
	t.Setenv("ZEROX_STREAM_RECONNECT_DELAY", "3s")
	t.Setenv("ZEROX_METRICS_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "PEPEUSDT"}, cfg.Instruments)
	assert.Equal(t, "key-1", cfg.Exchange.ApiKey)
	assert.Equal(t, "secret-1", cfg.Exchange.ApiSecret)
	assert.True(t, cfg.Executor.DryRun)
	assert.Equal(t, 3*time.Second, cfg.Stream.ReconnectDelay.Duration)
	assert.Equal(t, 9102, cfg.Metrics.Port, "unparsable values are ignored")
}

func TestProjectEnvNamesWinOverBitgetNames(t *testing.T) {
	t.Setenv("BITGET_API_KEY", "legacy-key")
	t.Setenv("ZEROX_EXCHANGE_API_KEY", "project-key")
	t.Setenv("BITGET_PASSWORD", "legacy-pass")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "project-key", cfg.Exchange.ApiKey)
	assert.Equal(t, "legacy-pass", cfg.Exchange.ApiPassphrase, "legacy name still fills an unset value")
}

func TestValidateCollectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty instruments", func(c *Config) { c.Instruments = nil }, "instruments must not be empty"},
		{"duplicate instrument", func(c *Config) { c.Instruments = []string{"BTCUSDT", "BTCUSDT"} }, "duplicate symbol"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"http ws url", func(c *Config) { c.Stream.WsURL = "http://example.com" }, "ws_url"},
		{"zero reconnect", func(c *Config) { c.Stream.ReconnectDelay.Duration = 0 }, "reconnect_delay"},
		{"sample rate", func(c *Config) { c.Oracle.WaitLogSampleRate = 1.5 }, "wait_log_sample_rate"},
		{"negative precision", func(c *Config) { c.Executor.Precision["BTC"] = -1 }, "precision for \"BTC\""},
		{"encrypted secret without password", func(c *Config) { c.Exchange.EncryptedSecretPath = "/tmp/secret.json" }, "secret_password"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis: addr"},
		{"s3 without bucket", func(c *Config) { c.S3.Enabled = true; c.S3.Bucket = "" }, "s3: bucket"},
		{"telegram token without chat", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.ApiKey = "key"
	cfg.Exchange.ApiSecret = "secret"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook/secret"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Exchange.ApiKey)
	assert.Equal(t, "***", out.Exchange.ApiSecret)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Exchange.ApiPassphrase, "empty values stay empty")

	out.Instruments[0] = "MUTATED"
	out.Executor.Precision["BTC"] = 99
	assert.Equal(t, "BTCUSDT", cfg.Instruments[0])
	assert.Equal(t, 6, cfg.Executor.Precision["BTC"])
	assert.Equal(t, "key", cfg.Exchange.ApiKey)
}
