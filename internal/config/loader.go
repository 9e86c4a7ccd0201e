package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ZEROX_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the engine can run
// from defaults and environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ZEROX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Credentials are expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	setStringSlice(&cfg.Instruments, "ZEROX_INSTRUMENTS")

	// ── Exchange ──
	// BITGET_* names are fallbacks; the ZEROX_EXCHANGE_* names below win.
	setStr(&cfg.Exchange.ApiKey, "BITGET_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "BITGET_SECRET")
	setStr(&cfg.Exchange.ApiPassphrase, "BITGET_PASSWORD")
	setStr(&cfg.Exchange.RestURL, "ZEROX_EXCHANGE_REST_URL")
	setStr(&cfg.Exchange.ProductType, "ZEROX_EXCHANGE_PRODUCT_TYPE")
	setStr(&cfg.Exchange.MarginCoin, "ZEROX_EXCHANGE_MARGIN_COIN")
	setStr(&cfg.Exchange.MarginMode, "ZEROX_EXCHANGE_MARGIN_MODE")
	setStr(&cfg.Exchange.ApiKey, "ZEROX_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "ZEROX_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.ApiPassphrase, "ZEROX_EXCHANGE_API_PASSPHRASE")
	setStr(&cfg.Exchange.EncryptedSecretPath, "ZEROX_EXCHANGE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Exchange.SecretPassword, "ZEROX_EXCHANGE_SECRET_PASSWORD")
	setDuration(&cfg.Exchange.RequestTimeout, "ZEROX_EXCHANGE_REQUEST_TIMEOUT")

	// ── Stream ──
	setStr(&cfg.Stream.WsURL, "ZEROX_STREAM_WS_URL")
	setStr(&cfg.Stream.InstType, "ZEROX_STREAM_INST_TYPE")
	setDuration(&cfg.Stream.ReconnectDelay, "ZEROX_STREAM_RECONNECT_DELAY")
	setDuration(&cfg.Stream.PingInterval, "ZEROX_STREAM_PING_INTERVAL")
	setDuration(&cfg.Stream.ReadTimeout, "ZEROX_STREAM_READ_TIMEOUT")

	// ── Oracle ──
	setStr(&cfg.Oracle.URL, "ZEROX_ORACLE_URL")
	setDuration(&cfg.Oracle.Timeout, "ZEROX_ORACLE_TIMEOUT")
	setFloat64(&cfg.Oracle.WaitLogSampleRate, "ZEROX_ORACLE_WAIT_LOG_SAMPLE_RATE")

	// ── Executor ──
	setBool(&cfg.Executor.DryRun, "ZEROX_EXECUTOR_DRY_RUN")
	setFloat64(&cfg.Executor.DefaultNotional, "ZEROX_EXECUTOR_DEFAULT_NOTIONAL")
	setBool(&cfg.Executor.UseExchangePrecision, "ZEROX_EXECUTOR_USE_EXCHANGE_PRECISION")
	setInt(&cfg.Executor.DefaultPrecision, "ZEROX_EXECUTOR_DEFAULT_PRECISION")

	// ── Snapshot ──
	setStr(&cfg.Snapshot.Path, "ZEROX_SNAPSHOT_PATH")
	setDuration(&cfg.Snapshot.Interval, "ZEROX_SNAPSHOT_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ZEROX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ZEROX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ZEROX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ZEROX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ZEROX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ZEROX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ZEROX_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ZEROX_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ZEROX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ZEROX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ZEROX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ZEROX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ZEROX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ZEROX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ZEROX_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "ZEROX_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ZEROX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ZEROX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ZEROX_S3_REGION")
	setStr(&cfg.S3.Bucket, "ZEROX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ZEROX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ZEROX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ZEROX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ZEROX_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "ZEROX_S3_PREFIX")
	setDuration(&cfg.S3.Interval, "ZEROX_S3_INTERVAL")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "ZEROX_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "ZEROX_METRICS_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ZEROX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ZEROX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ZEROX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ZEROX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ZEROX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
