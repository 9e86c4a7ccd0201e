// Package config defines the top-level configuration for the zeroxbot market
// engine and provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ZEROX_* environment variables.
type Config struct {
	Instruments []string       `toml:"instruments"`
	Exchange    ExchangeConfig `toml:"exchange"`
	Stream      StreamConfig   `toml:"stream"`
	Oracle      OracleConfig   `toml:"oracle"`
	Executor    ExecutorConfig `toml:"executor"`
	Snapshot    SnapshotConfig `toml:"snapshot"`
	Redis       RedisConfig    `toml:"redis"`
	Postgres    PostgresConfig `toml:"postgres"`
	S3          S3Config       `toml:"s3"`
	Metrics     MetricsConfig  `toml:"metrics"`
	Notify      NotifyConfig   `toml:"notify"`
	LogLevel    string         `toml:"log_level"`
}

// ExchangeConfig holds Bitget REST endpoints, product parameters and API
// credentials. The secret may come from an encrypted file instead of plain
// configuration.
type ExchangeConfig struct {
	RestURL             string   `toml:"rest_url"`
	ProductType         string   `toml:"product_type"`
	MarginCoin          string   `toml:"margin_coin"`
	MarginMode          string   `toml:"margin_mode"`
	ApiKey              string   `toml:"api_key"`
	ApiSecret           string   `toml:"api_secret"`
	ApiPassphrase       string   `toml:"api_passphrase"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	RequestTimeout      duration `toml:"request_timeout"`
}

// StreamConfig holds the public market-data WebSocket parameters.
type StreamConfig struct {
	WsURL            string   `toml:"ws_url"`
	InstType         string   `toml:"inst_type"`
	ReconnectDelay   duration `toml:"reconnect_delay"`
	PingInterval     duration `toml:"ping_interval"`
	ReadTimeout      duration `toml:"read_timeout"`
	HandshakeTimeout duration `toml:"handshake_timeout"`
}

// OracleConfig holds the decision oracle endpoint.
type OracleConfig struct {
	URL string `toml:"url"`
	// Timeout bounds a single decision round-trip. Zero leaves it to the
	// transport defaults.
	Timeout           duration `toml:"timeout"`
	WaitLogSampleRate float64  `toml:"wait_log_sample_rate"`
}

// ExecutorConfig holds order sizing and precision parameters.
type ExecutorConfig struct {
	DryRun               bool           `toml:"dry_run"`
	DefaultNotional      float64        `toml:"default_notional"`
	UseExchangePrecision bool           `toml:"use_exchange_precision"`
	DefaultPrecision     int            `toml:"default_precision"`
	Precision            map[string]int `toml:"precision"`
}

// SnapshotConfig holds the published state artifact parameters.
type SnapshotConfig struct {
	Path     string   `toml:"path"`
	Interval duration `toml:"interval"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; when
// enabled, cached prices are mirrored and decisions are broadcast.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	DecisionChannel string `toml:"decision_channel"`
	ThoughtStream   string `toml:"thought_stream"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// PostgresConfig holds connection parameters for the decision journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters used to archive
// snapshot copies.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	Interval       duration `toml:"interval"`
}

// MetricsConfig holds the Prometheus endpoint parameters.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds the optional Telegram and Discord order alert targets.
// An empty Events list forwards every event.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultInstruments is the instrument set scanned when none is configured.
var DefaultInstruments = []string{
	"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT", "DOGEUSDT",
	"PEPEUSDT", "WIFUSDT", "BNBUSDT", "ADAUSDT", "LINKUSDT",
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	instruments := make([]string, len(DefaultInstruments))
	copy(instruments, DefaultInstruments)

	return Config{
		Instruments: instruments,
		Exchange: ExchangeConfig{
			RestURL:        "https://api.bitget.com",
			ProductType:    "USDT-FUTURES",
			MarginCoin:     "USDT",
			MarginMode:     "crossed",
			RequestTimeout: duration{10 * time.Second},
		},
		Stream: StreamConfig{
			WsURL:            "wss://ws.bitget.com/v2/ws/public",
			InstType:         "USDT-FUTURES",
			ReconnectDelay:   duration{time.Second},
			PingInterval:     duration{30 * time.Second},
			ReadTimeout:      duration{90 * time.Second},
			HandshakeTimeout: duration{15 * time.Second},
		},
		Oracle: OracleConfig{
			URL:               "http://127.0.0.1:8000",
			WaitLogSampleRate: 0.05,
		},
		Executor: ExecutorConfig{
			DefaultPrecision: 4,
			Precision: map[string]int{
				"BTC":  6,
				"ETH":  5,
				"PEPE": 0,
			},
		},
		Snapshot: SnapshotConfig{
			Path:     "interfaz/public/estado_bot.json",
			Interval: duration{time.Second},
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        10,
			MaxRetries:      3,
			DecisionChannel: "decisions",
			ThoughtStream:   "thoughts",
			StreamMaxLen:    10000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "zeroxbot-snapshots",
			ForcePathStyle: true,
			Prefix:         "snapshots",
			Interval:       duration{5 * time.Minute},
		},
		Metrics: MetricsConfig{
			Port: 9102,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found. Missing exchange credentials
// are not an error: authenticated calls simply fail and are logged.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(c.Instruments) == 0 {
		errs = append(errs, "instruments must not be empty")
	}
	seen := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if strings.TrimSpace(inst) == "" {
			errs = append(errs, "instruments: empty symbol")
			continue
		}
		if seen[inst] {
			errs = append(errs, fmt.Sprintf("instruments: duplicate symbol %q", inst))
		}
		seen[inst] = true
	}

	// Exchange
	if c.Exchange.RestURL == "" {
		errs = append(errs, "exchange: rest_url must not be empty")
	}
	if c.Exchange.ProductType == "" {
		errs = append(errs, "exchange: product_type must not be empty")
	}
	if c.Exchange.MarginCoin == "" {
		errs = append(errs, "exchange: margin_coin must not be empty")
	}
	if c.Exchange.EncryptedSecretPath != "" && c.Exchange.SecretPassword == "" {
		errs = append(errs, "exchange: secret_password is required when encrypted_secret_path is set")
	}

	// Stream
	if u, err := url.Parse(c.Stream.WsURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("stream: ws_url must be a ws:// or wss:// URL, got %q", c.Stream.WsURL))
	}
	if c.Stream.ReconnectDelay.Duration <= 0 {
		errs = append(errs, "stream: reconnect_delay must be > 0")
	}

	// Oracle
	if u, err := url.Parse(c.Oracle.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("oracle: url must be an absolute URL, got %q", c.Oracle.URL))
	}
	if c.Oracle.Timeout.Duration < 0 {
		errs = append(errs, "oracle: timeout must be >= 0")
	}
	if c.Oracle.WaitLogSampleRate < 0 || c.Oracle.WaitLogSampleRate > 1 {
		errs = append(errs, "oracle: wait_log_sample_rate must be within [0, 1]")
	}

	// Executor
	if c.Executor.DefaultNotional < 0 {
		errs = append(errs, "executor: default_notional must be >= 0")
	}
	if c.Executor.DefaultPrecision < 0 {
		errs = append(errs, "executor: default_precision must be >= 0")
	}
	for prefix, places := range c.Executor.Precision {
		if places < 0 {
			errs = append(errs, fmt.Sprintf("executor: precision for %q must be >= 0", prefix))
		}
	}

	// Snapshot
	if c.Snapshot.Path == "" {
		errs = append(errs, "snapshot: path must not be empty")
	}
	if c.Snapshot.Interval.Duration <= 0 {
		errs = append(errs, "snapshot: interval must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.Interval.Duration <= 0 {
			errs = append(errs, "s3: interval must be > 0")
		}
	}

	// Metrics
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics: port must be 1-65535, got %d", c.Metrics.Port))
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
