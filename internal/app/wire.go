package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/zeroxbot/internal/blob/s3"
	"github.com/alanyoungcy/zeroxbot/internal/cache/redis"
	"github.com/alanyoungcy/zeroxbot/internal/config"
	"github.com/alanyoungcy/zeroxbot/internal/crypto"
	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/alanyoungcy/zeroxbot/internal/notify"
	"github.com/alanyoungcy/zeroxbot/internal/platform/bitget"
	"github.com/alanyoungcy/zeroxbot/internal/store/postgres"
)

// connectTimeout bounds each optional backend's start-up handshake.
const connectTimeout = 10 * time.Second

// Dependencies bundles the external collaborators of the engine. Only
// Exchange and Notifier are always set; the rest are nil when their backend
// is disabled or unreachable.
type Dependencies struct {
	Exchange *bitget.RESTClient

	Mirror  domain.PriceMirror
	Bus     domain.SignalBus
	Journal *postgres.ThoughtStore
	Blob    domain.BlobWriter

	Notifier *notify.Notifier
}

// Wire builds the dependencies for cfg and returns a cleanup function that
// releases them in reverse order. Credential problems abort; an optional
// backend that cannot be reached is logged and left out.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	log := logger.With(slog.String("component", "wire"))

	// --- Exchange REST ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		Raw:           cfg.Exchange.ApiSecret,
		EncryptedPath: cfg.Exchange.EncryptedSecretPath,
		Password:      cfg.Exchange.SecretPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: exchange secret: %w", err)
	}
	auth := &crypto.HMACAuth{
		Key:        cfg.Exchange.ApiKey,
		Secret:     secret,
		Passphrase: cfg.Exchange.ApiPassphrase,
	}
	if !auth.Configured() {
		log.Warn("exchange credentials not configured; orders and balance queries will fail")
	}
	deps.Exchange = bitget.NewRESTClient(bitget.RESTConfig{
		BaseURL:     cfg.Exchange.RestURL,
		ProductType: cfg.Exchange.ProductType,
		MarginCoin:  cfg.Exchange.MarginCoin,
		MarginMode:  cfg.Exchange.MarginMode,
		Auth:        auth,
		Timeout:     cfg.Exchange.RequestTimeout.Duration,
	})

	// --- Redis ---
	if cfg.Redis.Enabled {
		rctx, cancel := context.WithTimeout(ctx, connectTimeout)
		redisClient, err := redis.New(rctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		cancel()
		if err != nil {
			log.Warn("redis unavailable, mirroring disabled", slog.String("error", err.Error()))
		} else {
			closers = append(closers, func() { _ = redisClient.Close() })
			deps.Mirror = redis.NewPriceMirror(redisClient)
			deps.Bus = redis.NewSignalBus(redisClient, int64(cfg.Redis.StreamMaxLen))
		}
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pctx, cancel := context.WithTimeout(ctx, connectTimeout)
		pgClient, err := postgres.New(pctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err == nil && cfg.Postgres.RunMigrations {
			if err = pgClient.RunMigrations(pctx); err != nil {
				pgClient.Close()
			}
		}
		cancel()
		if err != nil {
			log.Warn("postgres unavailable, decision journal disabled", slog.String("error", err.Error()))
		} else {
			closers = append(closers, pgClient.Close)
			deps.Journal = postgres.NewThoughtStore(pgClient.Pool())
		}
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			log.Warn("s3 unavailable, archiving disabled", slog.String("error", err.Error()))
		} else {
			deps.Blob = s3blob.NewWriter(s3Client)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
