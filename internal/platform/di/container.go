// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	httpin "storefront/internal/adapters/in/http"
	"storefront/internal/adapters/in/http/middleware"
	amqpout "storefront/internal/adapters/out/amqp"
	pgdb "storefront/internal/adapters/out/db"
	"storefront/internal/adapters/out/gcs"
	httpout "storefront/internal/adapters/out/http"
	"storefront/internal/adapters/out/mail"
	"storefront/internal/application/session"
	"storefront/internal/application/usecase"
	appcfg "storefront/internal/infra/config"
	"storefront/internal/infra/metrics"
)

// Container は main.go から使う依存オブジェクトの束。
type Container struct {
	Config   *appcfg.Config
	Infra    *Infra
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Handler  http.Handler

	publisher *amqpout.OrderEventPublisher
	log       *zap.Logger
}

// NewContainer wires the storefront. Optional integrations (mail, AMQP, GCS signing)
// are skipped with a warning when not configured.
func NewContainer(ctx context.Context, cfg *appcfg.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("di")

	inf, err := NewInfra(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Infra: inf, Metrics: metrics.New(), log: log}

	backends, err := c.buildBackends(ctx, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Sessions = session.NewManager(inf.Stores, backends, session.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		Observer:    c.Metrics,
		GuestCarts:  c.Metrics,
		Logger:      logger,
	})

	tokens, err := c.sessionTokens(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	deps := httpin.RouterDeps{
		Sessions:       c.Sessions,
		SessionTokens:  tokens,
		Metrics:        c.Metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	}
	if inf.FirebaseAuth != nil {
		deps.AuthVerifier = inf.FirebaseAuth
	}
	c.Handler = httpin.NewRouter(deps)
	return c, nil
}

func (c *Container) buildBackends(ctx context.Context, logger *zap.Logger) (session.Backends, error) {
	cfg := c.Config

	if cfg.BackendBaseURL == "" {
		c.log.Warn("STOREFRONT_API_BASE_URL empty; backend calls will fail")
	}
	api := httpout.NewStorefrontClient(cfg.BackendBaseURL, cfg.BackendTimeout, logger)
	b := session.Backends{
		Purchaser:     api,
		Orders:        api,
		GuestCheckout: api,
		Coupons:       api,
	}

	var events usecase.OrderEventPublishers

	apiKey, err := c.Infra.Secrets.Resolve(ctx, cfg.SendGridAPIKey)
	if err != nil {
		return b, fmt.Errorf("di: resolve SENDGRID_API_KEY: %w", err)
	}
	if apiKey != "" {
		ms := mail.Settings{
			APIKey:           apiKey,
			From:             cfg.MailFrom,
			FromName:         cfg.MailFromName,
			StoreBaseURL:     cfg.StoreBaseURL,
			NewsletterListID: cfg.NewsletterListID,
		}
		b.Newsletter = mail.NewNewsletterWithSendGrid(ms, logger)
		events = append(events, mail.NewReceiptMailerWithSendGrid(ms, logger))
	} else {
		c.log.Warn("SENDGRID_API_KEY empty; newsletter and receipts disabled")
	}

	if cfg.AMQPURL != "" {
		p, err := amqpout.Dial(amqpout.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange, Queue: cfg.AMQPQueue}, logger)
		if err != nil {
			// events are best effort; the storefront still serves without a broker
			c.log.Warn("amqp unavailable; order events disabled", zap.Error(err))
		} else {
			c.publisher = p
			events = append(events, p)
		}
	}
	if len(events) > 0 {
		b.Events = events
	}

	if cfg.GCSBucket != "" {
		b.Signer = gcs.NewDownloadSignerGCS(cfg.GCSBucket, cfg.GCSSignerEmail, cfg.DownloadURLExpiry, logger)
	} else {
		c.log.Warn("GCS_DOWNLOAD_BUCKET empty; download links are passed through unsigned")
	}
	return b, nil
}

func (c *Container) sessionTokens(ctx context.Context) (*middleware.SessionTokens, error) {
	secret, err := c.Infra.Secrets.Resolve(ctx, c.Config.SessionSecret)
	if err != nil {
		return nil, fmt.Errorf("di: resolve SESSION_SECRET: %w", err)
	}
	if secret == "" {
		if !c.Config.Dev {
			return nil, fmt.Errorf("di: SESSION_SECRET is required outside DEV")
		}
		secret = uuid.NewString()
		c.log.Warn("SESSION_SECRET empty; using a per-process secret (DEV)")
	}
	return middleware.NewSessionTokens(secret, c.Config.SessionTTL)
}

// Run drives the background loops until ctx is done: the idle-session sweeper
// and, on the postgres backend, the expired-record purge.
func (c *Container) Run(ctx context.Context) {
	if c.Infra.Records != nil {
		go c.purgeLoop(ctx)
	}
	c.Sessions.Run(ctx, c.Config.SessionSweepInterval)
}

func (c *Container) purgeLoop(ctx context.Context) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := c.Infra.Records.PurgeExpired(ctx, pgdb.KindCart, pgdb.KindGuestCart, pgdb.KindGuestSession)
			if err != nil {
				c.log.Warn("purge expired records failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.log.Info("expired records purged", zap.Int64("count", n))
			}
		}
	}
}

// Close は終了時に呼んで安全にリソースを閉じる。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Sessions != nil {
		c.Sessions.Shutdown()
	}
	if c.publisher != nil {
		_ = c.publisher.Close()
	}
	c.Infra.Close()
}
