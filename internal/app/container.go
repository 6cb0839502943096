package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/quotedesk/internal/audit"
	"github.com/odyssey-erp/quotedesk/internal/clients"
	"github.com/odyssey-erp/quotedesk/internal/invoicing"
	jobmetrics "github.com/odyssey-erp/quotedesk/internal/jobs"
	"github.com/odyssey-erp/quotedesk/internal/mail"
	"github.com/odyssey-erp/quotedesk/internal/observability"
	"github.com/odyssey-erp/quotedesk/internal/platform/cache"
	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
	"github.com/odyssey-erp/quotedesk/internal/render"
	"github.com/odyssey-erp/quotedesk/internal/templates"
	"github.com/odyssey-erp/quotedesk/jobs"
)

// Container holds the wired services shared by the server and worker.
type Container struct {
	Config     *Config
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics

	Clients   *clients.Repository
	Templates *templates.CachedStore
	Audit     *audit.Logger
	Invoicing *invoicing.Service
	Renderer  *render.Renderer
	SMTP      *mail.Sender
	Queue     *jobs.Client
	Quotes    *quotes.Service

	closers []func() error
}

// Build connects to Postgres and Redis and wires every collaborator.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Container, error) {
	defaults, err := cfg.QuoteDefaults()
	if err != nil {
		return nil, err
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, ApplicationName: cfg.ServiceName})
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: logger, Pool: pool}
	c.closers = append(c.closers, func() error {
		pool.Close()
		return nil
	})

	redisClient, redisErr := cache.New(ctx, cfg.RedisOptions())
	if redisErr != nil {
		logger.Warn("redis unavailable, template cache disabled", slog.Any("error", redisErr))
	}
	c.Redis = redisClient
	c.closers = append(c.closers, redisClient.Close)

	c.Metrics = observability.NewMetrics()
	c.JobMetrics = jobmetrics.NewMetrics(c.Metrics.Registerer())

	c.Clients = clients.NewRepository(pool)
	cacheClient := redisClient
	if redisErr != nil {
		cacheClient = nil
	}
	c.Templates = templates.NewCachedStore(
		templates.NewRepository(pool),
		templates.NewCache(cacheClient, cfg.TemplateCacheTTL),
		logger,
	)
	c.Audit = audit.NewLogger(pool)
	c.Invoicing = invoicing.NewService(invoicing.NewRepository(pool), logger)

	var gotenberg *render.Gotenberg
	if strings.TrimSpace(cfg.GotenbergURL) != "" {
		gotenberg = render.NewGotenberg(cfg.GotenbergURL, cfg.GotenbergTimeout)
	}
	c.Renderer = render.New(render.Config{
		Issuer:        render.Issuer{Name: cfg.IssuerName, Address: cfg.IssuerAddress, Email: cfg.IssuerEmail},
		DefaultLayout: cfg.PDFLayout,
		Locale:        cfg.PDFLocale,
	}, gotenberg)

	c.SMTP = mail.NewSMTP(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	var mailer quotes.Mailer = c.SMTP
	if cfg.MailMode == MailModeQueue {
		c.Queue = jobs.NewClient(cfg.RedisOptions().AsynqOpt())
		c.closers = append(c.closers, c.Queue.Close)
		mailer = c.Queue
	}

	c.Quotes = quotes.NewService(quotes.Config{
		Defaults:      defaults,
		PublicBaseURL: cfg.PublicBaseURL,
		Currencies:    cfg.Currencies,
	}, quotes.Deps{
		Repo:      quotes.NewRepository(pool),
		Clients:   c.Clients,
		Templates: c.Templates,
		Renderer:  c.Renderer,
		Mailer:    mailer,
		Invoicer:  c.Invoicing,
		Audit:     c.Audit,
		Metrics:   c.Metrics,
		Logger:    logger,
	})
	return c, nil
}

// NewInspector opens a queue inspector for the jobs health endpoint.
func (c *Container) NewInspector() *asynq.Inspector {
	inspector := asynq.NewInspector(c.Config.RedisOptions().AsynqOpt())
	c.closers = append(c.closers, inspector.Close)
	return inspector
}

// Close releases every connection in reverse order of opening.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("app: close: %w", errors.Join(errs...))
	}
	return nil
}
