package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/quotedesk/cmd/quotedesk/cli"
	"github.com/odyssey-erp/quotedesk/internal/app"
	"github.com/odyssey-erp/quotedesk/internal/audit"
	audithttp "github.com/odyssey-erp/quotedesk/internal/audit/http"
	"github.com/odyssey-erp/quotedesk/internal/clients"
	"github.com/odyssey-erp/quotedesk/internal/platform/db"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/internal/templates"
	"github.com/odyssey-erp/quotedesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	if len(args) > 0 {
		if err := runCommand(ctx, cfg, args); err != nil {
			logger.Error("command failed", slog.String("command", args[0]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger, stop); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger, stop context.CancelFunc) error {
	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Warn("close resources", slog.Any("error", err))
		}
	}()

	migrator, err := db.NewMigrator(container.Pool)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		return err
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          container.Metrics,
		Database:         container.Pool,
		QuotesHandler:    quotes.NewHandler(logger, container.Quotes).WithIdempotencyKeys(shared.NewIdempotencyStore(container.Pool)),
		ClientsHandler:   clients.NewHandler(logger, container.Clients),
		TemplatesHandler: templates.NewHandler(logger, container.Templates),
		AuditHandler:     audithttp.NewHandler(logger, audit.NewService(container.Audit)),
		JobHandler:       jobs.NewHandler(container.NewInspector(), logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("mail_mode", cfg.MailMode), slog.String("version", app.Version()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runCommand(ctx context.Context, cfg *app.Config, args []string) error {
	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		migrator, err := db.NewMigrator(pool)
		if err != nil {
			return err
		}
		return cli.RunMigrate(migrator, args[1:], os.Stdout)
	case "jobs":
		return runJobs(ctx, cfg, args[1:])
	default:
		return fmt.Errorf("unknown command %q (expected migrate or jobs)", args[0])
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: expected trigger <name> or stats")
	}
	jc := cli.NewJobsCLI(cfg.RedisOptions().AsynqOpt())
	defer jc.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs: trigger needs a job name")
		}
		info, err := jc.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jc.InspectQueues(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("jobs: unknown command %q", args[0])
	}
}
