package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardforge/internal/audit"
	cardservice "cardforge/internal/card/service"
	cardstore "cardforge/internal/card/store"
	"cardforge/internal/card/resave"
	"cardforge/internal/platform/config"
	"cardforge/internal/platform/kafka"
	"cardforge/internal/platform/logger"
	"cardforge/internal/platform/postgres"
)

type options struct {
	databaseURL string
	concurrency int
	pageSize    int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "resave",
		Short: "Recompute every card's identity mask from its aspect counts",
		Long: `Resave pages through all stored cards, newest first, derives each card's
identity mask from its aspect counts, and writes back the cards whose stored
mask differs. Explicit masks set by authors are replaced by the derived one.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResave(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "cards resaved in parallel (defaults to RESAVE_CONCURRENCY)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "cards listed per page, at most 100 (defaults to RESAVE_PAGE_SIZE)")
	return cmd
}

func runResave(ctx context.Context, cmd *cobra.Command, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cfg, opts)
	if cfg.Database.URL == "" {
		return errors.New("a database is required: set DATABASE_URL or --database-url")
	}

	log, err := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{MaxOpenConns: cfg.Resave.Concurrency + 2})
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, flush, err := startAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer flush()

	svc, err := cardservice.New(cardstore.NewPostgres(db),
		cardservice.WithLogger(log),
		cardservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	report, err := resave.New(svc,
		resave.WithLogger(log),
		resave.WithConcurrency(cfg.Resave.Concurrency),
		resave.WithPageSize(cfg.Resave.PageSize),
	).Run(ctx)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, changed %d, failed %d\n", report.Scanned, report.Changed, report.Failed)
	}
	if err != nil {
		return fmt.Errorf("resave aborted: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d cards could not be resaved", report.Failed)
	}
	return nil
}

func applyFlags(cfg *config.Config, opts *options) {
	if opts.databaseURL != "" {
		cfg.Database.URL = opts.databaseURL
	}
	if opts.concurrency > 0 {
		cfg.Resave.Concurrency = opts.concurrency
	}
	if opts.pageSize > 0 {
		cfg.Resave.PageSize = opts.pageSize
	}
}

// startAudit runs a publisher and worker for the pass. flush closes the
// publisher and waits for queued events to be delivered.
func startAudit(ctx context.Context, cfg *config.Config, log *slog.Logger) (*audit.Publisher, func(), error) {
	var sink audit.Sink = audit.NewLogSink(log)
	closeSink := func() {}
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.Open(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, nil, err
		}
		sink = audit.NewKafkaSink(client, cfg.Kafka.Topic)
		closeSink = client.Close
	}

	publisher := audit.NewPublisher(audit.WithLogger(log), audit.WithBufferSize(cfg.Audit.BufferSize))
	worker := audit.NewWorker(sink, publisher.Inbox(), log, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(context.WithoutCancel(ctx))
	}()

	return publisher, func() {
		publisher.Close()
		<-done
		closeSink()
	}, nil
}
