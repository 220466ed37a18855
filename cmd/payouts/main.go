package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"payouts/internal/amqp"
	"payouts/internal/backend"
	"payouts/internal/cli"
	apphttp "payouts/internal/http"
	"payouts/internal/ledger"
	"payouts/internal/log"
	"payouts/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting payouts", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage)).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()

	l, err := ledger.New(ctx, res.Store, ledger.Options{
		Step:    cfg.Step,
		Keyword: cfg.PayoutKeyword,
		Logger:  logger.WithComponent(log.ComponentLedger),
	})
	if err != nil {
		logger.Error("Failed to load ledger", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, l, apphttp.Options{
		ResetKey:           cfg.ResetKey,
		ResetRatePerMinute: cfg.ResetRatePerMinute,
	})

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if consumer != nil {
		approvals := worker.NewApprovalWorker(worker.NewGate(worker.GateConfig{
			ChannelID:       cfg.PayoutChannelID,
			ValidatorRoleID: cfg.ValidatorRoleID,
			Emoji:           cfg.ApprovalEmoji,
		}), l, res.Journal)

		g.Go(func() error {
			err := consumer.ConsumeReactions(gctx, approvals.HandleReaction)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", log.FieldError, err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := l.Flush(flushCtx); err != nil {
		logger.Error("Ledger state not persisted on shutdown", log.FieldError, err)
	}
	logger.Info("Shutdown complete")
}
