package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vihalabs/giftflow/internal/backend"
	"github.com/vihalabs/giftflow/internal/bus"
	"github.com/vihalabs/giftflow/internal/channels/whatsapp"
	"github.com/vihalabs/giftflow/internal/config"
	"github.com/vihalabs/giftflow/internal/gateway"
	"github.com/vihalabs/giftflow/internal/responder"
	"github.com/vihalabs/giftflow/internal/store"
	"github.com/vihalabs/giftflow/internal/telemetry"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the auto-responder (default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runBot()
		},
	}
}

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	var persist store.Persister
	if cfg.Store.Path != "" {
		p, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			slog.Error("failed to open lock database", "path", cfg.Store.Path, "error", err)
			os.Exit(1)
		}
		persist = p
	}
	st, err := store.New(persist)
	if err != nil {
		slog.Error("failed to load conversation state", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var client *backend.Client
	if cfg.Backend.BackendEnabled() {
		opts := []backend.Option{
			backend.WithTimeouts(cfg.Backend.ChatTimeout(), cfg.Backend.LockTimeout(), cfg.Backend.HealthTimeout()),
		}
		if cfg.Backend.APIKey != "" {
			opts = append(opts, backend.WithAPIKey(cfg.Backend.APIKey))
		}
		client = backend.NewClient(cfg.Backend.BaseURL, opts...)

		if err := client.Health(ctx); err != nil {
			slog.Warn("decision backend not healthy at startup", "error", err)
		}
	} else {
		slog.Warn("decision backend disabled, inbound turns will be dropped")
	}

	msgBus := bus.New()
	channel, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
	if err != nil {
		slog.Error("failed to create whatsapp channel", "error", err)
		os.Exit(1)
	}

	deliver := responder.NewDeliverer(channel, cfg.Delivery.SendsPerMinute, cfg.Delivery.ItemDelay(), cfg.Delivery.SummaryDelay())
	resp := responder.New(ctx, st, client, deliver, cfg.Operator.ChatID,
		cfg.Debounce.FirstTurnWindow(), cfg.Debounce.BurstWindow(), cfg.Backend.BackendEnabled())
	defer resp.Stop()

	// Tunables (debounce windows, delivery delays) follow the config file
	// without a restart.
	if err := config.Watch(ctx, cfgPath, func(newCfg *config.Config) {
		resp.Debouncer().SetWindows(newCfg.Debounce.FirstTurnWindow(), newCfg.Debounce.BurstWindow())
		deliver.SetDelays(newCfg.Delivery.ItemDelay(), newCfg.Delivery.SummaryDelay())
	}); err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	}

	if err := channel.Start(ctx); err != nil {
		slog.Error("failed to start whatsapp channel", "error", err)
		os.Exit(1)
	}
	defer channel.Stop(context.Background())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			msg, ok := msgBus.ConsumeInbound(gctx)
			if !ok {
				return nil
			}
			resp.HandleInbound(gctx, msg)
		}
	})

	if cfg.Gateway.Port > 0 {
		statusSrv := gateway.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, st, resp.Debouncer())
		g.Go(statusSrv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return statusSrv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("giftflow running",
		"backend", cfg.Backend.BaseURL,
		"bridge", cfg.Channels.WhatsApp.BridgeURL,
		"operator", cfg.Operator.ChatID,
	)

	if err := g.Wait(); err != nil {
		slog.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	slog.Info("giftflow stopped")
}
