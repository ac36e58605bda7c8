package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"rewardcenter/config"
	"rewardcenter/core/events"
	"rewardcenter/core/genesis"
	"rewardcenter/core/runtime"
	"rewardcenter/gateway"
	"rewardcenter/gateway/middleware"
	"rewardcenter/indexer"
	"rewardcenter/observability"
	"rewardcenter/observability/logging"
	telemetry "rewardcenter/observability/otel"
	"rewardcenter/storage"
)

const (
	envName    = "REWARD_ENV"
	genesisEnv = "REWARD_GENESIS"
	version    = "0.1.0"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides REWARD_GENESIS and config GenesisFile)")
	exportPath := flag.String("export-payouts", "", "Write indexed reward payouts to this Parquet file and exit")
	exportCenter := flag.String("reward-center", "", "Restrict -export-payouts to one reward center")
	flag.Parse()

	if *exportPath != "" {
		if err := exportPayouts(*configFile, *exportPath, *exportCenter); err != nil {
			fmt.Fprintf(os.Stderr, "rewardd: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(*configFile, *genesisFlag); err != nil {
		fmt.Fprintf(os.Stderr, "rewardd: %v\n", err)
		os.Exit(1)
	}
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(genesisEnv); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(configValue)
}

func exportPayouts(configFile, path, center string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Index.Driver == "" {
		return errors.New("export requires an index driver")
	}
	gdb, err := indexer.Open(cfg.Index.Driver, cfg.Index.DSN)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := indexer.New(gdb, nil).ExportPayouts(context.Background(), f, center)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported %d payouts to %s\n", n, path)
	return nil
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := strings.TrimSpace(os.Getenv(envName))
	if env == "" {
		env = cfg.Environment
	}
	logger, logCloser := logging.Setup("rewardd", env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "rewardd",
		Version:     version,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	var spec *genesis.GenesisSpec
	if path := resolveGenesisPath(genesisFlag, cfg.GenesisFile); path != "" {
		spec, err = genesis.LoadGenesisSpec(path)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	exec, err := runtime.Open(db, spec)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	exec.SetLogger(logger.With("component", "runtime"))
	exec.SetMetrics(observability.Ledger())
	exec.SetTreasuryReserve(cfg.TreasuryReserve)
	exec.Hub().OnDrop(observability.Events().RecordStreamDrop)
	head := exec.Head()
	logger.Info("ledger opened", "root", head.Root.Hex(), "seq", head.Seq)

	go countCommitted(ctx, exec.Hub())

	var index *indexer.Indexer
	if cfg.Index.Driver != "" {
		gdb, err := indexer.Open(cfg.Index.Driver, cfg.Index.DSN)
		if err != nil {
			return err
		}
		index = indexer.New(gdb, logger.With("component", "indexer"))
		go index.Run(ctx, exec.Hub(), exec)
	}

	server := gateway.New(exec, index, gateway.Config{
		RateLimit: middleware.RateLimit{
			RequestsPerSecond: cfg.Gateway.RateLimitPerSecond,
			Burst:             cfg.Gateway.RateLimitBurst,
		},
		Auth: middleware.AuthConfig{
			Enabled:    cfg.Gateway.Auth.Enabled,
			HMACSecret: cfg.Gateway.Auth.HMACSecret,
			Issuer:     cfg.Gateway.Auth.Issuer,
			Audience:   cfg.Gateway.Auth.Audience,
		},
		EnableMetrics: cfg.Gateway.EnableMetrics,
	}, logger.With("component", "gateway"))
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Gateway.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(cfg.Gateway.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown", slog.Any("error", err))
	}
	return nil
}

func countCommitted(ctx context.Context, hub *events.Hub) {
	sub, cancel := hub.Subscribe(256)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			for _, evt := range msg.Events {
				observability.Events().RecordCommitted(evt.Type)
			}
		}
	}
}
