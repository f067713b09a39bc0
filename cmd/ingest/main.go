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
	"syscall"
	"time"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/ingestion"
	"wallet-risk-lab/internal/logging"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
	"wallet-risk-lab/internal/storage/memory"
	"wallet-risk-lab/internal/storage/migrations"
	pgstore "wallet-risk-lab/internal/storage/postgres"
	"wallet-risk-lab/internal/wallets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	mode := flag.String("mode", "backfill", "Ingestion mode: backfill or live")
	source := flag.String("source", cfg.Source, "Backfill source: simulated, etherscan or rpc")
	walletFile := flag.String("wallets", cfg.WalletFile, "CSV file of wallet addresses (first column)")
	sheetURL := flag.String("sheet-url", cfg.WalletSheetURL, "Google Sheets URL with wallet addresses")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	fromBlock := flag.Int64("from-block", cfg.FromBlock, "First block of the backfill window")
	toBlock := flag.Int64("to-block", cfg.ToBlock, "Last block of the backfill window (0 for latest)")
	flag.Parse()

	cfg.Source = *source
	cfg.FromBlock = *fromBlock
	cfg.ToBlock = *toBlock

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("cmd", "ingest")
	slog.SetDefault(logger)

	metrics := observability.NewMetrics(observability.DefaultNamespace, nil)
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info("starting metrics server", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", "signal", sig.String())
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, metrics, *mode, *walletFile, *sheetURL, *postgresDSN, *useMemory)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, metrics *observability.Metrics,
	mode, walletFile, sheetURL, postgresDSN string, useMemory bool) error {
	// Require --postgres-dsn unless --use-memory is explicitly set
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	var store storage.TransactionStore = memory.NewTransactionStore()
	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		store = pgstore.NewTransactionStore(pool)
	}

	var walletList []string
	var err error
	if walletFile != "" {
		walletList, err = wallets.LoadFile(walletFile)
		if err != nil {
			return err
		}
	} else {
		if sheetURL == "" {
			sheetURL = wallets.DefaultSheetURL
		}
		walletList = wallets.NewSheetLoader(wallets.WithLogger(logger)).Load(ctx, sheetURL)
	}
	logger.Info("tracking wallets", "count", len(walletList))

	times := blockTimeCache(ctx, logger, cfg)

	switch mode {
	case "backfill":
		return runBackfill(ctx, logger, cfg, metrics, store, times, walletList)
	case "live":
		return runLive(ctx, logger, cfg, metrics, store, times, walletList)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

// runBackfill collects the configured block window once and stores it.
func runBackfill(ctx context.Context, logger *slog.Logger, cfg *config.Config, metrics *observability.Metrics,
	store storage.TransactionStore, times cache.BlockTimeCache, walletList []string) error {
	if cfg.Source == ingestion.SourceStore {
		return fmt.Errorf("backfill cannot read from the store it writes to")
	}

	src, closeSrc, err := ingestion.NewSource(ctx, ingestion.SourceConfig{
		Name:            cfg.Source,
		Risk:            riskconfig.Default(),
		Seed:            cfg.Seed,
		EtherscanURL:    cfg.EtherscanURL,
		EtherscanAPIKey: cfg.EtherscanAPIKey,
		EtherscanRate:   cfg.EtherscanRateLimit,
		RPCURL:          cfg.RPCURL,
		RPCRate:         cfg.RPCRateLimit,
		FromBlock:       cfg.FromBlock,
		ToBlock:         cfg.ToBlock,
		Concurrency:     cfg.Workers,
		Times:           times,
		Logger:          logger,
		Metrics:         metrics,
	})
	defer closeSrc()
	if err != nil {
		return err
	}

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		Source:  src,
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
	})

	logger.Info("starting backfill", "source", cfg.Source, "from_block", cfg.FromBlock, "to_block", cfg.ToBlock)
	res, err := manager.Ingest(ctx, walletList)
	if err != nil {
		return err
	}

	logger.Info("backfill complete",
		"wallets", res.Wallets,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
	)
	for _, e := range res.Errors {
		logger.Warn("storage error", "error", e)
	}
	return nil
}

// runLive follows new market logs until ctx is cancelled.
func runLive(ctx context.Context, logger *slog.Logger, cfg *config.Config, metrics *observability.Metrics,
	store storage.TransactionStore, times cache.BlockTimeCache, walletList []string) error {
	if cfg.WSURL == "" {
		return fmt.Errorf("WS_URL (or ALCHEMY_API_KEY) is required for live mode")
	}

	ws, err := ethereum.NewWSClient(ctx, cfg.WSURL, nil, logger)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	// Block timestamps come from the node when reachable
	var fetcher ethereum.LogFetcher
	if cfg.RPCURL != "" {
		node, err := ethereum.DialNode(ctx, cfg.RPCURL, ethereum.NewRateLimiter(cfg.RPCRateLimit))
		if err != nil {
			logger.Warn("node unavailable, using local clock for block times", "error", err)
		} else {
			defer node.Close()
			fetcher = node
		}
	}

	runner := ingestion.NewLiveRunner(ingestion.LiveRunnerOptions{
		Subscriber:    ws,
		Config:        riskconfig.Default(),
		Wallets:       walletList,
		Store:         store,
		Times:         times,
		Fetcher:       fetcher,
		BlockLag:      cfg.BlockLag,
		FlushInterval: cfg.FlushInterval,
		Logger:        logger,
		Metrics:       metrics,
	})

	logger.Info("starting live ingestion")
	err = runner.Run(ctx)

	stats := runner.Stats()
	logger.Info("live ingestion stopped",
		"received", stats.LogsReceived,
		"stored", stats.Stored,
		"duplicates", stats.Duplicates,
		"dropped", stats.Dropped,
	)
	return err
}

// blockTimeCache returns the Redis cache when configured and reachable,
// otherwise an in-process cache.
func blockTimeCache(ctx context.Context, logger *slog.Logger, cfg *config.Config) cache.BlockTimeCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache()
	}
	rc := cache.NewRedisCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.BlockTimeTTL)
	if err := rc.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, caching block times in memory", "addr", cfg.RedisAddr, "error", err)
		rc.Close()
		return cache.NewMemoryCache()
	}
	return rc
}
