package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/features"
	"wallet-risk-lab/internal/ingestion"
	"wallet-risk-lab/internal/logging"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/out"
	"wallet-risk-lab/internal/pipeline"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
	chstore "wallet-risk-lab/internal/storage/clickhouse"
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

	// Flags override environment configuration
	source := flag.String("source", cfg.Source, "Transaction source: simulated, etherscan, rpc or store")
	walletFile := flag.String("wallets", cfg.WalletFile, "CSV file of wallet addresses (first column)")
	sheetURL := flag.String("sheet-url", cfg.WalletSheetURL, "Google Sheets URL with wallet addresses")
	useSamples := flag.Bool("samples", false, "Score the built-in sample wallets")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for CSV and report files (empty to skip)")
	topN := flag.Int("top", cfg.TopN, "Wallets listed per extreme in the report")
	seed := flag.Int64("seed", cfg.Seed, "Seed of the simulated source")
	noFallback := flag.Bool("no-fallback", false, "Fail instead of falling back to simulated data")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics(observability.DefaultNamespace, nil)
	if cfg.MetricsAddr != "" {
		go serveMetrics(logger, cfg.MetricsAddr, metrics)
	}

	if err := run(ctx, logger, cfg, metrics, runFlags{
		source:     *source,
		walletFile: *walletFile,
		sheetURL:   *sheetURL,
		useSamples: *useSamples,
		outputDir:  *outputDir,
		topN:       *topN,
		seed:       *seed,
		noFallback: *noFallback,
	}); err != nil {
		logger.Error("scoring failed", "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	source     string
	walletFile string
	sheetURL   string
	useSamples bool
	outputDir  string
	topN       int
	seed       int64
	noFallback bool
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, metrics *observability.Metrics, f runFlags) error {
	risk := riskconfig.Default()
	if err := risk.Validate(); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}

	walletList, err := loadWallets(ctx, logger, f)
	if err != nil {
		return err
	}
	logger.Info("loaded wallets", "count", len(walletList))

	var (
		txStore      storage.TransactionStore
		scoreStore   storage.ScoreStore
		featureStore storage.FeatureStore
	)

	// PostgreSQL holds transactions and scores
	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("postgres ready", "migrations_applied", len(applied))
		txStore = pgstore.NewTransactionStore(pool)
		scoreStore = pgstore.NewScoreStore(pool)
	}

	// ClickHouse holds features and, without PostgreSQL, scores
	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()

		featureStore = chstore.NewFeatureStore(conn)
		if scoreStore == nil {
			scoreStore = chstore.NewScoreStore(conn)
		}
		logger.Info("clickhouse ready")
	}

	times, closeTimes := blockTimeCache(ctx, logger, cfg)
	defer closeTimes()

	src, closeSrc, err := ingestion.NewSource(ctx, ingestion.SourceConfig{
		Name:            f.source,
		Risk:            risk,
		Seed:            f.seed,
		EtherscanURL:    cfg.EtherscanURL,
		EtherscanAPIKey: cfg.EtherscanAPIKey,
		EtherscanRate:   cfg.EtherscanRateLimit,
		RPCURL:          cfg.RPCURL,
		RPCRate:         cfg.RPCRateLimit,
		Store:           txStore,
		FromBlock:       cfg.FromBlock,
		ToBlock:         cfg.ToBlock,
		Concurrency:     cfg.Workers,
		Times:           times,
		Logger:          logger,
		Metrics:         metrics,
	})
	defer closeSrc()
	if err != nil {
		if f.noFallback || f.source == ingestion.SourceSimulated {
			return err
		}
		logger.Warn("source unavailable, using simulated data", "source", f.source, "error", err)
		src = ingestion.NewSimulatedSource(risk, f.seed)
		f.source = ingestion.SourceSimulated
	}

	var fallback ingestion.TransactionSource
	if !f.noFallback && f.source != ingestion.SourceSimulated {
		fallback = ingestion.NewSimulatedSource(risk, f.seed)
	}

	var sink out.Sink = out.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		ks, err := out.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, nil)
		if err != nil {
			return err
		}
		sink = ks
		logger.Info("publishing scores", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	defer sink.Close()

	runner := pipeline.New(pipeline.Options{
		Source:       src,
		SourceName:   f.source,
		Fallback:     fallback,
		FallbackName: ingestion.SourceSimulated,
		Config:       risk,
		Extractor:    features.NewExtractor(risk, nil).WithConcurrency(cfg.Workers),
		FeatureStore: featureStore,
		ScoreStore:   scoreStore,
		Sink:         sink,
		OutputDir:    f.outputDir,
		TopN:         f.topN,
		Logger:       logger,
		Metrics:      metrics,
	})

	result, err := runner.Run(ctx, walletList)
	if err != nil {
		return err
	}

	printSummary(result)
	return nil
}

func loadWallets(ctx context.Context, logger *slog.Logger, f runFlags) ([]string, error) {
	switch {
	case f.useSamples:
		return wallets.SampleWallets(), nil
	case f.walletFile != "":
		return wallets.LoadFile(f.walletFile)
	default:
		url := f.sheetURL
		if url == "" {
			url = wallets.DefaultSheetURL
		}
		return wallets.NewSheetLoader(wallets.WithLogger(logger)).Load(ctx, url), nil
	}
}

// blockTimeCache returns the Redis cache when configured and reachable,
// otherwise an in-process cache.
func blockTimeCache(ctx context.Context, logger *slog.Logger, cfg *config.Config) (cache.BlockTimeCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}
	}
	rc := cache.NewRedisCache(cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.BlockTimeTTL)
	if err := rc.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, caching block times in memory", "addr", cfg.RedisAddr, "error", err)
		rc.Close()
		return cache.NewMemoryCache(), func() {}
	}
	return rc, func() { rc.Close() }
}

func serveMetrics(logger *slog.Logger, addr string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info("starting metrics server", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}

func printSummary(r *pipeline.Result) {
	s := r.Summary
	fmt.Printf("Run %s (%s data)\n", r.RunID, r.SourceName)
	fmt.Printf("  Wallets scored: %d\n", s.TotalWallets)
	fmt.Printf("  Mean %.1f, median %.1f, std dev %.1f, range %d-%d\n", s.Mean, s.Median, s.StdDev, s.Min, s.Max)
	if r.Report != nil {
		for _, row := range r.Report.Distribution {
			fmt.Printf("  %-15s %4d (%.1f%%)\n", row.Category, row.Count, row.Percent)
		}
	}
	if r.Files.ScoresCSV != "" {
		fmt.Println("Files:")
		fmt.Printf("  - %s\n", r.Files.ScoresCSV)
		if r.Files.DetailedCSV != "" {
			fmt.Printf("  - %s\n", r.Files.DetailedCSV)
		}
		fmt.Printf("  - %s\n", r.Files.Report)
	}
	for _, e := range r.Errors {
		fmt.Printf("  warning: %s\n", e)
	}
}
