package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wallet-risk-lab/internal/config"
	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/reporting"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
	"wallet-risk-lab/internal/verification"
	chstore "wallet-risk-lab/internal/storage/clickhouse"
	pgstore "wallet-risk-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	runID := flag.String("run-id", "", "Run to regenerate the report for")
	outputDir := flag.String("output-dir", cfg.OutputDir, "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (scores)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickHouseDSN, "ClickHouse connection string (features, and scores without PostgreSQL)")
	topN := flag.Int("top", cfg.TopN, "Wallets listed per extreme in the report")
	verify := flag.Bool("verify", false, "Re-score stored features and compare with stored scores instead of writing a report")
	flag.Parse()

	ctx := context.Background()

	if *runID == "" {
		fmt.Fprintln(os.Stderr, "Error: --run-id is required")
		os.Exit(1)
	}
	if *postgresDSN == "" && *clickhouseDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn or --clickhouse-dsn is required")
		os.Exit(1)
	}

	scoreStore, featureStore, closeFn, err := createStores(ctx, *postgresDSN, *clickhouseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer closeFn()

	if *verify {
		code := runVerify(ctx, *runID, scoreStore, featureStore)
		closeFn()
		os.Exit(code)
	}

	now := time.Now().UTC()
	gen := reporting.NewGenerator(scoreStore, featureStore, riskconfig.Default()).
		WithTopN(*topN).
		WithClock(func() time.Time { return now })

	report, details, err := gen.Generate(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	scores := make([]domain.Score, len(details))
	for i, d := range details {
		scores[i] = domain.Score{WalletID: d.Features.WalletID, Score: d.Score}
	}

	files, err := reporting.WriteFiles(*outputDir, now, report, scores, details)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing files: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for %s generated successfully:\n", *runID)
	fmt.Printf("  - %s\n", files.ScoresCSV)
	if files.DetailedCSV != "" {
		fmt.Printf("  - %s\n", files.DetailedCSV)
	}
	fmt.Printf("  - %s\n", files.Report)
}

// createStores connects to PostgreSQL and/or ClickHouse.
// Scores come from PostgreSQL when both are configured.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string) (storage.ScoreStore, storage.FeatureStore, func(), error) {
	var (
		scoreStore   storage.ScoreStore
		featureStore storage.FeatureStore
		closers      []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, closeAll, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		scoreStore = pgstore.NewScoreStore(pool)
	}

	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, func() {}, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		featureStore = chstore.NewFeatureStore(conn)
		if scoreStore == nil {
			scoreStore = chstore.NewScoreStore(conn)
		}
	}

	return scoreStore, featureStore, closeAll, nil
}

// runVerify prints divergences of a stored run and returns the exit code.
func runVerify(ctx context.Context, runID string, scoreStore storage.ScoreStore, featureStore storage.FeatureStore) int {
	if featureStore == nil {
		fmt.Fprintln(os.Stderr, "Error: --clickhouse-dsn is required to verify (features are stored in ClickHouse)")
		return 1
	}

	v := verification.NewRunVerifier(verification.RunVerifierOptions{
		FeatureStore: featureStore,
		ScoreStore:   scoreStore,
		Config:       riskconfig.Default(),
	})
	report, err := v.VerifyRun(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error verifying run: %v\n", err)
		return 1
	}

	fmt.Printf("Run %s: %d wallets, %d matched, %d divergent\n",
		report.RunID, report.TotalWallets, report.MatchedWallets, report.DivergentWallets)
	for _, r := range report.Results {
		if r.Match {
			continue
		}
		for _, d := range r.Divergences {
			fmt.Printf("  %s %s: stored %v, recomputed %v\n", r.WalletID, d.Field, d.Expected, d.Actual)
		}
	}

	if report.DivergentWallets > 0 {
		return 2
	}
	return 0
}
