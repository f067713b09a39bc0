// Package pipeline runs one batch scoring pass:
// fetch → extract → score → normalize → summarize → persist → publish → report
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/features"
	"wallet-risk-lab/internal/idhash"
	"wallet-risk-lab/internal/ingestion"
	"wallet-risk-lab/internal/logging"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/out"
	"wallet-risk-lab/internal/reporting"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/scoring"
	"wallet-risk-lab/internal/storage"
)

// Phase names used in logs and metrics.
const (
	PhaseFetch   = "fetch"
	PhaseExtract = "extract"
	PhaseScore   = "score"
	PhasePersist = "persist"
	PhasePublish = "publish"
	PhaseReport  = "report"
)

// ErrNoSource is returned when no transaction source is configured.
var ErrNoSource = errors.New("no transaction source configured")

// Runner coordinates one scoring run.
type Runner struct {
	source       ingestion.TransactionSource
	sourceName   string
	fallback     ingestion.TransactionSource
	fallbackName string
	extractor    *features.Extractor
	scorer       *scoring.Scorer
	cfg          riskconfig.Config
	featureStore storage.FeatureStore
	scoreStore   storage.ScoreStore
	sink         out.Sink
	outputDir    string
	topN         int
	clock        func() time.Time
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// Options for creating Runner.
type Options struct {
	// Transaction source and an optional fallback used when it fails
	Source       ingestion.TransactionSource
	SourceName   string
	Fallback     ingestion.TransactionSource
	FallbackName string

	// Model; nil values are built from Config
	Config    riskconfig.Config
	Extractor *features.Extractor
	Scorer    *scoring.Scorer

	// Optional persistence and publishing
	FeatureStore storage.FeatureStore
	ScoreStore   storage.ScoreStore
	Sink         out.Sink

	// Output; empty OutputDir skips writing files
	OutputDir string
	TopN      int

	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Result contains results from one run.
type Result struct {
	RunID        string
	StartedAt    time.Time
	SourceName   string // source that produced the transactions
	Transactions int
	Features     []domain.Features
	RawScores    []domain.Score
	Scores       []domain.Score // normalized
	Records      []domain.ScoreRecord
	Summary      domain.Summary
	Report       *reporting.Report
	Files        reporting.Files
	Published    int
	Errors       []string // non-fatal persist and publish errors
}

// New creates a new Runner.
func New(opts Options) *Runner {
	extractor := opts.Extractor
	if extractor == nil {
		extractor = features.NewExtractor(opts.Config, nil)
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = scoring.NewScorer(opts.Config)
	}
	sink := opts.Sink
	if sink == nil {
		sink = out.NopSink{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = reporting.DefaultTopN
	}

	return &Runner{
		source:       opts.Source,
		sourceName:   opts.SourceName,
		fallback:     opts.Fallback,
		fallbackName: opts.FallbackName,
		extractor:    extractor,
		scorer:       scorer,
		cfg:          opts.Config,
		featureStore: opts.FeatureStore,
		scoreStore:   opts.ScoreStore,
		sink:         sink,
		outputDir:    opts.OutputDir,
		topN:         topN,
		clock:        clock,
		logger:       logging.OrDefault(opts.Logger),
		metrics:      opts.Metrics,
	}
}

// Run executes one scoring run over wallets.
// Phases:
//  1. Fetch transactions (falls back to the fallback source on error)
//  2. Extract features
//  3. Score, normalize and summarize
//  4. Persist features and scores (best-effort)
//  5. Publish scores (best-effort)
//  6. Build the report and write output files
func (r *Runner) Run(ctx context.Context, wallets []string) (*Result, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}

	startedAt := r.clock()
	result := &Result{
		RunID:      idhash.ComputeRunID(startedAt, r.sourceName, wallets),
		StartedAt:  startedAt,
		SourceName: r.sourceName,
	}
	ctx = logging.WithLogger(logging.WithRunID(ctx, result.RunID), r.logger)
	logger := logging.L(ctx)

	// Phase 1: Fetch
	logger.Info("fetching transactions", "wallets", len(wallets), "source", r.sourceName)
	txs, err := r.fetch(ctx, logger, wallets, result)
	if err != nil {
		return nil, fmt.Errorf("phase %s failed: %w", PhaseFetch, err)
	}
	result.Transactions = len(txs)
	logger.Info("fetched transactions", "transactions", len(txs), "source", result.SourceName)

	// Phase 2: Extract
	start := time.Now()
	feats, err := r.extractor.ExtractAll(ctx, txs, wallets)
	if err != nil {
		r.metrics.RecordPipelineRun(PhaseExtract, "error", time.Since(start))
		return nil, fmt.Errorf("phase %s failed: %w", PhaseExtract, err)
	}
	r.metrics.RecordPipelineRun(PhaseExtract, "ok", time.Since(start))
	result.Features = feats

	// Phase 3: Score
	start = time.Now()
	result.RawScores = r.scorer.ScoreAll(feats)
	result.Scores = scoring.Normalize(result.RawScores)
	result.Summary = scoring.Summarize(result.Scores)
	result.Records = r.buildRecords(result)
	r.metrics.RecordPipelineRun(PhaseScore, "ok", time.Since(start))
	logger.Info("scored wallets",
		"wallets", len(result.Scores),
		"mean", result.Summary.Mean,
		"min", result.Summary.Min,
		"max", result.Summary.Max,
	)

	// Phase 4: Persist
	result.Errors = append(result.Errors, r.persist(ctx, result)...)

	// Phase 5: Publish
	published, pubErrs := r.publish(ctx, result)
	result.Published = published
	result.Errors = append(result.Errors, pubErrs...)

	// Phase 6: Report
	if err := r.report(result); err != nil {
		return result, fmt.Errorf("phase %s failed: %w", PhaseReport, err)
	}

	r.metrics.MarkPipeline(r.clock())
	logger.Info("run completed",
		"wallets", len(result.Scores),
		"published", result.Published,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (r *Runner) fetch(ctx context.Context, logger *slog.Logger, wallets []string, result *Result) ([]domain.Transaction, error) {
	start := time.Now()
	txs, err := r.source.Fetch(ctx, wallets)
	if err == nil {
		r.metrics.RecordPipelineRun(PhaseFetch, "ok", time.Since(start))
		return txs, nil
	}
	r.metrics.RecordPipelineRun(PhaseFetch, "error", time.Since(start))

	if r.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("source failed, using fallback", "source", r.sourceName, "fallback", r.fallbackName, "error", err)
	result.Errors = append(result.Errors, fmt.Sprintf("source %s: %v", r.sourceName, err))

	txs, err = r.fallback.Fetch(ctx, wallets)
	if err != nil {
		return nil, fmt.Errorf("fallback %s: %w", r.fallbackName, err)
	}
	result.SourceName = r.fallbackName
	return txs, nil
}

func (r *Runner) buildRecords(result *Result) []domain.ScoreRecord {
	createdAt := result.StartedAt.UnixMilli()
	records := make([]domain.ScoreRecord, len(result.Scores))
	for i, s := range result.Scores {
		category := scoring.Categorize(s.Score)
		records[i] = domain.ScoreRecord{
			RunID:           result.RunID,
			WalletID:        domain.NormalizeAddress(s.WalletID),
			RawScore:        result.RawScores[i].Score,
			NormalizedScore: s.Score,
			Category:        category,
			CreatedAt:       createdAt,
		}
		r.metrics.RecordScore(s.Score, string(category))
	}
	return records
}

// persist stores features and scores. Returns errors as strings.
func (r *Runner) persist(ctx context.Context, result *Result) []string {
	if r.featureStore == nil && r.scoreStore == nil {
		return nil
	}
	if len(result.Records) == 0 {
		return nil
	}

	start := time.Now()
	var errs []string

	if r.featureStore != nil {
		createdAt := result.StartedAt.UnixMilli()
		recs := make([]*domain.FeatureRecord, len(result.Features))
		for i, f := range result.Features {
			f.WalletID = domain.NormalizeAddress(f.WalletID)
			recs[i] = &domain.FeatureRecord{RunID: result.RunID, CreatedAt: createdAt, Features: f}
		}
		if err := r.featureStore.InsertBulk(ctx, recs); err != nil {
			errs = append(errs, fmt.Sprintf("persist features: %v", err))
		}
	}

	if r.scoreStore != nil {
		recs := make([]*domain.ScoreRecord, len(result.Records))
		for i := range result.Records {
			recs[i] = &result.Records[i]
		}
		if err := r.scoreStore.InsertBulk(ctx, recs); err != nil {
			errs = append(errs, fmt.Sprintf("persist scores: %v", err))
		}
	}

	status := "ok"
	if len(errs) > 0 {
		status = "error"
		for _, e := range errs {
			r.logger.Warn("persist failed", "run_id", result.RunID, "error", e)
		}
	}
	r.metrics.RecordPipelineRun(PhasePersist, status, time.Since(start))
	return errs
}

// publish emits one wallet_score event per wallet and a run_summary event.
// Stops at the first failure.
func (r *Runner) publish(ctx context.Context, result *Result) (int, []string) {
	start := time.Now()
	published := 0

	fail := func(err error) (int, []string) {
		r.metrics.RecordPublished(published)
		r.metrics.RecordPipelineRun(PhasePublish, "error", time.Since(start))
		r.logger.Warn("publish failed", "run_id", result.RunID, "published", published, "error", err)
		return published, []string{fmt.Sprintf("publish: %v", err)}
	}

	for _, rec := range result.Records {
		if err := r.sink.Emit(ctx, out.TypeWalletScore, out.NewWalletScore(rec)); err != nil {
			return fail(err)
		}
		published++
	}
	if err := r.sink.Emit(ctx, out.TypeRunSummary, out.NewRunSummary(result.RunID, result.Summary)); err != nil {
		return fail(err)
	}

	r.metrics.RecordPublished(published)
	r.metrics.RecordPipelineRun(PhasePublish, "ok", time.Since(start))
	return published, nil
}

func (r *Runner) report(result *Result) error {
	start := time.Now()

	result.Report = reporting.Build(reporting.Run{
		RunID:       result.RunID,
		GeneratedAt: result.StartedAt,
		DataSource:  result.SourceName,
		Scores:      result.Scores,
		Config:      r.cfg,
		TopN:        r.topN,
	})

	if r.outputDir == "" {
		r.metrics.RecordPipelineRun(PhaseReport, "skipped", time.Since(start))
		return nil
	}

	details := make([]reporting.DetailRow, len(result.Records))
	for i, rec := range result.Records {
		details[i] = reporting.DetailRow{
			Features: result.Features[i],
			RawScore: rec.RawScore,
			Score:    rec.NormalizedScore,
			Category: rec.Category,
		}
	}

	files, err := reporting.WriteFiles(r.outputDir, result.StartedAt, result.Report, result.Scores, details)
	if err != nil {
		r.metrics.RecordPipelineRun(PhaseReport, "error", time.Since(start))
		return err
	}
	result.Files = files
	r.metrics.RecordReport()
	r.metrics.RecordPipelineRun(PhaseReport, "ok", time.Since(start))
	return nil
}
