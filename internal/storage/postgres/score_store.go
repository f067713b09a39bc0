package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using PostgreSQL.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertBulk adds multiple scores atomically. Fails entire batch on any duplicate.
func (s *ScoreStore) InsertBulk(ctx context.Context, records []*domain.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" || r.WalletID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO wallet_scores (
			run_id, wallet_id, raw_score, normalized_score, category, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.RunID,
			domain.NormalizeAddress(r.WalletID),
			r.RawScore,
			r.NormalizedScore,
			string(r.Category),
			r.CreatedAt,
		)
		if err != nil {
			if sErr := storageError(err); sErr != nil {
				return sErr
			}
			return fmt.Errorf("insert score in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRun retrieves all scores of a run, ordered by normalized score DESC, wallet ASC.
func (s *ScoreStore) GetByRun(ctx context.Context, runID string) ([]*domain.ScoreRecord, error) {
	query := `
		SELECT run_id, wallet_id, raw_score, normalized_score, category, created_at
		FROM wallet_scores
		WHERE run_id = $1
		ORDER BY normalized_score DESC, wallet_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get scores by run: %w", err)
	}
	defer rows.Close()

	return scanScores(rows)
}

// GetLatest retrieves the most recent score of a wallet.
func (s *ScoreStore) GetLatest(ctx context.Context, wallet string) (*domain.ScoreRecord, error) {
	query := `
		SELECT run_id, wallet_id, raw_score, normalized_score, category, created_at
		FROM wallet_scores
		WHERE wallet_id = $1
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`

	var r domain.ScoreRecord
	var category string
	err := s.pool.QueryRow(ctx, query, domain.NormalizeAddress(wallet)).Scan(
		&r.RunID, &r.WalletID, &r.RawScore, &r.NormalizedScore, &category, &r.CreatedAt,
	)
	if err != nil {
		if sErr := storageError(err); sErr != nil {
			return nil, sErr
		}
		return nil, fmt.Errorf("get latest score: %w", err)
	}
	r.Category = domain.RiskCategory(category)
	return &r, nil
}

// scanScores scans multiple rows into a slice of ScoreRecord.
func scanScores(rows pgx.Rows) ([]*domain.ScoreRecord, error) {
	var records []*domain.ScoreRecord

	for rows.Next() {
		var r domain.ScoreRecord
		var category string

		if err := rows.Scan(
			&r.RunID, &r.WalletID, &r.RawScore, &r.NormalizedScore, &category, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		r.Category = domain.RiskCategory(category)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score rows: %w", err)
	}

	return records, nil
}
