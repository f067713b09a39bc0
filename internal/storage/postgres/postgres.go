// Package postgres stores ingested transactions and computed scores in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wallet-risk-lab/internal/storage"
)

const applicationName = "wallet-risk-lab"

// uniqueViolation is the SQLSTATE raised by the (wallet, tx_hash, log_index)
// and (run_id, wallet_id) primary keys.
const uniqueViolation = "23505"

// Pool is the connection pool shared by TransactionStore and ScoreStore.
// cmd/ingest, cmd/score and cmd/report each open one per process.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and pings the server before returning.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close releases every connection. Stores built on p are unusable afterwards.
func (p *Pool) Close() {
	p.Pool.Close()
}

// storageError maps driver errors onto the storage sentinels.
// Returns nil when err has no storage equivalent.
func storageError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return storage.ErrDuplicateKey
	}
	return nil
}
