package clickhouse

import (
	"context"
	"fmt"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// FeatureStore implements storage.FeatureStore using ClickHouse.
type FeatureStore struct {
	conn *Conn
}

// NewFeatureStore creates a new FeatureStore.
func NewFeatureStore(conn *Conn) *FeatureStore {
	return &FeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

const featureColumns = `
	run_id, wallet_id, created_at,
	total_transactions, first_transaction_date, last_transaction_date, days_since_last_activity,
	total_supplied_usd, total_borrowed_usd, supply_to_borrow_ratio,
	number_of_liquidations, repayment_frequency, volatile_asset_usage,
	protocol_version_usage, collateral_factor_average, borrowing_behavior, health_factor_trend
`

// InsertBulk adds multiple records. Fails entire batch on duplicate.
func (s *FeatureStore) InsertBulk(ctx context.Context, records []*domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID  string
		wallet string
	}
	seen := make(map[key]struct{})
	for _, r := range records {
		if r == nil || r.RunID == "" || r.WalletID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.RunID, domain.NormalizeAddress(r.WalletID)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range records {
		exists, err := existsByRun(ctx, s.conn, "wallet_features", r.RunID, r.WalletID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO wallet_features (`+featureColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RunID, domain.NormalizeAddress(r.WalletID), r.CreatedAt,
			uint32(r.TotalTransactions), r.FirstTransactionDate, r.LastTransactionDate, int32(r.DaysSinceLastActivity),
			r.TotalSuppliedUSD, r.TotalBorrowedUSD, r.SupplyToBorrowRatio,
			uint32(r.NumberOfLiquidations), r.RepaymentFrequency, r.VolatileAssetUsage,
			string(r.ProtocolVersionUsage), r.CollateralFactorAverage, string(r.BorrowingBehavior), string(r.HealthFactorTrend),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all records of a run, ordered by wallet ASC.
func (s *FeatureStore) GetByRun(ctx context.Context, runID string) ([]*domain.FeatureRecord, error) {
	query := `SELECT ` + featureColumns + `
		FROM wallet_features FINAL
		WHERE run_id = ?
		ORDER BY wallet_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query features by run: %w", err)
	}
	defer rows.Close()

	return scanFeatureRecords(rows)
}

// GetLatest retrieves the most recent record of a wallet.
func (s *FeatureStore) GetLatest(ctx context.Context, wallet string) (*domain.FeatureRecord, error) {
	query := `SELECT ` + featureColumns + `
		FROM wallet_features FINAL
		WHERE wallet_id = ?
		ORDER BY created_at DESC, run_id DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, domain.NormalizeAddress(wallet))
	if err != nil {
		return nil, fmt.Errorf("query latest features: %w", err)
	}
	defer rows.Close()

	records, err := scanFeatureRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// existsByRun checks if a row with the given (run_id, wallet_id) exists in table.
func existsByRun(ctx context.Context, conn *Conn, table, runID, wallet string) (bool, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE run_id = ? AND wallet_id = ?`, table)

	var count uint64
	err := conn.QueryRow(ctx, query, runID, domain.NormalizeAddress(wallet)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanFeatureRecords scans multiple rows.
func scanFeatureRecords(rows chRows) ([]*domain.FeatureRecord, error) {
	var records []*domain.FeatureRecord

	for rows.Next() {
		var r domain.FeatureRecord
		var totalTx, liquidations uint32
		var inactivity int32
		var version, behavior, trend string

		err := rows.Scan(
			&r.RunID, &r.WalletID, &r.CreatedAt,
			&totalTx, &r.FirstTransactionDate, &r.LastTransactionDate, &inactivity,
			&r.TotalSuppliedUSD, &r.TotalBorrowedUSD, &r.SupplyToBorrowRatio,
			&liquidations, &r.RepaymentFrequency, &r.VolatileAssetUsage,
			&version, &r.CollateralFactorAverage, &behavior, &trend,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet features row: %w", err)
		}

		r.TotalTransactions = int(totalTx)
		r.NumberOfLiquidations = int(liquidations)
		r.DaysSinceLastActivity = int(inactivity)
		r.ProtocolVersionUsage = domain.ProtocolVersion(version)
		r.BorrowingBehavior = domain.BorrowingBehavior(behavior)
		r.HealthFactorTrend = domain.HealthTrend(trend)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet features rows: %w", err)
	}

	return records, nil
}
