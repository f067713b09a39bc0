package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeatureRecord
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[string]*domain.FeatureRecord),
	}
}

// Compile-time interface check.
var _ storage.FeatureStore = (*FeatureStore)(nil)

func runKey(runID, wallet string) string {
	return runID + "|" + domain.NormalizeAddress(wallet)
}

func cloneFeatureRecord(r *domain.FeatureRecord) *domain.FeatureRecord {
	c := *r
	if r.FirstTransactionDate != nil {
		v := *r.FirstTransactionDate
		c.FirstTransactionDate = &v
	}
	if r.LastTransactionDate != nil {
		v := *r.LastTransactionDate
		c.LastTransactionDate = &v
	}
	return &c
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *FeatureStore) InsertBulk(_ context.Context, records []*domain.FeatureRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.RunID == "" || r.WalletID == "" {
			return storage.ErrInvalidInput
		}
		key := runKey(r.RunID, r.WalletID)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		s.data[runKey(r.RunID, r.WalletID)] = cloneFeatureRecord(r)
	}
	return nil
}

// GetByRun retrieves all records of a run, ordered by wallet ASC.
func (s *FeatureStore) GetByRun(_ context.Context, runID string) ([]*domain.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeatureRecord
	for _, r := range s.data {
		if r.RunID == runID {
			result = append(result, cloneFeatureRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].WalletID < result[j].WalletID
	})
	return result, nil
}

// GetLatest retrieves the most recent record of a wallet.
func (s *FeatureStore) GetLatest(_ context.Context, wallet string) (*domain.FeatureRecord, error) {
	wallet = domain.NormalizeAddress(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.FeatureRecord
	for _, r := range s.data {
		if domain.NormalizeAddress(r.WalletID) != wallet {
			continue
		}
		if latest == nil || r.CreatedAt > latest.CreatedAt ||
			(r.CreatedAt == latest.CreatedAt && r.RunID > latest.RunID) {
			latest = r
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return cloneFeatureRecord(latest), nil
}
