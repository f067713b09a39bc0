package memory

import (
	"context"
	"sort"
	"sync"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ScoreRecord
}

// NewScoreStore creates a new in-memory score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		data: make(map[string]*domain.ScoreRecord),
	}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *ScoreStore) InsertBulk(_ context.Context, records []*domain.ScoreRecord) error {
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
		copy := *r
		s.data[runKey(r.RunID, r.WalletID)] = &copy
	}
	return nil
}

// GetByRun retrieves all scores of a run, ordered by normalized score DESC, wallet ASC.
func (s *ScoreStore) GetByRun(_ context.Context, runID string) ([]*domain.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScoreRecord
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].NormalizedScore != result[j].NormalizedScore {
			return result[i].NormalizedScore > result[j].NormalizedScore
		}
		return result[i].WalletID < result[j].WalletID
	})
	return result, nil
}

// GetLatest retrieves the most recent score of a wallet.
func (s *ScoreStore) GetLatest(_ context.Context, wallet string) (*domain.ScoreRecord, error) {
	wallet = domain.NormalizeAddress(wallet)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ScoreRecord
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
	copy := *latest
	return &copy, nil
}
