package memory

import (
	"context"
	"errors"
	"testing"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/storage"
)

func TestFeatureStore_InsertAndGetByRun(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	last := int64(1704067200000)
	records := []*domain.FeatureRecord{
		{RunID: "run1", CreatedAt: 1, Features: domain.DefaultFeatures(walletB)},
		{RunID: "run1", CreatedAt: 1, Features: domain.Features{
			WalletID:            walletA,
			TotalTransactions:   4,
			LastTransactionDate: &last,
			BorrowingBehavior:   domain.BorrowingResponsibleBorrower,
		}},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Mutating the input after insert must not affect the store.
	last = 0

	result, err := store.GetByRun(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRun failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}
	if result[0].WalletID != walletA {
		t.Errorf("Expected wallet ASC ordering, got %s first", result[0].WalletID)
	}
	if result[0].LastTransactionDate == nil || *result[0].LastTransactionDate != 1704067200000 {
		t.Errorf("LastTransactionDate mismatch: %v", result[0].LastTransactionDate)
	}
	if result[1].DaysSinceLastActivity != domain.DefaultInactivityDays {
		t.Errorf("DaysSinceLastActivity = %d, want %d", result[1].DaysSinceLastActivity, domain.DefaultInactivityDays)
	}
}

func TestFeatureStore_DuplicateKey(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	batch := []*domain.FeatureRecord{
		{RunID: "run1", Features: domain.DefaultFeatures(walletA)},
		{RunID: "run1", Features: domain.DefaultFeatures(walletA)},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	result, _ := store.GetByRun(ctx, "run1")
	if len(result) != 0 {
		t.Errorf("Expected failed batch to insert nothing, got %d", len(result))
	}
}

func TestFeatureStore_GetLatest(t *testing.T) {
	store := NewFeatureStore()
	ctx := context.Background()

	if _, err := store.GetLatest(ctx, walletA); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	old := domain.DefaultFeatures(walletA)
	recent := domain.DefaultFeatures(walletA)
	recent.TotalTransactions = 7
	batch := []*domain.FeatureRecord{
		{RunID: "run1", CreatedAt: 1000, Features: old},
		{RunID: "run2", CreatedAt: 5000, Features: recent},
	}
	if err := store.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	latest, err := store.GetLatest(ctx, "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.RunID != "run2" || latest.TotalTransactions != 7 {
		t.Errorf("Expected run2 record, got %+v", latest)
	}
}
