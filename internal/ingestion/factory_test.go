package ingestion

import (
	"context"
	"errors"
	"testing"

	"wallet-risk-lab/internal/storage/memory"
)

func TestNewSource(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	tests := []struct {
		name    string
		sc      SourceConfig
		wantErr error
	}{
		{"simulated", SourceConfig{Name: SourceSimulated, Risk: cfg, Seed: 1}, nil},
		{"etherscan", SourceConfig{Name: SourceEtherscan, Risk: cfg, EtherscanAPIKey: "key", EtherscanRate: 5}, nil},
		{"etherscan without key", SourceConfig{Name: SourceEtherscan, Risk: cfg}, ErrMissingEndpoint},
		{"rpc without url", SourceConfig{Name: SourceRPC, Risk: cfg}, ErrMissingEndpoint},
		{"store", SourceConfig{Name: SourceStore, Risk: cfg, Store: memory.NewTransactionStore()}, nil},
		{"store without store", SourceConfig{Name: SourceStore, Risk: cfg}, ErrMissingEndpoint},
		{"unknown", SourceConfig{Name: "ftp", Risk: cfg}, ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, closeFn, err := NewSource(ctx, tt.sc)
			if closeFn == nil {
				t.Fatal("close function must not be nil")
			}
			defer closeFn()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSource failed: %v", err)
			}
			if src == nil {
				t.Error("expected a source")
			}
		})
	}
}

func TestNewSource_Types(t *testing.T) {
	ctx := context.Background()

	src, _, _ := NewSource(ctx, SourceConfig{Name: SourceSimulated, Risk: testConfig()})
	if _, ok := src.(*SimulatedSource); !ok {
		t.Errorf("expected *SimulatedSource, got %T", src)
	}

	src, _, _ = NewSource(ctx, SourceConfig{Name: SourceEtherscan, Risk: testConfig(), EtherscanAPIKey: "k", EtherscanRate: 1})
	if _, ok := src.(*EtherscanSource); !ok {
		t.Errorf("expected *EtherscanSource, got %T", src)
	}
}
