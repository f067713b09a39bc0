package riskconfig

import (
	"errors"
	"math"
	"testing"

	"wallet-risk-lab/internal/domain"
)

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(Default().Weights) != len(Components) {
		t.Errorf("expected weight for every component")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		allow   bool
		wantErr error
	}{
		{"negative", Weights{ComponentBorrowSupplyRatio: 1.5, ComponentLiquidationCount: -0.5}, false, ErrNegativeWeight},
		{"unknown", Weights{"health": 1.0}, false, ErrUnknownComponent},
		{"nan", Weights{ComponentBorrowSupplyRatio: math.NaN()}, false, ErrNonFiniteWeight},
		{"nan allowed", Weights{ComponentBorrowSupplyRatio: math.NaN()}, true, ErrNonFiniteWeight},
		{"inf", Weights{ComponentBorrowSupplyRatio: math.Inf(1)}, true, ErrNonFiniteWeight},
		{"sum", Weights{ComponentBorrowSupplyRatio: 0.5}, false, ErrWeightSum},
		{"sum allowed", Weights{ComponentBorrowSupplyRatio: 0.5}, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default().WithWeights(tt.weights)
			cfg.AllowUnnormalizedWeights = tt.allow
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithWeights_Copies(t *testing.T) {
	w := Weights{ComponentBorrowSupplyRatio: 1.0}
	cfg := Default().WithWeights(w)
	w[ComponentBorrowSupplyRatio] = 0

	if cfg.Weights[ComponentBorrowSupplyRatio] != 1.0 {
		t.Error("config weights share storage with caller map")
	}
	if Default().Weights[ComponentBorrowSupplyRatio] != 0.25 {
		t.Error("default weights modified")
	}
}

func TestMarketLookups(t *testing.T) {
	cfg := Default()

	m, ok := cfg.MarketByAddress("0x5D3A536E4D6DBD6114CC1EAD35777BAB948E3643")
	if !ok || m.Symbol != "cDAI" || m.Version != domain.ProtocolVersionV2 {
		t.Errorf("expected cDAI v2, got %+v ok=%v", m, ok)
	}

	m, ok = cfg.MarketBySymbol("WETH")
	if !ok || m.Version != domain.ProtocolVersionV3 {
		t.Errorf("expected WETH v3, got %+v ok=%v", m, ok)
	}

	if _, ok := cfg.MarketBySymbol("DOGE"); ok {
		t.Error("expected DOGE to be unknown")
	}
	if v := cfg.Version("cUSDC"); v != domain.ProtocolVersionV2 {
		t.Errorf("expected v2, got %s", v)
	}
	if v := cfg.Version("Borrow"); v != domain.ProtocolVersionUnknown {
		t.Errorf("expected unknown, got %s", v)
	}

	markets := cfg.Markets()
	if len(markets) != len(cfg.V2Markets)+len(cfg.V3Markets) {
		t.Fatalf("expected %d markets, got %d", len(cfg.V2Markets)+len(cfg.V3Markets), len(markets))
	}
	if markets[0].Symbol != "cAAVE" || markets[0].Version != domain.ProtocolVersionV2 {
		t.Errorf("expected sorted v2 first, got %+v", markets[0])
	}
}

func TestAllEvents(t *testing.T) {
	events := AllEvents()
	if len(events) != len(V2Events)+len(V3Events) {
		t.Fatalf("unexpected event count %d", len(events))
	}
	seen := make(map[string]bool)
	for _, e := range events {
		if seen[e.Signature] {
			t.Errorf("duplicate signature %s", e.Signature)
		}
		seen[e.Signature] = true
		if !e.Kind.IsValid() {
			t.Errorf("invalid kind for %s", e.Signature)
		}
	}
}
