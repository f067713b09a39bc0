// Package riskconfig holds the immutable model configuration shared by the
// feature extractor and the risk scorer: market registries, asset lists,
// collateral factors and component weights.
package riskconfig

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"wallet-risk-lab/internal/domain"
)

// Component names used for weights and score breakdowns.
const (
	ComponentBorrowSupplyRatio  = "borrow_supply_ratio"
	ComponentLiquidationCount   = "liquidation_count"
	ComponentInactivityDays     = "inactivity_days"
	ComponentRepaymentFrequency = "repayment_frequency"
	ComponentVolatileAssetUsage = "volatile_asset_usage"
	ComponentProtocolVersion    = "protocol_version"
	ComponentCollateralFactor   = "collateral_factor"
)

// Components lists all scoring components in report order.
var Components = []string{
	ComponentBorrowSupplyRatio,
	ComponentLiquidationCount,
	ComponentInactivityDays,
	ComponentRepaymentFrequency,
	ComponentVolatileAssetUsage,
	ComponentProtocolVersion,
	ComponentCollateralFactor,
}

// Configuration errors.
var (
	ErrNegativeWeight   = errors.New("negative weight")
	ErrNonFiniteWeight  = errors.New("weight is not finite")
	ErrWeightSum        = errors.New("weights do not sum to 1")
	ErrUnknownComponent = errors.New("unknown component")
)

// AssetFactor is one entry of the collateral factor table.
type AssetFactor struct {
	Symbol string
	Factor float64
}

// Weights maps component name to its weight.
type Weights map[string]float64

// Keywords are case-insensitive substrings used when a transaction carries no kind tag.
type Keywords struct {
	Supply      []string
	Borrow      []string
	Repay       []string
	Liquidation []string
}

// Config is the model configuration. Use Default and the With* helpers;
// the helpers return modified copies.
type Config struct {
	V2Markets         map[string]string // symbol -> market address
	V3Markets         map[string]string // symbol -> market address
	V2Comptroller     string
	V3Comptroller     string
	MarketTokenMarker string   // substring marking a market token ("c" for cTokens)
	BaseAssets        []string // supply-side base asset symbols
	VolatileAssets    []string
	CollateralFactors []AssetFactor // first match wins
	Weights           Weights
	BaseScore         float64
	Keywords          Keywords

	// AllowUnnormalizedWeights skips the sum-to-one check in Validate.
	AllowUnnormalizedWeights bool
}

// Default returns the Compound v2/v3 configuration.
func Default() Config {
	return Config{
		V2Markets: map[string]string{
			"cDAI":   "0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643",
			"cUSDC":  "0x39AA39c021dfbaE8faC545936693aC917d5E7563",
			"cETH":   "0x4Ddc2D193948926D02f9B1fE9e1daa0718270ED5",
			"cWBTC":  "0xC11b1268C1A384e55C48c2391d8d480264A3A7F4",
			"cUSDT":  "0xf650C3d88D12dB855b8bf7D11Be6C55A4e07dCC9",
			"cCOMP":  "0x70e36f6BF80a52b3B46b3aF8e106CC0ed743E8e4",
			"cUNI":   "0x35A18000230DA775CAc24873d00Ff85BccdeD550",
			"cLINK":  "0xFAce851a4921ce59e912d19329929CE6da6EB0c7",
			"cMKR":   "0x95b4eF2869eBD94BEb4eEE400a97824Af4F4Ab1c",
			"cYFI":   "0x80a2AE356fc9ef4305676f7a3E2Ed04e12C33946",
			"cBAT":   "0x6C8c6b02E7b2BE14d4fA6022Dfd6d75921D90E4E",
			"cZRX":   "0xB3319f5D18Bc0D84dD1b4825Dcde5d5f7266d407",
			"cAAVE":  "0xe65cdB6479BaC1e22340E4E755fAE7E509EcD06c",
			"cSUSHI": "0x4B0181102A0112A2ef11AbEE5563bb4a3176c9d7",
		},
		V3Markets: map[string]string{
			"USDC": "0xc3d688B66703497DAA19211EEdff47f25384cdc3",
			"WETH": "0xA17581A9E3356d9A858b789D68B4d7eD7D5b8A6A",
			"WBTC": "0xccF4429DB6322D5C611ee964527D42E5d685DD6a",
			"LINK": "0x9c4ec768c28520B50860ea7a15bd7213a9fF58bf",
			"UNI":  "0x9a0242b7a33DAcbe44eD41d3A2b3b3a3C3b3b3b3",
		},
		V2Comptroller:     "0x3d9819210A31b4961b30EF54bE2aeD79B9c9Cd3B",
		V3Comptroller:     "0x3d9819210A31b4961b30EF54bE2aeD79B9c9Cd3B",
		MarketTokenMarker: "c",
		BaseAssets:        []string{"USDC", "WETH", "WBTC"},
		VolatileAssets:    []string{"WBTC", "ETH", "LINK", "UNI", "MKR", "YFI", "AAVE", "SUSHI"},
		CollateralFactors: []AssetFactor{
			{"USDC", 0.85}, {"USDT", 0.80}, {"DAI", 0.85},
			{"ETH", 0.75}, {"WETH", 0.75}, {"WBTC", 0.70},
			{"LINK", 0.65}, {"UNI", 0.60}, {"MKR", 0.55},
			{"YFI", 0.50}, {"AAVE", 0.55}, {"SUSHI", 0.50},
		},
		Weights:   DefaultWeights(),
		BaseScore: 500,
		Keywords: Keywords{
			Supply:      []string{"mint", "supply"},
			Borrow:      []string{"borrow"},
			Repay:       []string{"repay"},
			Liquidation: []string{"liquidate"},
		},
	}
}

// DefaultWeights returns the default component weights. They sum to 1.0.
func DefaultWeights() Weights {
	return Weights{
		ComponentBorrowSupplyRatio:  0.25,
		ComponentLiquidationCount:   0.20,
		ComponentInactivityDays:     0.15,
		ComponentRepaymentFrequency: 0.15,
		ComponentVolatileAssetUsage: 0.10,
		ComponentProtocolVersion:    0.10,
		ComponentCollateralFactor:   0.05,
	}
}

// WithWeights returns a copy of c using w.
func (c Config) WithWeights(w Weights) Config {
	c.Weights = w.Clone()
	return c
}

// Clone returns an independent copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Sum returns the sum of all weights.
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Validate checks weights against the known components.
func (c Config) Validate() error {
	known := make(map[string]struct{}, len(Components))
	for _, name := range Components {
		known[name] = struct{}{}
	}
	for name, v := range c.Weights {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%f", ErrNonFiniteWeight, name, v)
		}
		if v < 0 {
			return fmt.Errorf("%w: %s=%f", ErrNegativeWeight, name, v)
		}
	}
	if math.IsNaN(c.BaseScore) || math.IsInf(c.BaseScore, 0) {
		return fmt.Errorf("%w: base score=%f", ErrNonFiniteWeight, c.BaseScore)
	}
	if !c.AllowUnnormalizedWeights {
		if sum := c.Weights.Sum(); math.Abs(sum-1.0) > 1e-9 {
			return fmt.Errorf("%w: got %f", ErrWeightSum, sum)
		}
	}
	return nil
}

// Version returns the protocol version of a market symbol.
// Returns ProtocolVersionUnknown for symbols in neither registry.
func (c Config) Version(symbol string) domain.ProtocolVersion {
	if _, ok := c.V3Markets[symbol]; ok {
		return domain.ProtocolVersionV3
	}
	if _, ok := c.V2Markets[symbol]; ok {
		return domain.ProtocolVersionV2
	}
	return domain.ProtocolVersionUnknown
}

// Market is a resolved registry entry.
type Market struct {
	Symbol  string
	Address string
	Version domain.ProtocolVersion
}

// Markets returns all registered markets, v2 first, each group sorted by symbol.
func (c Config) Markets() []Market {
	markets := make([]Market, 0, len(c.V2Markets)+len(c.V3Markets))
	markets = appendSorted(markets, c.V2Markets, domain.ProtocolVersionV2)
	markets = appendSorted(markets, c.V3Markets, domain.ProtocolVersionV3)
	return markets
}

// MarketByAddress looks up a market by contract address (case-insensitive).
func (c Config) MarketByAddress(addr string) (Market, bool) {
	addr = domain.NormalizeAddress(addr)
	for _, m := range c.Markets() {
		if strings.ToLower(m.Address) == addr {
			return m, true
		}
	}
	return Market{}, false
}

// MarketBySymbol looks up a market by its symbol.
func (c Config) MarketBySymbol(symbol string) (Market, bool) {
	if addr, ok := c.V3Markets[symbol]; ok {
		return Market{Symbol: symbol, Address: addr, Version: domain.ProtocolVersionV3}, true
	}
	if addr, ok := c.V2Markets[symbol]; ok {
		return Market{Symbol: symbol, Address: addr, Version: domain.ProtocolVersionV2}, true
	}
	return Market{}, false
}

func appendSorted(dst []Market, src map[string]string, v domain.ProtocolVersion) []Market {
	symbols := make([]string, 0, len(src))
	for s := range src {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for _, s := range symbols {
		dst = append(dst, Market{Symbol: s, Address: src[s], Version: v})
	}
	return dst
}
