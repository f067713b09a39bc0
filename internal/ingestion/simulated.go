package ingestion

import (
	"context"
	"encoding/hex"
	"math/rand"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/riskconfig"
)

// Simulation parameters of the demo transaction generator.
const (
	simMinTxPerWallet = 1
	simMaxTxPerWallet = 19
	simMaxDaysAgo     = 365
	simMinBlock       = 15_000_000
	simMaxBlock       = 18_000_000
)

// simKinds are the generated actions with their probabilities.
var simKinds = []struct {
	kind domain.TxKind
	p    float64
}{
	{domain.TxKindSupply, 0.30},
	{domain.TxKindBorrow, 0.30},
	{domain.TxKindRepay, 0.20},
	{domain.TxKindWithdraw, 0.15},
	{domain.TxKindLiquidation, 0.05},
}

// SimulatedSource generates deterministic demo transactions from a seed.
// The same seed, clock and wallet list always produce the same output.
type SimulatedSource struct {
	markets []riskconfig.Market
	decoder *Decoder
	seed    int64
	now     func() time.Time
}

// NewSimulatedSource creates a generator over the markets of cfg.
func NewSimulatedSource(cfg riskconfig.Config, seed int64) *SimulatedSource {
	return &SimulatedSource{
		markets: cfg.Markets(),
		decoder: NewDecoder(cfg),
		seed:    seed,
		now:     time.Now,
	}
}

// WithClock sets the reference time transactions are placed before.
func (s *SimulatedSource) WithClock(now func() time.Time) *SimulatedSource {
	s.now = now
	return s
}

var _ TransactionSource = (*SimulatedSource)(nil)

// Fetch generates 1-19 transactions per wallet spread over the last year.
func (s *SimulatedSource) Fetch(ctx context.Context, wallets []string) ([]domain.Transaction, error) {
	if len(s.markets) == 0 {
		return nil, nil
	}
	rng := rand.New(rand.NewSource(s.seed))
	now := s.now()

	var txs []domain.Transaction
	for _, wallet := range normalizeWallets(wallets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := simMinTxPerWallet + rng.Intn(simMaxTxPerWallet-simMinTxPerWallet+1)
		for i := 0; i < n; i++ {
			kind := pickKind(rng)
			market := s.markets[rng.Intn(len(s.markets))]
			daysAgo := rng.Intn(simMaxDaysAgo)
			ts := now.Add(-time.Duration(daysAgo) * 24 * time.Hour)

			topics := []string{s.decoder.TopicFor(kind, market.Version)}
			if ethereum.IsAddress(wallet) {
				topics = append(topics, ethereum.AddressTopic(wallet))
			}

			txs = append(txs, domain.Transaction{
				Wallet:        wallet,
				Market:        market.Symbol,
				MarketAddress: domain.NormalizeAddress(market.Address),
				BlockNumber:   simMinBlock + rng.Int63n(simMaxBlock-simMinBlock),
				TxHash:        randomHex(rng, 32),
				LogIndex:      i,
				Timestamp:     ts.UnixMilli(),
				Topics:        topics,
				Data:          randomHex(rng, 64),
				Kind:          kind,
			})
		}
	}
	return txs, nil
}

func pickKind(rng *rand.Rand) domain.TxKind {
	r := rng.Float64()
	acc := 0.0
	for _, k := range simKinds {
		acc += k.p
		if r < acc {
			return k.kind
		}
	}
	return simKinds[len(simKinds)-1].kind
}

func randomHex(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	return "0x" + hex.EncodeToString(b)
}
