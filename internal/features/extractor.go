// Package features derives per-wallet behavioural features from lending
// protocol transactions.
package features

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
)

const (
	msPerDay           = int64(24 * time.Hour / time.Millisecond)
	daysPerRepayPeriod = 30.0
	recentWindow       = 10
	responsibleRepay   = 0.8
)

// Extractor computes Features from transactions. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	cfg         riskconfig.Config
	valuer      Valuer
	now         func() time.Time
	concurrency int
}

// NewExtractor creates an extractor. A nil valuer uses NewFlatValuer.
func NewExtractor(cfg riskconfig.Config, valuer Valuer) *Extractor {
	if valuer == nil {
		valuer = NewFlatValuer()
	}
	return &Extractor{
		cfg:         cfg,
		valuer:      valuer,
		now:         time.Now,
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// WithConcurrency bounds the number of wallets extracted in parallel by ExtractAll.
func (e *Extractor) WithConcurrency(n int) *Extractor {
	if n < 1 {
		n = 1
	}
	e.concurrency = n
	return e
}

// Extract computes features for wallet from the transactions that belong to it.
// The input slice is not modified.
func (e *Extractor) Extract(txs []domain.Transaction, wallet string) domain.Features {
	target := domain.NormalizeAddress(wallet)
	var own []domain.Transaction
	for _, tx := range txs {
		if domain.NormalizeAddress(tx.Wallet) == target {
			own = append(own, tx)
		}
	}
	return e.extractOwned(own, wallet, e.now())
}

// ExtractAll computes features for every wallet, in wallet order.
// The only error is ctx cancellation.
func (e *Extractor) ExtractAll(ctx context.Context, txs []domain.Transaction, wallets []string) ([]domain.Features, error) {
	byWallet := make(map[string][]domain.Transaction, len(wallets))
	for _, tx := range txs {
		key := domain.NormalizeAddress(tx.Wallet)
		byWallet[key] = append(byWallet[key], tx)
	}

	now := e.now()
	out := make([]domain.Features, len(wallets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, w := range wallets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.extractOwned(byWallet[domain.NormalizeAddress(w)], w, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Extractor) extractOwned(own []domain.Transaction, wallet string, now time.Time) domain.Features {
	if len(own) == 0 {
		return domain.DefaultFeatures(wallet)
	}

	sorted := make([]domain.Transaction, len(own))
	copy(sorted, own)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})

	first := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp

	f := domain.Features{
		WalletID:                wallet,
		TotalTransactions:       len(sorted),
		FirstTransactionDate:    &first,
		LastTransactionDate:     &last,
		DaysSinceLastActivity:   inactivityDays(last, now),
		NumberOfLiquidations:    e.countLiquidations(sorted),
		RepaymentFrequency:      e.repaymentFrequency(sorted, first, last),
		VolatileAssetUsage:      e.volatileUsage(sorted),
		ProtocolVersionUsage:    e.protocolVersion(sorted),
		CollateralFactorAverage: e.collateralFactor(sorted),
		BorrowingBehavior:       e.borrowingBehavior(sorted),
		HealthFactorTrend:       e.healthTrend(sorted),
	}

	for _, tx := range sorted {
		if !e.isSupplySide(tx) {
			continue
		}
		f.TotalSuppliedUSD += e.valuer.EstimateUSD(tx, SideSupply)
		f.TotalBorrowedUSD += e.valuer.EstimateUSD(tx, SideBorrow)
	}
	if f.TotalSuppliedUSD > 0 {
		f.SupplyToBorrowRatio = f.TotalBorrowedUSD / f.TotalSuppliedUSD
	}
	return f
}

// inactivityDays returns whole days from last to now, never negative.
func inactivityDays(last int64, now time.Time) int {
	d := (now.UnixMilli() - last) / msPerDay
	if d < 0 {
		return 0
	}
	return int(d)
}

func (e *Extractor) isSupplySide(tx domain.Transaction) bool {
	if e.cfg.MarketTokenMarker != "" && strings.Contains(tx.Market, e.cfg.MarketTokenMarker) {
		return true
	}
	for _, a := range e.cfg.BaseAssets {
		if tx.Market == a {
			return true
		}
	}
	return false
}

func (e *Extractor) countLiquidations(txs []domain.Transaction) int {
	n := 0
	for _, tx := range txs {
		if tx.Kind == domain.TxKindLiquidation || payloadContains(tx, e.cfg.Keywords.Liquidation) {
			n++
		}
	}
	return n
}

// repaymentFrequency returns repayments per 30 days of activity span.
// A zero-day span returns the raw repayment count.
func (e *Extractor) repaymentFrequency(txs []domain.Transaction, first, last int64) float64 {
	repays := 0
	for _, tx := range txs {
		if tx.Kind == domain.TxKindRepay || payloadContains(tx, e.cfg.Keywords.Repay) {
			repays++
		}
	}
	if repays == 0 {
		return 0
	}
	span := (last - first) / msPerDay
	if span <= 0 {
		return float64(repays)
	}
	return float64(repays) / (float64(span) / daysPerRepayPeriod)
}

func (e *Extractor) volatileUsage(txs []domain.Transaction) float64 {
	if len(txs) == 0 {
		return 0
	}
	n := 0
	for _, tx := range txs {
		market := strings.ToUpper(tx.Market)
		for _, asset := range e.cfg.VolatileAssets {
			if strings.Contains(market, asset) {
				n++
				break
			}
		}
	}
	return float64(n) / float64(len(txs))
}

func (e *Extractor) protocolVersion(txs []domain.Transaction) domain.ProtocolVersion {
	v2, v3 := 0, 0
	for _, tx := range txs {
		if _, ok := e.cfg.V2Markets[tx.Market]; ok {
			v2++
		}
		if _, ok := e.cfg.V3Markets[tx.Market]; ok {
			v3++
		}
	}
	switch {
	case v3 > v2:
		return domain.ProtocolVersionV3
	case v2 > 0:
		return domain.ProtocolVersionV2
	default:
		return domain.ProtocolVersionUnknown
	}
}

// collateralFactor averages the table factor of the first matching asset per transaction.
func (e *Extractor) collateralFactor(txs []domain.Transaction) float64 {
	total := 0.0
	count := 0
	for _, tx := range txs {
		market := strings.ToUpper(tx.Market)
		for _, af := range e.cfg.CollateralFactors {
			if strings.Contains(market, af.Symbol) {
				total += af.Factor
				count++
				break
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func (e *Extractor) borrowingBehavior(txs []domain.Transaction) domain.BorrowingBehavior {
	supply, borrow, repay := 0, 0, 0
	kw := e.cfg.Keywords
	for _, tx := range txs {
		if tx.Kind == domain.TxKindSupply || labelContains(tx.Market, kw.Supply) {
			supply++
		}
		if tx.Kind == domain.TxKindBorrow || labelContains(tx.Market, kw.Borrow) {
			borrow++
		}
		if tx.Kind == domain.TxKindRepay || labelContains(tx.Market, kw.Repay) {
			repay++
		}
	}
	switch {
	case borrow == 0:
		return domain.BorrowingSupplierOnly
	case supply == 0:
		return domain.BorrowingBorrowerOnly
	case float64(repay)/float64(borrow) > responsibleRepay:
		return domain.BorrowingResponsibleBorrower
	default:
		return domain.BorrowingRiskyBorrower
	}
}

// healthTrend compares volatile usage of the last 10 transactions against
// the earlier ones (at least one). txs must be sorted ascending.
func (e *Extractor) healthTrend(txs []domain.Transaction) domain.HealthTrend {
	n := len(txs)
	if n == 0 {
		return domain.HealthTrendUnknown
	}
	recent := txs[max(0, n-recentWindow):]
	older := txs[:max(1, n-recentWindow)]

	r := e.volatileUsage(recent)
	o := e.volatileUsage(older)
	switch {
	case r < o:
		return domain.HealthTrendImproving
	case r > o:
		return domain.HealthTrendDeteriorating
	default:
		return domain.HealthTrendStable
	}
}

func labelContains(label string, keywords []string) bool {
	if label == "" {
		return false
	}
	lower := strings.ToLower(label)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// payloadContains matches keywords against the market label and raw log payload.
func payloadContains(tx domain.Transaction, keywords []string) bool {
	if labelContains(tx.Market, keywords) || labelContains(tx.Data, keywords) {
		return true
	}
	for _, t := range tx.Topics {
		if labelContains(t, keywords) {
			return true
		}
	}
	return false
}
