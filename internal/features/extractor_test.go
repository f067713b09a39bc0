package features

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/riskconfig"
)

const (
	walletA = "0x1111111111111111111111111111111111111111"
	walletB = "0x2222222222222222222222222222222222222222"
	walletC = "0x3333333333333333333333333333333333333333"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return NewExtractor(riskconfig.Default(), nil).WithClock(func() time.Time { return fixedNow })
}

func daysAgo(d float64) int64 {
	return fixedNow.Add(-time.Duration(d * float64(24*time.Hour))).UnixMilli()
}

func tx(wallet, market string, kind domain.TxKind, ts int64) domain.Transaction {
	return domain.Transaction{Wallet: wallet, Market: market, Kind: kind, Timestamp: ts}
}

func TestExtract_NoTransactionsReturnsDefault(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract(nil, walletA)
	want := domain.DefaultFeatures(walletA)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected default features %+v, got %+v", want, got)
	}
	if got.DaysSinceLastActivity != 365 {
		t.Errorf("expected 365 days inactivity, got %d", got.DaysSinceLastActivity)
	}
	if got.ProtocolVersionUsage != domain.ProtocolVersionNone || got.BorrowingBehavior != domain.BorrowingNone {
		t.Errorf("expected none categoricals, got %s/%s", got.ProtocolVersionUsage, got.BorrowingBehavior)
	}
	if got.HealthFactorTrend != domain.HealthTrendStable {
		t.Errorf("expected stable trend, got %s", got.HealthFactorTrend)
	}

	// Other wallets' transactions do not leak in
	got = e.Extract([]domain.Transaction{tx(walletB, "cDAI", domain.TxKindSupply, daysAgo(1))}, walletA)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected default features for unrelated wallet, got %+v", got)
	}
}

func TestExtract_WalletMatchIsCaseInsensitive(t *testing.T) {
	e := newTestExtractor()
	upper := "0xABCDEF1234567890ABCDEF1234567890ABCDEF12"
	txs := []domain.Transaction{tx("0xabcdef1234567890abcdef1234567890abcdef12", "cDAI", domain.TxKindSupply, daysAgo(1))}

	got := e.Extract(txs, upper)
	if got.TotalTransactions != 1 {
		t.Errorf("expected 1 transaction, got %d", got.TotalTransactions)
	}
	if got.WalletID != upper {
		t.Errorf("expected wallet id %s, got %s", upper, got.WalletID)
	}
}

func TestExtract_InactivityWholeDays(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(40)),
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(10.5)),
	}

	got := e.Extract(txs, walletA)
	if got.DaysSinceLastActivity != 10 {
		t.Errorf("expected 10 days, got %d", got.DaysSinceLastActivity)
	}
	if *got.FirstTransactionDate != daysAgo(40) || *got.LastTransactionDate != daysAgo(10.5) {
		t.Errorf("unexpected first/last dates %d/%d", *got.FirstTransactionDate, *got.LastTransactionDate)
	}

	// Future timestamps clamp to zero
	got = e.Extract([]domain.Transaction{tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(-2))}, walletA)
	if got.DaysSinceLastActivity != 0 {
		t.Errorf("expected 0 days for future activity, got %d", got.DaysSinceLastActivity)
	}
}

func TestExtract_SupplySideEstimates(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(3)),
		tx(walletA, "USDC", domain.TxKindBorrow, daysAgo(2)),
		tx(walletA, "COMP", domain.TxKindUnknown, daysAgo(1)), // no marker, not a base asset
	}

	got := e.Extract(txs, walletA)
	if got.TotalSuppliedUSD != 2000 {
		t.Errorf("expected supplied 2000, got %f", got.TotalSuppliedUSD)
	}
	if got.TotalBorrowedUSD != 1000 {
		t.Errorf("expected borrowed 1000, got %f", got.TotalBorrowedUSD)
	}
	if got.SupplyToBorrowRatio != 0.5 {
		t.Errorf("expected ratio 0.5, got %f", got.SupplyToBorrowRatio)
	}
}

func TestExtract_NoSupplySideZeroRatio(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{tx(walletA, "LIQUIDATE", domain.TxKindUnknown, daysAgo(1))}

	got := e.Extract(txs, walletA)
	if got.TotalSuppliedUSD != 0 || got.SupplyToBorrowRatio != 0 {
		t.Errorf("expected zero supply and ratio, got %f/%f", got.TotalSuppliedUSD, got.SupplyToBorrowRatio)
	}
}

type stubValuer struct{}

func (stubValuer) EstimateUSD(_ domain.Transaction, side Side) float64 {
	if side == SideBorrow {
		return 30
	}
	return 100
}

func TestExtract_CustomValuer(t *testing.T) {
	e := NewExtractor(riskconfig.Default(), stubValuer{}).WithClock(func() time.Time { return fixedNow })
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(2)),
		tx(walletA, "cETH", domain.TxKindSupply, daysAgo(1)),
	}

	got := e.Extract(txs, walletA)
	if got.TotalSuppliedUSD != 200 || got.TotalBorrowedUSD != 60 {
		t.Errorf("expected 200/60, got %f/%f", got.TotalSuppliedUSD, got.TotalBorrowedUSD)
	}
	if math.Abs(got.SupplyToBorrowRatio-0.3) > 1e-9 {
		t.Errorf("expected ratio 0.3, got %f", got.SupplyToBorrowRatio)
	}
}

func TestExtract_Liquidations(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindLiquidation, daysAgo(5)),
		tx(walletA, "LiquidateBorrow", domain.TxKindUnknown, daysAgo(4)),
		{Wallet: walletA, Market: "cUSDC", Topics: []string{"0x00", "LIQUIDATE"}, Timestamp: daysAgo(3)},
		{Wallet: walletA, Market: "cUSDC", Topics: nil, Timestamp: daysAgo(2)},
		{Wallet: walletA, Timestamp: daysAgo(1)}, // empty market
	}

	got := e.Extract(txs, walletA)
	if got.NumberOfLiquidations != 3 {
		t.Errorf("expected 3 liquidations, got %d", got.NumberOfLiquidations)
	}
}

func TestExtract_RepaymentFrequencyZeroSpan(t *testing.T) {
	e := newTestExtractor()
	ts := daysAgo(1)
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindRepay, ts),
		tx(walletA, "cDAI", domain.TxKindRepay, ts),
		tx(walletA, "RepayBorrow", domain.TxKindUnknown, ts),
	}

	got := e.Extract(txs, walletA)
	if got.RepaymentFrequency != 3 {
		t.Errorf("expected frequency 3, got %f", got.RepaymentFrequency)
	}
}

func TestExtract_RepaymentFrequencyPerThirtyDays(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(61)),
		tx(walletA, "cDAI", domain.TxKindRepay, daysAgo(31)),
		tx(walletA, "cDAI", domain.TxKindRepay, daysAgo(1)),
	}

	got := e.Extract(txs, walletA)
	// span 60 days = 2 periods, 2 repays
	if math.Abs(got.RepaymentFrequency-1.0) > 1e-9 {
		t.Errorf("expected frequency 1.0, got %f", got.RepaymentFrequency)
	}

	noRepay := e.Extract(txs[:1], walletA)
	if noRepay.RepaymentFrequency != 0 {
		t.Errorf("expected frequency 0 without repays, got %f", noRepay.RepaymentFrequency)
	}
}

func TestExtract_AssetMixFeatures(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cWBTC", domain.TxKindSupply, daysAgo(4)),
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(3)),
		tx(walletA, "WETH", domain.TxKindSupply, daysAgo(2)),
		tx(walletA, "USDC", domain.TxKindSupply, daysAgo(1)),
	}

	got := e.Extract(txs, walletA)
	if got.VolatileAssetUsage != 0.5 {
		t.Errorf("expected volatile usage 0.5, got %f", got.VolatileAssetUsage)
	}
	// WBTC .70, DAI .85, ETH .75 (first match before WETH), USDC .85
	if math.Abs(got.CollateralFactorAverage-0.7875) > 1e-9 {
		t.Errorf("expected collateral factor 0.7875, got %f", got.CollateralFactorAverage)
	}
}

func TestExtract_ProtocolVersion(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name    string
		markets []string
		want    domain.ProtocolVersion
	}{
		{"v3 majority", []string{"cDAI", "USDC", "WETH"}, domain.ProtocolVersionV3},
		{"tie goes to v2", []string{"cDAI", "USDC"}, domain.ProtocolVersionV2},
		{"v2 only", []string{"cDAI"}, domain.ProtocolVersionV2},
		{"unregistered", []string{"Borrow", "DAI"}, domain.ProtocolVersionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []domain.Transaction
			for i, m := range tt.markets {
				txs = append(txs, tx(walletA, m, domain.TxKindSupply, daysAgo(float64(10-i))))
			}
			got := e.Extract(txs, walletA)
			if got.ProtocolVersionUsage != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.ProtocolVersionUsage)
			}
		})
	}
}

func TestExtract_BorrowingBehavior(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name  string
		kinds []domain.TxKind
		want  domain.BorrowingBehavior
	}{
		{"supplier only", []domain.TxKind{domain.TxKindSupply, domain.TxKindWithdraw}, domain.BorrowingSupplierOnly},
		{"borrower only", []domain.TxKind{domain.TxKindBorrow, domain.TxKindRepay}, domain.BorrowingBorrowerOnly},
		{"responsible", []domain.TxKind{domain.TxKindSupply, domain.TxKindBorrow, domain.TxKindBorrow, domain.TxKindRepay, domain.TxKindRepay}, domain.BorrowingResponsibleBorrower},
		{"risky", []domain.TxKind{domain.TxKindSupply, domain.TxKindBorrow, domain.TxKindBorrow, domain.TxKindRepay}, domain.BorrowingRiskyBorrower},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []domain.Transaction
			for i, k := range tt.kinds {
				txs = append(txs, tx(walletA, "cDAI", k, daysAgo(float64(10-i))))
			}
			got := e.Extract(txs, walletA)
			if got.BorrowingBehavior != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.BorrowingBehavior)
			}
		})
	}
}

func TestExtract_BorrowingBehaviorLabelFallback(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "Mint", domain.TxKindUnknown, daysAgo(3)),
		tx(walletA, "Borrow", domain.TxKindUnknown, daysAgo(2)),
		tx(walletA, "RepayBorrow", domain.TxKindUnknown, daysAgo(1)),
	}

	// "RepayBorrow" matches both borrow and repay: borrow=2, repay=1
	got := e.Extract(txs, walletA)
	if got.BorrowingBehavior != domain.BorrowingRiskyBorrower {
		t.Errorf("expected risky_borrower, got %s", got.BorrowingBehavior)
	}
}

func TestExtract_HealthFactorTrend(t *testing.T) {
	e := newTestExtractor()

	build := func(markets ...string) []domain.Transaction {
		txs := make([]domain.Transaction, len(markets))
		for i, m := range markets {
			txs[i] = tx(walletA, m, domain.TxKindSupply, daysAgo(float64(100-i)))
		}
		return txs
	}
	repeat := func(m string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = m
		}
		return out
	}

	improving := build(append(repeat("cWBTC", 2), repeat("cDAI", 10)...)...)
	if got := e.Extract(improving, walletA).HealthFactorTrend; got != domain.HealthTrendImproving {
		t.Errorf("expected improving, got %s", got)
	}

	deteriorating := build(append(repeat("cDAI", 2), repeat("cWBTC", 10)...)...)
	if got := e.Extract(deteriorating, walletA).HealthFactorTrend; got != domain.HealthTrendDeteriorating {
		t.Errorf("expected deteriorating, got %s", got)
	}

	// Fewer than 10: recent is everything, older is the first transaction
	short := build("cWBTC", "cDAI", "cDAI")
	if got := e.Extract(short, walletA).HealthFactorTrend; got != domain.HealthTrendImproving {
		t.Errorf("expected improving for short history, got %s", got)
	}

	flat := build(repeat("cDAI", 5)...)
	if got := e.Extract(flat, walletA).HealthFactorTrend; got != domain.HealthTrendStable {
		t.Errorf("expected stable, got %s", got)
	}
}

func TestExtract_SortsPrivateCopy(t *testing.T) {
	e := newTestExtractor()
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(1)),
		tx(walletA, "cWBTC", domain.TxKindSupply, daysAgo(50)),
	}
	before := make([]domain.Transaction, len(txs))
	copy(before, txs)

	got := e.Extract(txs, walletA)
	if *got.FirstTransactionDate != daysAgo(50) {
		t.Errorf("expected first date from oldest transaction")
	}
	if !reflect.DeepEqual(txs, before) {
		t.Error("input slice was modified")
	}
}

func TestExtractAll_PreservesWalletOrder(t *testing.T) {
	e := newTestExtractor().WithConcurrency(2)
	txs := []domain.Transaction{
		tx(walletA, "cDAI", domain.TxKindSupply, daysAgo(1)),
		tx(walletB, "cDAI", domain.TxKindSupply, daysAgo(2)),
		tx(walletB, "cDAI", domain.TxKindBorrow, daysAgo(1)),
	}
	wallets := []string{walletB, walletC, walletA}

	got, err := e.ExtractAll(context.Background(), txs, wallets)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 features, got %d", len(got))
	}
	for i, w := range wallets {
		if got[i].WalletID != w {
			t.Errorf("index %d: expected %s, got %s", i, w, got[i].WalletID)
		}
		if !reflect.DeepEqual(got[i], e.Extract(txs, w)) {
			t.Errorf("index %d: batch result differs from Extract", i)
		}
	}
	if got[1].TotalTransactions != 0 || got[1].DaysSinceLastActivity != 365 {
		t.Errorf("expected default record for wallet without transactions")
	}
}

func TestExtractAll_CancelledContext(t *testing.T) {
	e := newTestExtractor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExtractAll(ctx, nil, []string{walletA})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
