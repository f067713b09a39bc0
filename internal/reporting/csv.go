package reporting

import (
	"fmt"
	"strings"
	"time"

	"wallet-risk-lab/internal/domain"
)

// RenderCSV renders wallet scores as CSV string, in input order.
func RenderCSV(scores []domain.Score) string {
	var sb strings.Builder

	sb.WriteString("wallet_id,score\n")
	for _, s := range scores {
		sb.WriteString(fmt.Sprintf("%s,%d\n", s.WalletID, s.Score))
	}

	return sb.String()
}

// RenderDetailedCSV renders scores with their category and features as CSV string.
func RenderDetailedCSV(rows []DetailRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("wallet_id,raw_score,score,category,")
	sb.WriteString("total_transactions,first_transaction_date,last_transaction_date,days_since_last_activity,")
	sb.WriteString("total_supplied_usd,total_borrowed_usd,supply_to_borrow_ratio,number_of_liquidations,")
	sb.WriteString("repayment_frequency,volatile_asset_usage,protocol_version_usage,collateral_factor_average,")
	sb.WriteString("borrowing_behavior,health_factor_trend\n")

	// Rows
	for _, r := range rows {
		f := r.Features
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%d,%s,%s,%d,%.2f,%.2f,%.6f,%d,%.6f,%.6f,%s,%.6f,%s,%s\n",
			f.WalletID,
			r.RawScore,
			r.Score,
			r.Category,
			f.TotalTransactions,
			formatDate(f.FirstTransactionDate),
			formatDate(f.LastTransactionDate),
			f.DaysSinceLastActivity,
			f.TotalSuppliedUSD,
			f.TotalBorrowedUSD,
			f.SupplyToBorrowRatio,
			f.NumberOfLiquidations,
			f.RepaymentFrequency,
			f.VolatileAssetUsage,
			f.ProtocolVersionUsage,
			f.CollateralFactorAverage,
			f.BorrowingBehavior,
			f.HealthFactorTrend,
		))
	}

	return sb.String()
}

// formatDate renders a Unix ms date as RFC3339 UTC, empty when unset.
func formatDate(ms *int64) string {
	if ms == nil {
		return ""
	}
	return time.UnixMilli(*ms).UTC().Format(time.RFC3339)
}
