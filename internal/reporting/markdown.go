package reporting

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Compound Protocol Wallet Risk Analysis Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated on: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05")))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}

	// Executive Summary
	s := r.Summary
	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Total Wallets Analyzed**: %d\n", s.TotalWallets))
	sb.WriteString(fmt.Sprintf("- **Average Risk Score**: %.2f\n", s.Mean))
	sb.WriteString(fmt.Sprintf("- **Median Risk Score**: %.2f\n", s.Median))
	sb.WriteString(fmt.Sprintf("- **Standard Deviation**: %.2f\n", s.StdDev))
	sb.WriteString(fmt.Sprintf("- **Score Range**: %d - %d\n\n", s.Min, s.Max))

	// Risk Distribution
	sb.WriteString("## Risk Distribution\n\n")
	for _, d := range r.Distribution {
		sb.WriteString(fmt.Sprintf("- **%s**: %d wallets (%.1f%%)\n", d.Category, d.Count, d.Percent))
	}
	sb.WriteString("\n")

	// Methodology
	sb.WriteString("## Methodology\n\n")
	sb.WriteString("### Data Collection Method\n")
	sb.WriteString(fmt.Sprintf("- Transaction source: %s\n", dataSourceText(r.DataSource)))
	sb.WriteString("- Tracked supply, borrow, repay, withdraw, and liquidation events on Compound V2/V3 markets\n")
	sb.WriteString("- Events classified by topic0 against the keccak-256 hash of each event signature\n\n")

	sb.WriteString("### Feature Selection & Rationale\n")
	for i, w := range r.Weights {
		sb.WriteString(fmt.Sprintf("%d. **%s**: %s\n", i+1, w.Label, w.Rationale))
	}
	sb.WriteString("\n")

	sb.WriteString("### Risk Scoring Algorithm\n")
	sb.WriteString(fmt.Sprintf("- Base score of %.0f (neutral)\n", r.BaseScore))
	sb.WriteString(fmt.Sprintf("- Weighted scoring based on %d risk components\n", len(r.Weights)))
	sb.WriteString("- Min-max normalization to 0-1000 scale across the batch\n")
	sb.WriteString("- Higher scores indicate lower risk\n\n")

	sb.WriteString("### Risk Indicator Justification\n")
	for _, w := range r.Weights {
		sb.WriteString(fmt.Sprintf("- **%s (%.0f%%)**: %s\n", w.Label, w.Weight*100, w.Rationale))
	}
	sb.WriteString("\n")

	sb.WriteString("### Scalability Considerations\n")
	sb.WriteString("- Wallets are extracted in parallel with bounded concurrency\n")
	sb.WriteString("- Market logs are fetched concurrently with rate limiting and retries\n")
	sb.WriteString("- Block timestamps are cached between queries\n")
	sb.WriteString("- Transactions, features and scores can be persisted for incremental runs\n\n")

	// Extremes
	sb.WriteString(fmt.Sprintf("## Top %d Highest Risk Wallets\n\n", len(r.HighestRisk)))
	if len(r.HighestRisk) == 0 {
		sb.WriteString("No wallets scored.\n")
	}
	for _, w := range r.HighestRisk {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", w.WalletID, w.Score))
	}

	sb.WriteString(fmt.Sprintf("\n## Top %d Lowest Risk Wallets\n\n", len(r.LowestRisk)))
	if len(r.LowestRisk) == 0 {
		sb.WriteString("No wallets scored.\n")
	}
	for _, w := range r.LowestRisk {
		sb.WriteString(fmt.Sprintf("- %s: %d\n", w.WalletID, w.Score))
	}

	return sb.String()
}

func dataSourceText(source string) string {
	switch source {
	case "simulated":
		return "deterministic simulated Compound transactions"
	case "etherscan":
		return "Etherscan getLogs API per market contract"
	case "rpc":
		return "eth_getLogs on an Ethereum node per market contract"
	case "store":
		return "previously ingested transactions from storage"
	case "":
		return "unspecified"
	}
	return source
}
