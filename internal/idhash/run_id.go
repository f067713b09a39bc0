package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"wallet-risk-lab/internal/domain"
)

// RunIDLayout formats the timestamp part of run IDs.
const RunIDLayout = "20060102_150405"

// ComputeRunID computes a deterministic run_id.
// Formula: run_<utc timestamp>_<first 12 hex of SHA256(unix_ms|source|sorted wallets)>
// Wallets are normalized and sorted, so input order does not matter.
func ComputeRunID(startedAt time.Time, source string, wallets []string) string {
	normalized := make([]string, len(wallets))
	for i, w := range wallets {
		normalized[i] = domain.NormalizeAddress(w)
	}
	sort.Strings(normalized)

	data := fmt.Sprintf("%d|%s|%s",
		startedAt.UnixMilli(),
		source,
		strings.Join(normalized, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("run_%s_%s", startedAt.UTC().Format(RunIDLayout), hex.EncodeToString(hash[:])[:12])
}

// ComputeEventID computes a deterministic event_id for a wallet result of a run.
// Formula: SHA256(run_id|wallet)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(runID, wallet string) string {
	data := fmt.Sprintf("%s|%s", runID, domain.NormalizeAddress(wallet))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
