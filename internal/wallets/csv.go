// Package wallets supplies the wallet addresses to score: parsed from CSV
// exports, downloaded from Google Sheets, or the built-in sample list.
package wallets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoWallets is returned when an input holds no valid address.
var ErrNoWallets = errors.New("no valid wallet addresses")

// IsValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsValidAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ParseCSV reads wallet addresses from CSV. The first non-empty cell of
// each row is kept when it is a valid address; other rows (headers,
// notes, malformed values) are skipped. Addresses are lower-cased and
// de-duplicated in first-seen order.
func ParseCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	seen := make(map[string]struct{})
	var out []string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		cell := firstNonEmpty(record)
		if !IsValidAddress(cell) {
			continue
		}
		addr := strings.ToLower(cell)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func firstNonEmpty(record []string) string {
	for _, v := range record {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// LoadFile parses wallet addresses from a local CSV file.
// Returns ErrNoWallets when the file holds none.
func LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wallet file: %w", err)
	}
	defer f.Close()

	wallets, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoWallets)
	}
	return wallets, nil
}
