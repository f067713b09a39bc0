// Package ethereum provides clients for reading lending protocol event logs
// from Ethereum: an explorer HTTP client, a node RPC client and a WebSocket
// log subscription client.
package ethereum

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Log is an event log emitted by a contract.
type Log struct {
	Address     string
	Topics      []string
	Data        string
	BlockNumber int64
	TxHash      string
	LogIndex    int
	Timestamp   int64 // block time, Unix seconds; 0 when the source does not report it
	Removed     bool  // true when the log was reverted by a reorg
}

// LogFilter selects logs by contract address and topic positions.
// A nil or empty topic position matches anything.
type LogFilter struct {
	Addresses []string
	Topics    [][]string
	FromBlock int64
	ToBlock   int64 // 0 means latest
}

// LogFetcher retrieves historical logs and block times.
type LogFetcher interface {
	// GetLogs returns logs matching the filter.
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)

	// BlockTimestamp returns the block time in Unix seconds.
	BlockTimestamp(ctx context.Context, block int64) (int64, error)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// AddressTopic returns the 32-byte topic encoding of an address, lowercase.
func AddressTopic(addr string) string {
	return common.BytesToHash(common.HexToAddress(addr).Bytes()).Hex()
}

// EventTopic returns topic0 for a canonical event signature.
func EventTopic(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}

// Mentions reports whether wallet appears in the log's indexed topics
// (after topic0) or as a left-padded 32-byte word of its ABI-encoded data.
func (l Log) Mentions(wallet string) bool {
	if !IsAddress(wallet) {
		return false
	}
	topic := AddressTopic(wallet)
	for i, t := range l.Topics {
		if i == 0 {
			continue
		}
		if strings.EqualFold(t, topic) {
			return true
		}
	}
	data := strings.ToLower(strings.TrimPrefix(l.Data, "0x"))
	word := strings.ToLower(topic[2:])
	for i := 0; i+len(word) <= len(data); i += len(word) {
		if data[i:i+len(word)] == word {
			return true
		}
	}
	return false
}

// ParseQuantity parses a hex ("0x1a") or decimal quantity. "0x" alone is zero.
func ParseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h := s[2:]
		if h == "" {
			return 0, nil
		}
		return strconv.ParseInt(h, 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

// rawLog is the JSON log shape shared by explorer and node responses.
type rawLog struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TimeStamp       string   `json:"timeStamp,omitempty"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed,omitempty"`
}

func (r rawLog) toLog() (Log, error) {
	block, err := ParseQuantity(r.BlockNumber)
	if err != nil {
		return Log{}, fmt.Errorf("block number %q: %w", r.BlockNumber, err)
	}
	var idx int64
	if r.LogIndex != "" {
		if idx, err = ParseQuantity(r.LogIndex); err != nil {
			return Log{}, fmt.Errorf("log index %q: %w", r.LogIndex, err)
		}
	}
	var ts int64
	if r.TimeStamp != "" {
		if ts, err = ParseQuantity(r.TimeStamp); err != nil {
			return Log{}, fmt.Errorf("timestamp %q: %w", r.TimeStamp, err)
		}
	}
	return Log{
		Address:     strings.ToLower(r.Address),
		Topics:      r.Topics,
		Data:        r.Data,
		BlockNumber: block,
		TxHash:      r.TransactionHash,
		LogIndex:    int(idx),
		Timestamp:   ts,
		Removed:     r.Removed,
	}, nil
}
