package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NodeBackend is the subset of ethclient.Client used by NodeClient.
type NodeBackend interface {
	FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// NodeClient implements LogFetcher over an Ethereum JSON-RPC node.
type NodeClient struct {
	backend NodeBackend
	limiter *RateLimiter
	close   func()
}

// DialNode connects to a node endpoint.
func DialNode(ctx context.Context, rawURL string, limiter *RateLimiter) (*NodeClient, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial node: %w", err)
	}
	return &NodeClient{backend: client, limiter: limiter, close: client.Close}, nil
}

// NewNodeClient wraps an existing backend.
func NewNodeClient(backend NodeBackend, limiter *RateLimiter) *NodeClient {
	return &NodeClient{backend: backend, limiter: limiter}
}

var _ LogFetcher = (*NodeClient)(nil)

// GetLogs runs eth_getLogs for the filter.
func (c *NodeClient) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := goethereum.FilterQuery{
		FromBlock: big.NewInt(filter.FromBlock),
	}
	if filter.ToBlock > 0 {
		q.ToBlock = big.NewInt(filter.ToBlock)
	}
	for _, a := range filter.Addresses {
		q.Addresses = append(q.Addresses, common.HexToAddress(a))
	}
	for _, position := range filter.Topics {
		var hashes []common.Hash
		for _, t := range position {
			hashes = append(hashes, common.HexToHash(t))
		}
		q.Topics = append(q.Topics, hashes)
	}

	raw, err := c.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	logs := make([]Log, len(raw))
	for i, l := range raw {
		logs[i] = fromTypesLog(l)
	}
	return logs, nil
}

// BlockTimestamp returns the header time of block.
func (c *NodeClient) BlockTimestamp(ctx context.Context, block int64) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	h, err := c.backend.HeaderByNumber(ctx, big.NewInt(block))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", block, err)
	}
	return int64(h.Time), nil
}

// Close releases the underlying connection.
func (c *NodeClient) Close() {
	if c.close != nil {
		c.close()
	}
}

func fromTypesLog(l types.Log) Log {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.Hex()
	}
	return Log{
		Address:     strings.ToLower(l.Address.Hex()),
		Topics:      topics,
		Data:        "0x" + common.Bytes2Hex(l.Data),
		BlockNumber: int64(l.BlockNumber),
		TxHash:      l.TxHash.Hex(),
		LogIndex:    int(l.Index),
		Removed:     l.Removed,
	}
}
