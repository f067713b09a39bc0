package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wallet-risk-lab/internal/cache"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/observability"
	"wallet-risk-lab/internal/riskconfig"
	"wallet-risk-lab/internal/storage"
)

var (
	// ErrUnknownSource is returned for a source name NewSource does not know.
	ErrUnknownSource = errors.New("unknown transaction source")

	// ErrMissingEndpoint is returned when a chain source lacks its endpoint or key.
	ErrMissingEndpoint = errors.New("missing source endpoint")
)

// SourceConfig describes the source NewSource builds.
type SourceConfig struct {
	Name string
	Risk riskconfig.Config

	// simulated
	Seed int64

	// etherscan
	EtherscanURL    string
	EtherscanAPIKey string
	EtherscanRate   float64

	// rpc
	RPCURL  string
	RPCRate float64

	// store
	Store storage.TransactionStore

	// chain sources
	FromBlock   int64
	ToBlock     int64
	Concurrency int
	Times       cache.BlockTimeCache

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewSource builds the source named by sc.Name.
// The returned close function releases client connections and is never nil.
func NewSource(ctx context.Context, sc SourceConfig) (TransactionSource, func(), error) {
	noop := func() {}
	chainOpts := ChainSourceOptions{
		FromBlock:   sc.FromBlock,
		ToBlock:     sc.ToBlock,
		Times:       sc.Times,
		Concurrency: sc.Concurrency,
		Logger:      sc.Logger,
		Metrics:     sc.Metrics,
	}

	switch sc.Name {
	case SourceSimulated:
		return NewSimulatedSource(sc.Risk, sc.Seed), noop, nil

	case SourceEtherscan:
		if sc.EtherscanAPIKey == "" {
			return nil, noop, fmt.Errorf("%w: etherscan api key", ErrMissingEndpoint)
		}
		client := ethereum.NewEtherscanClient(sc.EtherscanURL, sc.EtherscanAPIKey,
			ethereum.WithRateLimiter(ethereum.NewRateLimiter(sc.EtherscanRate)),
		)
		return NewEtherscanSource(client, sc.Risk, chainOpts), noop, nil

	case SourceRPC:
		if sc.RPCURL == "" {
			return nil, noop, fmt.Errorf("%w: rpc url", ErrMissingEndpoint)
		}
		node, err := ethereum.DialNode(ctx, sc.RPCURL, ethereum.NewRateLimiter(sc.RPCRate))
		if err != nil {
			return nil, noop, err
		}
		return NewRPCSource(node, sc.Risk, chainOpts), node.Close, nil

	case SourceStore:
		if sc.Store == nil {
			return nil, noop, fmt.Errorf("%w: transaction store", ErrMissingEndpoint)
		}
		return NewStoreSource(sc.Store), noop, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownSource, sc.Name)
	}
}
