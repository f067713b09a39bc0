package ingestion

import (
	"sort"
	"strings"

	"wallet-risk-lab/internal/domain"
	"wallet-risk-lab/internal/ethereum"
	"wallet-risk-lab/internal/riskconfig"
)

// Decoder turns raw event logs into transactions. It classifies logs by
// topic0 against the keccak-256 hashes of the tracked event signatures and
// names the market from the registry by contract address.
type Decoder struct {
	cfg    riskconfig.Config
	events map[string]riskconfig.EventSignature // topic0 -> event
	topics []string                            // sorted topic0 values
}

// NewDecoder creates a decoder for the markets and events of cfg.
func NewDecoder(cfg riskconfig.Config) *Decoder {
	d := &Decoder{
		cfg:    cfg,
		events: make(map[string]riskconfig.EventSignature),
	}
	for _, ev := range riskconfig.AllEvents() {
		topic := ethereum.EventTopic(ev.Signature)
		d.events[topic] = ev
		d.topics = append(d.topics, topic)
	}
	sort.Strings(d.topics)
	return d
}

// Topics returns the topic0 hashes of all tracked events.
func (d *Decoder) Topics() []string {
	return append([]string(nil), d.topics...)
}

// Event returns the tracked event matching topic0.
func (d *Decoder) Event(topic0 string) (riskconfig.EventSignature, bool) {
	ev, ok := d.events[strings.ToLower(topic0)]
	return ev, ok
}

// TopicFor returns topic0 of the event recording kind on markets of version.
// Returns "" when no tracked event matches.
func (d *Decoder) TopicFor(kind domain.TxKind, version domain.ProtocolVersion) string {
	for _, topic := range d.topics {
		ev := d.events[topic]
		if ev.Kind == kind && ev.Version == version {
			return topic
		}
	}
	return ""
}

// Kind classifies a log by its topic0.
func (d *Decoder) Kind(l ethereum.Log) domain.TxKind {
	if len(l.Topics) == 0 {
		return domain.TxKindUnknown
	}
	if ev, ok := d.Event(l.Topics[0]); ok {
		return ev.Kind
	}
	return domain.TxKindUnknown
}

// Decode builds the transaction of wallet recorded by l.
// timestampSec is the block time in Unix seconds.
func (d *Decoder) Decode(l ethereum.Log, wallet string, timestampSec int64) domain.Transaction {
	tx := domain.Transaction{
		Wallet:        domain.NormalizeAddress(wallet),
		MarketAddress: strings.ToLower(l.Address),
		BlockNumber:   l.BlockNumber,
		TxHash:        strings.ToLower(l.TxHash),
		LogIndex:      l.LogIndex,
		Timestamp:     timestampSec * 1000,
		Topics:        append([]string(nil), l.Topics...),
		Data:          l.Data,
		Kind:          d.Kind(l),
	}

	switch m, ok := d.cfg.MarketByAddress(l.Address); {
	case ok:
		tx.Market = m.Symbol
	case len(l.Topics) > 0:
		if ev, found := d.Event(l.Topics[0]); found {
			tx.Market = eventName(ev.Signature)
		} else {
			tx.Market = tx.MarketAddress
		}
	default:
		tx.Market = tx.MarketAddress
	}
	return tx
}

// eventName returns the name part of a canonical signature ("Borrow(...)" -> "Borrow").
func eventName(signature string) string {
	if i := strings.IndexByte(signature, '('); i >= 0 {
		return signature[:i]
	}
	return signature
}
