// Package out publishes scoring results to downstream consumers.
package out

import "context"

// Sink receives typed events.
type Sink interface {
	Emit(ctx context.Context, typ string, v any) error
	Close() error
}

// Keyed is implemented by events that carry a partition key.
type Keyed interface {
	PartitionKey() string
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, string, any) error { return nil }
func (NopSink) Close() error                           { return nil }

var _ Sink = NopSink{}
