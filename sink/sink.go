// Package sink - storage targets that a write splits into shards.
//
// A shard is written in two phases: a Writer stages records somewhere
// private and Close reports a Result; only Finalize makes results visible.
// Abandon discards staged results that will never be finalized.
package sink

import (
	"context"
	"fmt"
)

// ShardID - position of a shard among all shards of one write.
type ShardID struct {
	Index int
	Count int
}

func (s ShardID) String() string {
	return fmt.Sprintf("%d-of-%d", s.Index, s.Count)
}

// Result - a shard that was fully written but not yet finalized.
type Result struct {
	Shard   ShardID
	Staged  string
	Final   string
	Records int64
}

// Writer - writes the records of a single shard.
type Writer[T any] interface {
	Write(v T) error
	// Close - flushes the shard and reports where it was staged.
	Close() (Result, error)
	// Abort - discards everything written so far. safe to call after Close.
	Abort() error
}

// Sink - a storage target.
type Sink[T any] interface {
	// Validate - checks configuration without touching storage.
	Validate() error
	Open(ctx context.Context, shard ShardID) (Writer[T], error)
	Finalize(ctx context.Context, results []Result) error
	Abandon(results []Result) error
}
