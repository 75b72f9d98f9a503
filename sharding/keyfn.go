package sharding

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/jaredmtdev/autoshard"
	"github.com/jaredmtdev/autoshard/internal/op"
	"go.uber.org/zap"
)

const (
	// MinShardsForLog - fewest shards used once the record count is large enough to be log scaled.
	MinShardsForLog = 3
	// MaxRandomExtraShards - exclusive upper bound of the random shards added on top of the log scaled count.
	MaxRandomExtraShards = 3
)

// Rand - source of the random extra shard draw and of the random start offset.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

type fnOpts struct {
	extraShards int64
	drawExtra   bool
	startOffset int64
	rnd         Rand
}

// FnOpt - options used to configure KeyBasedOnCountFn.
type FnOpt func(o *fnOpts)

// WithExtraShards - use exactly n extra shards instead of a random draw.
func WithExtraShards(n int64) FnOpt {
	return func(o *fnOpts) {
		o.extraShards = n
		o.drawExtra = false
	}
}

// WithFnRand - random source for the extra shard draw.
//
// Uses the math/rand/v2 global source by default.
func WithFnRand(r Rand) FnOpt {
	return func(o *fnOpts) {
		o.rnd = r
	}
}

// WithStartOffset - position of the instance's first record among all records.
// giving every partition the number of records before it makes the keys of
// all instances one global round robin.
//
// Uses 0 by default.
func WithStartOffset(offset int64) FnOpt {
	return func(o *fnOpts) {
		o.startOffset = offset
	}
}

// KeyBasedOnCountFn - assigns every record a shard key in [0, numShards).
//
// numShards is derived once per instance from the published record count on
// the first record and cached; keys are then handed out round robin.
// An instance is not safe for concurrent use: build one per partition.
type KeyBasedOnCountFn[T any] struct {
	count     *autoshard.View[int64]
	threshold int64
	fnOpts

	numShards int64
	counter   int64
}

// NewKeyBasedOnCountFn - count is the broadcast total record count.
// threshold (0 disables it) is the count at or below which every record gets its own shard.
func NewKeyBasedOnCountFn[T any](count *autoshard.View[int64], threshold int64, opts ...FnOpt) *KeyBasedOnCountFn[T] {
	o := fnOpts{
		drawExtra: true,
		rnd:       globalRand{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if threshold < 0 {
		panic(newInvalidThresholdError(threshold).Error())
	}
	if !o.drawExtra && o.extraShards < 0 {
		panic(newInvalidExtraShardsError(o.extraShards).Error())
	}
	if o.startOffset < 0 {
		panic(newInvalidStartOffsetError(o.startOffset).Error())
	}
	return &KeyBasedOnCountFn[T]{
		count:     count,
		threshold: threshold,
		fnOpts:    o,
	}
}

// NumShards - derived shard count, 0 until the first record is processed.
func (fn *KeyBasedOnCountFn[T]) NumShards() int64 {
	return fn.numShards
}

// ProcessElement - emits exactly one (shard key, record) pair.
func (fn *KeyBasedOnCountFn[T]) ProcessElement(ctx context.Context, in T, emit func(autoshard.KV[int, T])) error {
	if fn.numShards == 0 {
		numShards, err := fn.calculateShards()
		if err != nil {
			return err
		}
		fn.numShards = numShards
		fn.counter = fn.startOffset
		autoshard.Logger(ctx).Debug("derived shard count",
			zap.String("view", fn.count.Name()),
			zap.Int64("numShards", numShards),
			zap.Int64("startShard", op.PosMod(fn.counter, numShards)),
		)
	}

	key := op.PosMod(fn.counter, fn.numShards)
	fn.counter++
	emit(autoshard.KV[int, T]{Key: int(key), Value: in})
	return nil
}

func (fn *KeyBasedOnCountFn[T]) calculateShards() (int64, error) {
	total, err := fn.count.Get()
	if err != nil {
		return 0, fmt.Errorf("read record count: %w", err)
	}
	if total < 0 {
		return 0, newNegativeCountError(total)
	}

	extra := fn.extraShards
	if fn.drawExtra {
		extra = int64(fn.rnd.IntN(MaxRandomExtraShards))
	}

	var shards int64
	switch {
	case fn.threshold > 0 && total <= fn.threshold:
		shards = total
	case total < MinShardsForLog+extra:
		shards = total
	default:
		shards = max(op.FloorLog10(total), MinShardsForLog) + extra
	}
	return max(shards, 1), nil
}
