// Package sharding - picks a shard count for writes that did not request one.
//
// WriteWithShardingFactory replaces such a write with ShardedWrite, which
// counts the input, keys every record with KeyBasedOnCountFn, groups records
// by key and hands every group to the original write as one shard.
package sharding

import (
	"context"
	"slices"
	"sync"

	"github.com/jaredmtdev/autoshard"
	"github.com/jaredmtdev/autoshard/sink"
	"github.com/jaredmtdev/autoshard/write"
	"go.uber.org/zap"
)

type factoryOpts struct {
	threshold  int64
	rnd        Rand
	workerOpts []autoshard.Opt
}

// FactoryOpt - options used to configure WriteWithShardingFactory.
type FactoryOpt func(o *factoryOpts)

// WithUnshardedWriteThreshold - record counts at or below t get one shard per record.
//
// Uses 0 (disabled) by default.
func WithUnshardedWriteThreshold(t int64) FactoryOpt {
	return func(o *factoryOpts) {
		o.threshold = t
	}
}

// WithRand - random source of the extra shard draw, made once per write. may be a non thread-safe source.
func WithRand(r Rand) FactoryOpt {
	return func(o *factoryOpts) {
		o.rnd = r
	}
}

// WithWorkerOpts - worker pool options for counting, keying and writing shards.
func WithWorkerOpts(opts ...autoshard.Opt) FactoryOpt {
	return func(o *factoryOpts) {
		o.workerOpts = append(o.workerOpts, opts...)
	}
}

// WriteWithShardingFactory - overrides writes without a shard count.
type WriteWithShardingFactory[T any] struct {
	factoryOpts
}

// NewWriteWithShardingFactory - creates the override rule.
func NewWriteWithShardingFactory[T any](opts ...FactoryOpt) *WriteWithShardingFactory[T] {
	o := factoryOpts{rnd: globalRand{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threshold < 0 {
		panic(newInvalidThresholdError(o.threshold).Error())
	}
	if _, ok := o.rnd.(globalRand); !ok {
		o.rnd = &lockedRand{r: o.rnd}
	}
	return &WriteWithShardingFactory[T]{factoryOpts: o}
}

// Override - returns t unchanged unless it is a write without a shard count,
// in which case a ShardedWrite delegating to t is returned.
func (f *WriteWithShardingFactory[T]) Override(t autoshard.PTransform[T]) autoshard.PTransform[T] {
	original, ok := t.(write.Operation[T])
	if !ok {
		return t
	}
	if _, sharded := original.NumShards(); sharded {
		return t
	}
	return &ShardedWrite[T]{
		original:   original,
		threshold:  f.threshold,
		rnd:        f.rnd,
		workerOpts: f.workerOpts,
	}
}

// ShardedWrite - count, key, group by key, then write each group with the original write.
//
// keys form one round robin over all records in partition order, so every
// shard below the derived count receives a record once there are enough records.
// it is not a write.Operation itself, so the factory never overrides it again.
type ShardedWrite[T any] struct {
	original   write.Operation[T]
	threshold  int64
	rnd        Rand
	workerOpts []autoshard.Opt
}

// Original - the write every group is delegated to.
func (s *ShardedWrite[T]) Original() write.Operation[T] {
	return s.original
}

func (s *ShardedWrite[T]) Name() string {
	return "Sharded" + s.original.Name()
}

// Expand - runs the composite write over in.
func (s *ShardedWrite[T]) Expand(ctx context.Context, in *autoshard.Collection[T]) error {
	log := autoshard.Logger(ctx).With(zap.String("transform", s.Name()))
	if err := s.original.Sink().Validate(); err != nil {
		return err
	}

	count, err := autoshard.Count(ctx, in, s.workerOpts...)
	if err != nil {
		return err
	}

	// one draw per write so that every partition derives the same shard count
	extra := int64(s.rnd.IntN(MaxRandomExtraShards))
	newFn := func(part autoshard.PartitionInfo) autoshard.DoFn[T, autoshard.KV[int, T]] {
		return NewKeyBasedOnCountFn[T](count, s.threshold,
			WithExtraShards(extra),
			WithStartOffset(part.Offset),
		)
	}
	keyed, err := autoshard.ParDoWithPartition(ctx, in, newFn, s.workerOpts...)
	if err != nil {
		return err
	}

	groups, err := autoshard.GroupByKey(ctx, keyed)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		// no records: still write one empty shard
		groups = append(groups, autoshard.KV[int, []T]{})
	}
	total, _ := count.Get()
	log.Info("sharding write", zap.Int64("records", total), zap.Int64("extraShards", extra), zap.Int("shards", len(groups)))

	writeShard := func(ctx context.Context, i int) (sink.Result, error) {
		shard := sink.ShardID{Index: i, Count: len(groups)}
		return s.original.WriteShard(ctx, shard, slices.Values(groups[i].Value))
	}
	return write.WriteShards(ctx, s.original, len(groups), writeShard, s.workerOpts...)
}

// lockedRand - serializes access to a source shared by parallel fn instances.
type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}
