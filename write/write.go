// Package write - the generic "write a collection to a sink" transform.
package write

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/jaredmtdev/autoshard"
	"github.com/jaredmtdev/autoshard/internal/seq"
	"github.com/jaredmtdev/autoshard/internal/shard"
	"github.com/jaredmtdev/autoshard/sink"
	"go.uber.org/zap"
)

// Operation - a transform that writes its input to a sink shard by shard.
//
// NumShards reports the shard count requested at construction, if any.
// WriteShard and Commit are the delegate other transforms reuse to write
// groups they built themselves.
type Operation[T any] interface {
	autoshard.PTransform[T]
	NumShards() (int, bool)
	Sink() sink.Sink[T]
	WriteShard(ctx context.Context, shard sink.ShardID, records iter.Seq[T]) (sink.Result, error)
	Commit(ctx context.Context, results []sink.Result, err error) error
}

// Write - writes a collection to a sink.
type Write[T any] struct {
	sink        sink.Sink[T]
	numShards   int
	workerOpts  []autoshard.Opt
	onFinalized []func([]sink.Result)
}

// Opt - options used to configure Write.
type Opt[T any] func(w *Write[T])

// WithWorkerOpts - options of the worker pool writing shards without an explicit shard count.
func WithWorkerOpts[T any](opts ...autoshard.Opt) Opt[T] {
	return func(w *Write[T]) {
		w.workerOpts = append(w.workerOpts, opts...)
	}
}

// OnFinalized - f is called with every shard result once the write is published.
func OnFinalized[T any](f func(results []sink.Result)) Opt[T] {
	return func(w *Write[T]) {
		w.onFinalized = append(w.onFinalized, f)
	}
}

// To - writes to s. without a shard count, every input partition becomes one shard.
func To[T any](s sink.Sink[T], opts ...Opt[T]) *Write[T] {
	w := &Write[T]{sink: s}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithNumShards - returns a copy of w writing exactly n shards.
func (w *Write[T]) WithNumShards(n int) *Write[T] {
	if n <= 0 {
		panic(fmt.Sprintf("write.WithNumShards: must use at least 1 shard. numShards: %v", n))
	}
	cp := *w
	cp.numShards = n
	return &cp
}

// NumShards - the explicit shard count, if one was set.
func (w *Write[T]) NumShards() (int, bool) {
	return w.numShards, w.numShards > 0
}

// Sink - the target of the write.
func (w *Write[T]) Sink() sink.Sink[T] {
	return w.sink
}

func (w *Write[T]) Name() string {
	if n, ok := w.NumShards(); ok {
		return fmt.Sprintf("Write[%d]", n)
	}
	return "Write"
}

// WriteShard - writes records as one shard.
// the staged output is aborted when writing fails or ctx is done before the end of records.
func (w *Write[T]) WriteShard(ctx context.Context, shard sink.ShardID, records iter.Seq[T]) (res sink.Result, err error) {
	wr, err := w.sink.Open(ctx, shard)
	if err != nil {
		return sink.Result{}, fmt.Errorf("open shard %v: %w", shard, err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, wr.Abort())
		}
	}()

	for v := range records {
		if err = wr.Write(v); err != nil {
			return sink.Result{}, fmt.Errorf("write shard %v: %w", shard, err)
		}
	}
	if err = ctx.Err(); err != nil {
		return sink.Result{}, err
	}
	if res, err = wr.Close(); err != nil {
		return sink.Result{}, fmt.Errorf("close shard %v: %w", shard, err)
	}
	return res, nil
}

// Commit - finalizes results when err is nil, otherwise abandons them and returns err.
// a failed finalize abandons every result as well.
func (w *Write[T]) Commit(ctx context.Context, results []sink.Result, err error) error {
	log := autoshard.Logger(ctx)
	if err == nil {
		err = w.sink.Finalize(ctx, results)
		if err == nil {
			log.Info("write finalized", zap.Int("shards", len(results)))
			for _, f := range w.onFinalized {
				f(results)
			}
			return nil
		}
		err = fmt.Errorf("finalize: %w", err)
	}
	log.Warn("write abandoned", zap.Int("staged", len(results)), zap.Error(err))
	return errors.Join(err, w.sink.Abandon(results))
}

// Expand - writes in.
//
// with an explicit shard count, records are spread round robin over the shards
// and every shard is written concurrently. otherwise each partition is one shard.
func (w *Write[T]) Expand(ctx context.Context, in *autoshard.Collection[T]) error {
	if err := w.sink.Validate(); err != nil {
		return err
	}
	if n, ok := w.NumShards(); ok {
		return w.expandSharded(ctx, in, n)
	}

	parts := in.Partitions()
	writeShard := func(ctx context.Context, i int) (sink.Result, error) {
		return w.WriteShard(ctx, sink.ShardID{Index: i, Count: len(parts)}, slices.Values(parts[i]))
	}
	return WriteShards(ctx, w, len(parts), writeShard, w.workerOpts...)
}

func (w *Write[T]) expandSharded(ctx context.Context, in *autoshard.Collection[T], n int) error {
	repartitionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outs := shard.Repartition[T](n).Run(repartitionCtx, seq.Partitions(repartitionCtx, in.Partitions(), 0)...)
	writeShard := func(ctx context.Context, i int) (sink.Result, error) {
		return w.WriteShard(ctx, sink.ShardID{Index: i, Count: n}, seq.FromChan(ctx, outs[i]))
	}

	// every shard channel must be read at the same time or the repartition blocks,
	// so the pool may grow to one writer per shard
	return WriteShards(ctx, w, n, writeShard)
}

// shardWorkerIdleTTL - how long an idle shard writer is kept before the pool shrinks.
const shardWorkerIdleTTL = 100 * time.Millisecond

// WriteShards - writes shards 0..n-1 with writeShard on a worker pool, then commits through op.
//
// the pool is elastic: it starts with one writer and grows up to n (or the
// worker size given in opts) while every writer is busy.
// every shard that was staged is either finalized or abandoned, including
// shards that completed while a sibling was failing.
func WriteShards[T any](
	ctx context.Context,
	op Operation[T],
	n int,
	writeShard autoshard.HandlerFunc[int, sink.Result],
	opts ...autoshard.Opt,
) error {
	var mu sync.Mutex
	var staged []sink.Result
	track := func(next autoshard.HandlerFunc[int, sink.Result]) autoshard.HandlerFunc[int, sink.Result] {
		return func(ctx context.Context, i int) (sink.Result, error) {
			res, err := next(ctx, i)
			if err == nil {
				mu.Lock()
				staged = append(staged, res)
				mu.Unlock()
			}
			return res, err
		}
	}
	logged := autoshard.Logged[int, sink.Result]("write shard", func(i int) zap.Field {
		return zap.Int("shard", i)
	})

	opts = append([]autoshard.Opt{
		autoshard.WithWorkerSize(max(n, 1)),
		autoshard.WithElasticWorkers(1, shardWorkerIdleTTL),
	}, opts...)
	results, wait := autoshard.Workers(ctx, shardIndices(n), autoshard.Chain(track, logged)(writeShard), opts...)
	for range results {
	}
	err := wait()

	slices.SortFunc(staged, func(a, b sink.Result) int {
		return a.Shard.Index - b.Shard.Index
	})
	return op.Commit(ctx, staged, err)
}

// shardIndices - a closed channel holding 0..n-1.
func shardIndices(n int) <-chan int {
	indices := make(chan int, n)
	for i := range n {
		indices <- i
	}
	close(indices)
	return indices
}
