package autoshard

import (
	"cmp"
	"context"
	"slices"

	"github.com/jaredmtdev/autoshard/internal/seq"
	"go.uber.org/zap"
)

// PartitionInfo - where a partition sits within its collection.
type PartitionInfo struct {
	Index int
	// Offset - number of records in all earlier partitions.
	Offset int64
}

type partition[T any] struct {
	PartitionInfo
	records []T
}

func indexed[T any](c *Collection[T]) []partition[T] {
	parts := make([]partition[T], len(c.partitions))
	var offset int64
	for i, p := range c.partitions {
		parts[i] = partition[T]{PartitionInfo: PartitionInfo{Index: i, Offset: offset}, records: p}
		offset += int64(len(p))
	}
	return parts
}

// Count - counts every record of in and publishes the total as a view.
//
// partitions are counted in parallel and summed. Count returns only after the
// view is published, so any stage started afterwards can read it.
func Count[T any](ctx context.Context, in *Collection[T], opts ...Opt) (*View[int64], error) {
	counter := func(_ context.Context, p partition[T]) (int64, error) {
		return int64(len(p.records)), nil
	}
	partials, wait := Workers(ctx, seq.ToChan(ctx, slices.Values(indexed(in)), 0), counter, opts...)
	var total int64
	for n := range partials {
		total += n
	}
	if err := wait(); err != nil {
		return nil, err
	}

	view := NewView[int64]("count")
	if err := view.Publish(total); err != nil {
		return nil, err
	}
	Logger(ctx).Debug("counted records", zap.Int64("count", total), zap.Int("partitions", len(in.partitions)))
	return view, nil
}

// DoFn - per-record function. one instance processes one partition in order.
type DoFn[IN any, OUT any] interface {
	ProcessElement(ctx context.Context, in IN, emit func(OUT)) error
}

// ParDo - applies a fresh DoFn (built by newFn) to each partition of in.
//
// partitions run in parallel on Workers; records within a partition are
// processed in order by a single instance. The output keeps the input partitioning
// and partition order.
func ParDo[IN any, OUT any](
	ctx context.Context,
	in *Collection[IN],
	newFn func() DoFn[IN, OUT],
	opts ...Opt,
) (*Collection[OUT], error) {
	return ParDoWithPartition(ctx, in, func(PartitionInfo) DoFn[IN, OUT] {
		return newFn()
	}, opts...)
}

// ParDoWithPartition - ParDo where newFn is told which partition its instance will process.
func ParDoWithPartition[IN any, OUT any](
	ctx context.Context,
	in *Collection[IN],
	newFn func(part PartitionInfo) DoFn[IN, OUT],
	opts ...Opt,
) (*Collection[OUT], error) {
	process := func(ctx context.Context, p partition[IN]) (partition[OUT], error) {
		fn := newFn(p.PartitionInfo)
		out := partition[OUT]{PartitionInfo: p.PartitionInfo}
		emit := func(v OUT) {
			out.records = append(out.records, v)
		}
		for _, v := range p.records {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			if err := fn.ProcessElement(ctx, v, emit); err != nil {
				return out, err
			}
		}
		return out, nil
	}

	opts = append(slices.Clone(opts), WithOrderPreserved())
	results, wait := Workers(ctx, seq.ToChan(ctx, slices.Values(indexed(in)), 0), process, opts...)
	outs := make([][]OUT, 0, len(in.partitions))
	for p := range results {
		outs = append(outs, p.records)
	}
	if err := wait(); err != nil {
		return nil, err
	}
	return FromPartitions(outs...), nil
}

// GroupByKey - one group per distinct key, sorted by key.
// order of values inside a group is not guaranteed.
func GroupByKey[K cmp.Ordered, V any](ctx context.Context, in *Collection[KV[K, V]]) ([]KV[K, []V], error) {
	groups := map[K][]V{}
	for _, p := range in.partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, kv := range p {
			groups[kv.Key] = append(groups[kv.Key], kv.Value)
		}
	}

	out := make([]KV[K, []V], 0, len(groups))
	for k, vs := range groups {
		out = append(out, KV[K, []V]{Key: k, Value: vs})
	}
	slices.SortFunc(out, func(a, b KV[K, []V]) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out, nil
}
