// Package seq - adapters between iter.Seq, record partitions and channels.
package seq

import (
	"context"
	"iter"
	"slices"
)

// ToChan - iter.Seq to chan.
// the channel is closed once in is exhausted or ctx is done.
func ToChan[T any](ctx context.Context, in iter.Seq[T], buffer int) <-chan T {
	out := make(chan T, buffer)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case <-ctx.Done():
				return
			case out <- v:
			}
		}
	}()
	return out
}

// Partitions - one channel per partition, each fed by its own goroutine.
func Partitions[T any](ctx context.Context, parts [][]T, buffer int) []<-chan T {
	outs := make([]<-chan T, len(parts))
	for i, part := range parts {
		outs[i] = ToChan(ctx, slices.Values(part), buffer)
	}
	return outs
}

// FromChan - chan to iter.Seq.
// iteration stops early when ctx is done; callers check ctx.Err() to tell that apart from a closed channel.
func FromChan[T any](ctx context.Context, in <-chan T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok || !yield(v) {
					return
				}
			}
		}
	}
}
