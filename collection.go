package autoshard

import (
	"iter"
	"slices"
)

// KV - a keyed record.
type KV[K any, V any] struct {
	Key   K
	Value V
}

// Collection - a materialized, partitioned set of records.
//
// Partitions are the unit of parallelism: every per-record stage creates
// one fn instance per partition and never shares it with another partition.
type Collection[T any] struct {
	partitions [][]T
}

// Of - splits records into at most `partitions` contiguous partitions of near equal size.
// an empty input yields a single empty partition.
func Of[T any](records []T, partitions int) *Collection[T] {
	if partitions <= 0 {
		panic(newInvalidPartitionsError(partitions).Error())
	}
	if len(records) == 0 {
		return &Collection[T]{partitions: [][]T{{}}}
	}
	size := (len(records) + partitions - 1) / partitions
	return &Collection[T]{partitions: slices.Collect(slices.Chunk(records, size))}
}

// FromPartitions - wraps already partitioned records.
func FromPartitions[T any](partitions ...[]T) *Collection[T] {
	if len(partitions) == 0 {
		partitions = [][]T{{}}
	}
	return &Collection[T]{partitions: partitions}
}

// Partitions - the partitions of the collection. must not be modified.
func (c *Collection[T]) Partitions() [][]T {
	return c.partitions
}

// Len - total number of records.
func (c *Collection[T]) Len() int {
	var n int
	for _, p := range c.partitions {
		n += len(p)
	}
	return n
}

// All - iterates every record, partition by partition.
func (c *Collection[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, p := range c.partitions {
			for _, v := range p {
				if !yield(v) {
					return
				}
			}
		}
	}
}
