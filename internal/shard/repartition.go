package shard

import (
	"context"
	"sync"

	"github.com/jaredmtdev/autoshard/internal/op"
)

// Hash - used to determine which shard to send data to.
// inShard is the index of the input channel and job the position of v within it.
type Hash[T any] func(inShard int, job int, v T) (outShard int)

// RoundRobin - cycles each input over every output, offset by the input index
// so that inputs do not all start at shard 0.
func RoundRobin[T any](inShard int, job int, _ T) int {
	return inShard + job
}

// Repartitioner - used to configure a repartition.
//
// note:
// - repartitioning cannot guarantee order across inputs
type Repartitioner[T any] struct {
	shards     int
	bufferSize *int
	h          Hash[T]
}

// Repartition - configure a repartition into `shards` outputs using RoundRobin.
func Repartition[T any](shards int) *Repartitioner[T] {
	if shards <= 0 {
		panic("shard.Repartition: must use at least 1 shard")
	}
	return &Repartitioner[T]{
		shards: shards,
		h:      RoundRobin[T],
	}
}

// WithBufferSize - option to set new buffer size. by default will choose same buffer as the first input.
func (r *Repartitioner[T]) WithBufferSize(bufferSize int) *Repartitioner[T] {
	r.bufferSize = &bufferSize
	return r
}

// WithHash - option to use a custom hash. negative results wrap around.
func (r *Repartitioner[T]) WithHash(h Hash[T]) *Repartitioner[T] {
	r.h = h
	return r
}

// Run - starts the repartition and returns one channel per shard.
// every output is closed once all inputs are drained or ctx is done.
func (r *Repartitioner[T]) Run(ctx context.Context, ins ...<-chan T) []<-chan T {
	if len(ins) == 0 {
		panic("shard.Repartition: must send at least 1 input channel")
	}
	bufferSize := cap(ins[0])
	if r.bufferSize != nil {
		bufferSize = *r.bufferSize
	}

	outs := make([]<-chan T, r.shards)
	repartitioned := make([]chan T, r.shards)
	for i := range outs {
		repartitioned[i] = make(chan T, bufferSize)
		outs[i] = repartitioned[i]
	}

	wgIn := sync.WaitGroup{}
	for inShard, in := range ins {
		wgIn.Go(func() {
			job := 0
			for v := range in {
				outShard := op.PosMod(r.h(inShard, job, v), r.shards)
				job++
				select {
				case <-ctx.Done():
					return
				case repartitioned[outShard] <- v:
				}
			}
		})
	}

	go func() {
		wgIn.Wait()
		for _, out := range repartitioned {
			close(out)
		}
	}()

	return outs
}
