package autoshard_test

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/jaredmtdev/autoshard"
)

/*
expecting the overhead to be significant in this benchmark since the jobs each have negligible cost
go test -bench=BenchmarkWorkersInstantJobs -benchtime=5x
*/
func BenchmarkWorkersInstantJobs(b *testing.B) {
	maxprocs := runtime.GOMAXPROCS(0)
	bufferSizes := []int{100, 1_000, 2_000}
	for workerSize := 1; workerSize <= max(maxprocs-2, 1); workerSize++ {
		for _, bufferSize := range bufferSizes {
			b.Run(fmt.Sprintf("workers: %v, buffer: %1.1e ", workerSize, float64(bufferSize)), func(b *testing.B) {
				for b.Loop() {
					ctx := context.Background()
					out, wait := autoshard.Workers(ctx, gen(ctx, 1_000_000, bufferSize), add(5),
						autoshard.WithWorkerSize(workerSize),
						autoshard.WithBufferSize(bufferSize),
					)
					for range out {
					}
					if err := wait(); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

/*
go test -bench=BenchmarkWorkersWithSimulatedWork -benchtime=10x
*/
func BenchmarkWorkersWithSimulatedWork(b *testing.B) {
	mw := mwDelay[int, int](time.Millisecond)
	workerSizes := []int{100, 1_000, 10_000}
	for _, workerSize := range workerSizes {
		b.Run(fmt.Sprintf("workers: %1.0e", float64(workerSize)), func(b *testing.B) {
			for b.Loop() {
				ctx := context.Background()
				out, wait := autoshard.Workers(ctx, gen(ctx, 10_000, workerSize), mw(add(5)),
					autoshard.WithWorkerSize(workerSize),
					autoshard.WithBufferSize(workerSize),
				)
				for range out {
				}
				if err := wait(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

/*
go test -bench=BenchmarkParDo -benchtime=10x
*/
func BenchmarkParDo(b *testing.B) {
	records := make([]int, 1_000_000)
	for _, partitions := range []int{1, 8, 64} {
		in := autoshard.Of(records, partitions)
		b.Run(fmt.Sprintf("partitions: %v", partitions), func(b *testing.B) {
			for b.Loop() {
				_, err := autoshard.ParDo(context.Background(), in, func() autoshard.DoFn[int, int] {
					return &statefulFn{}
				}, autoshard.WithWorkerSize(runtime.GOMAXPROCS(0)))
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
