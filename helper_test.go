package autoshard_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaredmtdev/autoshard"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// === generators ===

func gen[T number](ctx context.Context, n T, buffer ...int) <-chan T {
	var out chan T
	if len(buffer) > 0 {
		out = make(chan T, buffer[0])
	} else {
		out = make(chan T)
	}
	go func() {
		defer close(out)
		for i := T(0); i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case out <- i:
			}
		}
	}()
	return out
}

// === handlers ===

func convert[FROM number, TO number]() autoshard.HandlerFunc[FROM, TO] {
	return func(_ context.Context, in FROM) (TO, error) {
		return TO(in), nil
	}
}

func add[T number](num T) autoshard.HandlerFunc[T, T] {
	return func(_ context.Context, in T) (T, error) {
		return in + num, nil
	}
}

func subtract[T number](num T) autoshard.HandlerFunc[T, T] {
	return func(_ context.Context, in T) (T, error) {
		return in - num, nil
	}
}

func multiply[T number](num T) autoshard.HandlerFunc[T, T] {
	return func(_ context.Context, in T) (T, error) {
		return in * num, nil
	}
}

func failOn[T comparable](on T, err error) autoshard.HandlerFunc[T, T] {
	return func(_ context.Context, in T) (T, error) {
		if in == on {
			return in, err
		}
		return in, nil
	}
}

// === middleware ===

func mwDelay[IN, OUT any](d time.Duration) autoshard.Middleware[IN, OUT] {
	return func(next autoshard.HandlerFunc[IN, OUT]) autoshard.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			select {
			case <-ctx.Done():
				var v OUT
				return v, ctx.Err()
			case <-time.After(d):
			}
			return next(ctx, in)
		}
	}
}

func mwCancelOnCount[IN any, OUT any](cancelOn int32, cancel context.CancelFunc) autoshard.Middleware[IN, OUT] {
	count := atomic.Int32{}
	return func(next autoshard.HandlerFunc[IN, OUT]) autoshard.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			if count.Add(1) == cancelOn {
				cancel()
				var v OUT
				return v, ctx.Err()
			}
			return next(ctx, in)
		}
	}
}

func mwID[IN, OUT any](id int, order chan<- int) autoshard.Middleware[IN, OUT] {
	return func(next autoshard.HandlerFunc[IN, OUT]) autoshard.HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			order <- id
			return next(ctx, in)
		}
	}
}

func drain[T any](out <-chan T) []T {
	var got []T
	for v := range out {
		got = append(got, v)
	}
	return got
}
