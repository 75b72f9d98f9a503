package autoshard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaredmtdev/autoshard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestChainOrder(t *testing.T) {
	ctx := context.Background()
	jobs := 100
	order := make(chan int, jobs*2)
	mw := autoshard.Chain(mwID[int, int](0, order), mwID[int, int](1, order))
	out, wait := autoshard.Workers(ctx, gen(ctx, jobs), mw(add(1)))
	drain(out)
	require.NoError(t, wait())
	close(order)

	// the last middleware in the chain wraps the others, so it runs first
	i := 0
	for v := range order {
		assert.Equal(t, 1-i%2, v)
		i++
	}
	assert.Equal(t, jobs*2, i)
}

func TestLoggedUsesContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := autoshard.WithLogger(context.Background(), zap.New(core))
	boom := errors.New("boom")

	mw := autoshard.Logged[int, int]("double", func(in int) zap.Field {
		return zap.Int("in", in)
	})
	h := mw(func(_ context.Context, in int) (int, error) {
		if in < 0 {
			return 0, boom
		}
		return in * 2, nil
	})

	got, err := h(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 8, got)

	_, err = h(ctx, -1)
	require.ErrorIs(t, err, boom)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "double", entries[0].ContextMap()["stage"])
	assert.Equal(t, int64(4), entries[0].ContextMap()["in"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "job failed", entries[1].Message)
}

func TestLoggerDefaultsToNop(t *testing.T) {
	l := autoshard.Logger(context.Background())
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}
