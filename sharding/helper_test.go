package sharding_test

import (
	"testing"

	"github.com/jaredmtdev/autoshard"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fixedRand - always draws r, clamped to the requested range.
type fixedRand int

func (r fixedRand) IntN(n int) int {
	return min(int(r), n-1)
}

func publishedCount(t *testing.T, n int64) *autoshard.View[int64] {
	t.Helper()
	v := autoshard.NewView[int64]("count")
	require.NoError(t, v.Publish(n))
	return v
}
