package write_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/jaredmtdev/autoshard"
	"github.com/jaredmtdev/autoshard/sink"
	"github.com/jaredmtdev/autoshard/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// readShards - every line of every file in dir, plus the file names.
func readShards(t *testing.T, dir string) ([]string, []int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	var records []int
	for _, e := range entries {
		names = append(names, e.Name())
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		for line := range strings.Lines(string(b)) {
			v, err := strconv.Atoi(strings.TrimSpace(line))
			require.NoError(t, err)
			records = append(records, v)
		}
	}
	return names, records
}

func TestName(t *testing.T) {
	w := write.To[int](sink.NewText[int]("part"))
	assert.Equal(t, "Write", w.Name())
	assert.Equal(t, "Write[4]", w.WithNumShards(4).Name())

	_, ok := w.NumShards()
	assert.False(t, ok, "WithNumShards must not modify the receiver")
}

func TestWithNumShardsPanics(t *testing.T) {
	w := write.To[int](sink.NewText[int]("part"))
	assert.Panics(t, func() { w.WithNumShards(0) })
	assert.Panics(t, func() { w.WithNumShards(-1) })
}

func TestWriteOneShardPerPartition(t *testing.T) {
	dir := t.TempDir()
	w := write.To[int](sink.NewText[int](filepath.Join(dir, "part")), write.WithWorkerOpts[int](autoshard.WithWorkerSize(2)))
	in := autoshard.FromPartitions([]int{0, 1, 2}, []int{3}, []int{})

	require.NoError(t, w.Expand(context.Background(), in))
	names, records := readShards(t, dir)
	assert.Equal(t, []string{
		"part-00000-of-00003",
		"part-00001-of-00003",
		"part-00002-of-00003",
	}, names)
	assert.Equal(t, []int{0, 1, 2, 3}, records)
}

func TestWriteWithNumShards(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := autoshard.WithLogger(context.Background(), zap.New(core))
	dir := t.TempDir()

	records := make([]int, 100)
	for i := range records {
		records[i] = i
	}
	w := write.To[int](sink.NewText[int](filepath.Join(dir, "part"), sink.WithSuffix[int](".txt"))).WithNumShards(3)
	require.NoError(t, w.Expand(ctx, autoshard.Of(records, 4)))

	names, got := readShards(t, dir)
	assert.Equal(t, []string{
		"part-00000-of-00003.txt",
		"part-00001-of-00003.txt",
		"part-00002-of-00003.txt",
	}, names)
	slices.Sort(got)
	assert.Equal(t, records, got)

	finalized := logs.FilterMessage("write finalized").All()
	require.Len(t, finalized, 1)
	assert.Equal(t, int64(3), finalized[0].ContextMap()["shards"])
}

func TestWriteWithMoreShardsThanRecords(t *testing.T) {
	dir := t.TempDir()
	w := write.To[int](sink.NewText[int](filepath.Join(dir, "part"))).WithNumShards(5)
	require.NoError(t, w.Expand(context.Background(), autoshard.Of([]int{7, 8}, 1)))

	names, got := readShards(t, dir)
	assert.Len(t, names, 5)
	assert.ElementsMatch(t, []int{7, 8}, got)
}

func failOn(bad int, err error) sink.Coder[int] {
	return func(w io.Writer, v int) error {
		if v == bad {
			return err
		}
		return sink.LineCoder(w, v)
	}
}

func TestWriteFailureAbandonsEveryShard(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		w    func(s sink.Sink[int]) *write.Write[int]
	}{
		{name: "per partition", w: func(s sink.Sink[int]) *write.Write[int] { return write.To(s) }},
		{name: "explicit shards", w: func(s sink.Sink[int]) *write.Write[int] { return write.To(s).WithNumShards(4) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := sink.NewText[int](filepath.Join(dir, "part"), sink.WithCoder[int](failOn(5, boom)))
			records := make([]int, 40)
			for i := range records {
				records[i] = i
			}

			err := tt.w(s).Expand(context.Background(), autoshard.Of(records, 4))
			require.ErrorIs(t, err, boom)
			names, _ := readShards(t, dir)
			assert.Empty(t, names)
		})
	}
}

func TestWriteInvalidSink(t *testing.T) {
	w := write.To[int](sink.NewText[int](""))
	assert.Error(t, w.Expand(context.Background(), autoshard.Of([]int{1}, 1)))
}

func TestWriteCanceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := write.To[int](sink.NewText[int](filepath.Join(dir, "part")))
	err := w.Expand(ctx, autoshard.Of([]int{1, 2, 3}, 3))
	require.ErrorIs(t, err, context.Canceled)
	names, _ := readShards(t, dir)
	assert.Empty(t, names)
}

func TestWriteFinalizeFailurePublishesNothing(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "part")
	s := sink.NewText[int](prefix)
	blocker := s.ShardName(sink.ShardID{Index: 0, Count: 3})
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0o755))

	err := write.To[int](s).WithNumShards(3).Expand(context.Background(), autoshard.Of([]int{1, 2, 3, 4, 5, 6}, 2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finalize")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(blocker), entries[0].Name())
}

func TestOnFinalized(t *testing.T) {
	dir := t.TempDir()
	s := sink.NewText[int](filepath.Join(dir, "part"))
	var finals []string
	w := write.To[int](s, write.OnFinalized[int](func(results []sink.Result) {
		for _, r := range results {
			finals = append(finals, r.Final)
		}
	})).WithNumShards(2)

	require.NoError(t, w.Expand(context.Background(), autoshard.Of([]int{1, 2, 3}, 1)))
	assert.Equal(t, []string{
		s.ShardName(sink.ShardID{Index: 0, Count: 2}),
		s.ShardName(sink.ShardID{Index: 1, Count: 2}),
	}, finals)
	assert.Same(t, s, w.Sink())
}

func TestOnFinalizedSkippedOnFailure(t *testing.T) {
	var called bool
	s := sink.NewText[int](filepath.Join(t.TempDir(), "part"), sink.WithCoder[int](failOn(2, errors.New("boom"))))
	w := write.To[int](s, write.OnFinalized[int](func([]sink.Result) { called = true }))

	require.Error(t, w.Expand(context.Background(), autoshard.Of([]int{1, 2, 3}, 3)))
	assert.False(t, called)
}
