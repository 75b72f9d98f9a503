package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	errEmptyPrefix = errors.New("output prefix must name a file")
	errWriterDone  = errors.New("writer already closed")
)

// Coder - encodes one record as one line.
type Coder[T any] func(w io.Writer, v T) error

// LineCoder - writes the default format of v followed by a newline.
func LineCoder[T any](w io.Writer, v T) error {
	_, err := fmt.Fprintln(w, v)
	return err
}

// JSONCoder - writes v as a single JSON line.
func JSONCoder[T any](w io.Writer, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Text - line oriented files named <prefix>-SSSSS-of-NNNNN<suffix>.
type Text[T any] struct {
	prefix string
	suffix string
	coder  Coder[T]
	perm   fs.FileMode
}

// TextOpt - options used to configure a Text sink.
type TextOpt[T any] func(t *Text[T])

// WithSuffix - appended to every shard file name, e.g. ".txt".
func WithSuffix[T any](suffix string) TextOpt[T] {
	return func(t *Text[T]) {
		t.suffix = suffix
	}
}

// WithCoder - record encoding. Uses LineCoder by default.
func WithCoder[T any](c Coder[T]) TextOpt[T] {
	return func(t *Text[T]) {
		t.coder = c
	}
}

// NewText - text sink writing next to prefix. the directory is created on first Open.
func NewText[T any](prefix string, opts ...TextOpt[T]) *Text[T] {
	t := &Text[T]{
		prefix: prefix,
		coder:  LineCoder[T],
		perm:   0o644,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Prefix - the configured output prefix.
func (t *Text[T]) Prefix() string {
	return t.prefix
}

// Validate - prefix must end in a file name.
func (t *Text[T]) Validate() error {
	if t.prefix == "" || filepath.Base(t.prefix) == "." || filepath.Base(t.prefix) == string(filepath.Separator) {
		return fmt.Errorf("%w. prefix: %q", errEmptyPrefix, t.prefix)
	}
	return nil
}

// ShardName - final file name of a shard.
func (t *Text[T]) ShardName(shard ShardID) string {
	return fmt.Sprintf("%s-%05d-of-%05d%s", t.prefix, shard.Index, shard.Count, t.suffix)
}

// Open - stages the shard in a hidden, uniquely named file next to its final name.
func (t *Text[T]) Open(ctx context.Context, shard ShardID) (Writer[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	final := t.ShardName(shard)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	staged := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(final), uuid.NewString()))
	f, err := os.OpenFile(staged, os.O_CREATE|os.O_EXCL|os.O_WRONLY, t.perm)
	if err != nil {
		return nil, err
	}
	return &textWriter[T]{
		f:     f,
		buf:   bufio.NewWriter(f),
		coder: t.coder,
		res:   Result{Shard: shard, Staged: staged, Final: final},
	}, nil
}

// Finalize - renames every staged file into place.
//
// all or nothing: when any rename fails, files already renamed are moved back
// to their staged path, so Abandon can still remove every one of them.
func (t *Text[T]) Finalize(ctx context.Context, results []Result) error {
	renamed := make([]bool, len(results))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range results {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := os.Rename(r.Staged, r.Final); err != nil {
				return err
			}
			renamed[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		return nil
	}

	errs := []error{err}
	for i, r := range results {
		if !renamed[i] {
			continue
		}
		if rbErr := os.Rename(r.Final, r.Staged); rbErr != nil {
			errs = append(errs, fmt.Errorf("roll back shard %v: %w", r.Shard, rbErr))
		}
	}
	return errors.Join(errs...)
}

// Abandon - removes staged files. files already missing are ignored.
func (t *Text[T]) Abandon(results []Result) error {
	var errs []error
	for _, r := range results {
		if err := os.Remove(r.Staged); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type textWriter[T any] struct {
	f      *os.File
	buf    *bufio.Writer
	coder  Coder[T]
	res    Result
	closed bool
}

func (w *textWriter[T]) Write(v T) error {
	if w.closed {
		return errWriterDone
	}
	if err := w.coder(w.buf, v); err != nil {
		return fmt.Errorf("encode record %d of shard %v: %w", w.res.Records, w.res.Shard, err)
	}
	w.res.Records++
	return nil
}

func (w *textWriter[T]) Close() (Result, error) {
	if w.closed {
		return Result{}, errWriterDone
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		return Result{}, errors.Join(err, w.f.Close())
	}
	if err := w.f.Sync(); err != nil {
		return Result{}, errors.Join(err, w.f.Close())
	}
	if err := w.f.Close(); err != nil {
		return Result{}, err
	}
	return w.res, nil
}

func (w *textWriter[T]) Abort() error {
	var closeErr error
	if !w.closed {
		w.closed = true
		closeErr = w.f.Close()
	}
	if err := os.Remove(w.res.Staged); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(closeErr, err)
	}
	return closeErr
}
