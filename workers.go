package autoshard

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// HandlerFunc - processes a single job inside a worker.
type HandlerFunc[IN any, OUT any] func(ctx context.Context, in IN) (OUT, error)

// workerOpts - configures behavior of Workers.
type workerOpts struct {
	maxWorkerSize  int
	minWorkerSize  int
	ttlElastic     time.Duration
	elasticWorkers bool
	bufferSize     int
	orderPreserved bool
	panicOnNil     bool
}

func (wo *workerOpts) validate() error {
	if wo.maxWorkerSize <= 0 {
		return newInvalidWorkerSizeError(wo.maxWorkerSize)
	}
	if wo.bufferSize < 0 {
		return newInvalidBufferSizeError(wo.bufferSize)
	}
	if wo.minWorkerSize < 0 {
		return newInvalidMinWorkerSizeError(wo.minWorkerSize)
	}
	if wo.ttlElastic < 0 {
		return newInvalidTTLError(wo.ttlElastic)
	}
	if wo.minWorkerSize > wo.maxWorkerSize {
		return newMinWorkerSizeTooLargeError(wo.minWorkerSize, wo.maxWorkerSize)
	}
	return nil
}

// Opt - options used to configure Workers.
type Opt func(w *workerOpts)

// WithWorkerSize - set the number of concurrent workers.
// Each worker consumes one job at a time.
//
// Uses 1 by default.
func WithWorkerSize(workerSize int) Opt {
	return func(w *workerOpts) {
		w.maxWorkerSize = workerSize
	}
}

// WithBufferSize - set buffer size for the internal and output channels.
//
// Uses unbuffered channels by default.
func WithBufferSize(bufferSize int) Opt {
	return func(w *workerOpts) {
		w.bufferSize = bufferSize
	}
}

// WithOrderPreserved - preserves order of input to output.
// The workers will keep running but results are blocked from sending to out until the "next" result is ready to send.
func WithOrderPreserved() Opt {
	return func(w *workerOpts) {
		w.orderPreserved = true
	}
}

// WithPanicOnNilChannel - option to panic when a nil channel is sent to Workers.
// By default, Workers will immediately close the out channel and return.
func WithPanicOnNilChannel() Opt {
	return func(w *workerOpts) {
		w.panicOnNil = true
	}
}

// WithElasticWorkers - makes workers elastic: automatically scale up and down as needed.
// Start at `minWorkerSize` workers and scale up to `workerSize`.
//
// Scales up instantly as needed (for faster response to bursts).
// Scales down each worker after being idle for ttl. At least one worker stays alive.
func WithElasticWorkers(minWorkerSize int, ttl time.Duration) Opt {
	return func(w *workerOpts) {
		w.minWorkerSize = minWorkerSize
		w.ttlElastic = ttl
		w.elasticWorkers = true
	}
}

func newWorkerOpts(opts []Opt) *workerOpts {
	wo := &workerOpts{
		maxWorkerSize: 1,
	}
	for _, opt := range opts {
		opt(wo)
	}
	if !wo.elasticWorkers {
		wo.minWorkerSize = wo.maxWorkerSize
	}
	return wo
}

// floor - fewest workers kept alive.
func (wo *workerOpts) floor() int {
	return max(wo.minWorkerSize, 1)
}

// job - wraps around incoming and outgoing data (val) to track its position in the input.
type job[T any] struct {
	index uint64
	val   T
}

// workerStation - provides context for Workers.
type workerStation[IN, OUT any] struct {
	*workerOpts

	queue       chan job[IN]
	ordered     chan job[OUT]
	out         chan OUT
	done        chan struct{}
	err         error
	handler     HandlerFunc[IN, OUT]
	workerCount atomic.Int64
}

// runEnqueuer - tags every input with its index and hands it to the workers.
// the queue is closed once in is drained or ctx is done.
func (ws *workerStation[IN, OUT]) runEnqueuer(ctx context.Context, g *errgroup.Group, in <-chan IN) error {
	defer close(ws.queue)
	var index uint64
	for {
		var v IN
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok = <-in:
			if !ok {
				return nil
			}
		}
		j := job[IN]{index: index, val: v}
		index++

		if ws.elasticWorkers {
			select {
			case ws.queue <- j:
				continue
			default:
			}
			// every worker is busy
			ws.scaleUp(ctx, g)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ws.queue <- j:
		}
	}
}

// scaleUp - adds a worker unless the pool is at its max size.
// only the enqueuer adds workers.
func (ws *workerStation[IN, OUT]) scaleUp(ctx context.Context, g *errgroup.Group) {
	if ws.workerCount.Load() >= int64(ws.maxWorkerSize) {
		return
	}
	ws.workerCount.Add(1)
	g.Go(func() error {
		return ws.startWorker(ctx)
	})
}

// scaleDown - reports whether an idle worker may exit, and if so removes it from the count.
func (ws *workerStation[IN, OUT]) scaleDown() bool {
	floor := int64(ws.floor())
	for {
		n := ws.workerCount.Load()
		if n <= floor {
			return false
		}
		if ws.workerCount.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// sendResult - sends result from worker to the next step (either out or reorder gate).
func (ws *workerStation[IN, OUT]) sendResult(ctx context.Context, j job[OUT]) error {
	if ws.orderPreserved {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ws.ordered <- j:
		}
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ws.out <- j.val:
	}
	return nil
}

// startWorker - starts a single worker to ingest the queue.
// returns the first error seen by this worker.
func (ws *workerStation[IN, OUT]) startWorker(ctx context.Context) error {
	var tick <-chan time.Time
	for {
		if ws.elasticWorkers {
			tick = time.After(ws.ttlElastic)
		}
		var j job[IN]
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			if ws.scaleDown() {
				return nil
			}
			continue
		case j, ok = <-ws.queue:
			if !ok {
				return nil
			}
		}
		res, err := ws.handler(ctx, j.val)
		if err != nil {
			return err
		}
		if err := ws.sendResult(ctx, job[OUT]{index: j.index, val: res}); err != nil {
			return err
		}
	}
}

// initWorkers - starts the workers that live for the whole run.
func (ws *workerStation[IN, OUT]) initWorkers(ctx context.Context, g *errgroup.Group) {
	n := ws.maxWorkerSize
	if ws.elasticWorkers {
		n = ws.floor()
	}
	ws.workerCount.Add(int64(n))
	for range n {
		g.Go(func() error {
			return ws.startWorker(ctx)
		})
	}
}

// reorder - gate used to cache the result until the "next" result is cached and ready to be sent to out chan.
// makes sure all results are sent to out chan in the same order it was received from in chan.
func (ws *workerStation[IN, OUT]) reorder(ctx context.Context) {
	var next uint64
	cache := map[uint64]OUT{}
	for j := range ws.ordered {
		cache[j.index] = j.val
		for v, ok := cache[next]; ok; v, ok = cache[next] {
			delete(cache, next)
			next++
			select {
			case <-ctx.Done():
				return
			case ws.out <- v:
			}
		}
	}
}

// wait - blocks until every worker has exited.
func (ws *workerStation[IN, OUT]) wait() error {
	<-ws.done
	return ws.err
}

// flush - drains in so a producer blocked on send can finish and close it.
func flush[T any](in <-chan T) {
	for range in {
	}
}

// Workers starts multiple goroutines that read jobs from `in`,
// process them with handler, and forward results to `out`.
// It returns `out` and a wait func reporting the first handler error.
//
// Concurrency and resource use:
//   - Spawns N worker goroutines (configured with `opts`)
//     plus a small, constant number of internal coordinators
//     (O(1)). No goroutines are created per job.
//   - Backpressure is applied by the capacities of `in`/`out` (unbuffered channels block).
//   - Buffer size of internal and out channels can be configured with opts
//
// Lifecycle:
//   - When `in` is closed and all jobs are processed, `out` is closed.
//   - If `ctx` is canceled or a handler fails, workers stop early and `out` is closed
//     after in-flight jobs exit. Whatever is left in `in` is drained.
//   - The `out` channel MUST be drained to avoid a deadlock.
//
// Ordering:
//   - By default, results are NOT guaranteed to preserve input order.
//   - Use `opts` to configure to guarantee preserved order.
//
// Errors:
//   - The first handler error (or ctx error) cancels the remaining workers
//     and is returned by wait once `out` is closed.
func Workers[IN any, OUT any](
	ctx context.Context,
	in <-chan IN,
	handler HandlerFunc[IN, OUT],
	opts ...Opt,
) (<-chan OUT, func() error) {
	ws := &workerStation[IN, OUT]{
		workerOpts: newWorkerOpts(opts),
		handler:    handler,
	}
	if err := ws.validate(); err != nil {
		panic(err.Error())
	}
	ws.out = make(chan OUT, ws.bufferSize)
	ws.done = make(chan struct{})

	if in == nil {
		if ws.panicOnNil {
			panic("autoshard.Workers: nil input channel")
		}
		close(ws.out)
		close(ws.done)
		return ws.out, ws.wait
	}

	ws.queue = make(chan job[IN], ws.bufferSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ws.runEnqueuer(gctx, g, in)
	})
	ws.initWorkers(gctx, g)

	reordered := make(chan struct{})
	if ws.orderPreserved {
		ws.ordered = make(chan job[OUT], ws.bufferSize)
		// gctx is canceled as soon as g.Wait returns, so the gate watches ctx
		go func() {
			defer close(reordered)
			ws.reorder(ctx)
		}()
	} else {
		close(reordered)
	}

	go func() {
		ws.err = g.Wait()
		if ws.err == nil {
			// in may have been closed early by a producer watching ctx
			ws.err = ctx.Err()
		}
		if ws.err != nil {
			go flush(in)
		}
		if ws.orderPreserved {
			close(ws.ordered)
		}
		<-reordered
		close(ws.out)
		close(ws.done)
	}()
	return ws.out, ws.wait
}
