package autoshard

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Middleware - wraps handlers.
type Middleware[IN any, OUT any] func(HandlerFunc[IN, OUT]) HandlerFunc[IN, OUT]

// Chain - composes middleware. each one wraps the result of the previous,
// so the last one given runs first.
func Chain[IN any, OUT any](mws ...Middleware[IN, OUT]) Middleware[IN, OUT] {
	return func(h HandlerFunc[IN, OUT]) HandlerFunc[IN, OUT] {
		for _, mw := range mws {
			h = mw(h)
		}
		return h
	}
}

// Logged - logs the outcome of every job with the logger carried by ctx.
// Failures are logged at warn level, successes at debug level.
func Logged[IN any, OUT any](stage string, fields ...func(IN) zap.Field) Middleware[IN, OUT] {
	return func(next HandlerFunc[IN, OUT]) HandlerFunc[IN, OUT] {
		return func(ctx context.Context, in IN) (OUT, error) {
			log := Logger(ctx).With(zap.String("stage", stage))
			for _, f := range fields {
				log = log.With(f(in))
			}
			start := time.Now()
			out, err := next(ctx, in)
			if err != nil {
				log.Warn("job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
				return out, err
			}
			log.Debug("job done", zap.Duration("elapsed", time.Since(start)))
			return out, nil
		}
	}
}
