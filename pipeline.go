package autoshard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// PTransform - a step applied to the pipeline input.
// Expand builds and executes the step; nothing is read before Run.
type PTransform[T any] interface {
	Name() string
	Expand(ctx context.Context, in *Collection[T]) error
}

// OverrideFactory - rewrites a transform before it runs.
// returns t itself when the rule does not apply.
type OverrideFactory[T any] interface {
	Override(t PTransform[T]) PTransform[T]
}

// Pipeline - an input collection plus the transforms applied to it.
type Pipeline[T any] struct {
	input     *Collection[T]
	steps     []PTransform[T]
	overrides []OverrideFactory[T]
	logger    *zap.Logger
}

// PipelineOpt - options used to configure a Pipeline.
type PipelineOpt[T any] func(p *Pipeline[T])

// WithOverrides - registers override factories, applied in order to every step at Run.
func WithOverrides[T any](factories ...OverrideFactory[T]) PipelineOpt[T] {
	return func(p *Pipeline[T]) {
		p.overrides = append(p.overrides, factories...)
	}
}

// WithPipelineLogger - logger handed to every step through the context.
//
// Uses a no-op logger by default.
func WithPipelineLogger[T any](l *zap.Logger) PipelineOpt[T] {
	return func(p *Pipeline[T]) {
		p.logger = l
	}
}

// NewPipeline - creates a pipeline over in.
func NewPipeline[T any](in *Collection[T], opts ...PipelineOpt[T]) *Pipeline[T] {
	p := &Pipeline[T]{
		input:  in,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply - appends a step. steps run in the order they were applied.
func (p *Pipeline[T]) Apply(t PTransform[T]) *Pipeline[T] {
	p.steps = append(p.steps, t)
	return p
}

// resolve - runs every override factory over t.
func (p *Pipeline[T]) resolve(t PTransform[T]) PTransform[T] {
	for _, f := range p.overrides {
		next := f.Override(t)
		if next.Name() != t.Name() {
			p.logger.Info("transform overridden", zap.String("from", t.Name()), zap.String("to", next.Name()))
		}
		t = next
	}
	return t
}

// Run - resolves overrides and executes every step.
// stops at the first failing step.
func (p *Pipeline[T]) Run(ctx context.Context) error {
	ctx = WithLogger(ctx, p.logger)
	for i, step := range p.steps {
		t := p.resolve(step)
		p.logger.Debug("running step", zap.Int("step", i), zap.String("transform", t.Name()), zap.Int("records", p.input.Len()))
		if err := t.Expand(ctx, p.input); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, t.Name(), err)
		}
	}
	return nil
}
