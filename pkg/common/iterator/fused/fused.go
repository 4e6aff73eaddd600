// Package fused provides an iterator that stops for good after its first failure.
package fused

import (
	"context"

	"github.com/KevoDB/lsmcore/pkg/common/iterator"
	"github.com/KevoDB/lsmcore/pkg/common/key"
	"github.com/KevoDB/lsmcore/pkg/common/log"
	itermetrics "github.com/KevoDB/lsmcore/pkg/iterator"
	"github.com/cockroachdb/errors"
)

// ErrAlreadyFailed is returned by Next once the iterator has latched an error
var ErrAlreadyFailed = errors.New("iterator already failed")

// Option configures an Iterator
type Option func(*Iterator)

// WithMetrics records latches through m
func WithMetrics(m itermetrics.IteratorMetrics) Option {
	return func(f *Iterator) {
		f.metrics = m
	}
}

// WithContext sets the context metrics are recorded under
func WithContext(ctx context.Context) Option {
	return func(f *Iterator) {
		f.ctx = ctx
	}
}

// WithLogger sets the logger a latched failure is reported to
func WithLogger(logger log.Logger) Option {
	return func(f *Iterator) {
		f.logger = logger
	}
}

// Iterator wraps another iterator and latches the first error its Next
// returns. After that the wrapped iterator is never touched again: Valid
// reports false and every Next returns ErrAlreadyFailed.
//
// ErrExhausted is not a failure and is passed through without latching.
type Iterator struct {
	iter iterator.Iterator
	err  error

	metrics itermetrics.IteratorMetrics
	ctx     context.Context
	logger  log.Logger
}

// New wraps iter in the active state
func New(iter iterator.Iterator, opts ...Option) *Iterator {
	f := &Iterator{
		iter:    iter,
		metrics: itermetrics.NewNoopIteratorMetrics(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.GetDefaultLogger().WithField("component", "fused_iterator")
	}
	return f
}

// Valid returns false once errored, otherwise whatever the wrapped iterator says
func (f *Iterator) Valid() bool {
	return f.err == nil && f.iter.Valid()
}

// Key returns the wrapped iterator's key. It must not be called after a failure.
func (f *Iterator) Key() key.View {
	if f.err != nil {
		panic(errors.AssertionFailedf("fused iterator: Key called after failure: %v", f.err))
	}
	return f.iter.Key()
}

// Value returns the wrapped iterator's value. It must not be called after a failure.
func (f *Iterator) Value() []byte {
	if f.err != nil {
		panic(errors.AssertionFailedf("fused iterator: Value called after failure: %v", f.err))
	}
	return f.iter.Value()
}

// Next advances the wrapped iterator, latching any failure
func (f *Iterator) Next() error {
	if f.err != nil {
		return errors.WithSecondaryError(ErrAlreadyFailed, f.err)
	}

	err := f.iter.Next()
	if err == nil || iterator.IsExhausted(err) {
		return err
	}

	f.err = err
	f.metrics.RecordFuseLatched(f.ctx, err)
	f.logger.Warn("Iterator failed, refusing further use: %v", err)
	return err
}

// Err returns the latched error, or nil while the iterator is active
func (f *Iterator) Err() error {
	return f.err
}
