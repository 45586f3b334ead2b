// Package pipeline implements the push-style byte sink chain that
// every codec in package codec is built on: a Pipeline receives bytes via
// Write, transforms them, and pushes the result to the next Pipeline in the
// chain. Finish() closes out the scope for one stage and propagates to the
// next, so the last stage in a chain only sees EOF once every stage upstream
// of it has flushed.
package pipeline

import (
	"errors"
	"io"
)

// Pipeline is one stage of a push-style transformation chain. Unlike an
// io.Writer, a Pipeline chain is driven to completion by a single Finish
// call that cascades: each stage flushes any buffered output to Next, then
// calls Next.Finish(), guaranteeing Finish runs on every stage in the chain
// exactly once regardless of whether Write returned an error along the way:
// finish is called on every pipeline in the chain on both success and
// failure paths.
type Pipeline interface {
	// Write pushes len(p) bytes of input into this stage. Implementations
	// transform and forward to Next as needed; they may buffer internally.
	Write(p []byte) (n int, err error)

	// Finish flushes any buffered state and calls Next().Finish(), if Next
	// is non-nil. Finish must be idempotent: a second call is a no-op.
	Finish() error

	// Next returns the downstream stage, or nil if this is the chain's
	// terminal sink.
	Next() Pipeline
}

// ErrFinished is returned by Write when called after Finish.
var ErrFinished = errors.New("pipeline: write after finish")

// Base implements the bookkeeping every concrete stage needs (downstream
// pointer, the finished flag, and Finish cascading), so codecs only supply
// a Write method and an optional Flush hook.
type Base struct {
	next     Pipeline
	finished bool
	// FlushFunc is invoked once by Finish, before the cascade to Next, to
	// let a stage emit any buffered output. May be nil.
	FlushFunc func() error
}

// NewBase creates a Base wired to next (which may be nil for a terminal
// sink).
func NewBase(next Pipeline) Base {
	return Base{next: next}
}

// Next implements Pipeline.
func (b *Base) Next() Pipeline { return b.next }

// Finish implements Pipeline. Safe to call more than once.
func (b *Base) Finish() error {
	if b.finished {
		return nil
	}
	b.finished = true
	var ferr error
	if b.FlushFunc != nil {
		ferr = b.FlushFunc()
	}
	if b.next != nil {
		if nerr := b.next.Finish(); nerr != nil && ferr == nil {
			ferr = nerr
		}
	}
	return ferr
}

// Finished reports whether Finish has already run.
func (b *Base) Finished() bool { return b.finished }

// Sink is a terminal Pipeline stage that writes into an io.Writer and has
// nothing further to cascade to.
type Sink struct {
	Base
	w io.Writer
}

// NewSink wraps w as a terminal Pipeline.
func NewSink(w io.Writer) *Sink {
	return &Sink{Base: NewBase(nil), w: w}
}

// Write implements Pipeline.
func (s *Sink) Write(p []byte) (int, error) {
	if s.Finished() {
		return 0, ErrFinished
	}
	return s.w.Write(p)
}

// BufferSink is a terminal Pipeline stage that accumulates all written bytes
// in memory; used where decoded stream data is materialised for the caller
// ("apply filter chain... to sink").
type BufferSink struct {
	Base
	buf []byte
}

// NewBufferSink creates an empty BufferSink.
func NewBufferSink() *BufferSink {
	return &BufferSink{Base: NewBase(nil)}
}

// Write implements Pipeline.
func (b *BufferSink) Write(p []byte) (int, error) {
	if b.Finished() {
		return 0, ErrFinished
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Bytes returns the accumulated bytes. Valid any time; typically read after
// Finish.
func (b *BufferSink) Bytes() []byte { return b.buf }

// Run drives all of p through chain's entry stage (head) and then calls
// Finish on it, guaranteeing the cascade runs even if Write fails partway
// through — matching the "finish() is called on both success and failure
// paths" guarantee.
func Run(head Pipeline, p []byte) (err error) {
	defer func() {
		if ferr := head.Finish(); ferr != nil && err == nil {
			err = ferr
		}
	}()
	_, err = head.Write(p)
	return err
}

// CountingSink is a terminal stage that only tracks how many bytes passed
// through it, useful for length-discovery passes (e.g. the writer computing
// a stream's encoded length before it knows the final backing buffer).
type CountingSink struct {
	Base
	N int64
}

// NewCountingSink creates a CountingSink.
func NewCountingSink() *CountingSink {
	return &CountingSink{Base: NewBase(nil)}
}

// Write implements Pipeline.
func (c *CountingSink) Write(p []byte) (int, error) {
	if c.Finished() {
		return 0, ErrFinished
	}
	c.N += int64(len(p))
	return len(p), nil
}
