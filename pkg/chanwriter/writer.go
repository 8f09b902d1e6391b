package chanwriter

import (
	"context"
	"errors"
)

// DefaultBufferSize is the buffer capacity used when none is configured.
// It bounds the size of a single in-flight chunk, not the total payload.
const DefaultBufferSize = 128 * 1024

// ErrStreamClosed is returned by Write and Flush once the consumer has
// stopped draining chunks, typically because the client disconnected.
// The producer must stop encoding when it sees this error.
var ErrStreamClosed = errors.New("chanwriter: stream consumer gone")

// Chunk is one contiguous slice of encoded output. Ownership transfers to
// the receiver on send; the writer never touches a sent chunk again.
type Chunk []byte

// Writer adapts a synchronous encoder to a chunked response stream. It
// implements io.Writer; the encoder writes into an internal buffer and
// full buffers are handed off on the chunk channel. The channel has
// capacity 1, so a send blocks while the previous chunk is unconsumed,
// which ties the encoder's progress to the client's read rate.
type Writer struct {
	ctx     context.Context
	ch      chan<- Chunk
	buf     []byte
	written int
}

// New creates a Writer sending chunks on ch. The context signals that the
// consumer is gone: once it is done, writes fail with ErrStreamClosed.
// bufSize is the chunk capacity; DefaultBufferSize is used when <= 0.
func New(ctx context.Context, ch chan<- Chunk, bufSize int) *Writer {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Writer{
		ctx: ctx,
		ch:  ch,
		buf: make([]byte, 0, bufSize),
	}
}

// Write appends p to the internal buffer, flushing every time the buffer
// reaches capacity. Inputs larger than the buffer are handled by looping,
// so no byte is ever dropped and chunk size never exceeds the capacity.
func (w *Writer) Write(p []byte) (int, error) {
	total := len(p)
	for {
		remaining := cap(w.buf) - len(w.buf)
		if len(p) <= remaining {
			w.buf = append(w.buf, p...)
			return total, nil
		}

		// Fill to capacity, push the chunk out, continue with the rest.
		w.buf = append(w.buf, p[:remaining]...)
		p = p[remaining:]
		if err := w.Flush(); err != nil {
			return total - len(p), err
		}
	}
}

// Flush hands off any buffered bytes as one immutable chunk. It blocks
// until the channel slot is free, so the producer can never run more than
// one chunk ahead of the consumer. The encoder calls this at the end of
// the payload to emit the residual partial chunk.
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}

	chunk := Chunk(w.buf)
	// The receiver owns the sent chunk; start over with a fresh buffer.
	w.buf = make([]byte, 0, cap(w.buf))

	select {
	case w.ch <- chunk:
		w.written += len(chunk)
		return nil
	case <-w.ctx.Done():
		return ErrStreamClosed
	}
}

// Written returns the total number of bytes flushed so far, for
// completion logging.
func (w *Writer) Written() int {
	return w.written
}
