// Package chanwriter bridges a synchronous encode-and-write computation to
// an asynchronous, backpressure-aware chunk stream.
//
// # Overview
//
// Text exposition encoders expect a plain io.Writer and may produce output
// proportional to the number of live backend objects. Buffering the whole
// payload before the first byte reaches the client wastes memory and hides
// client disconnects from the producer. chanwriter instead accumulates
// encoder output in a fixed-capacity buffer and hands full buffers off as
// immutable chunks on a capacity-1 channel.
//
// The capacity-1 channel is the flow control: a flush blocks while the
// previous chunk has not been consumed, so the producer is throttled to
// the consumer's pace without any explicit rate limiting. When the
// consumer goes away (the context is canceled), the next flush fails with
// ErrStreamClosed and the producer aborts the remaining encode instead of
// running it to completion into a void.
//
// # Usage
//
//	chunks := make(chan chanwriter.Chunk, 1)
//	w := chanwriter.New(ctx, chunks, 128*1024)
//
//	go func() {
//	    defer close(chunks)
//	    if err := encode(w); err == nil {
//	        _ = w.Flush()
//	    }
//	}()
//
//	for chunk := range chunks {
//	    if _, err := out.Write(chunk); err != nil {
//	        cancel() // producer observes ErrStreamClosed on its next flush
//	        break
//	    }
//	}
//
// # Concurrency
//
// A Writer is owned by a single producer goroutine; only the chunk channel
// and the context are shared with the consumer. The producer side performs
// one blocking select per flush and never spawns goroutines of its own.
package chanwriter
