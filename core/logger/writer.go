package logger

import (
	"errors"
	"io"
	"sync"
)

const writerQueueDepth = 256

var errWriterClosed = errors.New("logger: writer closed")

// asyncWriter moves log output off the calling goroutine. Lines are batched
// by a single drain loop and written to every sink in order.
type asyncWriter struct {
	lines    chan []byte
	flushReq chan chan error
	done     chan struct{}

	// closeMu orders Write against Close so nothing is sent on a closed queue.
	closeMu sync.RWMutex
	closed  bool

	sinks    []io.Writer
	batchCap int

	errMu    sync.Mutex
	firstErr error
}

// newAsyncWriter starts the drain loop. batchCap bounds the bytes coalesced
// into one sink write.
func newAsyncWriter(writers []io.Writer, batchCap int) *asyncWriter {
	if batchCap <= 0 {
		batchCap = 64 * 1024
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		lines:    make(chan []byte, writerQueueDepth),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
		batchCap: batchCap,
	}
	go w.drain()
	return w
}

func (w *asyncWriter) drain() {
	defer close(w.done)
	batch := make([]byte, 0, w.batchCap)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			batch = append(batch[:0], line...)
			// Coalesce whatever is already queued.
		more:
			for len(batch) < w.batchCap {
				select {
				case next, ok := <-w.lines:
					if !ok {
						w.emit(batch)
						return
					}
					batch = append(batch, next...)
				default:
					break more
				}
			}
			w.emit(batch)
		case ack := <-w.flushReq:
			batch = batch[:0]
		pending:
			for {
				select {
				case next, ok := <-w.lines:
					if !ok {
						break pending
					}
					batch = append(batch, next...)
				default:
					break pending
				}
			}
			w.emit(batch)
			ack <- w.err()
		}
	}
}

func (w *asyncWriter) emit(p []byte) {
	if len(p) == 0 {
		return
	}
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			w.setErr(err)
		}
	}
}

// Write queues a copy of p. It blocks only while the queue is full, so
// lines are never dropped.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every line queued before the call has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.err()
	}
}

// Close drains the queue and reports the first sink error.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.lines)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.err()
}

func (w *asyncWriter) err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.firstErr
}

func (w *asyncWriter) setErr(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.firstErr == nil {
		w.firstErr = errors.Join(errors.New("logger: sink write failed"), err)
	}
}
