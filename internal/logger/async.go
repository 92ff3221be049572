package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer flushes and stops a log handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler hands records to a bounded queue drained by background
// workers, so a slow stdout never stalls a turn. A full queue drops the
// record; the drop count is logged once on Close.
type AsyncHandler struct {
	inner slog.Handler
	q     *logQueue
}

type logQueue struct {
	mu      sync.RWMutex // guards closed and the close of ch
	closed  bool
	ch      chan queued
	workers sync.WaitGroup
	stop    sync.Once
	dropped atomic.Int64
	sink    slog.Handler
}

// queued keeps the derived handler so WithAttrs and WithGroup children
// write through their own attrs.
type queued struct {
	h   slog.Handler
	rec slog.Record
}

// NewAsyncHandler starts workers goroutines reading from a queue of size capacity.
func NewAsyncHandler(inner slog.Handler, capacity, workers int) *AsyncHandler {
	q := &logQueue{ch: make(chan queued, capacity), sink: inner}
	for range max(workers, 1) {
		q.workers.Add(1)
		go func() {
			defer q.workers.Done()
			for item := range q.ch {
				_ = item.h.Handle(context.Background(), item.rec)
			}
		}()
	}
	return &AsyncHandler{inner: inner, q: q}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle never blocks.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler signature
	h.q.mu.RLock()
	defer h.q.mu.RUnlock()
	if h.q.closed {
		h.q.dropped.Add(1)
		return nil
	}
	select {
	case h.q.ch <- queued{h: h.inner, rec: rec.Clone()}:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), q: h.q}
}

// DroppedCount reports records lost to a full or closed queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.q.dropped.Load()
}

// Close drains the queue and waits for the workers. Calling it again only waits.
func (h *AsyncHandler) Close() {
	h.q.stop.Do(func() {
		h.q.mu.Lock()
		h.q.closed = true
		close(h.q.ch)
		h.q.mu.Unlock()
		h.q.workers.Wait()
		if n := h.q.dropped.Load(); n > 0 {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
			rec.AddAttrs(slog.Int64("count", n))
			_ = h.q.sink.Handle(context.Background(), rec)
		}
	})
	h.q.workers.Wait()
}
