package snapshot

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Source produces the current world document. It is called from the writer
// goroutine, never from the mutation path.
type Source func(ctx context.Context) (WorldV1, error)

// WrittenHook observes every snapshot that reached disk.
type WrittenHook func(path string, snap WorldV1)

type WriterStats struct {
	Notified uint64
	Written  uint64
	Failed   uint64
	LastUnix int64
}

// Writer coalesces change notifications and writes at most one snapshot per
// debounce window. Notify never blocks; failures are logged and dropped.
type Writer struct {
	path     string
	debounce time.Duration
	source   Source
	logger   *log.Logger

	mu    sync.Mutex
	hooks []WrittenHook

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	notified atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
	lastUnix atomic.Int64
}

func NewWriter(path string, debounce time.Duration, source Source, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if debounce < 0 {
		debounce = 0
	}
	return &Writer{
		path:     path,
		debounce: debounce,
		source:   source,
		logger:   logger,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) OnWritten(h WrittenHook) {
	if h == nil {
		return
	}
	w.mu.Lock()
	w.hooks = append(w.hooks, h)
	w.mu.Unlock()
}

// Notify schedules a write. Bursts of notifications collapse into one.
func (w *Writer) Notify() {
	w.notified.Add(1)
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Start runs the writer loop until ctx is cancelled or Close is called. A
// pending notification is flushed before the loop exits.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

func (w *Writer) Close() {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Writer) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.flushPending(context.Background())
			return
		case <-w.done:
			w.flushPending(context.Background())
			return
		case <-w.notify:
		}

		if w.debounce > 0 {
			t := time.NewTimer(w.debounce)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				w.WriteNow(context.Background())
				return
			case <-w.done:
				t.Stop()
				w.WriteNow(context.Background())
				return
			}
		}
		// Notifications that arrived during the window are covered by this write.
		select {
		case <-w.notify:
		default:
		}
		w.WriteNow(ctx)
	}
}

func (w *Writer) flushPending(ctx context.Context) {
	select {
	case <-w.notify:
		w.WriteNow(ctx)
	default:
	}
}

// WriteNow pulls the current document from the source and persists it.
func (w *Writer) WriteNow(ctx context.Context) bool {
	snap, err := w.source(ctx)
	if err != nil {
		w.failed.Add(1)
		w.logger.Printf("snapshot source: %v", err)
		return false
	}
	return w.Write(snap)
}

// Write persists snap and runs the written hooks.
func (w *Writer) Write(snap WorldV1) bool {
	if err := WriteSnapshot(w.path, snap); err != nil {
		w.failed.Add(1)
		w.logger.Printf("snapshot write: %v", err)
		return false
	}
	w.written.Add(1)
	w.lastUnix.Store(time.Now().Unix())

	w.mu.Lock()
	hooks := append([]WrittenHook(nil), w.hooks...)
	w.mu.Unlock()
	for _, h := range hooks {
		h(w.path, snap)
	}
	return true
}

func (w *Writer) Stats() WriterStats {
	return WriterStats{
		Notified: w.notified.Load(),
		Written:  w.written.Load(),
		Failed:   w.failed.Load(),
		LastUnix: w.lastUnix.Load(),
	}
}
