package notice

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	"github.com/vango-dev/imclient/pkg/store"
)

// Watermarks tracks the highest applied sequence per key. A sequence is
// accepted only if it is strictly greater than the current watermark, which
// makes reapplying a duplicate push a no-op.
type Watermarks struct {
	mu     sync.Mutex
	marks  map[string]int64
	store  store.WatermarkStore
	logger *slog.Logger
}

// NewWatermarks creates a tracker backed by s. A nil store keeps
// watermarks in memory only.
func NewWatermarks(s store.WatermarkStore, logger *slog.Logger) *Watermarks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watermarks{
		marks:  make(map[string]int64),
		store:  s,
		logger: logger.With("component", "watermarks"),
	}
}

// Advance moves the watermark of key to seq if seq is newer. It reports
// whether seq was accepted. A failure to persist is logged and does not
// reject seq.
func (w *Watermarks) Advance(ctx context.Context, key string, seq int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	cur, ok := w.lookup(ctx, key)
	if ok && seq <= cur {
		return false
	}
	w.marks[key] = seq
	if w.store != nil {
		if err := w.store.Save(ctx, key, seq); err != nil {
			w.logger.Warn("persist watermark failed", "key", key, "seq", seq, "error", err)
		}
	}
	return true
}

// Get returns the watermark of key.
func (w *Watermarks) Get(ctx context.Context, key string) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup(ctx, key)
}

// lookup consults memory first and the store second. Called with mu held.
func (w *Watermarks) lookup(ctx context.Context, key string) (int64, bool) {
	if seq, ok := w.marks[key]; ok {
		return seq, true
	}
	if w.store == nil {
		return 0, false
	}
	seq, ok, err := w.store.Load(ctx, key)
	if err != nil {
		w.logger.Warn("load watermark failed", "key", key, "error", err)
		return 0, false
	}
	if ok {
		w.marks[key] = seq
	}
	return seq, ok
}

// Flush writes every in-memory watermark to the store.
func (w *Watermarks) Flush(ctx context.Context) error {
	if w.store == nil {
		return nil
	}
	w.mu.Lock()
	marks := maps.Clone(w.marks)
	w.mu.Unlock()
	return w.store.SaveAll(ctx, marks)
}
