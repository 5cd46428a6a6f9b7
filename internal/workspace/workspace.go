// Package workspace holds the in-memory state one estimate session works
// on. Engines share a Workspace by reference instead of reaching for
// package-level state.
package workspace

import (
	"sync"
	"time"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/scheduler"
	"github.com/julianstephens/estimator/internal/storage"
)

var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Workspace owns the estimate document and the grid header totals of one
// scope. Writes go through the scheduler; reads are served from memory.
type Workspace struct {
	keys  namespace.Keys
	store *storage.Store
	bus   *bus.Bus
	sched *scheduler.Scheduler

	mu     sync.RWMutex
	doc    models.EstimateDocument
	totals models.GridTotals

	unsubscribe func()
}

// New creates a workspace for keys and subscribes it to remote changes of
// its own scope. Call Reload before use and Close when done.
func New(keys namespace.Keys, store *storage.Store, b *bus.Bus, sched *scheduler.Scheduler) *Workspace {
	w := &Workspace{
		keys:  keys,
		store: store,
		bus:   b,
		sched: sched,
	}
	w.unsubscribe = b.Subscribe(constants.EventStorage, w.onStorage)
	return w
}

func (w *Workspace) Keys() namespace.Keys            { return w.keys }
func (w *Workspace) Store() *storage.Store           { return w.store }
func (w *Workspace) Bus() *bus.Bus                   { return w.bus }
func (w *Workspace) Scheduler() *scheduler.Scheduler { return w.sched }

// Reload replaces the in-memory state with what storage holds. Missing or
// unreadable keys load as empty.
func (w *Workspace) Reload() {
	doc, _ := w.store.ReadDocument(w.keys)
	totals, _ := w.store.ReadTotals(w.keys)

	w.mu.Lock()
	w.doc = doc
	w.totals = totals
	w.mu.Unlock()
}

// Document returns a copy of the estimate document.
func (w *Workspace) Document() models.EstimateDocument {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.doc.Clone()
}

// UpdateDocument applies fn to the document, re-derives the final hours,
// and schedules a write.
func (w *Workspace) UpdateDocument(fn func(doc *models.EstimateDocument)) models.EstimateDocument {
	w.mu.Lock()
	fn(&w.doc)
	w.doc.Totals.Normalize()
	out := w.doc.Clone()
	w.mu.Unlock()

	w.sched.Schedule(w.keys.DocumentKey, out)
	return out
}

// ReplaceDocument swaps in doc wholesale.
func (w *Workspace) ReplaceDocument(doc models.EstimateDocument) {
	w.UpdateDocument(func(d *models.EstimateDocument) { *d = doc.Clone() })
}

func (w *Workspace) GridTotals() models.GridTotals {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.totals
}

// SetGridTotals stores the grid header totals and schedules a write. The
// document's estimated hours follow the grid's labor total.
func (w *Workspace) SetGridTotals(t models.GridTotals) {
	if t.UpdatedAt == 0 {
		t.UpdatedAt = nowMillis()
	}

	w.mu.Lock()
	w.totals = t
	docChanged := w.doc.Totals.Estimated != t.LaborHours
	if docChanged {
		w.doc.Totals.Estimated = t.LaborHours
		w.doc.Totals.Normalize()
	}
	doc := w.doc.Clone()
	w.mu.Unlock()

	w.sched.Schedule(w.keys.TotalsKey, t)
	if docChanged {
		w.sched.Schedule(w.keys.DocumentKey, doc)
	}
}

// ScheduleGrid queues the grid rows for a debounced write.
func (w *Workspace) ScheduleGrid(rows []models.GridRow) {
	w.sched.Schedule(w.keys.GridKey, storage.GridEnvelope(rows))
}

// DropGrid forgets the grid slice: pending grid and totals writes are
// cancelled, both keys removed, and the estimated hours zeroed.
func (w *Workspace) DropGrid() {
	w.sched.Cancel(w.keys.GridKey)
	w.sched.Cancel(w.keys.TotalsKey)
	w.store.Remove(w.keys.GridKey)
	w.store.Remove(w.keys.TotalsKey)

	w.mu.Lock()
	w.totals = models.GridTotals{}
	w.mu.Unlock()
	w.UpdateDocument(func(doc *models.EstimateDocument) { doc.Totals.Estimated = 0 })
}

// Grid reads the stored grid rows.
func (w *Workspace) Grid() ([]models.GridRow, bool) {
	return w.store.ReadGrid(w.keys)
}

// Totals is the aggregate view the summary computes from.
func (w *Workspace) Totals() models.EstimateTotals {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return models.CollectTotals(w.doc, w.totals)
}

// Reset drops the in-memory state and any pending writes for the scope.
func (w *Workspace) Reset() {
	w.sched.CancelPrefix(w.keys.Prefix)
	w.mu.Lock()
	w.doc = models.EstimateDocument{}
	w.totals = models.GridTotals{}
	w.mu.Unlock()
}

// Flush writes all pending changes now.
func (w *Workspace) Flush() {
	w.sched.Flush()
}

// Close flushes and detaches from the bus.
func (w *Workspace) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
		w.unsubscribe = nil
	}
	w.sched.Flush()
}

// onStorage reloads a slice another instance wrote. A pending local write
// for the same key is discarded: the newer remote value wins.
func (w *Workspace) onStorage(ev bus.Event) {
	if !ev.Remote {
		return
	}
	change, ok := ev.Detail.(bus.StorageChange)
	if !ok || !w.keys.Owns(change.Key) {
		return
	}

	switch change.Key {
	case w.keys.DocumentKey:
		w.sched.Cancel(change.Key)
		doc, _ := w.store.ReadDocument(w.keys)
		w.mu.Lock()
		w.doc = doc
		w.mu.Unlock()
		logger.Debug("Reloaded estimate document", "scope", w.keys.Scope)
		w.bus.Publish(constants.EventTotalsChanged, w.Totals())
		w.bus.Publish(constants.EventDjeChanged, doc.Costs.Total)
	case w.keys.TotalsKey:
		w.sched.Cancel(change.Key)
		totals, _ := w.store.ReadTotals(w.keys)
		w.mu.Lock()
		w.totals = totals
		w.mu.Unlock()
		logger.Debug("Reloaded grid totals", "scope", w.keys.Scope)
		w.bus.Publish(constants.EventTotalsChanged, w.Totals())
	}
}
