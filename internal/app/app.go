// Package app assembles one estimate session: the workspace, every page
// engine, the summary, and the boot sequencer, all sharing one bus.
package app

import (
	"context"
	"time"

	"github.com/julianstephens/estimator/internal/boot"
	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/dje"
	"github.com/julianstephens/estimator/internal/grid"
	"github.com/julianstephens/estimator/internal/labor"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/scheduler"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/summary"
	"github.com/julianstephens/estimator/internal/workspace"
)

type Config struct {
	EstimateID string
	Session    string
	Catalog    catalog.Source
	Remote     boot.Remote
	// Delay overrides the write debounce. Zero keeps the default.
	Delay time.Duration
	// Feed attaches the backend's change feed when it has one.
	Feed bool
	// Notify receives every recomputed summary view.
	Notify func(summary.View)
}

// App is a booted session. Engines are valid after Open returns.
type App struct {
	Bus       *bus.Bus
	Store     *storage.Store
	Scheduler *scheduler.Scheduler
	Workspace *workspace.Workspace
	Sequencer *boot.Sequencer

	Grid        *grid.Engine
	Adjustments *labor.Engine
	Additional  *labor.Engine
	Dje         *dje.Engine
	Summary     *summary.Aggregator

	// Boot describes where the state came from.
	Boot boot.Result
	// Hydrate reloads the choice lists of restored selections. Nil when
	// there is nothing to reload.
	Hydrate grid.Fetch

	cancelFeed  context.CancelFunc
	unsubscribe []func()
}

// Open boots the scope for cfg.EstimateID on backend and hydrates every
// page from it.
func Open(ctx context.Context, backend storage.Backend, cfg Config) *App {
	b := bus.New()
	st := storage.NewStore(backend, b)
	var schedOpts []scheduler.Option
	if cfg.Delay > 0 {
		schedOpts = append(schedOpts, scheduler.WithDelay(cfg.Delay))
	}
	sched := scheduler.New(st, schedOpts...)
	ws := workspace.New(namespace.Resolve(cfg.EstimateID), st, b, sched)

	src := cfg.Catalog
	if src == nil {
		src = catalog.Offline{}
	}

	var bootOpts []boot.Option
	if cfg.Remote != nil {
		bootOpts = append(bootOpts, boot.WithRemote(cfg.Remote))
	}
	if cfg.Session != "" {
		bootOpts = append(bootOpts, boot.WithSession(cfg.Session))
	}

	a := &App{
		Bus:       b,
		Store:     st,
		Scheduler: sched,
		Workspace: ws,
		Sequencer: boot.New(ws, bootOpts...),
	}
	a.Boot = a.Sequencer.Boot(ctx)

	a.Grid = grid.New(ws, src)
	a.Grid.Hydrate()
	a.Adjustments = labor.New(ws, labor.KindAdjustments)
	a.Additional = labor.New(ws, labor.KindAdditionalLabor)
	a.Dje = dje.New(ws, src)
	a.Hydrate = a.Dje.Hydrate()

	var sumOpts []summary.Option
	if cfg.Notify != nil {
		sumOpts = append(sumOpts, summary.WithNotify(cfg.Notify))
	}
	a.Summary = summary.New(ws, sumOpts...)

	a.unsubscribe = []func(){
		b.Subscribe(constants.EventResetHard, a.onReset),
		b.Subscribe(constants.EventResetAll, a.onReset),
	}

	if feeder, ok := backend.(storage.ChangeFeed); ok && cfg.Feed {
		feedCtx, cancel := context.WithCancel(context.Background())
		a.cancelFeed = cancel
		b.Attach(feedCtx, feeder.Feed())
	}
	return a
}

// Hide flushes pending writes and tells the pages the session is no longer
// visible.
func (a *App) Hide() {
	a.Bus.Publish(constants.EventVisibility, false)
	a.Workspace.Flush()
}

// Show tells the pages the session is visible again. Percent-driven labor
// rows are re-derived against the current base first.
func (a *App) Show() {
	a.Adjustments.SyncBase()
	a.Additional.SyncBase()
	a.Bus.Publish(constants.EventVisibility, true)
}

// onReset returns every page to its blank state after a reset that cleared
// this scope. The resets themselves are not written back.
func (a *App) onReset(ev bus.Event) {
	scope, _ := ev.Detail.(string)
	keys := a.Workspace.Keys()
	if ev.Name == constants.EventResetAll && !keys.IsFast() {
		return
	}
	if scope != "" && scope != keys.Scope && ev.Name == constants.EventResetHard {
		return
	}

	a.Scheduler.BeginHydration()
	a.Grid.Reset()
	a.Adjustments.Reset()
	a.Additional.Reset()
	a.Dje.Reset()
	a.Scheduler.EndHydration()
	a.Scheduler.CancelPrefix(keys.Prefix)
	logger.Debug("Reset pages", "event", ev.Name, "scope", keys.Scope)
}

// Close flushes pending writes and stops the feed and engines.
func (a *App) Close() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	a.unsubscribe = nil
	if a.cancelFeed != nil {
		a.cancelFeed()
		a.Bus.Wait()
	}
	a.Summary.Close()
	a.Dje.Close()
	a.Grid.Close()
	a.Workspace.Close()
	a.Scheduler.Stop()
}
