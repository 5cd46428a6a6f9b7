package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
)

// Feed reports kv writes made by other processes sharing the database file.
// It wakes on filesystem activity in the database directory and also polls,
// since WAL checkpoints do not always produce a write event.
type Feed struct {
	store    *Store
	interval time.Duration
	cursor   int64
}

// Feed returns a change feed for this database.
func (s *Store) Feed() bus.Feed {
	return s.NewFeed(constants.FeedPollInterval)
}

// NewFeed returns a feed polling at interval.
func (s *Store) NewFeed(interval time.Duration) *Feed {
	return &Feed{store: s, interval: interval}
}

func (f *Feed) Run(ctx context.Context, deliver func(bus.Event)) error {
	if f.store.db == nil {
		return fmt.Errorf("change feed: database not open")
	}
	if err := f.store.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM kv_changes").Scan(&f.cursor); err != nil {
		return fmt.Errorf("change feed: reading cursor: %w", err)
	}

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Change feed falling back to polling", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(f.store.path)); err != nil {
			logger.Warn("Change feed could not watch database directory", "error", err)
		} else {
			events = watcher.Events
		}
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	base := filepath.Base(f.store.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.drain(ctx, deliver)

		case <-ticker.C:
			f.drain(ctx, deliver)
		}
	}
}

func (f *Feed) drain(ctx context.Context, deliver func(bus.Event)) {
	rows, err := f.store.db.QueryContext(ctx,
		"SELECT id, key, op, origin FROM kv_changes WHERE id > ? ORDER BY id", f.cursor)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Change feed query failed", "error", err)
		}
		return
	}

	var changes []bus.StorageChange
	for rows.Next() {
		var (
			id          int64
			key, op, by string
		)
		if err := rows.Scan(&id, &key, &op, &by); err != nil {
			logger.Warn("Change feed scan failed", "error", err)
			break
		}
		f.cursor = id
		if by == f.store.origin {
			continue
		}
		changes = append(changes, bus.StorageChange{Key: key, Deleted: op == "delete"})
	}
	rows.Close()

	for _, c := range changes {
		deliver(bus.Event{Name: constants.EventStorage, Detail: c})
	}
}
