package postgres

import (
	"context"
	"fmt"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
)

const (
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPing         = 90 * time.Second
)

type listenFeed struct {
	store *Store
}

// Feed returns a LISTEN/NOTIFY feed of writes made by other instances.
func (s *Store) Feed() bus.Feed {
	return &listenFeed{store: s}
}

func (f *listenFeed) Run(ctx context.Context, deliver func(bus.Event)) error {
	listener := pq.NewListener(f.store.connStr, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("Postgres listener event", "event", ev, "error", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(constants.PgNotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", constants.PgNotifyChannel, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case n := <-listener.Notify:
			// nil after a reconnect; changes made while disconnected are lost
			if n == nil {
				logger.Debug("Postgres listener reconnected")
				continue
			}
			origin, op, key, ok := parsePayload(n.Extra)
			if !ok || origin == f.store.origin {
				continue
			}
			deliver(bus.Event{
				Name:   constants.EventStorage,
				Detail: bus.StorageChange{Key: key, Deleted: op == "delete"},
			})

		case <-time.After(listenerPing):
			if err := listener.Ping(); err != nil {
				logger.Warn("Postgres listener ping failed", "error", err)
			}
		}
	}
}
