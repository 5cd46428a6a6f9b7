package storage

import (
	"encoding/json"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/namespace"
)

// Store is the JSON view of a Backend used by the engines. None of its
// operations fail from the caller's point of view: errors are logged and the
// operation is dropped, since the engines keep the canonical copy in memory.
type Store struct {
	backend Backend
	bus     *bus.Bus
}

// NewStore wraps backend. A nil bus disables change notifications.
func NewStore(backend Backend, b *bus.Bus) *Store {
	return &Store{backend: backend, bus: b}
}

// Backend returns the wrapped backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// ReadJSON decodes the value at key into v. It reports false when the key is
// missing, unreadable, or does not decode.
func (s *Store) ReadJSON(key string, v any) bool {
	data, ok, err := s.backend.Get(key)
	if err != nil {
		logger.Warn("Storage read failed", "key", key, "error", err)
		return false
	}
	if !ok || len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("Discarding unreadable stored value", "key", key, "error", err)
		return false
	}
	return true
}

// WriteJSON encodes v and stores it at key.
func (s *Store) WriteJSON(key string, v any) {
	if !namespace.IsWritable(key) {
		logger.Error("Refusing write outside the estimator namespace", "key", key)
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("Storage encode failed", "key", key, "error", err)
		return
	}
	if err := s.backend.Set(key, data); err != nil {
		logger.Warn("Storage write dropped", "key", key, "error", err)
		return
	}
	s.notify(key, false)
}

// Remove deletes key.
func (s *Store) Remove(key string) {
	if err := s.backend.Delete(key); err != nil {
		logger.Warn("Storage remove failed", "key", key, "error", err)
		return
	}
	s.notify(key, true)
}

// RemoveByPrefix deletes every key starting with prefix and returns how many
// were removed.
func (s *Store) RemoveByPrefix(prefix string) int {
	keys, err := s.backend.Keys(prefix)
	if err != nil {
		logger.Warn("Storage prefix scan failed", "prefix", prefix, "error", err)
		return 0
	}
	removed := 0
	for _, key := range keys {
		if err := s.backend.Delete(key); err != nil {
			logger.Warn("Storage remove failed", "key", key, "error", err)
			continue
		}
		removed++
		s.notify(key, true)
	}
	return removed
}

// Has reports whether a non-empty value exists at key.
func (s *Store) Has(key string) bool {
	data, ok, err := s.backend.Get(key)
	return err == nil && ok && len(data) > 0
}

func (s *Store) notify(key string, deleted bool) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(constants.EventStorage, bus.StorageChange{Key: key, Deleted: deleted})
}
