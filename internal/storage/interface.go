package storage

import (
	"errors"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/models"
)

var (
	ErrNotLoaded = errors.New("storage not loaded")
	errQuota     = errors.New("storage quota exceeded")
)

// Backend is a byte-oriented key/value store for the estimator keyspace.
type Backend interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Keys
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)

	// Utils
	Path() string
}

// SettingsStore is implemented by backends that persist app-level pricing
// defaults.
type SettingsStore interface {
	GetSettings() (models.Settings, error)
	SaveSettings(models.Settings) error
}

// SessionStore records which sessions have already booted.
type SessionStore interface {
	SessionSeen(sessionID string) (bool, error)
	MarkSession(sessionID string) error
}

// ChangeFeed is implemented by backends shared between processes. The feed
// reports writes made by other instances as storage events.
type ChangeFeed interface {
	Feed() bus.Feed
}
