package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/models"
)

type jsonFile struct {
	Version  int               `json:"version"`
	Settings models.Settings   `json:"settings"`
	KV       map[string]string `json:"kv"`
	Sessions map[string]int64  `json:"sessions,omitempty"`
}

// JSONStore keeps the whole keyspace in a single JSON document. Every write
// rewrites the file through a temp file and rename.
type JSONStore struct {
	mu    sync.Mutex
	path  string
	store *jsonFile
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.store = &jsonFile{
		Version:  1,
		Settings: models.DefaultSettings(),
		KV:       make(map[string]string),
		Sessions: make(map[string]int64),
	}

	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.ErrNotInitialized
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	s.store = &jsonFile{}
	if err := json.Unmarshal(data, s.store); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}

	if s.store.KV == nil {
		s.store.KV = make(map[string]string)
	}
	if s.store.Sessions == nil {
		s.store.Sessions = make(map[string]int64)
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace storage: %w", err)
	}

	return nil
}

func (s *JSONStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, false, ErrNotLoaded
	}
	v, ok := s.store.KV[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (s *JSONStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNotLoaded
	}
	prev, had := s.store.KV[key]
	s.store.KV[key] = string(value)
	if err := s.save(); err != nil {
		if had {
			s.store.KV[key] = prev
		} else {
			delete(s.store.KV, key)
		}
		return err
	}
	return nil
}

func (s *JSONStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNotLoaded
	}
	if _, ok := s.store.KV[key]; !ok {
		return nil
	}
	delete(s.store.KV, key)
	return s.save()
}

func (s *JSONStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil, ErrNotLoaded
	}
	var keys []string
	for k := range s.store.KV {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *JSONStore) GetSettings() (models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return models.Settings{}, ErrNotLoaded
	}
	return s.store.Settings, nil
}

func (s *JSONStore) SaveSettings(settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNotLoaded
	}
	s.store.Settings = settings
	return s.save()
}

func (s *JSONStore) SessionSeen(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return false, ErrNotLoaded
	}
	_, ok := s.store.Sessions[sessionID]
	return ok, nil
}

func (s *JSONStore) MarkSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrNotLoaded
	}
	s.store.Sessions[sessionID] = time.Now().Unix()
	return s.save()
}
