package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/estimator/internal/constants"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/models"
)

// notifyPayload is "<origin>|<op>|<key>". Keys never contain '|' in the
// estimator namespace, but everything after the second separator is taken
// as the key regardless.
func notifyPayload(origin, op, key string) string {
	return origin + "|" + op + "|" + key
}

func parsePayload(payload string) (origin, op, key string, ok bool) {
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, apperrors.ErrNotInitialized
	}
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Set(key string, value []byte) error {
	return s.write(key, "set", func(tx *sql.Tx, now int64) (bool, error) {
		_, err := tx.Exec(`
			INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`, key, value, now)
		return true, err
	})
}

func (s *Store) Delete(key string) error {
	return s.write(key, "delete", func(tx *sql.Tx, now int64) (bool, error) {
		res, err := tx.Exec("DELETE FROM kv WHERE key = $1", key)
		if err != nil {
			return false, err
		}
		n, _ := res.RowsAffected()
		return n > 0, nil
	})
}

// write runs mutate and, when it changed something, records the change and
// notifies listeners in the same transaction.
func (s *Store) write(key, op string, mutate func(*sql.Tx, int64) (bool, error)) error {
	if s.db == nil {
		return apperrors.ErrNotInitialized
	}
	now := time.Now().UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	changed, err := mutate(tx, now)
	if err != nil {
		return err
	}
	if changed {
		if _, err := tx.Exec("INSERT INTO kv_changes (key, op, origin, changed_at) VALUES ($1, $2, $3, $4)", key, op, s.origin, now); err != nil {
			return fmt.Errorf("failed to record change: %w", err)
		}
		if _, err := tx.Exec("SELECT pg_notify($1, $2)", constants.PgNotifyChannel, notifyPayload(s.origin, op, key)); err != nil {
			return fmt.Errorf("failed to notify: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) Keys(prefix string) ([]string, error) {
	if s.db == nil {
		return nil, apperrors.ErrNotInitialized
	}
	// left() counts characters, not bytes
	rows, err := s.db.Query("SELECT key FROM kv WHERE left(key, length($1)) = $1 ORDER BY key", prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) GetSettings() (models.Settings, error) {
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return models.Settings{}, err
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, err
		}
		data[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, err
	}
	if len(data) == 0 {
		return models.Settings{}, fmt.Errorf("settings not found")
	}

	return models.MapToSettings(data)
}

func (s *Store) SaveSettings(settings models.Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	values := settings.ToMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, k, values[k]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) SessionSeen(sessionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS (SELECT 1 FROM session_flags WHERE session_id = $1)", sessionID).Scan(&exists)
	return exists, err
}

func (s *Store) MarkSession(sessionID string) error {
	_, err := s.db.Exec(
		"INSERT INTO session_flags (session_id, booted_at) VALUES ($1, $2) ON CONFLICT (session_id) DO NOTHING",
		sessionID, time.Now().Unix())
	return err
}
