package sqlite

import (
	"fmt"
	"sort"

	"github.com/julianstephens/estimator/internal/models"
)

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

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	values := settings.ToMap()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := stmt.Exec(k, values[k]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) SessionSeen(sessionID string) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM session_flags WHERE session_id = ?", sessionID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) MarkSession(sessionID string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO session_flags (session_id, booted_at) VALUES (?, strftime('%s','now'))", sessionID)
	return err
}
