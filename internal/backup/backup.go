// Package backup keeps timestamped copies of a file-backed estimator store
// so destructive commands can be undone.
package backup

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
)

const (
	// MaxBackups is how many copies are kept after rotation.
	MaxBackups = 10
	// DirName is the backup directory next to the store.
	DirName = "backups"

	stampLayout = "20060102-150405"
)

var (
	sqliteHeader = []byte("SQLite format 3\x00")
	reasonClean  = regexp.MustCompile(`[^a-z0-9]+`)
	// estimator-<stamp>[-reason][.n]<ext>
	namePattern = regexp.MustCompile(`^` + regexp.QuoteMeta(constants.AppName) + `-(\d{8}-\d{6})(?:-([a-z0-9]+(?:-[a-z0-9]+)*))?(?:\.(\d+))?(\.[a-z]+)$`)
)

// Info describes one backup file.
type Info struct {
	Path   string
	Taken  time.Time
	Reason string
	Size   int64
	seq    int
}

// Manager backs up and restores the store at one path.
type Manager struct {
	path string
	dir  string
	ext  string
	now  func() time.Time
}

func NewManager(storePath string) *Manager {
	ext := strings.ToLower(filepath.Ext(storePath))
	if ext == "" {
		ext = ".db"
	}
	return &Manager{
		path: storePath,
		dir:  filepath.Join(filepath.Dir(storePath), DirName),
		ext:  ext,
		now:  time.Now,
	}
}

func (m *Manager) Dir() string {
	return m.dir
}

// Create copies the store into the backup directory and rotates old copies.
// reason is folded into the file name.
func (m *Manager) Create(reason string) (string, error) {
	path, err := m.create(reason)
	if err != nil {
		return "", err
	}
	if err := m.rotate(); err != nil {
		logger.Warn("Failed to rotate backups", "dir", m.dir, "error", err)
	}
	return path, nil
}

func (m *Manager) create(reason string) (string, error) {
	if _, err := os.Stat(m.path); err != nil {
		return "", fmt.Errorf("store does not exist: %s", m.path)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	base := constants.AppName + "-" + m.now().Format(stampLayout)
	if r := strings.Trim(reasonClean.ReplaceAllString(strings.ToLower(reason), "-"), "-"); r != "" {
		base += "-" + r
	}
	dest := filepath.Join(m.dir, base+m.ext)
	for n := 1; fileExists(dest); n++ {
		if n > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		dest = filepath.Join(m.dir, base+"."+strconv.Itoa(n)+m.ext)
	}

	isDB, err := isSQLite(m.path)
	if err != nil {
		return "", err
	}
	if isDB {
		err = vacuumInto(m.path, dest)
	} else {
		err = copyFile(m.path, dest)
	}
	if err != nil {
		return "", fmt.Errorf("failed to back up store: %w", err)
	}
	logger.Debug("Created backup", "path", dest, "reason", reason)
	return dest, nil
}

// List returns the backups newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := namePattern.FindStringSubmatch(entry.Name())
		if match == nil || match[4] != m.ext {
			continue
		}
		taken, err := time.ParseInLocation(stampLayout, match[1], time.Local)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		seq, _ := strconv.Atoi(match[3])
		out = append(out, Info{
			Path:   filepath.Join(m.dir, entry.Name()),
			Taken:  taken,
			Reason: match[2],
			Size:   info.Size(),
			seq:    seq,
		})
	}

	slices.SortFunc(out, func(a, b Info) int {
		if c := b.Taken.Compare(a.Taken); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	return out, nil
}

func (m *Manager) rotate() error {
	list, err := m.List()
	if err != nil || len(list) <= MaxBackups {
		return err
	}
	for _, old := range list[MaxBackups:] {
		if err := os.Remove(old.Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", old.Path, err)
		}
	}
	return nil
}

// Restore replaces the store with the backup at path. The current store is
// backed up first and that copy is returned. The store must be closed.
func (m *Manager) Restore(path string) (string, error) {
	if !fileExists(path) {
		return "", fmt.Errorf("backup file does not exist: %s", path)
	}
	isDB, err := isSQLite(path)
	if err != nil {
		return "", err
	}
	switch {
	case isDB:
		err = verify(path)
	case m.ext == ".json":
		err = verifyJSON(path)
	}
	if err != nil {
		return "", fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	var current string
	if fileExists(m.path) {
		// not rotated so the copy being restored cannot be pruned
		if current, err = m.create("pre-restore"); err != nil {
			return "", fmt.Errorf("failed to back up current store before restore: %w", err)
		}
	}

	tmp := m.path + ".restore.tmp"
	if err := copyFile(path, tmp); err != nil {
		return "", fmt.Errorf("failed to copy backup file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logger.Warn("Failed to remove temporary file", "path", tmp, "error", rmErr)
		}
		return "", fmt.Errorf("failed to restore store: %w", err)
	}
	// stale WAL files would be replayed over the restored copy
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(m.path + suffix)
	}
	return current, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func isSQLite(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	head := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head, sqliteHeader), nil
}

func vacuumInto(src, dest string) error {
	db, err := sql.Open("sqlite", src+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count); err != nil {
		return fmt.Errorf("source database appears to be corrupted: %w", err)
	}
	if _, err := db.Exec("VACUUM INTO ?", dest); err != nil {
		db.Close()
		return copyFile(src, dest)
	}
	return nil
}

func verify(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	var count int
	return db.QueryRow("SELECT COUNT(*) FROM sqlite_master").Scan(&count)
}

func verifyJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", filepath.Base(path))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}
