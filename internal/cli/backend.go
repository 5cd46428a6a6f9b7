package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/estimator/internal/backup"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/keyring"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/storage/postgres"
	"github.com/julianstephens/estimator/internal/storage/sqlite"
)

// ErrEmbeddedCredentials is returned for a --config DSN that carries a
// password.
var ErrEmbeddedCredentials = errors.New("PostgreSQL connection strings with embedded credentials are not allowed on the command line")

// IsPostgres reports whether config is a PostgreSQL connection string.
func IsPostgres(config string) bool {
	return strings.HasPrefix(config, "postgres://") || strings.HasPrefix(config, "postgresql://")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ResolveConfig picks the storage location. An explicit DSN or path wins;
// with the default path, ESTIMATOR_DB_CONNECTION and then a keyring entry
// select PostgreSQL.
func ResolveConfig(config string) string {
	if config != constants.DefaultConfigPath {
		return config
	}
	if conn := os.Getenv(constants.EnvDBConnection); conn != "" {
		return conn
	}
	if conn, err := keyring.GetConnectionString(); err == nil {
		return conn
	}
	return config
}

// OpenBackend returns the backend for config without loading it. trusted
// allows a password in a DSN that came from the keyring or environment.
func OpenBackend(config string, trusted bool) (storage.Backend, error) {
	switch {
	case config == ":memory:":
		return storage.NewMemoryStore(), nil
	case IsPostgres(config):
		if !trusted && postgres.HasEmbeddedCredentials(config) {
			return nil, ErrEmbeddedCredentials
		}
		return postgres.New(config), nil
	case strings.HasSuffix(strings.ToLower(config), ".json"):
		return storage.NewJSONStore(ExpandHome(config)), nil
	default:
		return sqlite.NewStore(ExpandHome(config)), nil
	}
}

// ConfigDir is where logs, lockfiles, and the installed catalog seed live.
func ConfigDir(config string) string {
	if config != ":memory:" && !IsPostgres(config) {
		return filepath.Dir(ExpandHome(config))
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Dir(ExpandHome(constants.DefaultConfigPath))
	}
	return filepath.Join(dir, constants.AppName)
}

// IsFileBacked reports whether the backend keeps its data in a local file
// that init --force may delete.
func IsFileBacked(b storage.Backend) bool {
	switch b.(type) {
	case *sqlite.Store, *storage.JSONStore:
		return true
	}
	return false
}

// DescribeBackend names the backend kind for diagnostics.
func DescribeBackend(b storage.Backend) string {
	switch b.(type) {
	case *sqlite.Store:
		return "sqlite"
	case *postgres.Store:
		return "postgres"
	case *storage.JSONStore:
		return "json"
	case *storage.MemoryStore:
		return "memory"
	default:
		return fmt.Sprintf("%T", b)
	}
}

// Snapshot backs up a file-backed store before a destructive command. It
// returns "" when there is nothing to back up.
func (c *Context) Snapshot(reason string) (string, error) {
	if !IsFileBacked(c.Store) {
		return "", nil
	}
	if _, err := os.Stat(c.Store.Path()); os.IsNotExist(err) {
		return "", nil
	}
	return backup.NewManager(c.Store.Path()).Create(reason)
}
