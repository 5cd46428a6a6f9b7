// Package instances keeps a lockfile per running estimator session so other
// processes editing the same scope can be detected.
package instances

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

const lockSuffix = ".lock"

// Info describes one live session.
type Info struct {
	PID   int
	Scope string
	ID    string
}

// Register writes a lockfile for the current process and returns a func
// that removes it.
func Register(dir, scope string) (func(), Info, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, Info{}, fmt.Errorf("create instances dir: %w", err)
	}
	info := Info{PID: getpidFunc(), Scope: scope, ID: uuid.NewString()}
	path := filepath.Join(dir, strconv.Itoa(info.PID)+lockSuffix)
	content := fmt.Sprintf("%d|%s|%s", info.PID, info.ID, info.Scope)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return nil, Info{}, fmt.Errorf("write lockfile: %w", err)
	}
	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove lockfile", "path", path, "error", err)
		}
	}, info, nil
}

func parseLockfile(content string) (Info, error) {
	parts := strings.SplitN(strings.TrimSpace(content), "|", 3)
	if len(parts) != 3 {
		return Info{}, errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return Info{}, errors.New("invalid process ID in lockfile")
	}
	if strings.TrimSpace(parts[1]) == "" {
		return Info{}, errors.New("instance id in lockfile is empty")
	}
	return Info{PID: pid, ID: parts[1], Scope: parts[2]}, nil
}

func alive(pid int) bool {
	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.AppName)
}

// List returns the live sessions registered in dir. Lockfiles of dead or
// foreign processes are removed.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read instances dir: %w", err)
	}

	var out []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), lockSuffix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		info, err := parseLockfile(string(content))
		if err != nil || !alive(info.PID) {
			logger.Debug("Removing stale lockfile", "path", path)
			_ = os.Remove(path)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Others returns the live sessions on scope other than the current process.
func Others(dir, scope string) ([]Info, error) {
	all, err := List(dir)
	if err != nil {
		return nil, err
	}
	self := getpidFunc()
	var out []Info
	for _, info := range all {
		if info.PID != self && info.Scope == scope {
			out = append(out, info)
		}
	}
	return out, nil
}
