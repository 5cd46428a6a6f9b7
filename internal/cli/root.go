package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/julianstephens/estimator/internal/api"
	"github.com/julianstephens/estimator/internal/app"
	"github.com/julianstephens/estimator/internal/boot"
	"github.com/julianstephens/estimator/internal/catalog"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/keyring"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/summary"
)

// SeedFileName is the workbook `catalog import` installs into the config
// directory. It is used when neither --api-url nor --catalog-seed is set.
const SeedFileName = "catalog.xlsx"

type Context struct {
	Store       storage.Backend
	ConfigDir   string
	EstimateID  string
	Session     string
	APIURL      string
	CatalogSeed string

	// Out receives command output. Nil means stdout.
	Out io.Writer

	client  *api.Client
	catalog catalog.Source
}

func (c *Context) Stdout() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}

// RequireEstimate fails for commands that only make sense on a saved
// estimate.
func (c *Context) RequireEstimate() error {
	if c.EstimateID == "" {
		return apperrors.ErrNoEstimate
	}
	return nil
}

// API returns the server client, or nil when no API URL is configured.
func (c *Context) API() *api.Client {
	if c.APIURL == "" {
		return nil
	}
	if c.client == nil {
		c.client = api.New(c.APIURL, keyring.ResolveAPIToken())
	}
	return c.client
}

// InstancesDir holds the lockfiles of running TUI sessions.
func (c *Context) InstancesDir() string {
	return filepath.Join(c.ConfigDir, "instances")
}

func (c *Context) seedPath() string {
	if c.CatalogSeed != "" {
		return c.CatalogSeed
	}
	path := filepath.Join(c.ConfigDir, SeedFileName)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Catalog returns the configured catalog behind a process-wide cache. The
// API wins over a seed workbook.
func (c *Context) Catalog() (catalog.Source, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	if client := c.API(); client != nil {
		c.catalog = catalog.NewCache(client)
		return c.catalog, nil
	}
	path := c.seedPath()
	if path == "" {
		return nil, apperrors.ErrCatalogUnavailable
	}
	wb, err := catalog.OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	c.catalog = catalog.NewCache(wb)
	return c.catalog, nil
}

// OpenOptions tune Open for the caller.
type OpenOptions struct {
	// Feed follows writes made by other processes.
	Feed   bool
	Notify func(summary.View)
}

// Open boots the session selected by the global flags. A missing catalog
// is logged and the pages run without choices.
func (c *Context) Open(ctx context.Context, opts OpenOptions) *app.App {
	src, err := c.Catalog()
	if err != nil {
		logger.Warn("Catalog unavailable", "error", err)
		src = catalog.Offline{}
	}
	var remote boot.Remote
	if client := c.API(); client != nil && c.EstimateID != "" {
		remote = client
	}
	return app.Open(ctx, c.Store, app.Config{
		EstimateID: c.EstimateID,
		Session:    c.Session,
		Catalog:    src,
		Remote:     remote,
		Feed:       opts.Feed,
		Notify:     opts.Notify,
	})
}
