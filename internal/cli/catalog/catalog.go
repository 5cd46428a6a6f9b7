package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/cli"
)

var statOrder = []string{
	catalog.SheetMaterials,
	catalog.SheetAssemblies,
	catalog.SheetAssemblyItems,
	catalog.SheetDje,
}

// ImportCmd validates a seed workbook and installs it as the offline
// catalog.
type ImportCmd struct {
	Path string `arg:"" help:"Seed workbook (.xlsx) to install." type:"existingfile"`
}

func (c *ImportCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()

	wb, err := catalog.OpenWorkbook(c.Path)
	if err != nil {
		return err
	}
	stats := wb.Stats()
	fmt.Fprintf(out, "Read %s:\n", c.Path)
	for _, sheet := range statOrder {
		fmt.Fprintf(out, "  %-14s %d row(s)\n", sheet, stats[sheet])
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.Path, err)
	}
	if err := os.MkdirAll(ctx.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	dest := filepath.Join(ctx.ConfigDir, cli.SeedFileName)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to install catalog: %w", err)
	}
	fmt.Fprintf(out, "Installed catalog at %s (%s)\n", dest, humanize.Bytes(uint64(len(data))))
	return nil
}

// TemplateCmd writes an empty seed workbook with the expected headers.
type TemplateCmd struct {
	Path string `arg:"" help:"Where to write the template." type:"path" default:"catalog-template.xlsx"`
}

func (c *TemplateCmd) Run(ctx *cli.Context) error {
	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", c.Path, err)
	}
	if err := catalog.WriteTemplate(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Path, err)
	}
	fmt.Fprintf(ctx.Stdout(), "Wrote catalog template to %s\n", c.Path)
	return nil
}
