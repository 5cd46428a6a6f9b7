package estimate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/summary"
)

type ExportCSVCmd struct {
	Output string `help:"File to write. Defaults to stdout." short:"o" type:"path"`
}

func (c *ExportCSVCmd) Run(ctx *cli.Context) error {
	a := ctx.Open(context.Background(), cli.OpenOptions{})
	defer a.Close()

	var w io.Writer = ctx.Stdout()
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.Output, err)
		}
		defer f.Close()
		w = f
	}

	if err := summary.WriteCSV(w, *a.Summary.View().Export()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	if c.Output != "" {
		fmt.Fprintf(ctx.Stdout(), "Summary exported to %s\n", c.Output)
	}
	return nil
}
