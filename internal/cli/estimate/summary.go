package estimate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	tuisummary "github.com/julianstephens/estimator/internal/tui/components/summary"
)

type SummaryCmd struct {
	JSON bool `help:"Print the controls and cells as JSON."`
}

func (c *SummaryCmd) Run(ctx *cli.Context) error {
	a := ctx.Open(context.Background(), cli.OpenOptions{})
	defer a.Close()

	view := a.Summary.View()
	out := ctx.Stdout()

	if c.JSON {
		data, err := json.MarshalIndent(view.Export(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	scope := "unsaved estimate"
	if ctx.EstimateID != "" {
		scope = "estimate " + ctx.EstimateID
	}
	fmt.Fprintf(out, "Summary for %s (%s)\n", scope, a.Boot.Source)

	m := tuisummary.New(0, 0)
	m.SetView(view)
	fmt.Fprint(out, m.Content())
	return nil
}
