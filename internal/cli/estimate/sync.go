package estimate

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/estimator/internal/api"
	"github.com/julianstephens/estimator/internal/cli"
)

var errNoAPI = errors.New("no API configured (set --api-url)")

func requireRemote(ctx *cli.Context) (*api.Client, error) {
	if err := ctx.RequireEstimate(); err != nil {
		return nil, err
	}
	client := ctx.API()
	if client == nil {
		return nil, errNoAPI
	}
	return client, nil
}

// SaveCmd uploads the estimate's grid, document, and summary.
type SaveCmd struct{}

func (c *SaveCmd) Run(ctx *cli.Context) error {
	client, err := requireRemote(ctx)
	if err != nil {
		return err
	}
	bg := context.Background()

	a := ctx.Open(bg, cli.OpenOptions{})
	defer a.Close()

	payload := a.Sequencer.BuildPayload(a.Summary.View().Export())
	if err := client.SavePayload(bg, ctx.EstimateID, payload); err != nil {
		return fmt.Errorf("failed to save estimate %s: %w", ctx.EstimateID, err)
	}
	fmt.Fprintf(ctx.Stdout(), "Saved estimate %s (%d grid rows).\n", ctx.EstimateID, len(payload.Grid.Rows))
	return nil
}

// PullCmd replaces the local copy of the estimate with the server's last
// saved payload.
type PullCmd struct{}

func (c *PullCmd) Run(ctx *cli.Context) error {
	client, err := requireRemote(ctx)
	if err != nil {
		return err
	}
	bg := context.Background()

	payload, ok, err := client.LoadPayload(bg, ctx.EstimateID)
	if err != nil {
		return fmt.Errorf("failed to load estimate %s: %w", ctx.EstimateID, err)
	}
	if !ok {
		fmt.Fprintf(ctx.Stdout(), "Server has no saved payload for estimate %s.\n", ctx.EstimateID)
		return nil
	}

	saved, err := ctx.Snapshot("pre-pull")
	if err != nil {
		return fmt.Errorf("failed to back up before pull: %w", err)
	}
	if saved != "" {
		fmt.Fprintf(ctx.Stdout(), "Backed up storage to: %s\n", saved)
	}

	a := ctx.Open(bg, cli.OpenOptions{})
	defer a.Close()

	a.Sequencer.ApplyPayload(payload)
	fmt.Fprintf(ctx.Stdout(), "Pulled estimate %s (%d grid rows).\n", ctx.EstimateID, len(payload.Grid.Rows))
	return nil
}
