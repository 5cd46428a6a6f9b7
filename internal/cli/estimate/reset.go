package estimate

import (
	"context"
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/storage"
)

type ResetCmd struct {
	Hard   bool `help:"Clear the selected estimate, the unsaved estimate, and legacy keys."`
	Legacy bool `help:"Only remove keys written by older versions."`
}

func (c *ResetCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()

	if c.Legacy {
		store := storage.NewStore(ctx.Store, nil)
		removed := 0
		for _, key := range namespace.LegacyKeys {
			if store.Has(key) {
				removed++
			}
		}
		store.RemoveLegacy()
		fmt.Fprintf(out, "Removed %d legacy key(s).\n", removed)
		return nil
	}

	if c.Hard {
		saved, err := ctx.Snapshot("pre-reset")
		if err != nil {
			return fmt.Errorf("failed to back up before reset: %w", err)
		}
		if saved != "" {
			fmt.Fprintf(out, "Backed up storage to: %s\n", saved)
		}
	}

	a := ctx.Open(context.Background(), cli.OpenOptions{})
	defer a.Close()

	if c.Hard {
		removed := a.Sequencer.HardReset()
		fmt.Fprintf(out, "Hard reset removed %d key(s).\n", removed)
		return nil
	}
	removed := a.Sequencer.ResetAll()
	fmt.Fprintf(out, "Cleared the unsaved estimate (%d key(s)).\n", removed)
	return nil
}
