package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/instances"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	keys := namespace.Resolve(ctx.EstimateID)

	release, _, err := instances.Register(ctx.InstancesDir(), keys.Scope)
	if err != nil {
		logger.Warn("Failed to register session", "error", err)
	} else {
		defer release()
	}

	var warning string
	if others, err := instances.Others(ctx.InstancesDir(), keys.Scope); err == nil && len(others) > 0 {
		warning = fmt.Sprintf("%d other session(s) are editing this estimate; the last save wins", len(others))
	}

	a := ctx.Open(context.Background(), cli.OpenOptions{Feed: true})
	defer a.Close()

	title := "unsaved estimate"
	if id := keys.EstimateID(); id != "" {
		title = "estimate " + id
	}
	return tui.Run(context.Background(), a, tui.Options{Title: title, Warning: warning})
}
