package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/estimator/internal/app"
	"github.com/julianstephens/estimator/internal/bus"
)

// Run drives the session until the user quits. Writes by other processes
// arrive through the bus and trigger a repaint.
func Run(ctx context.Context, a *app.App, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, a, opts), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := a.Bus.SubscribeAll(func(ev bus.Event) {
		if ev.Remote {
			p.Send(refreshMsg{})
		}
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
