package summary

import (
	"fmt"
	"sync"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/validation"
	"github.com/julianstephens/estimator/internal/workspace"
)

// View is everything the summary page shows.
type View struct {
	Totals  models.EstimateTotals
	Pyramid Pyramid
	Days    Days
}

// Adder names accepted by SetAdderPercent.
const (
	AdderMisc       = constants.SettingMiscPercent
	AdderSmallTools = constants.SettingSmallToolsPercent
	AdderLargeTools = constants.SettingLargeToolsPercent
	AdderWasteTheft = constants.SettingWasteTheftPercent
	AdderSalesTax   = constants.SettingSalesTaxPercent
)

// Aggregator keeps the summary view in step with the other engines. It
// reads every slice of the document and writes only the pricing controls.
type Aggregator struct {
	ws *workspace.Workspace

	mu     sync.Mutex
	view   View
	notify func(View)

	unsubscribe []func()
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithNotify registers fn to receive every recomputed view.
func WithNotify(fn func(View)) Option {
	return func(a *Aggregator) { a.notify = fn }
}

// New computes the initial view and subscribes to every event that can
// change it.
func New(ws *workspace.Workspace, opts ...Option) *Aggregator {
	a := &Aggregator{ws: ws}
	for _, opt := range opts {
		opt(a)
	}
	b := ws.Bus()
	a.unsubscribe = []func(){
		b.Subscribe(constants.EventTotalsChanged, a.onTotals),
		b.Subscribe(constants.EventDjeChanged, a.onRecompute),
		b.Subscribe(constants.EventStorage, a.onStorage),
		b.Subscribe(constants.EventVisibility, a.onVisibility),
		b.Subscribe(constants.EventResetAll, a.onRecompute),
		b.Subscribe(constants.EventResetHard, a.onRecompute),
	}
	a.normalizeOverhead()
	a.Recompute()
	return a
}

func (a *Aggregator) Close() {
	for _, u := range a.unsubscribe {
		u()
	}
	a.unsubscribe = nil
}

// View returns the last computed view.
func (a *Aggregator) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view
}

// Recompute rebuilds the view from the workspace.
func (a *Aggregator) Recompute() View {
	return a.apply(a.ws.Totals())
}

func (a *Aggregator) apply(t models.EstimateTotals) View {
	t.Recompute()
	v := View{
		Totals:  t,
		Pyramid: Compute(InputsFrom(t)),
		Days:    LaborDays(t.FinalHours),
	}
	a.mu.Lock()
	a.view = v
	notify := a.notify
	a.mu.Unlock()

	if notify != nil {
		notify(v)
	}
	return v
}

// normalizeOverhead rewrites a seeded overhead that is not an offered
// option back to the default.
func (a *Aggregator) normalizeOverhead() {
	doc := a.ws.Document()
	if doc.PricingSource == "" {
		return
	}
	if p := OverheadPercent(doc.Materials.OverheadPercent); float64(p) != doc.Materials.OverheadPercent {
		logger.Debug("Normalizing overhead percent", "from", doc.Materials.OverheadPercent, "to", p)
		a.ws.UpdateDocument(func(doc *models.EstimateDocument) {
			doc.Materials.OverheadPercent = float64(p)
		})
	}
}

func (a *Aggregator) onTotals(ev bus.Event) {
	if t, ok := ev.Detail.(models.EstimateTotals); ok {
		a.apply(t)
		return
	}
	a.Recompute()
}

func (a *Aggregator) onRecompute(bus.Event) {
	a.Recompute()
}

func (a *Aggregator) onStorage(ev bus.Event) {
	if !ev.Remote {
		return
	}
	if change, ok := ev.Detail.(bus.StorageChange); ok && a.ws.Keys().Owns(change.Key) {
		a.Recompute()
	}
}

// onVisibility re-syncs when the page becomes visible again.
func (a *Aggregator) onVisibility(ev bus.Event) {
	if visible, ok := ev.Detail.(bool); ok && !visible {
		return
	}
	a.Recompute()
}

func (a *Aggregator) updateMaterials(fn func(m *models.MaterialAdders, t *models.LaborTotals)) View {
	a.ws.UpdateDocument(func(doc *models.EstimateDocument) {
		fn(&doc.Materials, &doc.Totals)
	})
	return a.Recompute()
}

// SetMarginPercent stores the target margin. Margins without a markup entry
// are kept as entered and price at cost.
func (a *Aggregator) SetMarginPercent(p int) View {
	if !validation.MarginInTable(p) {
		logger.Warn("Margin has no markup entry", "margin", p)
	}
	return a.updateMaterials(func(m *models.MaterialAdders, _ *models.LaborTotals) {
		m.MarginPercent = float64(p)
	})
}

// SetOverheadPercent stores the overhead. Values that are not offered
// options fall back to the default.
func (a *Aggregator) SetOverheadPercent(p int) View {
	pct := OverheadPercent(float64(p))
	return a.updateMaterials(func(m *models.MaterialAdders, _ *models.LaborTotals) {
		m.OverheadPercent = float64(pct)
	})
}

// SetLaborRate parses a currency string and stores it as the hourly rate.
func (a *Aggregator) SetLaborRate(raw string) View {
	rate := validation.Money(raw)
	return a.updateMaterials(func(_ *models.MaterialAdders, t *models.LaborTotals) {
		t.LaborRate = rate
	})
}

// SetAdderPercent stores one of the material adder percentages.
func (a *Aggregator) SetAdderPercent(name string, p int) (View, error) {
	pct := float64(validation.Percent(p))
	var set func(m *models.MaterialAdders)
	switch name {
	case AdderMisc:
		set = func(m *models.MaterialAdders) { m.MiscPercent = pct }
	case AdderSmallTools:
		set = func(m *models.MaterialAdders) { m.SmallToolsPercent = pct }
	case AdderLargeTools:
		set = func(m *models.MaterialAdders) { m.LargeToolsPercent = pct }
	case AdderWasteTheft:
		set = func(m *models.MaterialAdders) { m.WasteTheftPercent = pct }
	case AdderSalesTax:
		set = func(m *models.MaterialAdders) { m.SalesTaxPercent = pct }
	default:
		return a.View(), fmt.Errorf("unknown adder %q", name)
	}
	return a.updateMaterials(func(m *models.MaterialAdders, _ *models.LaborTotals) { set(m) }), nil
}
