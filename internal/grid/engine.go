// Package grid is the material and labor grid: row inputs, derived
// extensions, header totals, autogrow, and description lookups.
package grid

import (
	"context"
	"strings"
	"sync"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/validation"
	"github.com/julianstephens/estimator/internal/workspace"
)

// Fetch is deferred catalog work. Calling it performs the lookup and
// returns apply, which installs the result on the UI goroutine. apply is a
// no-op when the row's selection changed while the lookup was in flight.
type Fetch func(ctx context.Context) (apply func())

// Engine owns the grid rows of one workspace.
type Engine struct {
	ws  *workspace.Workspace
	src catalog.Source

	mu       sync.Mutex
	rows     []models.GridRow
	options  []Options
	expanded map[int]bool
	focus    int

	unsubscribe func()
}

// New creates a grid of blank rows and subscribes it to remote grid changes.
func New(ws *workspace.Workspace, src catalog.Source) *Engine {
	e := &Engine{
		ws:       ws,
		src:      src,
		expanded: make(map[int]bool),
		focus:    -1,
	}
	e.resetRows()
	e.unsubscribe = ws.Bus().Subscribe(constants.EventStorage, e.onStorage)
	return e
}

// Close detaches the engine from the bus.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

func (e *Engine) resetRows() {
	e.rows = make([]models.GridRow, constants.MinGridRows)
	for i := range e.rows {
		e.rows[i] = models.NewGridRow()
	}
	e.options = make([]Options, len(e.rows))
	e.expanded = make(map[int]bool)
	e.focus = -1
}

// Hydrate restores the rows persisted for the workspace scope.
func (e *Engine) Hydrate() {
	rows, ok := e.ws.Grid()
	if !ok {
		return
	}
	e.Restore(rows)
}

// Restore replaces the rows. The grid keeps at least the configured minimum
// and never fewer rows than were restored. Nothing is written.
func (e *Engine) Restore(rows []models.GridRow) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(rows)
	if n < constants.MinGridRows {
		n = constants.MinGridRows
	}
	e.rows = make([]models.GridRow, n)
	for i := range e.rows {
		if i < len(rows) {
			e.rows[i] = rows[i]
		} else {
			e.rows[i] = models.NewGridRow()
		}
		e.rows[i].Recompute()
	}
	e.options = make([]Options, n)
	e.expanded = make(map[int]bool)
}

// Reset trims autogrown rows, blanks the rest, re-arms autogrow, and
// forgets the stored grid and totals.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetRows()
	e.mu.Unlock()

	e.ws.DropGrid()
	e.ws.Bus().Publish(constants.EventTotalsChanged, e.ws.Totals())
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

// Rows returns a copy of every row.
func (e *Engine) Rows() []models.GridRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.GridRow(nil), e.rows...)
}

func (e *Engine) Row(i int) (models.GridRow, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid(i) {
		return models.GridRow{}, false
	}
	return e.rows[i], true
}

// Options returns the description choices of row i.
func (e *Engine) Options(i int) Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid(i) {
		return Options{}
	}
	return e.options[i]
}

// Totals are the header totals across all rows.
func (e *Engine) Totals() models.GridTotals {
	e.mu.Lock()
	defer e.mu.Unlock()
	material, labor := models.SumGrid(e.rows)
	return models.GridTotals{MaterialCost: material, LaborHours: labor}
}

// TakeFocus returns the row whose quantity field should receive focus
// after a description was resolved, and clears the request.
func (e *Engine) TakeFocus() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.focus
	e.focus = -1
	return i, i >= 0
}

// MaterialTypes lists the material type choices.
func (e *Engine) MaterialTypes(ctx context.Context) ([]string, error) {
	return e.src.MaterialTypes(ctx)
}

func (e *Engine) valid(i int) bool {
	return i >= 0 && i < len(e.rows)
}

// AppendBlankRow appends exactly one blank row and returns its index.
func (e *Engine) AppendBlankRow() int {
	e.mu.Lock()
	i := e.appendLocked()
	rows := e.copyLocked()
	e.mu.Unlock()

	e.ws.ScheduleGrid(rows)
	return i
}

func (e *Engine) appendLocked() int {
	e.rows = append(e.rows, models.NewGridRow())
	e.options = append(e.options, Options{})
	return len(e.rows) - 1
}

// autogrowLocked appends one row when i is the last row and has not grown
// the grid before.
func (e *Engine) autogrowLocked(i int) {
	if i != len(e.rows)-1 || e.expanded[i] {
		return
	}
	e.expanded[i] = true
	e.appendLocked()
}

func (e *Engine) copyLocked() []models.GridRow {
	return append([]models.GridRow(nil), e.rows...)
}

// commit persists rows and header totals and notifies listeners. Callers
// must not hold e.mu.
func (e *Engine) commit(rows []models.GridRow) {
	material, labor := models.SumGrid(rows)
	e.ws.SetGridTotals(models.GridTotals{MaterialCost: material, LaborHours: labor})
	e.ws.ScheduleGrid(rows)
	e.ws.Bus().Publish(constants.EventTotalsChanged, e.ws.Totals())
}

// OnNotesInput stores the notes text. Non-blank text in the last row grows
// the grid.
func (e *Engine) OnNotesInput(i int, text string) {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return
	}
	e.rows[i].Notes = text
	if strings.TrimSpace(text) != "" {
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.ws.ScheduleGrid(rows)
}

// OnQuantityInput sanitises raw to a whole count, recomputes the row, and
// returns the cleaned text for the control.
func (e *Engine) OnQuantityInput(i int, raw string) string {
	clean, qty := validation.Count(raw)

	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return clean
	}
	e.rows[i].Quantity = qty
	e.rows[i].Recompute()
	if clean != "" {
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
	return clean
}

// OnLaborAdjustmentChange sets the row's labor factor. Only the labor
// extension changes.
func (e *Engine) OnLaborAdjustmentChange(i int, factor float64) {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return
	}
	e.rows[i].LaborAdjustmentFactor = factor
	e.rows[i].Recompute()
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
}

// OnMaterialTypeChange selects a material type. Clearing the type clears
// the whole row except notes; choosing one starts loading its descriptions.
// Reselecting the current type only reloads after a failed load.
func (e *Engine) OnMaterialTypeChange(i int, typ string) Fetch {
	typ = strings.TrimSpace(typ)

	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return nil
	}
	row := &e.rows[i]
	if typ == row.MaterialType && typ != "" && e.options[i].State != OptionsError {
		e.mu.Unlock()
		return nil
	}

	if typ == "" {
		row.ClearType()
		e.options[i] = Options{}
		rows := e.copyLocked()
		e.mu.Unlock()
		e.commit(rows)
		return nil
	}

	row.MaterialType = typ
	row.DescriptionID = ""
	row.DescriptionLabel = ""
	row.UnitCost = 0
	row.LaborUnitHours = 0
	row.Unit = ""
	row.Recompute()
	e.options[i] = Options{State: OptionsLoading}
	e.autogrowLocked(i)
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
	return e.fetchDescriptions(i, typ)
}

func isAssemblies(typ string) bool {
	return strings.EqualFold(typ, constants.AssembliesType)
}

func (e *Engine) fetchDescriptions(i int, typ string) Fetch {
	return func(ctx context.Context) func() {
		var (
			items []models.MaterialOption
			err   error
		)
		if isAssemblies(typ) {
			var list []models.Assembly
			list, err = e.src.Assemblies(ctx)
			items = assemblyOptions(list)
		} else {
			items, err = e.src.MaterialDescriptions(ctx, typ)
		}
		if err != nil {
			logger.Warn("Failed to load descriptions", "type", typ, "row", i, "error", err)
		}

		return func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if !e.valid(i) || e.rows[i].MaterialType != typ {
				logger.Debug("Dropping stale description options", "type", typ, "row", i)
				return
			}
			if err != nil {
				e.options[i] = Options{State: OptionsError}
				return
			}
			e.options[i] = Options{State: OptionsReady, Items: items}
		}
	}
}

// OnDescriptionChange selects a description. Clearing it clears quantity
// and every derived cell. Assemblies resolve their cost through a rollup
// lookup, returned as a Fetch; other types resolve from the loaded options.
func (e *Engine) OnDescriptionChange(i int, id string) Fetch {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return nil
	}
	row := &e.rows[i]

	if id == "" {
		row.ClearDescription()
		rows := e.copyLocked()
		e.mu.Unlock()
		e.commit(rows)
		return nil
	}

	opt, found := e.options[i].Find(id)
	if !found {
		logger.Warn("Description not among loaded options", "row", i, "id", id)
	}
	row.DescriptionID = id
	row.DescriptionLabel = opt.Description
	row.Unit = opt.Unit

	if isAssemblies(row.MaterialType) {
		row.UnitCost = 0
		row.LaborUnitHours = 0
		row.Unit = constants.PerEachUnit
		row.Recompute()
		typ := row.MaterialType
		rows := e.copyLocked()
		e.mu.Unlock()

		e.commit(rows)
		return e.fetchRollup(i, typ, id)
	}

	row.UnitCost = opt.UnitPrice
	row.LaborUnitHours = opt.LaborUnitHours
	row.Recompute()
	e.focus = i
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
	return nil
}

// fetchRollup resolves an assembly's per-each cost. A failed lookup leaves
// the row at zero cost and still usable.
func (e *Engine) fetchRollup(i int, typ, id string) Fetch {
	return func(ctx context.Context) func() {
		rollup, err := e.src.AssemblyRollup(ctx, id)
		if err != nil {
			logger.Warn("Failed to load assembly rollup", "assembly", id, "row", i, "error", err)
		}

		return func() {
			e.mu.Lock()
			if !e.valid(i) || e.rows[i].MaterialType != typ || e.rows[i].DescriptionID != id {
				e.mu.Unlock()
				logger.Debug("Dropping stale assembly rollup", "assembly", id, "row", i)
				return
			}
			e.focus = i
			if err != nil {
				e.mu.Unlock()
				return
			}
			e.rows[i].UnitCost = rollup.MaterialCostTotal
			e.rows[i].LaborUnitHours = rollup.LaborHoursTotal
			e.rows[i].Recompute()
			rows := e.copyLocked()
			e.mu.Unlock()

			e.commit(rows)
		}
	}
}

// onStorage restores rows another instance wrote for this scope.
func (e *Engine) onStorage(ev bus.Event) {
	if !ev.Remote {
		return
	}
	change, ok := ev.Detail.(bus.StorageChange)
	if !ok || change.Key != e.ws.Keys().GridKey {
		return
	}
	e.ws.Scheduler().Cancel(change.Key)
	if change.Deleted {
		e.mu.Lock()
		e.resetRows()
		e.mu.Unlock()
		return
	}
	e.Hydrate()
}
