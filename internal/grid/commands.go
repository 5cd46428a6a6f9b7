package grid

import (
	"fmt"

	"github.com/julianstephens/estimator/internal/logger"
)

// Command is a row mutation issued by a grid control.
type Command interface {
	row() int
}

type SetNotes struct {
	Index int
	Text  string
}

type SetMaterialType struct {
	Index int
	Type  string
}

type SetDescription struct {
	Index int
	ID    string
}

type SetQuantity struct {
	Index int
	Raw   string
}

type SetLaborFactor struct {
	Index  int
	Factor float64
}

// AppendRow adds one blank row at the end.
type AppendRow struct{}

func (c SetNotes) row() int        { return c.Index }
func (c SetMaterialType) row() int { return c.Index }
func (c SetDescription) row() int  { return c.Index }
func (c SetQuantity) row() int     { return c.Index }
func (c SetLaborFactor) row() int  { return c.Index }
func (AppendRow) row() int         { return -1 }

// Dispatch routes cmd to its handler. The returned Fetch is non-nil when
// the command started a catalog lookup.
func (e *Engine) Dispatch(cmd Command) Fetch {
	if cmd == nil {
		return nil
	}
	switch c := cmd.(type) {
	case SetNotes:
		e.OnNotesInput(c.Index, c.Text)
	case SetMaterialType:
		return e.OnMaterialTypeChange(c.Index, c.Type)
	case SetDescription:
		return e.OnDescriptionChange(c.Index, c.ID)
	case SetQuantity:
		e.OnQuantityInput(c.Index, c.Raw)
	case SetLaborFactor:
		e.OnLaborAdjustmentChange(c.Index, c.Factor)
	case AppendRow:
		e.AppendBlankRow()
	default:
		logger.Warn("Ignoring unknown grid command", "command", fmt.Sprintf("%T", cmd), "row", cmd.row())
	}
	return nil
}
