package grid

import (
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
)

// OptionState is the load state of a row's description choices.
type OptionState int

const (
	OptionsIdle OptionState = iota
	OptionsLoading
	OptionsReady
	OptionsError
)

func (s OptionState) String() string {
	switch s {
	case OptionsLoading:
		return "loading"
	case OptionsReady:
		return "ready"
	case OptionsError:
		return "error"
	default:
		return "idle"
	}
}

// Options are the description choices of one row.
type Options struct {
	State OptionState
	Items []models.MaterialOption
}

// Placeholder is the text shown in place of a choice, or "" when the
// control should show its items.
func (o Options) Placeholder() string {
	switch o.State {
	case OptionsLoading:
		return constants.PlaceholderLoading
	case OptionsError:
		return constants.PlaceholderError
	case OptionsReady:
		if len(o.Items) == 0 {
			return constants.PlaceholderNoMatches
		}
	}
	return ""
}

// Disabled reports whether the control should refuse input. An errored
// control stays enabled so reselecting the type retries.
func (o Options) Disabled() bool {
	return o.State == OptionsLoading
}

// Find returns the item with id.
func (o Options) Find(id string) (models.MaterialOption, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return models.MaterialOption{}, false
}

func assemblyOptions(list []models.Assembly) []models.MaterialOption {
	out := make([]models.MaterialOption, 0, len(list))
	for _, a := range list {
		out = append(out, models.MaterialOption{
			ID:          a.ID,
			Description: a.Name,
			Unit:        constants.PerEachUnit,
		})
	}
	return out
}
