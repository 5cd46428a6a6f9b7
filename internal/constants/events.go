package constants

// Bus event names
const (
	EventTotalsChanged = "totals-changed"
	EventDjeChanged    = "dje-changed"
	EventResetAll      = "reset-all"
	EventResetHard     = "reset-hard"
	EventStorage       = "storage"
	EventVisibility    = "visibility"
)
