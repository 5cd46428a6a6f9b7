package constants

import "time"

// SessionState represents the active page of the TUI
type SessionState int

const (
	AppName            = "estimator"
	DefaultKeyringUser = "database-connection"
	APITokenKeyringKey = "api-token"
	DefaultConfigPath  = "~/.config/estimator/estimator.db"
	Version            = "v0.3.0"

	// Environment overrides
	EnvDBConnection = "ESTIMATOR_DB_CONNECTION"
	EnvAPIURL       = "ESTIMATOR_API_URL"
	EnvAPIToken     = "ESTIMATOR_API_TOKEN"
	EnvSession      = "ESTIMATOR_SESSION"

	// Storage namespace
	KeyRoot           = "ee"
	FastScope         = "fast"
	EstimateScope     = "estimate"
	GridKeySuffix     = "grid.v1"
	TotalsKeySuffix   = "totals"
	DocumentKeySuffix = "estimateData"
	SessionFlagKey    = "ee.session.booted"
	GridSchemaV1      = 1

	// Grid
	MinGridRows  = 10
	SaveDebounce = 200 * time.Millisecond

	// Material types
	AssembliesType = "Assemblies"
	PerEachUnit    = "1"

	// Option placeholders
	PlaceholderLoading   = "Loading…"
	PlaceholderNoMatches = "No matches"
	PlaceholderError     = "— Error loading —"

	// DJE
	DjeInitialRows    = 10
	DefaultMultiplier = 1

	// Change feed
	FeedPollInterval = 750 * time.Millisecond
	PgNotifyChannel  = "estimator_kv"

	// Log file rotation
	LogDirName    = "logs"
	LogFileName   = AppName + ".log"
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 28

	// HTTP client
	HTTPRetryMax = 3
	HTTPTimeout  = 15 * time.Second
)

// Session States
const (
	StateGrid SessionState = iota
	StateAdjustments
	StateAdditionalLabor
	StateDje
	StateSummary
	StatePicker
	StateControls
	StateConfirmReset
)

// LaborFactors lists the allowed labor adjustment factors in display order.
var LaborFactors = []float64{0.25, 0.5, 1, 1.5, 2}

// DefaultLaborFactor is applied to rows that have no explicit factor.
const DefaultLaborFactor = 1.0
