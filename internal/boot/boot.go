// Package boot decides where a session's state comes from before any engine
// recomputes: local storage, a one-time migration from the fast scope, the
// server, or nothing.
package boot

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/workspace"
)

// Remote is the server side of an estimate.
type Remote interface {
	Snapshot(ctx context.Context, estimateID string) (models.SettingsSnapshot, error)
	LoadPayload(ctx context.Context, estimateID string) (models.Payload, bool, error)
}

// Source says where the booted state came from.
type Source int

const (
	SourceBlank Source = iota
	SourceLocal
	SourceMigratedFromFast
	SourceServer
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceMigratedFromFast:
		return "migrated from fast"
	case SourceServer:
		return "server"
	default:
		return "blank"
	}
}

// Pricing sources recorded on the document.
const (
	PricingEstimate = "estimate"
	PricingSettings = "settings"
	PricingApp      = "app"
	PricingDefaults = "defaults"
)

// Result describes a completed boot.
type Result struct {
	Source        Source
	SessionWiped  bool
	PricingSource string
}

// Sequencer boots one workspace.
type Sequencer struct {
	ws      *workspace.Workspace
	remote  Remote
	session string

	// snapshot is the server pricing the last boot seeded from, if any.
	snapshot *models.SettingsSnapshot
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithRemote enables the server snapshot and payload steps.
func WithRemote(r Remote) Option {
	return func(s *Sequencer) { s.remote = r }
}

// WithSession enables the first-boot-per-session wipe for id.
func WithSession(id string) Option {
	return func(s *Sequencer) { s.session = id }
}

func New(ws *workspace.Workspace, opts ...Option) *Sequencer {
	s := &Sequencer{ws: ws}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) store() *storage.Store { return s.ws.Store() }

// Boot restores state in order of preference and then seeds pricing. Saves
// are suppressed while restoring. Failures degrade to the next source.
func (s *Sequencer) Boot(ctx context.Context) Result {
	var res Result
	keys := s.ws.Keys()
	sched := s.ws.Scheduler()

	sched.BeginHydration()
	res.SessionWiped = s.wipeSession()

	var (
		payload   models.Payload
		havePay   bool
		snapshot  models.SettingsSnapshot
		snapErr   error
		fetchedUp bool
	)
	local := s.store().HasScopeKeys(keys)
	migrate := !local && !keys.IsFast() && s.store().HasScopeData(namespace.FastKeys())
	if s.remote != nil && !keys.IsFast() {
		// the snapshot is needed for pricing either way; the payload only
		// when nothing local applies
		g, gctx := errgroup.WithContext(ctx)
		if !local && !migrate {
			g.Go(func() error {
				p, ok, err := s.remote.LoadPayload(gctx, keys.EstimateID())
				if err != nil {
					logger.Warn("Failed to load estimate payload", "estimate", keys.EstimateID(), "error", err)
					return nil
				}
				payload, havePay = p, ok
				return nil
			})
		}
		g.Go(func() error {
			snapshot, snapErr = s.remote.Snapshot(gctx, keys.EstimateID())
			return nil
		})
		_ = g.Wait()
		fetchedUp = true
	}

	switch {
	case local:
		res.Source = SourceLocal
	case migrate:
		s.migrateFast(keys)
		res.Source = SourceMigratedFromFast
	case havePay:
		s.writePayload(keys, payload)
		res.Source = SourceServer
	default:
		res.Source = SourceBlank
	}
	s.ws.Reload()
	sched.EndHydration()

	switch {
	case fetchedUp && snapErr == nil:
		s.snapshot = &snapshot
		res.PricingSource = s.seedPricing(snapshot.Pricing, snapshot.Source)
	case fetchedUp:
		logger.Warn("Failed to load settings snapshot", "estimate", keys.EstimateID(), "error", snapErr)
		res.PricingSource = s.seedFromApp()
	default:
		res.PricingSource = s.seedFromApp()
	}

	logger.Info("Booted workspace", "scope", keys.Scope, "source", res.Source, "pricing", res.PricingSource, "session_wiped", res.SessionWiped)
	return res
}

// wipeSession clears the fast scope and legacy keys on the first boot of a
// session.
func (s *Sequencer) wipeSession() bool {
	if s.session == "" {
		return false
	}
	sessions, ok := s.store().Backend().(storage.SessionStore)
	if !ok {
		return false
	}
	seen, err := sessions.SessionSeen(s.session)
	if err != nil {
		logger.Warn("Failed to read session flag", "session", s.session, "error", err)
		return false
	}
	if seen {
		return false
	}
	removed := s.store().WipeScope(namespace.FastKeys())
	s.store().RemoveLegacy()
	if err := sessions.MarkSession(s.session); err != nil {
		logger.Warn("Failed to record session flag", "session", s.session, "error", err)
	}
	logger.Debug("Wiped state for new session", "session", s.session, "removed", removed)
	return true
}

// migrateFast copies the fast scope into keys, never overwriting a key that
// already exists, and then clears the fast scope so the copy happens once.
func (s *Sequencer) migrateFast(keys namespace.Keys) {
	fast := namespace.FastKeys()
	st := s.store()
	pairs := [][2]string{
		{fast.GridKey, keys.GridKey},
		{fast.TotalsKey, keys.TotalsKey},
		{fast.DocumentKey, keys.DocumentKey},
	}
	for _, p := range pairs {
		if st.Has(p[1]) {
			continue
		}
		var raw json.RawMessage
		if !st.ReadJSON(p[0], &raw) {
			continue
		}
		st.WriteJSON(p[1], raw)
	}
	st.WipeScope(fast)
	logger.Info("Migrated fast scope", "to", keys.Scope)
}

func (s *Sequencer) writePayload(keys namespace.Keys, p models.Payload) {
	st := s.store()
	st.WriteGrid(keys, p.Grid.Rows)
	st.WriteTotals(keys, p.Totals)
	doc := p.EstimateData
	doc.Totals.Normalize()
	st.WriteDocument(keys, doc)
}

// seedPricing fills the materials block and labor rate from pricing unless
// the document was seeded before. It returns the document's pricing source.
func (s *Sequencer) seedPricing(pricing models.Settings, source string) string {
	doc := s.ws.Document()
	if doc.PricingSource != "" {
		return doc.PricingSource
	}
	if source == "" {
		source = PricingDefaults
	}
	s.ws.UpdateDocument(func(doc *models.EstimateDocument) {
		doc.Materials = pricing.Adders()
		if doc.Totals.LaborRate == 0 {
			doc.Totals.LaborRate = pricing.LaborRate
		}
		doc.PricingSource = source
	})
	return source
}

// seedFromApp seeds from the backend's app settings, or the built-in
// defaults when the backend keeps none.
func (s *Sequencer) seedFromApp() string {
	if settings, ok := s.store().Backend().(storage.SettingsStore); ok {
		pricing, err := settings.GetSettings()
		if err == nil {
			return s.seedPricing(pricing, PricingApp)
		}
		logger.Warn("Failed to read app settings", "error", err)
	}
	return s.seedPricing(models.DefaultSettings(), PricingDefaults)
}

// reseedPricing restores pricing after a reset blanked the document. An
// estimate keeps the server snapshot it booted with; otherwise the app
// settings apply.
func (s *Sequencer) reseedPricing() string {
	if s.snapshot != nil && !s.ws.Keys().IsFast() {
		return s.seedPricing(s.snapshot.Pricing, s.snapshot.Source)
	}
	return s.seedFromApp()
}

// HardReset removes every key of the active and fast scopes plus legacy
// keys, re-applies pricing, then announces reset-hard.
func (s *Sequencer) HardReset() int {
	keys := s.ws.Keys()
	fast := namespace.FastKeys()
	sched := s.ws.Scheduler()

	sched.CancelPrefix(keys.Prefix)
	sched.CancelPrefix(fast.Prefix)
	removed := s.store().WipeScope(keys)
	if !keys.IsFast() {
		removed += s.store().WipeScope(fast)
	}
	s.store().RemoveLegacy()
	s.ws.Reset()
	s.reseedPricing()

	logger.Info("Hard reset", "scope", keys.Scope, "removed", removed)
	s.ws.Bus().Publish(constants.EventResetHard, keys.Scope)
	return removed
}

// ResetAll clears the fast scope only and announces reset-all. Estimate
// scopes are untouched.
func (s *Sequencer) ResetAll() int {
	fast := namespace.FastKeys()
	s.ws.Scheduler().CancelPrefix(fast.Prefix)
	removed := s.store().WipeScope(fast)
	if s.ws.Keys().IsFast() {
		s.ws.Reset()
		s.seedFromApp()
	}

	logger.Info("Reset fast scope", "removed", removed)
	s.ws.Bus().Publish(constants.EventResetAll, fast.Scope)
	return removed
}

// BuildPayload flushes pending writes and bundles the scope for an explicit
// save.
func (s *Sequencer) BuildPayload(export *models.SummaryExport) models.Payload {
	s.ws.Flush()
	rows, _ := s.ws.Grid()
	return models.Payload{
		Grid:          storage.GridEnvelope(rows),
		Totals:        s.ws.GridTotals(),
		EstimateData:  s.ws.Document(),
		SummaryExport: export,
	}
}

// ApplyPayload replaces the scope's stored state with p and reloads the
// workspace. Pending local writes are discarded.
func (s *Sequencer) ApplyPayload(p models.Payload) {
	keys := s.ws.Keys()
	s.ws.Scheduler().CancelPrefix(keys.Prefix)
	s.writePayload(keys, p)
	s.ws.Reload()
}
