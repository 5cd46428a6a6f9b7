package storage

import (
	"time"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/namespace"
)

// ReadGrid returns the stored grid rows with extensions recomputed. Any
// envelope version other than the current one reads as no data.
func (s *Store) ReadGrid(keys namespace.Keys) ([]models.GridRow, bool) {
	var env models.GridEnvelope
	if !s.ReadJSON(keys.GridKey, &env) {
		return nil, false
	}
	if env.V != constants.GridSchemaV1 || env.Rows == nil {
		return nil, false
	}
	for i := range env.Rows {
		env.Rows[i].Recompute()
	}
	return env.Rows, true
}

// GridEnvelope wraps rows in the current schema envelope.
func GridEnvelope(rows []models.GridRow) models.GridEnvelope {
	out := make([]models.GridRow, len(rows))
	copy(out, rows)
	return models.GridEnvelope{V: constants.GridSchemaV1, Rows: out}
}

func (s *Store) WriteGrid(keys namespace.Keys, rows []models.GridRow) {
	s.WriteJSON(keys.GridKey, GridEnvelope(rows))
}

func (s *Store) ReadTotals(keys namespace.Keys) (models.GridTotals, bool) {
	var t models.GridTotals
	if !s.ReadJSON(keys.TotalsKey, &t) {
		return models.GridTotals{}, false
	}
	return t, true
}

// WriteTotals stamps t with the current time when it has none.
func (s *Store) WriteTotals(keys namespace.Keys, t models.GridTotals) {
	if t.UpdatedAt == 0 {
		t.UpdatedAt = time.Now().UnixMilli()
	}
	s.WriteJSON(keys.TotalsKey, t)
}

// ReadDocument returns the stored estimate document. Derived fields are
// rebuilt so a tampered final-hours value is never trusted.
func (s *Store) ReadDocument(keys namespace.Keys) (models.EstimateDocument, bool) {
	var doc models.EstimateDocument
	if !s.ReadJSON(keys.DocumentKey, &doc) {
		return models.EstimateDocument{}, false
	}
	doc.Totals.Normalize()
	for i := range doc.Costs.Rows {
		doc.Costs.Rows[i].Recompute()
	}
	return doc, true
}

func (s *Store) WriteDocument(keys namespace.Keys, doc models.EstimateDocument) {
	s.WriteJSON(keys.DocumentKey, doc)
}

// HasScopeData reports whether the scope holds a grid with user input or a
// non-empty document.
func (s *Store) HasScopeData(keys namespace.Keys) bool {
	if rows, ok := s.ReadGrid(keys); ok {
		for _, r := range rows {
			if !r.IsBlank() {
				return true
			}
		}
	}
	if doc, ok := s.ReadDocument(keys); ok && !doc.IsEmpty() {
		return true
	}
	return false
}

// HasScopeKeys reports whether any of the scope's keys exist at all.
func (s *Store) HasScopeKeys(keys namespace.Keys) bool {
	for _, key := range keys.All() {
		if s.Has(key) {
			return true
		}
	}
	return false
}

// WipeScope removes every key of the scope.
func (s *Store) WipeScope(keys namespace.Keys) int {
	return s.RemoveByPrefix(keys.Prefix)
}

// RemoveLegacy removes the unscoped keys older builds wrote.
func (s *Store) RemoveLegacy() {
	for _, key := range namespace.LegacyKeys {
		if s.Has(key) {
			s.Remove(key)
		}
	}
}
