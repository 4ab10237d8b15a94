// Package fusion merges source observations into the fused record for a
// property. It is pure: the engine never reads the clock and never touches
// storage, so callers own the read-merge-write cycle.
package fusion

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
)

// ErrInvalidObservation rejects an observation that cannot be fused.
var ErrInvalidObservation = eris.New("invalid observation")

// Engine applies the precedence policy and history bound.
type Engine struct {
	policy       Policy
	historyLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the source precedence.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithHistoryLimit sets the number of change records kept per property.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// New returns an engine with the default tiers and history limit unless
// overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		policy:       NewPolicy(DefaultTiers()),
		historyLimit: model.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's precedence policy.
func (e *Engine) Policy() Policy { return e.policy }

// Result is the outcome of one fusion.
type Result struct {
	Property *model.Property
	// Change is the history entry appended by this fusion, nil when no
	// tracked field changed or the property was created.
	Change *model.ChangeRecord
	// Created is set when there was no existing record.
	Created bool
	// Changed is set when any part of the record differs from existing.
	Changed bool
}

// Fuse merges obs into existing, which may be nil, and returns the new state.
// id is the normalized identity of obs.Address.
func (e *Engine) Fuse(existing *model.Property, obs model.Observation, id model.Identity) (*model.Property, error) {
	res, err := e.Merge(existing, obs, id)
	if err != nil {
		return nil, err
	}
	return res.Property, nil
}

// Merge is Fuse with a description of what changed. existing is never
// modified.
func (e *Engine) Merge(existing *model.Property, obs model.Observation, id model.Identity) (Result, error) {
	if err := validateObservation(existing, obs, id); err != nil {
		return Result{}, err
	}

	captured := obs.CapturedAt.UTC()
	key := sourceKey(obs.SourceKey)
	origin := model.FieldOrigin{Source: key, CapturedAt: captured}

	m := merger{engine: e, origin: origin}
	if existing == nil {
		m.p = &model.Property{
			AddressHash:       id.Hash,
			NormalizedAddress: id.Normalized,
			History:           model.NewHistory(e.historyLimit),
			StoredAt:          captured,
			UpdatedAt:         captured,
		}
	} else {
		m.p = existing.Clone()
		if m.p.History.Limit() != e.historyLimit {
			m.p.History = m.p.History.WithLimit(e.historyLimit)
		}
	}

	m.rawAddress(obs.Address.String())
	if name := strings.TrimSpace(obs.OwnerName); name != "" {
		m.ownerName(model.String(name))
	}
	if obs.PriceHint != nil {
		if v, ok := model.CoerceAttribute(model.FieldPriceHint, model.Number(*obs.PriceHint)); ok {
			m.priceHint(v)
		}
	}
	m.attributes(obs.Attributes)
	m.source(key, obs.SourceURL, captured)
	m.signals(obs.DistressSignals)
	m.contacts(obs.Contacts)

	res := Result{Property: m.p, Created: existing == nil, Changed: existing == nil || m.dirty}
	if existing == nil {
		return res, nil
	}
	if captured.After(m.p.UpdatedAt) {
		m.p.UpdatedAt = captured
		res.Changed = true
	}
	if len(m.changes) > 0 {
		rec := model.ChangeRecord{Timestamp: captured, Source: key, ChangedFields: m.changes}
		m.p.History.Push(rec)
		res.Change = &rec
	}
	return res, nil
}

func validateObservation(existing *model.Property, obs model.Observation, id model.Identity) error {
	switch {
	case obs.Address.IsEmpty():
		return eris.Wrap(ErrInvalidObservation, "fusion: observation has no address")
	case strings.TrimSpace(obs.SourceKey) == "":
		return eris.Wrap(ErrInvalidObservation, "fusion: observation has no source key")
	case id.Hash == "" || id.Normalized == "":
		return eris.Wrap(ErrInvalidObservation, "fusion: observation address was not normalized")
	case existing != nil && existing.AddressHash != id.Hash:
		return eris.Wrapf(ErrInvalidObservation, "fusion: observation for %s merged into %s", id.Hash, existing.AddressHash)
	}
	return nil
}

// merger accumulates one fusion's edits on a private copy of the record.
type merger struct {
	engine  *Engine
	origin  model.FieldOrigin
	p       *model.Property
	changes map[string]model.FieldChange
	dirty   bool
}

func (m *merger) rawAddress(raw string) {
	if m.p.RawAddresses == nil {
		m.p.RawAddresses = make(map[string]string)
	}
	if m.p.RawAddresses[m.origin.Source] != raw {
		m.p.RawAddresses[m.origin.Source] = raw
		m.dirty = true
	}
}

func (m *merger) ownerName(v model.Scalar) {
	var cur model.Scalar
	if m.p.OwnerName != "" {
		cur = model.String(m.p.OwnerName)
	}
	if m.scalar(model.FieldOwnerName, cur, v) {
		m.p.OwnerName, _ = v.Str()
	}
}

func (m *merger) priceHint(v model.Scalar) {
	var cur model.Scalar
	if m.p.PriceHint != nil {
		cur = model.Number(*m.p.PriceHint)
	}
	if m.scalar(model.FieldPriceHint, cur, v) {
		n, _ := v.Num()
		m.p.PriceHint = &n
	}
}

func (m *merger) attributes(in map[string]model.Scalar) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		v, ok := model.CoerceAttribute(key, in[key])
		if !ok {
			zap.L().Debug("fusion: ignoring attribute value",
				zap.String("source", m.origin.Source),
				zap.String("attribute", key),
				zap.String("value", in[key].Text()),
			)
			continue
		}
		if m.scalar(model.AttributeField(key), m.p.Attributes[key], v) {
			if m.p.Attributes == nil {
				m.p.Attributes = make(map[string]model.Scalar)
			}
			m.p.Attributes[key] = v
		}
	}
}

// scalar applies the precedence rule to one tracked field. It reports
// whether the caller should store in. Equal values refresh provenance only.
func (m *merger) scalar(field string, cur, in model.Scalar) bool {
	if !cur.IsZero() {
		prev, known := m.p.FieldSources[field]
		if known && !m.engine.policy.Prefers(m.origin, prev) {
			return false
		}
		if cur.Equal(in) {
			if !known || prev != m.origin {
				m.setOrigin(field)
			}
			return false
		}
	}

	change := model.FieldChange{To: in.Ptr()}
	if !cur.IsZero() {
		change.From = cur.Ptr()
	}
	if m.changes == nil {
		m.changes = make(map[string]model.FieldChange)
	}
	m.changes[field] = change
	m.setOrigin(field)
	return true
}

func (m *merger) setOrigin(field string) {
	if m.p.FieldSources == nil {
		m.p.FieldSources = make(map[string]model.FieldOrigin)
	}
	m.p.FieldSources[field] = m.origin
	m.dirty = true
}

func (m *merger) source(key, url string, captured time.Time) {
	for i, s := range m.p.Sources {
		if s.SourceKey != key {
			continue
		}
		if captured.Before(s.CapturedAt) {
			return
		}
		next := s
		next.CapturedAt = captured
		if url != "" {
			next.SourceURL = url
		}
		if next != s {
			m.p.Sources[i] = next
			m.dirty = true
		}
		return
	}
	m.p.Sources = append(m.p.Sources, model.SourceRef{SourceKey: key, SourceURL: url, CapturedAt: captured})
	m.dirty = true
}

func (m *merger) signals(in []model.DistressSignal) {
	merged := model.MergeSignals(m.p.DistressSignals, in)
	if !slices.Equal(merged, m.p.DistressSignals) {
		m.p.DistressSignals = merged
		m.dirty = true
	}
}

func (m *merger) contacts(in []model.Contact) {
	out, changed := mergeContacts(m.p.Contacts, in)
	if changed {
		m.p.Contacts = out
		m.dirty = true
	}
}
