// Package model defines the property record shapes shared by the fusion
// engine, the repository and the lead projector.
package model

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Tracked field keys used in provenance and change history. Attribute keys
// are prefixed with AttributePrefix. Corrections record removed signals and
// contacts under SignalPrefix and ContactPrefix.
const (
	FieldOwnerName  = "owner_name"
	FieldPriceHint  = "price_hint"
	AttributePrefix = "attributes."
	SignalPrefix    = "distress_signals."
	ContactPrefix   = "contacts."
)

// AttributeField returns the tracked field key for an attribute.
func AttributeField(key string) string { return AttributePrefix + key }

// SourceRef records that a source contributed to a property.
type SourceRef struct {
	SourceKey  string    `json:"source_key" yaml:"source_key"`
	SourceURL  string    `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// FieldOrigin is the source of record for a tracked field value.
type FieldOrigin struct {
	Source     string    `json:"source" yaml:"source"`
	CapturedAt time.Time `json:"captured_at" yaml:"captured_at"`
}

// ContactType distinguishes phone numbers from email addresses.
type ContactType string

const (
	ContactPhone ContactType = "phone"
	ContactEmail ContactType = "email"
)

// Contact is a candidate way of reaching the owner or listing party.
type Contact struct {
	Type       ContactType `json:"type" yaml:"type"`
	Value      string      `json:"value" yaml:"value"`
	Confidence float64     `json:"confidence" yaml:"confidence"`
	Source     string      `json:"source" yaml:"source"`
}

// Key is the deduplication key of a contact: type plus normalized value.
func (c Contact) Key() string {
	return string(c.Type) + ":" + NormalizeContactValue(c.Type, c.Value)
}

// NormalizeContactValue canonicalizes a phone to its ten NANP digits and an
// email to lower case. Values that cannot be canonicalized are returned
// trimmed.
func NormalizeContactValue(t ContactType, v string) string {
	v = strings.TrimSpace(v)
	switch t {
	case ContactPhone:
		if d := PhoneDigits(v); d != "" {
			return d
		}
	case ContactEmail:
		return strings.ToLower(v)
	}
	return v
}

// PhoneDigits strips formatting from a phone number and returns its ten
// digits, dropping a leading country code 1. It returns "" when the input
// does not hold a ten-digit number.
func PhoneDigits(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

// Property is the fused, deduplicated record for one physical property.
type Property struct {
	AddressHash       string                 `json:"address_hash" yaml:"address_hash"`
	NormalizedAddress string                 `json:"normalized_address" yaml:"normalized_address"`
	RawAddresses      map[string]string      `json:"raw_addresses" yaml:"raw_addresses"`
	OwnerName         string                 `json:"owner_name" yaml:"owner_name"`
	PriceHint         *float64               `json:"price_hint" yaml:"price_hint"`
	Attributes        map[string]Scalar      `json:"attributes" yaml:"attributes"`
	FieldSources      map[string]FieldOrigin `json:"field_sources" yaml:"field_sources"`
	Sources           []SourceRef            `json:"sources" yaml:"sources"`
	DistressSignals   []DistressSignal       `json:"distress_signals" yaml:"distress_signals"`
	Contacts          []Contact              `json:"contacts" yaml:"contacts"`
	History           History                `json:"history" yaml:"history"`
	StoredAt          time.Time              `json:"stored_at" yaml:"stored_at"`
	UpdatedAt         time.Time              `json:"updated_at" yaml:"updated_at"`
}

// Identity returns the property's key pair.
func (p *Property) Identity() Identity {
	return Identity{Normalized: p.NormalizedAddress, Hash: p.AddressHash}
}

// HasSource reports whether key is among the observed sources.
func (p *Property) HasSource(key string) bool {
	key = strings.TrimSpace(key)
	return slices.ContainsFunc(p.Sources, func(s SourceRef) bool { return strings.EqualFold(s.SourceKey, key) })
}

// SourceKeys returns the observed source keys in first-seen order.
func (p *Property) SourceKeys() []string {
	keys := make([]string, len(p.Sources))
	for i, s := range p.Sources {
		keys[i] = s.SourceKey
	}
	return keys
}

// Clone returns a deep copy so callers can derive a new state without
// aliasing the original.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	c := *p
	c.RawAddresses = maps.Clone(p.RawAddresses)
	c.Attributes = maps.Clone(p.Attributes)
	c.FieldSources = maps.Clone(p.FieldSources)
	c.Sources = slices.Clone(p.Sources)
	c.DistressSignals = slices.Clone(p.DistressSignals)
	c.Contacts = slices.Clone(p.Contacts)
	c.History = p.History.Clone()
	if p.PriceHint != nil {
		v := *p.PriceHint
		c.PriceHint = &v
	}
	return &c
}

// Observation is one source's report about one property at one point in time.
// Phone, Email and RawDescription are raw listing fields; the contact and
// distress extractors turn them into Contacts and DistressSignals before
// fusion.
type Observation struct {
	SourceKey       string            `json:"source_key"`
	SourceURL       string            `json:"source_url,omitempty"`
	CapturedAt      time.Time         `json:"captured_at"`
	Address         Address           `json:"address"`
	OwnerName       string            `json:"owner_name,omitempty"`
	PriceHint       *float64          `json:"price_hint,omitempty"`
	Attributes      map[string]Scalar `json:"attributes,omitempty"`
	DistressSignals []DistressSignal  `json:"distress_signals,omitempty"`
	Contacts        []Contact         `json:"contacts,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	Email           string            `json:"email,omitempty"`
	RawDescription  string            `json:"raw_description,omitempty"`
}
