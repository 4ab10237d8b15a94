package model

import "time"

// Score is a lead score produced by an external model for a fused property.
type Score struct {
	Value    float64   `json:"value" yaml:"value"`
	Model    string    `json:"model,omitempty" yaml:"model,omitempty"`
	ScoredAt time.Time `json:"scored_at" yaml:"scored_at"`
}

// LeadTier buckets a scored lead for operators.
type LeadTier string

const (
	LeadTierHot  LeadTier = "hot"
	LeadTierWarm LeadTier = "warm"
	LeadTierCold LeadTier = "cold"
)

// LeadCandidate is the CRM-facing projection of a scored property.
type LeadCandidate struct {
	ID              string           `json:"id" yaml:"id"`
	AddressHash     string           `json:"address_hash" yaml:"address_hash"`
	Address         string           `json:"address" yaml:"address"`
	OwnerName       string           `json:"owner_name,omitempty" yaml:"owner_name,omitempty"`
	PriceHint       *float64         `json:"price_hint,omitempty" yaml:"price_hint,omitempty"`
	PrimaryPhone    string           `json:"primary_phone,omitempty" yaml:"primary_phone,omitempty"`
	PrimaryEmail    string           `json:"primary_email,omitempty" yaml:"primary_email,omitempty"`
	Contacts        []Contact        `json:"contacts,omitempty" yaml:"contacts,omitempty"`
	DistressSignals []DistressSignal `json:"distress_signals,omitempty" yaml:"distress_signals,omitempty"`
	Sources         []string         `json:"sources" yaml:"sources"`
	Score           Score            `json:"score" yaml:"score"`
	Tier            LeadTier         `json:"tier" yaml:"tier"`
	LastObservedAt  time.Time        `json:"last_observed_at" yaml:"last_observed_at"`
}
