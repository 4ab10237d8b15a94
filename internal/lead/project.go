// Package lead shapes fused, scored properties into CRM lead candidates.
package lead

import (
	"math"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/internal/model"
)

// ErrMissingRequiredFields is returned when the property has no address or
// no usable score.
var ErrMissingRequiredFields = eris.New("missing required fields")

// DefaultThreshold is the minimum score that qualifies a property.
const DefaultThreshold = 0.7

// HotThreshold is the score at or above which a lead is hot.
const HotThreshold = 0.85

// namespace scopes lead IDs so the same address hash always maps to the
// same lead ID.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/sells-group/property-cli/lead"))

// ID returns the deterministic lead ID for an address hash.
func ID(addressHash string) string {
	return uuid.NewSHA1(namespace, []byte(addressHash)).String()
}

// Qualifies reports whether score clears threshold.
func Qualifies(score model.Score, threshold float64) bool {
	return !math.IsNaN(score.Value) && score.Value >= threshold
}

// TierFor buckets a score.
func TierFor(score model.Score, threshold float64) model.LeadTier {
	switch {
	case score.Value >= HotThreshold && score.Value >= threshold:
		return model.LeadTierHot
	case Qualifies(score, threshold):
		return model.LeadTierWarm
	default:
		return model.LeadTierCold
	}
}

// Projector turns properties into lead candidates.
type Projector struct {
	threshold float64
}

// NewProjector returns a projector that tiers against threshold. A
// non-positive threshold selects DefaultThreshold.
func NewProjector(threshold float64) *Projector {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	return &Projector{threshold: threshold}
}

// Threshold returns the qualification threshold.
func (p *Projector) Threshold() float64 { return p.threshold }

// Project builds the candidate for prop. It reads prop without modifying it.
func (p *Projector) Project(prop *model.Property, score *model.Score) (*model.LeadCandidate, error) {
	switch {
	case prop == nil:
		return nil, eris.Wrap(ErrMissingRequiredFields, "lead: no property")
	case prop.AddressHash == "" || strings.TrimSpace(prop.NormalizedAddress) == "":
		return nil, eris.Wrap(ErrMissingRequiredFields, "lead: property has no address")
	case score == nil:
		return nil, eris.Wrapf(ErrMissingRequiredFields, "lead: no score for %s", prop.AddressHash)
	case math.IsNaN(score.Value) || math.IsInf(score.Value, 0):
		return nil, eris.Wrapf(ErrMissingRequiredFields, "lead: unusable score for %s", prop.AddressHash)
	}

	c := &model.LeadCandidate{
		ID:              ID(prop.AddressHash),
		AddressHash:     prop.AddressHash,
		Address:         prop.NormalizedAddress,
		OwnerName:       prop.OwnerName,
		PrimaryPhone:    primary(prop.Contacts, model.ContactPhone),
		PrimaryEmail:    primary(prop.Contacts, model.ContactEmail),
		Contacts:        slices.Clone(prop.Contacts),
		DistressSignals: model.MergeSignals(prop.DistressSignals),
		Sources:         prop.SourceKeys(),
		Score:           *score,
		Tier:            TierFor(*score, p.threshold),
		LastObservedAt:  prop.UpdatedAt,
	}
	if prop.PriceHint != nil {
		v := *prop.PriceHint
		c.PriceHint = &v
	}
	return c, nil
}

// primary returns the highest-confidence contact value of type t. Earlier
// contacts win ties.
func primary(contacts []model.Contact, t model.ContactType) string {
	best, bestConf := "", -1.0
	for _, c := range contacts {
		if c.Type == t && c.Confidence > bestConf {
			best, bestConf = c.Value, c.Confidence
		}
	}
	return best
}
