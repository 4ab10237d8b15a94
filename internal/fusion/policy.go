package fusion

import (
	"strings"
	"time"

	"github.com/sells-group/property-cli/internal/model"
)

// Tier is one precedence level: a named group of source keys that outrank
// every source in later tiers.
type Tier struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Sources []string `yaml:"sources" mapstructure:"sources"`
}

// DefaultTiers is the precedence used when none is configured.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "authoritative", Sources: []string{"county", "assessor", "recorder"}},
		{Name: "provider", Sources: []string{"attom", "propstream", "batchdata"}},
		{Name: "scraper", Sources: []string{"zillow", "redfin", "realtor", "craigslist", "facebook"}},
		{Name: "manual", Sources: []string{"manual"}},
	}
}

// Policy ranks sources for scalar conflict resolution. Sources missing from
// every tier rank below all tiers.
type Policy struct {
	tiers []Tier
	rank  map[string]int
	tier  map[string]string
}

// NewPolicy builds a policy from tiers ordered highest first. A source listed
// in several tiers keeps its highest rank. Source keys match case-insensitively.
func NewPolicy(tiers []Tier) Policy {
	p := Policy{
		tiers: tiers,
		rank:  make(map[string]int),
		tier:  make(map[string]string),
	}
	for i, t := range tiers {
		for _, src := range t.Sources {
			key := sourceKey(src)
			if _, seen := p.rank[key]; seen || key == "" {
				continue
			}
			p.rank[key] = len(tiers) - i
			p.tier[key] = t.Name
		}
	}
	return p
}

// Tiers returns the configured tiers.
func (p Policy) Tiers() []Tier { return p.tiers }

// Rank returns the precedence of source. Higher wins; 0 means unranked.
func (p Policy) Rank(source string) int { return p.rank[sourceKey(source)] }

// TierName returns the name of the tier holding source, or "".
func (p Policy) TierName(source string) string { return p.tier[sourceKey(source)] }

// Prefers reports whether a value from incoming should replace the value of
// record from current: higher rank wins, and on equal rank the observation
// captured no earlier wins.
func (p Policy) Prefers(incoming, current model.FieldOrigin) bool {
	ri, rc := p.Rank(incoming.Source), p.Rank(current.Source)
	if ri != rc {
		return ri > rc
	}
	return !incoming.CapturedAt.Before(current.CapturedAt)
}

func sourceKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
