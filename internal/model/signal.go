package model

import (
	"slices"
	"strings"
)

// DistressSignal is a categorical tag for a seller-motivation or legal-status
// condition.
type DistressSignal string

const (
	SignalFSBO            DistressSignal = "FSBO"
	SignalCodeViolation   DistressSignal = "CODE_VIOLATION"
	SignalTaxDelinquent   DistressSignal = "TAX_DELINQUENT"
	SignalProbate         DistressSignal = "PROBATE"
	SignalEviction        DistressSignal = "EVICTION"
	SignalPreForeclosure  DistressSignal = "PRE_FORECLOSURE"
	SignalAuction         DistressSignal = "AUCTION"
	SignalBankOwned       DistressSignal = "BANK_OWNED"
	SignalShortSale       DistressSignal = "SHORT_SALE"
	SignalFixerUpper      DistressSignal = "FIXER_UPPER"
	SignalAsIs            DistressSignal = "AS_IS"
	SignalCashOnly        DistressSignal = "CASH_ONLY"
	SignalMotivatedSeller DistressSignal = "MOTIVATED_SELLER"
	SignalVacant          DistressSignal = "VACANT"
)

// AllSignals lists the closed enumeration in canonical order.
var AllSignals = []DistressSignal{
	SignalFSBO,
	SignalCodeViolation,
	SignalTaxDelinquent,
	SignalProbate,
	SignalEviction,
	SignalPreForeclosure,
	SignalAuction,
	SignalBankOwned,
	SignalShortSale,
	SignalFixerUpper,
	SignalAsIs,
	SignalCashOnly,
	SignalMotivatedSeller,
	SignalVacant,
}

var signalRank = func() map[DistressSignal]int {
	m := make(map[DistressSignal]int, len(AllSignals))
	for i, s := range AllSignals {
		m[s] = i
	}
	return m
}()

// Valid reports whether s belongs to the enumeration.
func (s DistressSignal) Valid() bool {
	_, ok := signalRank[s]
	return ok
}

// ParseSignal accepts the canonical name in any case, with hyphens or spaces
// in place of underscores ("pre-foreclosure", "Bank Owned").
func ParseSignal(raw string) (DistressSignal, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	s := DistressSignal(key)
	return s, s.Valid()
}

// MergeSignals returns the sorted, deduplicated union of the given sets.
// Values outside the enumeration are dropped. The result is nil when empty.
func MergeSignals(sets ...[]DistressSignal) []DistressSignal {
	seen := make(map[DistressSignal]bool)
	var out []DistressSignal
	for _, set := range sets {
		for _, s := range set {
			if !s.Valid() || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b DistressSignal) int { return signalRank[a] - signalRank[b] })
	return out
}

// HasSignal reports whether set contains s.
func HasSignal(set []DistressSignal, s DistressSignal) bool {
	return slices.Contains(set, s)
}
