// Package signal derives distress signals and contact candidates from raw
// observations. Extraction never fails: noisy or missing input yields an
// empty result.
package signal

import (
	"regexp"
	"strings"

	"github.com/sells-group/property-cli/internal/model"
)

// keywordRule maps description text to a signal. Patterns are matched
// against the lower-cased description.
type keywordRule struct {
	re     *regexp.Regexp
	signal model.DistressSignal
}

// Short tokens such as "reo" and "fsbo" are matched on word boundaries so
// "theory" or "reorganized" do not count.
var keywordRules = []keywordRule{
	{regexp.MustCompile(`foreclos|notice of default|lis pendens`), model.SignalPreForeclosure},
	{regexp.MustCompile(`\breo\b|bank[- ]owned|lender[- ]owned`), model.SignalBankOwned},
	{regexp.MustCompile(`tax sale|tax lien|tax[- ]delinquent|back taxes`), model.SignalTaxDelinquent},
	{regexp.MustCompile(`probate|estate sale`), model.SignalProbate},
	{regexp.MustCompile(`short sale`), model.SignalShortSale},
	{regexp.MustCompile(`fixer|rehab|handyman special|\btlc\b`), model.SignalFixerUpper},
	{regexp.MustCompile(`\bas[- ]is\b`), model.SignalAsIs},
	{regexp.MustCompile(`cash only|cash buyers only`), model.SignalCashOnly},
	{regexp.MustCompile(`must sell|motivated|bring all offers`), model.SignalMotivatedSeller},
	{regexp.MustCompile(`\bfsbo\b|for sale by owner`), model.SignalFSBO},
	{regexp.MustCompile(`auction`), model.SignalAuction},
	{regexp.MustCompile(`code violation|condemned`), model.SignalCodeViolation},
	{regexp.MustCompile(`evict`), model.SignalEviction},
	{regexp.MustCompile(`\bvacant\b|abandoned`), model.SignalVacant},
}

// flagSignals maps boolean attribute flags to the signal they assert.
var flagSignals = map[string]model.DistressSignal{
	"is_fsbo":         model.SignalFSBO,
	"code_violation":  model.SignalCodeViolation,
	"tax_delinquent":  model.SignalTaxDelinquent,
	"probate":         model.SignalProbate,
	"eviction":        model.SignalEviction,
	"pre_foreclosure": model.SignalPreForeclosure,
	"foreclosure":     model.SignalPreForeclosure,
	"auction":         model.SignalAuction,
	"bank_owned":      model.SignalBankOwned,
	"reo":             model.SignalBankOwned,
	"short_sale":      model.SignalShortSale,
	"vacant":          model.SignalVacant,
	"cash_only":       model.SignalCashOnly,
}

// statusSignals maps listing status values that are not signal names.
var statusSignals = map[string]model.DistressSignal{
	"foreclosure":       model.SignalPreForeclosure,
	"pre-foreclosure":   model.SignalPreForeclosure,
	"preforeclosure":    model.SignalPreForeclosure,
	"reo":               model.SignalBankOwned,
	"bank owned":        model.SignalBankOwned,
	"for sale by owner": model.SignalFSBO,
	"foreclosed":        model.SignalBankOwned,
}

// ExtractDistressSignals returns the sorted set of signals asserted by the
// observation's explicit signals, structured flags and status, and its
// description text.
func ExtractDistressSignals(obs model.Observation) []model.DistressSignal {
	var found []model.DistressSignal
	for key, sig := range flagSignals {
		v, ok := obs.Attributes[key]
		if !ok {
			continue
		}
		if b, ok := v.AsBool(); ok {
			if truth, _ := b.Truth(); truth {
				found = append(found, sig)
			}
		}
	}
	if v, ok := obs.Attributes[model.AttrStatus]; ok {
		if sig, ok := statusSignal(v.Text()); ok {
			found = append(found, sig)
		}
	}
	found = append(found, DescriptionSignals(obs.RawDescription)...)
	return model.MergeSignals(obs.DistressSignals, found)
}

// DescriptionSignals scans free text against the keyword table.
func DescriptionSignals(text string) []model.DistressSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []model.DistressSignal
	for _, rule := range keywordRules {
		if rule.re.MatchString(lower) {
			found = append(found, rule.signal)
		}
	}
	return model.MergeSignals(found)
}

func statusSignal(raw string) (model.DistressSignal, bool) {
	status := strings.ToLower(strings.TrimSpace(raw))
	if status == "" {
		return "", false
	}
	if sig, ok := statusSignals[status]; ok {
		return sig, true
	}
	return model.ParseSignal(status)
}
