package fusion

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/internal/model"
)

// CorrectionSourcePrefix prefixes the history source of a correction.
const CorrectionSourcePrefix = "correction:"

// Correction invalidates distress signals or contacts that an operator or a
// feedback process found to be wrong.
type Correction struct {
	By       string
	At       time.Time
	Signals  []model.DistressSignal
	Contacts []model.Contact
}

// Retract removes the corrected signals and contacts from existing. This is
// the only operation that shrinks those collections. The removal is recorded
// as one history entry with source "correction:<by>".
func (e *Engine) Retract(existing *model.Property, c Correction) (Result, error) {
	if existing == nil {
		return Result{}, eris.Wrap(ErrInvalidObservation, "fusion: correction for a missing property")
	}
	by := strings.TrimSpace(c.By)
	if by == "" {
		return Result{}, eris.Wrap(ErrInvalidObservation, "fusion: correction has no author")
	}

	p := existing.Clone()
	changes := make(map[string]model.FieldChange)

	if len(c.Signals) > 0 {
		kept := p.DistressSignals[:0:0]
		for _, s := range p.DistressSignals {
			if slices.Contains(c.Signals, s) {
				changes[model.SignalPrefix+string(s)] = model.FieldChange{From: model.String(string(s)).Ptr()}
				continue
			}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			kept = nil
		}
		p.DistressSignals = kept
	}

	if len(c.Contacts) > 0 {
		drop := make(map[string]bool, len(c.Contacts))
		for _, ct := range c.Contacts {
			drop[ct.Key()] = true
		}
		kept := p.Contacts[:0:0]
		for _, ct := range p.Contacts {
			if drop[ct.Key()] {
				changes[model.ContactPrefix+ct.Key()] = model.FieldChange{From: model.String(ct.Value).Ptr()}
				continue
			}
			kept = append(kept, ct)
		}
		if len(kept) == 0 {
			kept = nil
		}
		p.Contacts = kept
	}

	if len(changes) == 0 {
		return Result{Property: p}, nil
	}

	at := c.At.UTC()
	if p.History.Limit() != e.historyLimit {
		p.History = p.History.WithLimit(e.historyLimit)
	}
	rec := model.ChangeRecord{Timestamp: at, Source: CorrectionSourcePrefix + by, ChangedFields: changes}
	p.History.Push(rec)
	p.UpdatedAt = laterOf(p.UpdatedAt, at)
	return Result{Property: p, Change: &rec, Changed: true}, nil
}
