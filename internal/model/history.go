package model

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultHistoryLimit is the number of change records kept per property.
const DefaultHistoryLimit = 10

// FieldChange captures the value of a tracked field before and after a
// fusion. A nil side means the field was absent.
type FieldChange struct {
	From *Scalar `json:"from" yaml:"from"`
	To   *Scalar `json:"to" yaml:"to"`
}

// ChangeRecord is one fusion's worth of changes to tracked fields.
type ChangeRecord struct {
	Timestamp     time.Time              `json:"timestamp" yaml:"timestamp"`
	Source        string                 `json:"source" yaml:"source"`
	ChangedFields map[string]FieldChange `json:"changed_fields" yaml:"changed_fields"`
}

// Fields returns the changed field keys in sorted order.
func (c ChangeRecord) Fields() []string {
	keys := make([]string, 0, len(c.ChangedFields))
	for k := range c.ChangedFields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// History is a bounded FIFO of change records, oldest first. Push evicts the
// oldest entry once the limit is reached, so the length never exceeds it.
type History struct {
	limit   int
	entries []ChangeRecord
}

// NewHistory returns an empty history holding at most limit records. A
// non-positive limit selects DefaultHistoryLimit.
func NewHistory(limit int) History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return History{limit: limit}
}

// Limit returns the capacity.
func (h History) Limit() int {
	if h.limit <= 0 {
		return DefaultHistoryLimit
	}
	return h.limit
}

// Len returns the number of retained records.
func (h History) Len() int { return len(h.entries) }

// Entries returns a copy of the retained records, oldest first.
func (h History) Entries() []ChangeRecord { return slices.Clone(h.entries) }

// Last returns the most recent record.
func (h History) Last() (ChangeRecord, bool) {
	if len(h.entries) == 0 {
		return ChangeRecord{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Push appends rec, evicting the oldest record when full.
func (h *History) Push(rec ChangeRecord) {
	limit := h.Limit()
	h.limit = limit
	if len(h.entries) < limit {
		h.entries = append(h.entries, rec)
		return
	}
	copy(h.entries, h.entries[1:])
	h.entries[len(h.entries)-1] = rec
}

// WithLimit returns a copy resized to limit, keeping the most recent records.
func (h History) WithLimit(limit int) History {
	out := NewHistory(limit)
	for _, rec := range h.entries {
		out.Push(rec)
	}
	return out
}

// Clone returns an independent copy.
func (h History) Clone() History {
	return History{limit: h.limit, entries: slices.Clone(h.entries)}
}

type historyJSON struct {
	Limit   int            `json:"limit" yaml:"limit"`
	Entries []ChangeRecord `json:"entries" yaml:"entries"`
}

// MarshalJSON encodes the limit and the retained records.
func (h History) MarshalJSON() ([]byte, error) {
	entries := h.entries
	if entries == nil {
		entries = []ChangeRecord{}
	}
	return json.Marshal(historyJSON{Limit: h.Limit(), Entries: entries})
}

// UnmarshalJSON rebuilds the history through Push so a stored list longer
// than its limit is truncated to the most recent records.
func (h *History) UnmarshalJSON(data []byte) error {
	var raw historyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "history: decode")
	}
	out := NewHistory(raw.Limit)
	for _, rec := range raw.Entries {
		out.Push(rec)
	}
	*h = out
	return nil
}

// MarshalYAML renders the same shape as the JSON form.
func (h History) MarshalYAML() (any, error) {
	return historyJSON{Limit: h.Limit(), Entries: h.Entries()}, nil
}
