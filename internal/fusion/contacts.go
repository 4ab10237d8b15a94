package fusion

import (
	"strings"

	"github.com/sells-group/property-cli/internal/model"
)

// mergeContacts unions in into existing by (type, normalized value). On a
// collision the higher confidence wins along with its source; existing
// entries are never dropped. Order is existing first, then new contacts in
// input order.
func mergeContacts(existing, in []model.Contact) ([]model.Contact, bool) {
	if len(in) == 0 {
		return existing, false
	}
	out := make([]model.Contact, len(existing), len(existing)+len(in))
	copy(out, existing)

	index := make(map[string]int, len(out)+len(in))
	for i, c := range out {
		if _, dup := index[c.Key()]; !dup {
			index[c.Key()] = i
		}
	}

	changed := false
	for _, c := range in {
		c, ok := cleanContact(c)
		if !ok {
			continue
		}
		key := c.Key()
		if i, dup := index[key]; dup {
			if c.Confidence > out[i].Confidence {
				out[i].Confidence = c.Confidence
				out[i].Source = c.Source
				changed = true
			}
			continue
		}
		index[key] = len(out)
		out = append(out, c)
		changed = true
	}
	if !changed {
		return existing, false
	}
	return out, true
}

// cleanContact normalizes the value and clamps confidence to [0, 1]. It
// rejects unknown types, phones without ten digits and emails without an @.
func cleanContact(c model.Contact) (model.Contact, bool) {
	switch c.Type {
	case model.ContactPhone, model.ContactEmail:
	default:
		return c, false
	}
	c.Value = model.NormalizeContactValue(c.Type, c.Value)
	if c.Value == "" {
		return c, false
	}
	if c.Type == model.ContactPhone && model.PhoneDigits(c.Value) == "" {
		return c, false
	}
	if c.Type == model.ContactEmail && !strings.Contains(c.Value, "@") {
		return c, false
	}
	switch {
	case c.Confidence < 0 || c.Confidence != c.Confidence:
		c.Confidence = 0
	case c.Confidence > 1:
		c.Confidence = 1
	}
	return c, true
}
