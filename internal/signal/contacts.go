package signal

import (
	"regexp"
	"strings"

	"github.com/sells-group/property-cli/internal/model"
)

// Confidence and source labels for extracted contacts.
const (
	ListingConfidence     = 0.8
	DescriptionConfidence = 0.6
	SourceListing         = "listing"
	SourceDescription     = "description"
)

var (
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// maxDescriptionMatches caps matches per pattern; a description with more
// numbers than this is usually a directory dump.
const maxDescriptionMatches = 10

// ExtractContacts returns contact candidates from the structured phone and
// email fields and from the description. Duplicates by normalized value are
// dropped, keeping the structured entry.
func ExtractContacts(obs model.Observation) []model.Contact {
	var out []model.Contact
	seen := make(map[string]bool)
	add := func(t model.ContactType, raw string, confidence float64, source string) {
		c, ok := newContact(t, raw, confidence, source)
		if !ok || seen[c.Key()] {
			return
		}
		seen[c.Key()] = true
		out = append(out, c)
	}

	add(model.ContactPhone, obs.Phone, ListingConfidence, SourceListing)
	add(model.ContactEmail, obs.Email, ListingConfidence, SourceListing)

	for _, m := range descriptionPhones(obs.RawDescription) {
		add(model.ContactPhone, m, DescriptionConfidence, SourceDescription)
	}
	for _, m := range emailRe.FindAllString(obs.RawDescription, maxDescriptionMatches) {
		add(model.ContactEmail, m, DescriptionConfidence, SourceDescription)
	}
	return out
}

// descriptionPhones returns phone-shaped matches in text that are not part
// of a longer digit run such as a parcel or MLS number.
func descriptionPhones(text string) []string {
	var out []string
	for _, loc := range phoneRe.FindAllStringIndex(text, -1) {
		if len(out) == maxDescriptionMatches {
			break
		}
		start, end := loc[0], loc[1]
		if start > 0 && isDigit(text[start-1]) {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		out = append(out, text[start:end])
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func newContact(t model.ContactType, raw string, confidence float64, source string) (model.Contact, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Contact{}, false
	}
	var value string
	switch t {
	case model.ContactPhone:
		value = model.PhoneDigits(raw)
	case model.ContactEmail:
		if emailRe.FindString(raw) != raw {
			return model.Contact{}, false
		}
		value = strings.ToLower(raw)
	}
	if value == "" {
		return model.Contact{}, false
	}
	return model.Contact{Type: t, Value: value, Confidence: confidence, Source: source}, true
}

// Annotate returns obs with its DistressSignals replaced by the extracted
// set and the extracted contacts appended to any it already carried.
func Annotate(obs model.Observation) model.Observation {
	out := obs
	out.DistressSignals = ExtractDistressSignals(obs)

	extracted := ExtractContacts(obs)
	if len(extracted) == 0 {
		return out
	}
	have := make(map[string]bool, len(obs.Contacts))
	contacts := make([]model.Contact, 0, len(obs.Contacts)+len(extracted))
	for _, c := range obs.Contacts {
		have[c.Key()] = true
		contacts = append(contacts, c)
	}
	for _, c := range extracted {
		if !have[c.Key()] {
			contacts = append(contacts, c)
		}
	}
	out.Contacts = contacts
	return out
}
