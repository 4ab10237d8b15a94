package address

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// abbrToState maps lowercase state abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// stateToAbbr maps lowercase full names to lowercase abbreviations.
var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// tokenAbbr holds USPS Publication 28 abbreviations for the street suffixes,
// directionals and unit designators that sources spell out most often.
var tokenAbbr = map[string]string{
	"street": "st", "str": "st",
	"avenue": "ave", "av": "ave", "aven": "ave",
	"road": "rd",
	"drive": "dr", "drv": "dr",
	"lane": "ln",
	"boulevard": "blvd", "boul": "blvd",
	"court": "ct",
	"place": "pl",
	"terrace": "ter",
	"circle": "cir",
	"highway": "hwy",
	"parkway": "pkwy",
	"square": "sq",
	"trail": "trl",
	"crossing": "xing",
	"expressway": "expy",
	"north": "n", "south": "s", "east": "e", "west": "w",
	"northeast": "ne", "northwest": "nw", "southeast": "se", "southwest": "sw",
	"apartment": "apt",
	"suite": "ste",
	"building": "bldg",
	"floor": "fl",
}

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Canonicalize reduces a free-form address to its canonical text form:
// Unicode NFKC, case folding, punctuation stripped, whitespace collapsed,
// common USPS abbreviations applied, a "#" unit mark spelled as "apt", a
// spelled-out state before the ZIP replaced by its postal code and ZIP+4
// truncated to five digits. It returns "" when nothing alphanumeric remains.
func Canonicalize(raw string) string {
	// Casers carry state, so each call gets its own.
	s := cases.Fold().String(norm.NFKC.String(raw))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’':
			// O'Brien and OBrien are the same street.
		case r == '#':
			b.WriteString(" # ")
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '/':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	tokens = trimDashes(tokens)
	if len(tokens) == 0 {
		return ""
	}

	zipIdx := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		if zipPattern.MatchString(tokens[i]) {
			zipIdx = i
			tokens[i] = tokens[i][:5]
			break
		}
	}
	end := len(tokens)
	if zipIdx > 0 {
		end = zipIdx
	}
	tokens = abbreviateState(tokens, end)

	// The house number stays as written even when it reads like a suffix.
	for i, tok := range tokens {
		if abbr, ok := tokenAbbr[tok]; ok && i > 0 {
			tokens[i] = abbr
		}
	}

	return strings.Join(unitMarks(tokens), " ")
}

// unitDesignators are the unit words a "#" may follow without changing
// meaning.
var unitDesignators = map[string]bool{
	"apt": true, "ste": true, "unit": true, "bldg": true, "fl": true,
	"rm": true, "lot": true, "spc": true, "trlr": true, "dept": true,
}

// unitMarks rewrites "#" before a unit value to "apt", so "#4" and "apt 4"
// agree. A "#" after a designator or with nothing following is dropped.
func unitMarks(tokens []string) []string {
	out := tokens[:0]
	for i, tok := range tokens {
		if tok != "#" {
			out = append(out, tok)
			continue
		}
		if len(out) == 0 || i == len(tokens)-1 || tokens[i+1] == "#" {
			continue
		}
		if len(out) > 0 && unitDesignators[out[len(out)-1]] {
			continue
		}
		out = append(out, "apt")
	}
	return out
}

// abbreviateState rewrites a full state name ending just before index end.
func abbreviateState(tokens []string, end int) []string {
	for width := 3; width >= 1; width-- {
		start := end - width
		if start < 1 {
			continue
		}
		name := strings.Join(tokens[start:end], " ")
		abbr, ok := stateToAbbr[name]
		if !ok {
			continue
		}
		out := make([]string, 0, len(tokens)-width+1)
		out = append(out, tokens[:start]...)
		out = append(out, abbr)
		return append(out, tokens[end:]...)
	}
	return tokens
}

func trimDashes(tokens []string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		t = strings.Trim(t, "-/")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
