package ingest

import (
	"strings"
	"time"

	"github.com/sells-group/property-cli/internal/model"
)

// RowOptions configures how tabular rows become observations.
type RowOptions struct {
	// SourceKey is used for rows without a source column.
	SourceKey string
	// CapturedAt is used for rows without a capture time. Zero leaves the
	// stamp to the service clock.
	CapturedAt time.Time
}

type column int

const (
	colAttribute column = iota
	colSourceKey
	colSourceURL
	colCapturedAt
	colLine1
	colCity
	colState
	colZip
	colOwner
	colPrice
	colPhone
	colEmail
	colDescription
	colSignals
)

var headerColumns = map[string]column{
	"source":           colSourceKey,
	"source_key":       colSourceKey,
	"source_url":       colSourceURL,
	"url":              colSourceURL,
	"captured_at":      colCapturedAt,
	"address":          colLine1,
	"line1":            colLine1,
	"street":           colLine1,
	"address_line1":    colLine1,
	"city":             colCity,
	"state":            colState,
	"zip":              colZip,
	"zipcode":          colZip,
	"zip_code":         colZip,
	"postal_code":      colZip,
	"owner":            colOwner,
	"owner_name":       colOwner,
	"price":            colPrice,
	"price_hint":       colPrice,
	"list_price":       colPrice,
	"phone":            colPhone,
	"email":            colEmail,
	"description":      colDescription,
	"raw_description":  colDescription,
	"remarks":          colDescription,
	"distress_signals": colSignals,
	"signals":          colSignals,
}

var captureLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly, "01/02/2006"}

// rowMapper maps header-named cells onto an observation.
type rowMapper struct {
	opts    RowOptions
	keys    []string
	columns []column
}

func newRowMapper(header []string, opts RowOptions) *rowMapper {
	m := &rowMapper{opts: opts, keys: make([]string, len(header)), columns: make([]column, len(header))}
	for i, h := range header {
		key := headerKey(h)
		m.keys[i] = key
		m.columns[i] = headerColumns[key]
	}
	return m
}

// headerKey lower-cases a header and joins its words with underscores so
// "Owner Name" and "owner_name" map to the same column.
func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "_")
}

// observation converts one row. Cells past the header and empty cells are
// ignored; unknown columns become attributes.
func (m *rowMapper) observation(row []string) model.Observation {
	obs := model.Observation{SourceKey: m.opts.SourceKey, CapturedAt: m.opts.CapturedAt}
	for i, raw := range row {
		if i >= len(m.columns) {
			break
		}
		v := strings.TrimSpace(raw)
		if v == "" {
			continue
		}
		switch m.columns[i] {
		case colSourceKey:
			obs.SourceKey = v
		case colSourceURL:
			obs.SourceURL = v
		case colCapturedAt:
			if t, ok := parseCaptured(v); ok {
				obs.CapturedAt = t
			}
		case colLine1:
			obs.Address.Line1 = v
		case colCity:
			obs.Address.City = v
		case colState:
			obs.Address.State = v
		case colZip:
			obs.Address.Zip = v
		case colOwner:
			obs.OwnerName = v
		case colPrice:
			if n, ok := model.String(v).AsNumber(); ok {
				f, _ := n.Num()
				obs.PriceHint = &f
			}
		case colPhone:
			obs.Phone = v
		case colEmail:
			obs.Email = v
		case colDescription:
			obs.RawDescription = v
		case colSignals:
			obs.DistressSignals = parseSignals(v)
		default:
			if m.keys[i] == "" {
				continue
			}
			if obs.Attributes == nil {
				obs.Attributes = make(map[string]model.Scalar)
			}
			obs.Attributes[m.keys[i]] = model.SniffScalar(v)
		}
	}
	return obs
}

func parseCaptured(v string) (time.Time, bool) {
	for _, layout := range captureLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseSignals(v string) []model.DistressSignal {
	var out []model.DistressSignal
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == ',' || r == '|' }) {
		if s, ok := model.ParseSignal(part); ok {
			out = append(out, s)
		}
	}
	return out
}
