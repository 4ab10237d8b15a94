package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ScalarKind is the variant held by a Scalar.
type ScalarKind string

const (
	KindString ScalarKind = "string"
	KindNumber ScalarKind = "number"
	KindBool   ScalarKind = "bool"
)

// Scalar is a single attribute value reported by a source. It holds exactly
// one of a string, a number or a bool and encodes to the plain JSON value.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	b    bool
}

// String returns a string scalar.
func String(s string) Scalar { return Scalar{kind: KindString, str: s} }

// Number returns a numeric scalar.
func Number(n float64) Scalar { return Scalar{kind: KindNumber, num: n} }

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{kind: KindBool, b: b} }

// Kind reports the variant held.
func (s Scalar) Kind() ScalarKind { return s.kind }

// IsZero reports whether the scalar was never assigned.
func (s Scalar) IsZero() bool { return s.kind == "" }

// Str returns the string value and whether the scalar is a string.
func (s Scalar) Str() (string, bool) { return s.str, s.kind == KindString }

// Num returns the numeric value and whether the scalar is a number.
func (s Scalar) Num() (float64, bool) { return s.num, s.kind == KindNumber }

// Truth returns the boolean value and whether the scalar is a bool.
func (s Scalar) Truth() (bool, bool) { return s.b, s.kind == KindBool }

// Equal reports whether two scalars hold the same variant and value.
func (s Scalar) Equal(o Scalar) bool {
	if s.kind != o.kind {
		return false
	}
	switch s.kind {
	case KindString:
		return s.str == o.str
	case KindNumber:
		return s.num == o.num
	case KindBool:
		return s.b == o.b
	}
	return true
}

// Text renders the value the way it would be written in a spreadsheet cell.
func (s Scalar) Text() string {
	switch s.kind {
	case KindString:
		return s.str
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.b)
	}
	return ""
}

// AsNumber coerces the scalar to a number. Numeric strings such as "1,850"
// are accepted.
func (s Scalar) AsNumber() (Scalar, bool) {
	switch s.kind {
	case KindNumber:
		return s, true
	case KindString:
		clean := strings.ReplaceAll(strings.TrimSpace(s.str), ",", "")
		clean = strings.TrimPrefix(clean, "$")
		n, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return Scalar{}, false
		}
		return Number(n), true
	}
	return Scalar{}, false
}

// AsBool coerces the scalar to a bool. Accepts yes/no, y/n, 1/0 and the
// strconv forms.
func (s Scalar) AsBool() (Scalar, bool) {
	switch s.kind {
	case KindBool:
		return s, true
	case KindNumber:
		if s.num == 0 || s.num == 1 {
			return Bool(s.num == 1), true
		}
	case KindString:
		switch strings.ToLower(strings.TrimSpace(s.str)) {
		case "yes", "y":
			return Bool(true), true
		case "no", "n":
			return Bool(false), true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s.str))
		if err == nil {
			return Bool(b), true
		}
	}
	return Scalar{}, false
}

// SniffScalar turns raw cell text into the most specific scalar: bool, then
// number, then string.
func SniffScalar(raw string) Scalar {
	t := strings.TrimSpace(raw)
	switch strings.ToLower(t) {
	case "true", "false":
		b, _ := strconv.ParseBool(strings.ToLower(t))
		return Bool(b)
	}
	if n, err := strconv.ParseFloat(t, 64); err == nil {
		return Number(n)
	}
	return String(t)
}

// Ptr returns a pointer to a copy of s.
func (s Scalar) Ptr() *Scalar { return &s }

// MarshalJSON encodes the bare JSON value.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindString:
		return json.Marshal(s.str)
	case KindNumber:
		return json.Marshal(s.num)
	case KindBool:
		return json.Marshal(s.b)
	}
	return []byte("null"), nil
}

// MarshalYAML renders the bare value.
func (s Scalar) MarshalYAML() (any, error) {
	switch s.kind {
	case KindString:
		return s.str, nil
	case KindNumber:
		return s.num, nil
	case KindBool:
		return s.b, nil
	}
	return nil, nil
}

// UnmarshalJSON decodes a JSON string, number or bool. Objects and arrays
// are rejected since attributes are scalar by contract.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return eris.Wrap(err, "scalar: decode string")
		}
		*s = String(v)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return eris.Wrap(err, "scalar: decode bool")
		}
		*s = Bool(v)
	case '{', '[':
		return eris.Errorf("scalar: composite value %s not allowed", string(data))
	default:
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return eris.Wrap(err, "scalar: decode number")
		}
		*s = Number(v)
	}
	return nil
}
