package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Address is a postal address as reported by a source. Sources that only
// provide a single free-form line put it in Line1.
type Address struct {
	Line1 string `json:"line1" yaml:"line1"`
	City  string `json:"city,omitempty" yaml:"city,omitempty"`
	State string `json:"state,omitempty" yaml:"state,omitempty"`
	Zip   string `json:"zip,omitempty" yaml:"zip,omitempty"`
}

// String joins the non-empty components into a one-line address.
func (a Address) String() string {
	parts := []string{a.Line1, a.City, strings.TrimSpace(a.State + " " + a.Zip)}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// IsEmpty reports whether no component carries text.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.String()) == ""
}

// UnmarshalJSON accepts either a bare string or the structured object.
func (a *Address) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var line string
		if err := json.Unmarshal(data, &line); err != nil {
			return eris.Wrap(err, "address: decode string")
		}
		*a = Address{Line1: line}
		return nil
	}
	type plain Address
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return eris.Wrap(err, "address: decode object")
	}
	*a = Address(p)
	return nil
}

// Identity is the canonical form of an address together with its digest.
// The hash is the sole primary key of a Property.
type Identity struct {
	Normalized string `json:"normalized_address"`
	Hash       string `json:"address_hash"`
}
