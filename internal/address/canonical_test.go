package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic", "123 Main St, Springfield, IL 62704", "123 main st springfield il 62704"},
		{"suffix spelled out", "123 Main Street, Springfield, IL 62704", "123 main st springfield il 62704"},
		{"case and whitespace", "  123   MAIN   st.,  springfield ,il   62704 ", "123 main st springfield il 62704"},
		{"zip plus four", "123 Main St Springfield IL 62704-1234", "123 main st springfield il 62704"},
		{"full state before zip", "9 Elm Ave, Raleigh, North Carolina 27601", "9 elm ave raleigh nc 27601"},
		{"full state at end", "9 Elm Avenue, Raleigh, North Carolina", "9 elm ave raleigh nc"},
		{"directionals", "500 North Oak Boulevard Suite 4", "500 n oak blvd ste 4"},
		{"apostrophe dropped", "12 O'Brien Lane", "12 obrien ln"},
		{"fullwidth digits", "１２３ Main St", "123 main st"},
		{"unit hash", "77 Pine Rd #2B", "77 pine rd apt 2b"},
		{"unit hash spaced", "77 Pine Rd # 2B", "77 pine rd apt 2b"},
		{"designator and hash", "500 Oak Blvd Suite #4", "500 oak blvd ste 4"},
		{"trailing hash", "77 Pine Rd #", "77 pine rd"},
		{"stray dashes", "5 - Lake Dr -", "5 lake dr"},
		{"punctuation only", ",.;!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"123 Main Street, Springfield, Illinois 62704-0001",
		"1600 Pennsylvania Avenue NW, Washington, DC 20500",
		"500 North Oak Boulevard Suite 4",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		assert.Equal(t, once, Canonicalize(once), in)
	}
}

func TestNormalizeText_UnitHashMatchesApartment(t *testing.T) {
	t.Parallel()
	hash, err := NormalizeText("123 Main St #4, Springfield, IL 62704")
	assert.NoError(t, err)
	apt, err := NormalizeText("123 Main St Apt 4, Springfield, IL 62704")
	assert.NoError(t, err)
	assert.Equal(t, apt, hash)
	assert.Equal(t, "123 main st apt 4 springfield il 62704", apt.Normalized)
}

func TestCanonicalize_HouseNumberKept(t *testing.T) {
	t.Parallel()
	// The first token is never rewritten even when it matches a suffix.
	assert.Equal(t, "north st", Canonicalize("North Street"))
}
