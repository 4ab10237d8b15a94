// Package geocode standardizes addresses via the Census Geocoder (primary)
// and Google Geocoding (fallback).
package geocode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client resolves an address to its standardized postal form.
type Client interface {
	// Standardize looks up a single address. An unmatched address is not an
	// error: the result has Matched=false.
	Standardize(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput represents an address to standardize. A one-line address can
// be passed in Street alone.
type AddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the standardization output for an address.
type Result struct {
	MatchedAddress string
	Latitude       float64
	Longitude      float64
	Source         string // "census" or "google"
	Quality        string // "rooftop", "range", "centroid", "approximate"
	Matched        bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client for both Census and Google requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second rate limit shared by both providers.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Standardize tries Census first, then Google if configured. A provider error
// is returned only when no provider produced an answer.
func (g *geocoder) Standardize(ctx context.Context, addr AddressInput) (*Result, error) {
	if formatOneLine(addr) == "" {
		return &Result{Matched: false}, nil
	}

	result, censusErr := g.standardizeCensus(ctx, addr)
	if censusErr == nil && result.Matched {
		return result, nil
	}

	if g.googleKey != "" {
		googleResult, googleErr := g.standardizeGoogle(ctx, addr)
		if googleErr == nil {
			return googleResult, nil
		}
		if censusErr != nil {
			return nil, eris.Wrapf(googleErr, "geocode: all providers failed (census: %v)", censusErr)
		}
	}

	if censusErr != nil {
		return nil, censusErr
	}
	return &Result{Matched: false, Source: "census"}, nil
}

// formatOneLine formats an address as a single line.
func formatOneLine(addr AddressInput) string {
	parts := []string{addr.Street, addr.City, addr.State, addr.ZipCode}
	var nonEmpty []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
