// Package address turns free-form or structured addresses into a canonical
// string and a stable identity hash.
package address

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-cli/internal/model"
	"github.com/sells-group/property-cli/internal/resilience"
)

// ErrInvalidAddress is returned for empty or unparsable input, and for
// standardizer failures when the text fallback is disabled.
var ErrInvalidAddress = eris.New("invalid address")

// Standardizer resolves an address to its canonical street/city/state/zip
// form using an external service. A nil result with a nil error means the
// service did not recognise the address.
type Standardizer interface {
	Standardize(ctx context.Context, oneLine string) (*Standardized, error)
}

// Standardized is a standardizer match.
type Standardized struct {
	Address string
	Source  string
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithStandardizer enables external standardization.
func WithStandardizer(s Standardizer) Option {
	return func(n *Normalizer) { n.std = s }
}

// WithFallback controls whether a failing standardizer degrades to text
// normalization (true) or fails the call with ErrInvalidAddress (false).
func WithFallback(enabled bool) Option {
	return func(n *Normalizer) { n.fallback = enabled }
}

// WithTimeout bounds each standardizer lookup.
func WithTimeout(d time.Duration) Option {
	return func(n *Normalizer) { n.timeout = d }
}

// WithBreaker routes standardizer calls through a circuit breaker so a dead
// service is skipped instead of waited on.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(n *Normalizer) { n.breaker = cb }
}

// Normalizer canonicalizes addresses and computes identity hashes.
type Normalizer struct {
	std      Standardizer
	fallback bool
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

// NewNormalizer returns a Normalizer. Without a standardizer it runs in
// text-only mode.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{fallback: true, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Hash returns the hex SHA-256 digest of a normalized address. It depends
// only on its input.
func Hash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// NormalizeText is the pure text path: canonicalize then hash.
func NormalizeText(raw string) (model.Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return model.Identity{}, eris.Wrap(ErrInvalidAddress, "address: empty")
	}
	canon := Canonicalize(raw)
	if canon == "" {
		return model.Identity{}, eris.Wrapf(ErrInvalidAddress, "address: unparsable %q", raw)
	}
	return model.Identity{Normalized: canon, Hash: Hash(canon)}, nil
}

// Normalize canonicalizes raw, consulting the standardizer when one is
// configured.
func (n *Normalizer) Normalize(ctx context.Context, raw string) (model.Identity, error) {
	text, err := NormalizeText(raw)
	if err != nil {
		return model.Identity{}, err
	}
	if n.std == nil {
		return text, nil
	}

	match, err := n.standardize(ctx, raw)
	if err != nil {
		if !n.fallback {
			return model.Identity{}, eris.Wrapf(ErrInvalidAddress, "address: standardize %q: %v", raw, err)
		}
		zap.L().Debug("address: standardizer failed, using text form",
			zap.String("address", raw),
			zap.Error(err),
		)
		return text, nil
	}
	if match == nil {
		return text, nil
	}

	canon := Canonicalize(match.Address)
	if canon == "" {
		return text, nil
	}
	return model.Identity{Normalized: canon, Hash: Hash(canon)}, nil
}

// NormalizeAddress is Normalize over a structured address.
func (n *Normalizer) NormalizeAddress(ctx context.Context, a model.Address) (model.Identity, error) {
	return n.Normalize(ctx, a.String())
}

func (n *Normalizer) standardize(ctx context.Context, raw string) (*Standardized, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	call := func(ctx context.Context) (*Standardized, error) {
		return n.std.Standardize(ctx, raw)
	}
	if n.breaker != nil {
		return resilience.ExecuteVal(ctx, n.breaker, call)
	}
	return call(ctx)
}
