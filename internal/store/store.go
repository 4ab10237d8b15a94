// Package store persists fused properties keyed by address hash, with a
// secondary index from normalized address to hash.
package store

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/internal/model"
)

// Predicate selects properties during a scan. A nil predicate selects all.
type Predicate func(*model.Property) bool

// UpdateFunc derives the next state of a property from its current state,
// which is nil when none is stored. Returning a nil property leaves the
// stored state untouched.
type UpdateFunc func(current *model.Property) (*model.Property, error)

// Repository is durable keyed storage for fused properties.
//
// Writes to one hash are serialized; writes to different hashes never wait
// on each other. The record and its address index entry are written in one
// transaction, record first.
type Repository interface {
	// Get returns the property stored under hash, or nil when absent.
	Get(ctx context.Context, hash string) (*model.Property, error)
	// GetByNormalizedAddress resolves the address index, or nil when absent.
	GetByNormalizedAddress(ctx context.Context, normalized string) (*model.Property, error)
	// Put stores p under p.AddressHash, replacing any previous record.
	Put(ctx context.Context, p *model.Property) error
	// Update runs fn and writes its result while holding the per-key write
	// lock, so concurrent read-modify-write cycles on one hash serialize.
	Update(ctx context.Context, hash string, fn UpdateFunc) (*model.Property, error)
	// Delete removes the record and its index entry together. It reports
	// whether a record existed.
	Delete(ctx context.Context, hash string) (bool, error)
	// Scan yields the properties matching pred from a snapshot taken when
	// iteration starts. Writes made during the scan are not observed.
	Scan(ctx context.Context, pred Predicate) iter.Seq2[*model.Property, error]

	Migrate(ctx context.Context) error
	Close() error
}

// Option configures a repository.
type Option func(*options)

type options struct {
	timeout time.Duration
}

// WithTimeout bounds each repository operation, including the wait for the
// per-key lock. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func buildOptions(opts []Option) options {
	o := options{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.timeout)
}

func validate(p *model.Property, hash string) error {
	switch {
	case p == nil:
		return eris.Wrap(ErrInvalidRecord, "store: nil property")
	case p.AddressHash == "":
		return eris.Wrap(ErrInvalidRecord, "store: property has no address hash")
	case p.NormalizedAddress == "":
		return eris.Wrapf(ErrInvalidRecord, "store: property %s has no normalized address", p.AddressHash)
	case hash != "" && p.AddressHash != hash:
		return eris.Wrapf(ErrInvalidRecord, "store: property hash %s written under %s", p.AddressHash, hash)
	}
	return nil
}

func encodeRecord(p *model.Property) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode %s", p.AddressHash)
	}
	return data, nil
}

func decodeRecord(hash string, data []byte) (*model.Property, error) {
	var p model.Property
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(ErrCorruptRecord, "store: decode %s: %v", hash, err)
	}
	if p.AddressHash != hash {
		return nil, eris.Wrapf(ErrCorruptRecord, "store: record under %s carries hash %q", hash, p.AddressHash)
	}
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
