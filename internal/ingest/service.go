// Package ingest runs observations through normalization, extraction and
// fusion against a repository. It is the only caller that owns the
// read-merge-write cycle.
package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-cli/internal/address"
	"github.com/sells-group/property-cli/internal/fusion"
	"github.com/sells-group/property-cli/internal/model"
	"github.com/sells-group/property-cli/internal/resilience"
	"github.com/sells-group/property-cli/internal/signal"
	"github.com/sells-group/property-cli/internal/store"
)

// Normalizer resolves an address to its identity.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) (model.Identity, error)
	NormalizeAddress(ctx context.Context, a model.Address) (model.Identity, error)
}

// Outcome describes what one ingest did to the stored record.
type Outcome struct {
	Property *model.Property
	Created  bool
	Changed  bool
}

// Stats summarizes a batch.
type Stats struct {
	Processed int64 `json:"processed" yaml:"processed"`
	Created   int64 `json:"created" yaml:"created"`
	Updated   int64 `json:"updated" yaml:"updated"`
	Unchanged int64 `json:"unchanged" yaml:"unchanged"`
	Rejected  int64 `json:"rejected" yaml:"rejected"`
}

// Option configures a Service.
type Option func(*Service)

// WithRetry sets the retry policy for repository unavailability.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithConcurrency bounds the number of observations IngestAll processes at
// once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock sets the clock used to stamp observations that arrive without a
// capture time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service ingests observations.
type Service struct {
	repo        store.Repository
	norm        Normalizer
	engine      *fusion.Engine
	retry       resilience.RetryConfig
	concurrency int
	now         func() time.Time
}

// NewService wires a service from its collaborators.
func NewService(repo store.Repository, norm Normalizer, engine *fusion.Engine, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		norm:        norm,
		engine:      engine,
		retry:       resilience.DefaultRetryConfig(),
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsRejection reports whether err condemns the observation rather than the
// repository. Rejected observations are skipped by batches.
func IsRejection(err error) bool {
	return errors.Is(err, address.ErrInvalidAddress) ||
		errors.Is(err, fusion.ErrInvalidObservation) ||
		errors.Is(err, store.ErrInvalidRecord)
}

// Ingest normalizes obs, extracts its signals and contacts and fuses it into
// the stored record under the per-key lock. Nothing is written when the
// fusion changes nothing.
func (s *Service) Ingest(ctx context.Context, obs model.Observation) (Outcome, error) {
	if obs.Address.IsEmpty() {
		return Outcome{}, eris.Wrap(fusion.ErrInvalidObservation, "ingest: observation has no address")
	}
	id, err := s.norm.NormalizeAddress(ctx, obs.Address)
	if err != nil {
		return Outcome{}, eris.Wrapf(err, "ingest: normalize %q", obs.Address.String())
	}
	if obs.CapturedAt.IsZero() {
		obs.CapturedAt = s.now().UTC()
	}
	obs = signal.Annotate(obs)

	var out Outcome
	retry := s.retry
	retry.ShouldRetry = func(err error) bool { return errors.Is(err, store.ErrUnavailable) }
	retry.OnRetry = resilience.RetryLogger("ingest", zap.String("address_hash", id.Hash))

	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		out = Outcome{}
		stored, err := s.repo.Update(ctx, id.Hash, func(current *model.Property) (*model.Property, error) {
			res, err := s.engine.Merge(current, obs, id)
			if err != nil {
				return nil, err
			}
			out.Created, out.Changed = res.Created, res.Changed
			if !res.Changed {
				return nil, nil
			}
			return res.Property, nil
		})
		out.Property = stored
		return err
	})
	if err != nil {
		return Outcome{}, eris.Wrapf(err, "ingest: fuse %s", id.Hash)
	}

	zap.L().Debug("ingest: fused observation",
		zap.String("source", obs.SourceKey),
		zap.String("address_hash", id.Hash),
		zap.Bool("created", out.Created),
		zap.Bool("changed", out.Changed),
	)
	return out, nil
}

// IngestAll drains observations with bounded concurrency. Rejected
// observations are counted and logged; any other error stops the batch and
// is returned with the stats so far. The caller should cancel the producer's
// context once IngestAll returns.
func (s *Service) IngestAll(ctx context.Context, observations <-chan model.Observation) (Stats, error) {
	var processed, created, updated, unchanged, rejected atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case obs, ok := <-observations:
			if !ok {
				break loop
			}
			g.Go(func() error {
				processed.Add(1)
				out, err := s.Ingest(gctx, obs)
				switch {
				case err != nil && IsRejection(err):
					rejected.Add(1)
					zap.L().Warn("ingest: rejected observation",
						zap.String("source", obs.SourceKey),
						zap.String("address", obs.Address.String()),
						zap.Error(err),
					)
					return nil
				case err != nil:
					return err
				case out.Created:
					created.Add(1)
				case out.Changed:
					updated.Add(1)
				default:
					unchanged.Add(1)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = eris.Wrap(ctx.Err(), "ingest: batch cancelled")
	}
	stats := Stats{
		Processed: processed.Load(),
		Created:   created.Load(),
		Updated:   updated.Load(),
		Unchanged: unchanged.Load(),
		Rejected:  rejected.Load(),
	}
	return stats, err
}

// Lookup resolves a raw address to its stored property, or nil.
func (s *Service) Lookup(ctx context.Context, raw string) (*model.Property, error) {
	id, err := s.norm.Normalize(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByNormalizedAddress(ctx, id.Normalized)
}

// Get returns the property stored under hash, or nil.
func (s *Service) Get(ctx context.Context, hash string) (*model.Property, error) {
	return s.repo.Get(ctx, hash)
}

// Correct applies a correction to the property stored under hash. It
// reports false when no property is stored.
func (s *Service) Correct(ctx context.Context, hash string, c fusion.Correction) (*model.Property, bool, error) {
	if c.At.IsZero() {
		c.At = s.now().UTC()
	}
	found := false
	stored, err := s.repo.Update(ctx, hash, func(current *model.Property) (*model.Property, error) {
		if current == nil {
			return nil, nil
		}
		found = true
		res, err := s.engine.Retract(current, c)
		if err != nil {
			return nil, err
		}
		if !res.Changed {
			return nil, nil
		}
		return res.Property, nil
	})
	if err != nil {
		return nil, false, eris.Wrapf(err, "ingest: correct %s", hash)
	}
	return stored, found, nil
}
