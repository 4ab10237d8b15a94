package store

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/property-cli/internal/db"
	"github.com/sells-group/property-cli/internal/model"
)

// PostgresStore implements Repository on Postgres. Per-key serialization
// holds across processes through a transaction-scoped advisory lock on the
// address hash.
type PostgresStore struct {
	pool  db.Pool
	locks *keyLocks
	opts  options
}

var _ Repository = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	propertyUpsert = db.UpsertConfig{
		Table:        "properties",
		Columns:      []string{"address_hash", "normalized_address", "record", "stored_at", "updated_at"},
		ConflictKeys: []string{"address_hash"},
	}
	addressIndexUpsert = db.UpsertConfig{
		Table:        "property_address_index",
		Columns:      []string{"normalized_address", "address_hash"},
		ConflictKeys: []string{"normalized_address"},
	}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}
	return newPostgresWithPool(pool, opts...), nil
}

func newPostgresWithPool(pool db.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, locks: newKeyLocks(), opts: buildOptions(opts)}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS properties (
	address_hash       TEXT PRIMARY KEY,
	normalized_address TEXT NOT NULL,
	record             JSONB NOT NULL,
	stored_at          TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS property_address_index (
	normalized_address TEXT PRIMARY KEY,
	address_hash       TEXT NOT NULL REFERENCES properties(address_hash)
);

CREATE INDEX IF NOT EXISTS idx_property_address_index_hash ON property_address_index(address_hash);
CREATE INDEX IF NOT EXISTS idx_properties_updated_at ON properties(updated_at);
CREATE INDEX IF NOT EXISTS idx_properties_signals ON properties USING GIN ((record -> 'distress_signals'));
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return unavailable("migrate", err)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, hash string) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()
	return pgGet(ctx, s.pool, hash)
}

func (s *PostgresStore) GetByNormalizedAddress(ctx context.Context, normalized string) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	var hash string
	var rec []byte
	err := s.pool.QueryRow(ctx,
		`SELECT p.address_hash, p.record FROM property_address_index i JOIN properties p ON p.address_hash = i.address_hash WHERE i.normalized_address = $1`,
		normalized,
	).Scan(&hash, &rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get by address", err)
	}
	return decodeRecord(hash, rec)
}

func (s *PostgresStore) Put(ctx context.Context, p *model.Property) error {
	if err := validate(p, ""); err != nil {
		return err
	}
	_, err := s.Update(ctx, p.AddressHash, func(*model.Property) (*model.Property, error) {
		return p, nil
	})
	return err
}

func (s *PostgresStore) Update(ctx context.Context, hash string, fn UpdateFunc) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, hash)
	if err != nil {
		return nil, unavailable("lock "+hash, err)
	}
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := pgLockKey(ctx, tx, hash); err != nil {
		return nil, err
	}
	current, err := pgGet(ctx, tx, hash)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}
	if err := validate(next, hash); err != nil {
		return nil, err
	}
	if err := pgPut(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("commit", err)
	}
	return next, nil
}

func (s *PostgresStore) Delete(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, hash)
	if err != nil {
		return false, unavailable("lock "+hash, err)
	}
	defer unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := pgLockKey(ctx, tx, hash); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM property_address_index WHERE address_hash = $1`, hash); err != nil {
		return false, unavailable("delete index", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM properties WHERE address_hash = $1`, hash)
	if err != nil {
		return false, unavailable("delete record", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, unavailable("commit", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Scan(ctx context.Context, pred Predicate) iter.Seq2[*model.Property, error] {
	return func(yield func(*model.Property, error) bool) {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		if err != nil {
			yield(nil, unavailable("scan begin", err))
			return
		}
		defer func() { _ = tx.Rollback(ctx) }()

		rows, err := tx.Query(ctx, `SELECT address_hash, record FROM properties ORDER BY address_hash`)
		if err != nil {
			yield(nil, unavailable("scan", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var hash string
			var rec []byte
			if err := rows.Scan(&hash, &rec); err != nil {
				yield(nil, unavailable("scan row", err))
				return
			}
			p, err := decodeRecord(hash, rec)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if pred != nil && !pred(p) {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, unavailable("scan iterate", err))
		}
	}
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgGet(ctx context.Context, q pgQuerier, hash string) (*model.Property, error) {
	var rec []byte
	err := q.QueryRow(ctx, `SELECT record FROM properties WHERE address_hash = $1`, hash).Scan(&rec)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get "+hash, err)
	}
	return decodeRecord(hash, rec)
}

// pgLockKey takes the advisory lock for hash, released at commit or rollback.
func pgLockKey(ctx context.Context, tx pgx.Tx, hash string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, hash); err != nil {
		return unavailable("advisory lock "+hash, err)
	}
	return nil
}

// pgPut writes the record, then its index entry, inside tx.
func pgPut(ctx context.Context, tx pgx.Tx, p *model.Property) error {
	rec, err := encodeRecord(p)
	if err != nil {
		return err
	}
	if _, err := db.Upsert(ctx, tx, propertyUpsert,
		p.AddressHash, p.NormalizedAddress, string(rec), p.StoredAt.UTC(), p.UpdatedAt.UTC(),
	); err != nil {
		return unavailable("put record", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM property_address_index WHERE address_hash = $1 AND normalized_address <> $2`,
		p.AddressHash, p.NormalizedAddress,
	); err != nil {
		return unavailable("put index", err)
	}
	if _, err := db.Upsert(ctx, tx, addressIndexUpsert, p.NormalizedAddress, p.AddressHash); err != nil {
		return unavailable("put index", err)
	}
	return nil
}
