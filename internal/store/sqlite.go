package store

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sells-group/property-cli/internal/model"
)

// SQLiteStore implements Repository on an embedded SQLite file in WAL mode.
//
// Same-key writers are serialized by an in-process key lock, which assumes
// one process owns the file. Writes go through a single-connection handle
// that opens IMMEDIATE transactions around the record and index statements
// only, so writers of other keys wait at most for those statements. Reads and
// scans use a separate handle with deferred transactions and never block
// writers.
type SQLiteStore struct {
	write *sql.DB
	read  *sql.DB
	locks *keyLocks
	opts  options
}

var _ Repository = (*SQLiteStore)(nil)

var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN applies the connection pragmas to every pooled connection.
func sqliteDSN(path, txlock string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	if txlock != "" {
		q.Set("_txlock", txlock)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// NewSQLite opens the database file at path.
func NewSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	write, err := sql.Open("sqlite", sqliteDSN(path, "immediate"))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// SQLite admits one writer at a time; queue writers in the pool rather
	// than in the busy handler.
	write.SetMaxOpenConns(1)
	read, err := sql.Open("sqlite", sqliteDSN(path, ""))
	if err != nil {
		_ = write.Close()
		return nil, eris.Wrap(err, "sqlite: open reader")
	}
	if err := write.Ping(); err != nil {
		_ = write.Close()
		_ = read.Close()
		return nil, unavailable("ping", err)
	}
	return &SQLiteStore{
		write: write,
		read:  read,
		locks: newKeyLocks(),
		opts:  buildOptions(opts),
	}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS properties (
	address_hash       TEXT PRIMARY KEY,
	normalized_address TEXT NOT NULL,
	record             TEXT NOT NULL,
	stored_at          TEXT NOT NULL,
	updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS property_address_index (
	normalized_address TEXT PRIMARY KEY,
	address_hash       TEXT NOT NULL REFERENCES properties(address_hash)
);

CREATE INDEX IF NOT EXISTS idx_property_address_index_hash ON property_address_index(address_hash);
CREATE INDEX IF NOT EXISTS idx_properties_updated_at ON properties(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.write.ExecContext(ctx, sqliteMigration)
	return unavailable("migrate", err)
}

func (s *SQLiteStore) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}

func (s *SQLiteStore) Get(ctx context.Context, hash string) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()
	return sqliteGet(ctx, s.read, hash)
}

func (s *SQLiteStore) GetByNormalizedAddress(ctx context.Context, normalized string) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	var hash string
	var rec []byte
	err := s.read.QueryRowContext(ctx,
		`SELECT p.address_hash, p.record
		   FROM property_address_index i
		   JOIN properties p ON p.address_hash = i.address_hash
		  WHERE i.normalized_address = ?`,
		normalized,
	).Scan(&hash, &rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get by address", err)
	}
	return decodeRecord(hash, rec)
}

func (s *SQLiteStore) Put(ctx context.Context, p *model.Property) error {
	if err := validate(p, ""); err != nil {
		return err
	}
	_, err := s.Update(ctx, p.AddressHash, func(*model.Property) (*model.Property, error) {
		return p, nil
	})
	return err
}

func (s *SQLiteStore) Update(ctx context.Context, hash string, fn UpdateFunc) (*model.Property, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, hash)
	if err != nil {
		return nil, unavailable("lock "+hash, err)
	}
	defer unlock()

	// The key lock already excludes other writers of hash, so the read and
	// fn run outside any transaction and the write connection is held only
	// for the statements themselves.
	current, err := sqliteGet(ctx, s.read, hash)
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

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := sqlitePut(ctx, tx, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return next, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, hash string) (bool, error) {
	ctx, cancel := s.opts.bound(ctx)
	defer cancel()

	unlock, err := s.locks.Lock(ctx, hash)
	if err != nil {
		return false, unavailable("lock "+hash, err)
	}
	defer unlock()

	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return false, unavailable("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM property_address_index WHERE address_hash = ?`, hash); err != nil {
		return false, unavailable("delete index", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE address_hash = ?`, hash)
	if err != nil {
		return false, unavailable("delete record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("rows affected", err)
	}
	if err := tx.Commit(); err != nil {
		return false, unavailable("commit", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, pred Predicate) iter.Seq2[*model.Property, error] {
	return func(yield func(*model.Property, error) bool) {
		tx, err := s.read.BeginTx(ctx, nil)
		if err != nil {
			yield(nil, unavailable("scan begin", err))
			return
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, `SELECT address_hash, record FROM properties ORDER BY address_hash`)
		if err != nil {
			yield(nil, unavailable("scan", err))
			return
		}
		defer rows.Close() //nolint:errcheck

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

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteGet(ctx context.Context, q sqlQuerier, hash string) (*model.Property, error) {
	var rec []byte
	err := q.QueryRowContext(ctx, `SELECT record FROM properties WHERE address_hash = ?`, hash).Scan(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get "+hash, err)
	}
	return decodeRecord(hash, rec)
}

// sqlitePut writes the record, then its index entry, inside tx.
func sqlitePut(ctx context.Context, tx *sql.Tx, p *model.Property) error {
	rec, err := encodeRecord(p)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO properties (address_hash, normalized_address, record, stored_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(address_hash) DO UPDATE SET
			normalized_address = excluded.normalized_address,
			record             = excluded.record,
			stored_at          = excluded.stored_at,
			updated_at         = excluded.updated_at`,
		p.AddressHash, p.NormalizedAddress, string(rec), formatTime(p.StoredAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return unavailable("put record", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM property_address_index WHERE address_hash = ? AND normalized_address <> ?`,
		p.AddressHash, p.NormalizedAddress,
	); err != nil {
		return unavailable("put index", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO property_address_index (normalized_address, address_hash) VALUES (?, ?)
		 ON CONFLICT(normalized_address) DO UPDATE SET address_hash = excluded.address_hash`,
		p.NormalizedAddress, p.AddressHash,
	)
	return unavailable("put index", err)
}
