package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a key has no stored bundle.
var ErrNotFound = errors.New("storage: not found")

// Schema creates the bundle table. Data holds an encoded Blob; codec, size
// and hash are its header.
const Schema = `
CREATE TABLE IF NOT EXISTS bundles (
	key        TEXT PRIMARY KEY,
	codec      INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	hash       TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// ApplySchema creates the tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// entry is the CBOR envelope written for each bundle. The bundle JSON is
// kept as bytes so Get returns exactly what Put was given.
type entry struct {
	Version int    `cbor:"1,keyasint"`
	Bundle  []byte `cbor:"2,keyasint"`
}

const entryVersion = 1

// Info describes a stored bundle without decoding it.
type Info struct {
	Key     string
	Codec   Compression
	Size    int
	Hash    string
	Updated time.Time
}

// LocalStore keeps bundles in a SQLite database under string keys.
type LocalStore struct {
	db  *sql.DB
	now func() time.Time

	// Compression is applied by Put. It defaults to CompressionZstd.
	Compression Compression
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(ctx context.Context, path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// One connection: an in-memory database is per connection, and callers
	// are single-threaded.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &LocalStore{db: db, now: time.Now, Compression: CompressionZstd}, nil
}

// DB returns the underlying database handle.
func (s *LocalStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LocalStore) Close() error { return s.db.Close() }

// Put stores bundleJSON under key, replacing any previous value.
func (s *LocalStore) Put(ctx context.Context, key string, bundleJSON []byte) error {
	blob, err := Encode(entry{Version: entryVersion, Bundle: bundleJSON}, s.Compression)
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bundles (key, codec, size, hash, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			codec = excluded.codec,
			size = excluded.size,
			hash = excluded.hash,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		key, int(blob.Codec), blob.Size, blob.HashString(), blob.Data, s.now().Unix())
	if err != nil {
		return fmt.Errorf("storage: put %q: %w", key, err)
	}
	return nil
}

// Get returns the bundle JSON stored under key. It returns ErrNotFound for
// a missing key and ErrChecksum for a corrupted row.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		codec   int
		size    int
		hashHex string
		data    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT codec, size, hash, data FROM bundles WHERE key = ?`, key,
	).Scan(&codec, &size, &hashHex, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %q: %w", key, err)
	}

	blob := Blob{Codec: Compression(codec), Size: size, Data: data}
	raw, err := hex.DecodeString(hashHex)
	if err != nil || len(raw) != len(blob.Hash) {
		return nil, fmt.Errorf("storage: get %q: %w", key, ErrChecksum)
	}
	copy(blob.Hash[:], raw)

	var e entry
	if err := Decode(blob, &e); err != nil {
		return nil, fmt.Errorf("storage: get %q: %w", key, err)
	}
	if e.Version != entryVersion {
		return nil, fmt.Errorf("storage: get %q: unsupported entry version %d", key, e.Version)
	}
	if e.Bundle == nil {
		return []byte{}, nil
	}
	return e.Bundle, nil
}

// Keys lists stored keys in ascending order.
func (s *LocalStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM bundles ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("storage: keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stat returns the header of the bundle under key.
func (s *LocalStore) Stat(ctx context.Context, key string) (Info, error) {
	info := Info{Key: key}
	var codec int
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT codec, size, hash, updated_at FROM bundles WHERE key = ?`, key,
	).Scan(&codec, &info.Size, &info.Hash, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, fmt.Errorf("storage: stat %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Info{}, fmt.Errorf("storage: stat %q: %w", key, err)
	}
	info.Codec = Compression(codec)
	info.Updated = time.Unix(updated, 0)
	return info, nil
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bundles WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: delete %q: %w", key, ErrNotFound)
	}
	return nil
}
