// Package store provides the sqlite-backed persistence the spec's
// classification cache and dedup-state overflow need: a single-writer WAL
// database, same connection-pool pattern as the teacher's crawl database,
// repointed at this system's two durable tables instead of a SEO crawl
// schema.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/demomirror/crawler/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS classification_cache (
	domain      TEXT NOT NULL,
	cache_key   TEXT NOT NULL,
	result_json TEXT NOT NULL,
	updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (domain, cache_key)
);

CREATE TABLE IF NOT EXISTS dedup_exact (
	domain     TEXT NOT NULL,
	exact_hash TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	PRIMARY KEY (domain, exact_hash)
);

CREATE TABLE IF NOT EXISTS dedup_fuzzy (
	domain       TEXT NOT NULL,
	fuzzy_hash   TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	simhash      INTEGER NOT NULL,
	PRIMARY KEY (domain, fuzzy_hash, canonical_url)
);
`

// DB wraps a single-writer sqlite connection. SQLite only supports one
// writer, so MaxOpenConns is pinned to 1, mirroring the teacher's database.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open creates (or reuses) the sqlite file at path in WAL mode and ensures
// the schema exists.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: creating schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// ClassificationCache scopes classification_cache rows to one domain and
// implements internal/classify.Cache.
type ClassificationCache struct {
	db     *DB
	domain string
}

// Classifications returns a Cache scoped to domain.
func (d *DB) Classifications(domain string) *ClassificationCache {
	return &ClassificationCache{db: d, domain: domain}
}

// Get implements classify.Cache.
func (c *ClassificationCache) Get(key string) (model.ClassificationResult, bool) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	var raw string
	err := c.db.conn.QueryRow(
		`SELECT result_json FROM classification_cache WHERE domain = ? AND cache_key = ?`,
		c.domain, key,
	).Scan(&raw)
	if err != nil {
		return model.ClassificationResult{}, false
	}

	var result model.ClassificationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return model.ClassificationResult{}, false
	}
	return result, true
}

// Put implements classify.Cache.
func (c *ClassificationCache) Put(key string, result model.ClassificationResult) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	raw, err := json.Marshal(result)
	if err != nil {
		return
	}

	_, _ = c.db.conn.Exec(`
		INSERT INTO classification_cache (domain, cache_key, result_json, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(domain, cache_key) DO UPDATE SET
			result_json = excluded.result_json,
			updated_at = CURRENT_TIMESTAMP
	`, c.domain, key, string(raw))
}

// DedupOverflow persists the dedup state (C2) tables a long crawl would
// otherwise hold only in memory, scoped to one domain.
type DedupOverflow struct {
	db     *DB
	domain string
}

// Dedup returns a DedupOverflow scoped to domain.
func (d *DB) Dedup(domain string) *DedupOverflow {
	return &DedupOverflow{db: d, domain: domain}
}

// PutExact records a canonical URL under its exact-content hash.
func (o *DedupOverflow) PutExact(exactHash, canonicalURL string) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	_, err := o.db.conn.Exec(`
		INSERT INTO dedup_exact (domain, exact_hash, canonical_url)
		VALUES (?, ?, ?)
		ON CONFLICT(domain, exact_hash) DO NOTHING
	`, o.domain, exactHash, canonicalURL)
	return err
}

// GetExact looks up the canonical URL for an exact-content hash, if any.
func (o *DedupOverflow) GetExact(exactHash string) (string, bool) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	var canonicalURL string
	err := o.db.conn.QueryRow(
		`SELECT canonical_url FROM dedup_exact WHERE domain = ? AND exact_hash = ?`,
		o.domain, exactHash,
	).Scan(&canonicalURL)
	return canonicalURL, err == nil
}

// PutFuzzy records a canonical URL's SimHash under its fuzzy-bucket hash.
func (o *DedupOverflow) PutFuzzy(fuzzyHash, canonicalURL string, simhash uint64) error {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()
	_, err := o.db.conn.Exec(`
		INSERT INTO dedup_fuzzy (domain, fuzzy_hash, canonical_url, simhash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(domain, fuzzy_hash, canonical_url) DO NOTHING
	`, o.domain, fuzzyHash, canonicalURL, int64(simhash))
	return err
}

// FuzzyBucket returns every (canonical_url, simhash) pair stored under a
// fuzzy-bucket hash, the candidate set the near-duplicate tier compares
// against.
func (o *DedupOverflow) FuzzyBucket(fuzzyHash string) ([]struct {
	CanonicalURL string
	SimHash      uint64
}, error) {
	o.db.mu.Lock()
	defer o.db.mu.Unlock()

	rows, err := o.db.conn.Query(
		`SELECT canonical_url, simhash FROM dedup_fuzzy WHERE domain = ? AND fuzzy_hash = ?`,
		o.domain, fuzzyHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []struct {
		CanonicalURL string
		SimHash      uint64
	}
	for rows.Next() {
		var url string
		var sim int64
		if err := rows.Scan(&url, &sim); err != nil {
			return nil, err
		}
		out = append(out, struct {
			CanonicalURL string
			SimHash      uint64
		}{CanonicalURL: url, SimHash: uint64(sim)})
	}
	return out, rows.Err()
}
