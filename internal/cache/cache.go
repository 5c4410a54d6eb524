// Package cache implements the agent's durable local index: per-path
// identity/hash/probe state, the delivery outbox, and scan cursors.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"medialib/internal/hashing"
	"medialib/internal/identity"
	"medialib/internal/logging"
)

// Default timeout for cache operations
const defaultTimeout = 5 * time.Second

// Store is the agent's local SQLite-backed index. A single Store is
// shared by all pipeline workers; writes serialize through SQLite's
// own locking.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Record is the cached state for one path.
type Record struct {
	Path           string
	IdentityKey    identity.Key
	Size           int64
	MTime          float64
	CTime          float64
	Probed         bool
	Hashed         bool
	HashAlgo       hashing.Algo
	HashSampleSize int64
	SampleHash     string
	FullHash       string
	LastSeen       float64
	LastHashedAt   float64
}

// CachedHashes is the reusable hash tuple returned by HashCacheValid.
type CachedHashes struct {
	Algo       hashing.Algo
	SampleSize int64
	SampleHash string
	FullHash   string
}

// OutboxEntry is one undelivered batch queued for redelivery.
type OutboxEntry struct {
	ID        int64
	BatchID   string
	Payload   string
	CreatedAt float64
}

// Open creates or opens the agent cache at dbPath. The parent directory
// is created if missing.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Agent cache path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}
	if err := diagnoseCachePermissions(dbPath); err != nil {
		logging.Warn("Cache permission diagnostics: %v", err)
	}

	// WAL mode with a busy timeout so concurrent workers don't trip
	// over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close cache after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close cache after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	logging.Info("Agent cache initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_index (
		path TEXT PRIMARY KEY,
		inode_key TEXT,
		size INTEGER,
		mtime REAL,
		ctime REAL,
		probed INTEGER DEFAULT 0,
		hashed INTEGER DEFAULT 0,
		hash_algo TEXT,
		hash_sample_size INTEGER,
		sample_hash TEXT,
		full_hash TEXT,
		last_seen REAL,
		last_hashed_at REAL
	);
	CREATE INDEX IF NOT EXISTS idx_agent_inode ON agent_index(inode_key);

	CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT,
		payload_json TEXT NOT NULL,
		created_at REAL
	);
	CREATE INDEX IF NOT EXISTS idx_outbox_created ON outbox(created_at);

	CREATE TABLE IF NOT EXISTS scan_progress (
		root TEXT NOT NULL,
		phase TEXT NOT NULL,
		last_path TEXT,
		updated_at REAL,
		PRIMARY KEY (root, phase)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Get returns the record for path, or nil if none exists.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, inode_key, size, mtime, ctime, probed, hashed,
		       hash_algo, hash_sample_size, sample_hash, full_hash,
		       last_seen, last_hashed_at
		FROM agent_index WHERE path = ?`, path)

	var r Record
	var inodeKey, algo, sampleHash, fullHash sql.NullString
	var size, sampleSize sql.NullInt64
	var mtime, ctime, lastSeen, lastHashed sql.NullFloat64
	var probed, hashed int
	err := row.Scan(&r.Path, &inodeKey, &size, &mtime, &ctime, &probed, &hashed,
		&algo, &sampleSize, &sampleHash, &fullHash, &lastSeen, &lastHashed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache record: %w", err)
	}

	r.IdentityKey = identity.Key(inodeKey.String)
	r.Size = size.Int64
	r.MTime = mtime.Float64
	r.CTime = ctime.Float64
	r.Probed = probed != 0
	r.Hashed = hashed != 0
	r.HashAlgo = hashing.Algo(algo.String)
	r.HashSampleSize = sampleSize.Int64
	r.SampleHash = sampleHash.String
	r.FullHash = fullHash.String
	r.LastSeen = lastSeen.Float64
	r.LastHashedAt = lastHashed.Float64
	return &r, nil
}

// UpsertSeen records an observation of path with its current identity.
// Hash and probe columns are left untouched; validity checks compare
// the stored identity key against the current one instead.
func (s *Store) UpsertSeen(ctx context.Context, path string, key identity.Key, size int64, mtime, ctime float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_index(path, inode_key, size, mtime, ctime, last_seen)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			inode_key = excluded.inode_key,
			size = excluded.size,
			mtime = excluded.mtime,
			ctime = excluded.ctime,
			last_seen = excluded.last_seen`,
		path, string(key), size, mtime, ctime, nowUnix())
	if err != nil {
		return fmt.Errorf("failed to upsert cache record: %w", err)
	}
	return nil
}

// MarkProbed flags path as having been probed under its current identity.
func (s *Store) MarkProbed(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_index SET probed = 1 WHERE path = ?`, path)
	return err
}

// SaveHashes stores computed hashes for path.
func (s *Store) SaveHashes(ctx context.Context, path string, algo hashing.Algo, sampleSize int64, sampleHash, fullHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_index
		SET hashed = 1, hash_algo = ?, hash_sample_size = ?,
		    sample_hash = ?, full_hash = ?, last_hashed_at = ?
		WHERE path = ?`,
		string(algo), sampleSize, sampleHash, nullIfEmpty(fullHash), nowUnix(), path)
	if err != nil {
		return fmt.Errorf("failed to save hashes: %w", err)
	}
	return nil
}

// ProbeCacheValid reports whether a cached probe result is still valid
// for the current identity key.
func ProbeCacheValid(r *Record, current identity.Key) bool {
	return r != nil && r.IdentityKey == current
}

// HashCacheValid reports whether cached hashes can be reused for the
// current identity, algorithm, and sample size, and returns them if so.
// An unset stored sample size compares as zero.
func HashCacheValid(r *Record, current identity.Key, algo hashing.Algo, sampleSize int64) (*CachedHashes, bool) {
	if r == nil || r.IdentityKey != current || !r.Hashed {
		return nil, false
	}
	if r.HashAlgo != algo || r.HashSampleSize != sampleSize {
		return nil, false
	}
	return &CachedHashes{
		Algo:       algo,
		SampleSize: sampleSize,
		SampleHash: r.SampleHash,
		FullHash:   r.FullHash,
	}, true
}

// EnqueueOutbox queues a serialized batch for later redelivery.
func (s *Store) EnqueueOutbox(ctx context.Context, batchID, payload string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbox(batch_id, payload_json, created_at) VALUES(?,?,?)`,
		batchID, payload, nowUnix())
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox entry: %w", err)
	}
	return nil
}

// ListOutbox returns all queued entries, oldest first.
func (s *Store) ListOutbox(ctx context.Context) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, payload_json, created_at FROM outbox ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close outbox rows: %v", err)
		}
	}()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var batchID sql.NullString
		var createdAt sql.NullFloat64
		if err := rows.Scan(&e.ID, &batchID, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		e.BatchID = batchID.String
		e.CreatedAt = createdAt.Float64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOutbox removes a delivered entry.
func (s *Store) DeleteOutbox(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	return err
}

// SaveProgress persists the scan cursor for (root, phase).
func (s *Store) SaveProgress(ctx context.Context, root, phase, lastPath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_progress(root, phase, last_path, updated_at)
		VALUES(?,?,?,?)
		ON CONFLICT(root, phase) DO UPDATE SET
			last_path = excluded.last_path,
			updated_at = excluded.updated_at`,
		root, phase, lastPath, nowUnix())
	if err != nil {
		return fmt.Errorf("failed to save scan progress: %w", err)
	}
	return nil
}

// LoadProgress returns the saved cursor for (root, phase), or "" if none.
func (s *Store) LoadProgress(ctx context.Context, root, phase string) (string, error) {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_path FROM scan_progress WHERE root = ? AND phase = ?`,
		root, phase).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load scan progress: %w", err)
	}
	return last.String, nil
}

// ClearProgress removes the cursor for (root, phase), marking the
// sweep complete.
func (s *Store) ClearProgress(ctx context.Context, root, phase string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM scan_progress WHERE root = ? AND phase = ?`, root, phase)
	return err
}

// Info summarizes cache contents for the control API.
type Info struct {
	DBPath            string   `json:"db_path"`
	Exists            bool     `json:"exists"`
	SizeBytes         int64    `json:"size_bytes"`
	IndexRows         int64    `json:"index_rows"`
	OutboxRows        int64    `json:"outbox_rows"`
	ProgressRows      int64    `json:"progress_rows"`
	LastSeen          *float64 `json:"last_seen"`
	LastHashedAt      *float64 `json:"last_hashed_at"`
	ProgressUpdatedAt *float64 `json:"progress_updated_at"`
}

// Info reports row counts, file size, and recency timestamps.
func (s *Store) Info(ctx context.Context) (*Info, error) {
	info := &Info{DBPath: s.dbPath}
	if st, err := os.Stat(s.dbPath); err == nil {
		info.Exists = true
		info.SizeBytes = st.Size()
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(1) FROM agent_index`, &info.IndexRows},
		{`SELECT COUNT(1) FROM outbox`, &info.OutboxRows},
		{`SELECT COUNT(1) FROM scan_progress`, &info.ProgressRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count cache rows: %w", err)
		}
	}

	var seen, hashed, progress sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(last_seen), MAX(last_hashed_at) FROM agent_index`).Scan(&seen, &hashed); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM scan_progress`).Scan(&progress); err != nil {
		return nil, err
	}
	if seen.Valid {
		info.LastSeen = &seen.Float64
	}
	if hashed.Valid {
		info.LastHashedAt = &hashed.Float64
	}
	if progress.Valid {
		info.ProgressUpdatedAt = &progress.Float64
	}
	return info, nil
}

// Compact reclaims free pages in the database file.
func (s *Store) Compact(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// Clear empties all cache tables. The open connection stays valid, so
// this is safe to call while the pipeline is idle.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"agent_index", "outbox", "scan_progress"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Remove deletes the cache database file and its WAL sidecars. Used by
// the --clear-cache startup flag before the store is opened.
func Remove(dbPath string) error {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// diagnoseCachePermissions checks cache directory and file permissions
func diagnoseCachePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat cache directory: %w", err)
	}
	logging.Debug("Cache directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("cache directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	if dbInfo, err := os.Stat(dbPath); err == nil {
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Cache file is read-only! Mode: %v", dbInfo.Mode())
		}
	}
	return nil
}
