// Package catalog implements the central media catalog: files, hashes,
// probe metadata, junk candidates, and scan roots, backed by SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"medialib/internal/logging"
	"medialib/internal/metrics"
	"medialib/internal/probe"
)

// Default timeout for catalog operations
const defaultTimeout = 5 * time.Second

// Catalog manages all database operations for the catalog server.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens the catalog database at dbPath. The parent
// directory is created if missing.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create catalog directory: %w", err)
	}

	// WAL mode with a busy timeout; ingestion handlers write concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog initialized at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	start := time.Now()
	schema := `
	CREATE TABLE IF NOT EXISTS roots (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		size INTEGER NOT NULL,
		mtime REAL NOT NULL,
		ctime REAL NOT NULL,
		inode_key TEXT,
		ext TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'unknown'
	);

	CREATE TABLE IF NOT EXISTS remote_roots (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS hashes (
		file_id INTEGER PRIMARY KEY,
		algo TEXT NOT NULL,
		sample_size INTEGER,
		sample_hash TEXT,
		full_hash TEXT,
		last_hashed_at REAL,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS media_metadata (
		file_id INTEGER PRIMARY KEY,
		duration REAL,
		container TEXT,
		video_codec TEXT,
		audio_codecs TEXT,
		width INTEGER,
		height INTEGER,
		bitrate INTEGER,
		streams_json TEXT,
		FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS operations_log (
		id INTEGER PRIMARY KEY,
		ts REAL NOT NULL,
		op_type TEXT NOT NULL,
		before_path TEXT,
		after_path TEXT,
		details_json TEXT,
		success INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS junk_candidates (
		id INTEGER PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		size INTEGER,
		mtime REAL,
		ext TEXT,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_files_ext ON files(ext);
	CREATE INDEX IF NOT EXISTS idx_files_size ON files(size);
	CREATE INDEX IF NOT EXISTS idx_files_category ON files(category);
	CREATE INDEX IF NOT EXISTS idx_hashes_fullhash ON hashes(full_hash);
	CREATE INDEX IF NOT EXISTS idx_roots_enabled ON roots(enabled);
	CREATE INDEX IF NOT EXISTS idx_remote_roots_path ON remote_roots(path);
	`
	_, err := c.db.ExecContext(ctx, schema)
	observeQuery("initialize_schema", start, err)
	return err
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

func observeQuery(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(op, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// UpsertFile inserts or updates a file row keyed by path and returns
// its row id.
func (c *Catalog) UpsertFile(ctx context.Context, path string, size int64, mtime, ctime float64, inodeKey, ext, category string) (int64, error) {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO files(path, size, mtime, ctime, inode_key, ext, category)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			ctime = excluded.ctime,
			inode_key = excluded.inode_key,
			ext = excluded.ext,
			category = excluded.category`,
		path, size, mtime, ctime, inodeKey, strings.ToLower(ext), category)
	observeQuery("upsert_file", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert file: %w", err)
	}

	var id int64
	if err := c.db.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read file id: %w", err)
	}
	return id, nil
}

// UpsertHash stores the hash tuple for a file.
func (c *Catalog) UpsertHash(ctx context.Context, fileID int64, algo string, sampleSize int64, sampleHash, fullHash string) error {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO hashes(file_id, algo, sample_size, sample_hash, full_hash, last_hashed_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(file_id) DO UPDATE SET
			algo = excluded.algo,
			sample_size = excluded.sample_size,
			sample_hash = excluded.sample_hash,
			full_hash = excluded.full_hash,
			last_hashed_at = excluded.last_hashed_at`,
		fileID, algo, sampleSize, nullIfEmpty(sampleHash), nullIfEmpty(fullHash), nowUnix())
	observeQuery("upsert_hash", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert hash: %w", err)
	}
	return nil
}

// UpsertMetadata stores probe metadata for a file.
func (c *Catalog) UpsertMetadata(ctx context.Context, fileID int64, meta *probe.Metadata) error {
	start := time.Now()
	audio := strings.Join(meta.AudioCodecs, ",")
	raw := meta.RawJSON
	if raw == "" {
		raw = "{}"
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO media_metadata(file_id, duration, container, video_codec, audio_codecs, width, height, bitrate, streams_json)
		VALUES(?,?,?,?,?,?,?,?,json(?))
		ON CONFLICT(file_id) DO UPDATE SET
			duration = excluded.duration,
			container = excluded.container,
			video_codec = excluded.video_codec,
			audio_codecs = excluded.audio_codecs,
			width = excluded.width,
			height = excluded.height,
			bitrate = excluded.bitrate,
			streams_json = excluded.streams_json`,
		fileID, meta.Duration, nullIfEmpty(meta.Container), nullIfEmpty(meta.VideoCodec),
		nullIfEmpty(audio), meta.Width, meta.Height, meta.Bitrate, raw)
	observeQuery("upsert_metadata", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata: %w", err)
	}
	return nil
}

// JunkRow is one recorded junk candidate.
type JunkRow struct {
	Path   string  `json:"path"`
	Size   int64   `json:"size"`
	MTime  float64 `json:"mtime"`
	Ext    string  `json:"ext"`
	Reason string  `json:"reason"`
}

// UpsertJunk records a junk candidate keyed by path.
func (c *Catalog) UpsertJunk(ctx context.Context, row JunkRow) error {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO junk_candidates(path, size, mtime, ext, reason)
		VALUES(?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			ext = excluded.ext,
			reason = excluded.reason`,
		row.Path, row.Size, row.MTime, row.Ext, row.Reason)
	observeQuery("upsert_junk", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert junk candidate: %w", err)
	}
	return nil
}

// ListJunk returns all junk candidates ordered by path.
func (c *Catalog) ListJunk(ctx context.Context) ([]JunkRow, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT path, size, mtime, ext, reason FROM junk_candidates ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list junk candidates: %w", err)
	}
	defer closeRows(rows)

	var out []JunkRow
	for rows.Next() {
		var r JunkRow
		var size sql.NullInt64
		var mtime sql.NullFloat64
		var ext, reason sql.NullString
		if err := rows.Scan(&r.Path, &size, &mtime, &ext, &reason); err != nil {
			return nil, err
		}
		r.Size = size.Int64
		r.MTime = mtime.Float64
		r.Ext = ext.String
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteJunk removes a junk candidate by path.
func (c *Catalog) DeleteJunk(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM junk_candidates WHERE path = ?`, path)
	return err
}

// RemoteRoots returns the configured remote scan roots.
func (c *Catalog) RemoteRoots(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM remote_roots ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote roots: %w", err)
	}
	defer closeRows(rows)

	var roots []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		roots = append(roots, p)
	}
	return roots, rows.Err()
}

// AddRemoteRoot registers a path for agents to scan. The raw path
// string from the agent is stored untouched.
func (c *Catalog) AddRemoteRoot(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO remote_roots(path) VALUES(?) ON CONFLICT(path) DO NOTHING`, path)
	if err != nil {
		return fmt.Errorf("failed to add remote root: %w", err)
	}
	return nil
}

// RemoveRemoteRoot unregisters a remote scan root.
func (c *Catalog) RemoveRemoteRoot(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM remote_roots WHERE path = ?`, path)
	return err
}

// FileRow is one catalog entry with joined hash and metadata columns.
type FileRow struct {
	Path        string  `json:"path"`
	Size        int64   `json:"size"`
	MTime       float64 `json:"mtime"`
	Ext         string  `json:"ext"`
	Category    string  `json:"category"`
	Duration    float64 `json:"duration,omitempty"`
	Container   string  `json:"container,omitempty"`
	VideoCodec  string  `json:"video_codec,omitempty"`
	AudioCodecs string  `json:"audio_codecs,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Bitrate     int64   `json:"bitrate,omitempty"`
	SampleHash  string  `json:"sample_hash,omitempty"`
	FullHash    string  `json:"full_hash,omitempty"`
}

const fileRowColumns = `f.path, f.size, f.mtime, f.ext, f.category,
	m.duration, m.container, m.video_codec, m.audio_codecs, m.width, m.height, m.bitrate,
	h.sample_hash, h.full_hash`

func scanFileRow(rows *sql.Rows, extra ...any) (FileRow, error) {
	var r FileRow
	var duration, mtime sql.NullFloat64
	var container, videoCodec, audioCodecs, sampleHash, fullHash sql.NullString
	var width, height, bitrate sql.NullInt64

	dest := append(extra, &r.Path, &r.Size, &mtime, &r.Ext, &r.Category,
		&duration, &container, &videoCodec, &audioCodecs, &width, &height, &bitrate,
		&sampleHash, &fullHash)
	if err := rows.Scan(dest...); err != nil {
		return r, err
	}

	r.MTime = mtime.Float64
	r.Duration = duration.Float64
	r.Container = container.String
	r.VideoCodec = videoCodec.String
	r.AudioCodecs = audioCodecs.String
	r.Width = int(width.Int64)
	r.Height = int(height.Int64)
	r.Bitrate = bitrate.Int64
	r.SampleHash = sampleHash.String
	r.FullHash = fullHash.String
	return r, nil
}

// LibraryRows returns catalog entries ordered by path. Zero limit
// means no limit.
func (c *Catalog) LibraryRows(ctx context.Context, limit, offset int) ([]FileRow, error) {
	query := `
		SELECT ` + fileRowColumns + `
		FROM files f
		LEFT JOIN media_metadata m ON m.file_id = f.id
		LEFT JOIN hashes h ON h.file_id = f.id
		ORDER BY f.path`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list library rows: %w", err)
	}
	defer closeRows(rows)

	var out []FileRow
	for rows.Next() {
		r, err := scanFileRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DuplicateRow is one member of a duplicate group.
type DuplicateRow struct {
	GroupKey string `json:"group_key"`
	Reason   string `json:"reason"`
	FileRow
}

// Duplicates returns files sharing a full hash, grouped by hash. With
// includeSuspected, files sharing a sample hash and size also group
// (reason "suspected" instead of "exact"). Only groups with more than
// one member are returned.
func (c *Catalog) Duplicates(ctx context.Context, includeSuspected bool) ([]DuplicateRow, error) {
	start := time.Now()
	var query string
	if includeSuspected {
		query = `
		WITH dup_groups AS (
			SELECT CASE WHEN h.full_hash IS NOT NULL THEN 'F:'||h.full_hash ELSE 'S:'||h.sample_hash||':'||f.size END AS gkey
			FROM files f
			JOIN hashes h ON h.file_id = f.id
			WHERE (h.full_hash IS NOT NULL) OR (h.sample_hash IS NOT NULL)
			GROUP BY gkey
			HAVING COUNT(*) > 1
		)
		SELECT CASE WHEN h.full_hash IS NOT NULL THEN 'F:'||h.full_hash ELSE 'S:'||h.sample_hash||':'||f.size END AS group_key,
			` + fileRowColumns + `
		FROM files f
		JOIN hashes h ON h.file_id = f.id
		LEFT JOIN media_metadata m ON m.file_id = f.id
		WHERE (h.full_hash IS NOT NULL OR h.sample_hash IS NOT NULL)
		  AND (CASE WHEN h.full_hash IS NOT NULL THEN 'F:'||h.full_hash ELSE 'S:'||h.sample_hash||':'||f.size END) IN (SELECT gkey FROM dup_groups)
		ORDER BY group_key, f.path`
	} else {
		query = `
		SELECT 'F:'||h.full_hash AS group_key,
			` + fileRowColumns + `
		FROM files f
		JOIN hashes h ON h.file_id = f.id
		LEFT JOIN media_metadata m ON m.file_id = f.id
		WHERE h.full_hash IN (
			SELECT full_hash FROM hashes WHERE full_hash IS NOT NULL GROUP BY full_hash HAVING COUNT(*) > 1
		)
		ORDER BY h.full_hash, f.path`
	}

	rows, err := c.db.QueryContext(ctx, query)
	observeQuery("query_duplicates", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer closeRows(rows)

	var out []DuplicateRow
	for rows.Next() {
		var d DuplicateRow
		r, err := scanFileRow(rows, &d.GroupKey)
		if err != nil {
			return nil, err
		}
		d.FileRow = r
		if strings.HasPrefix(d.GroupKey, "F:") {
			d.Reason = "exact"
		} else {
			d.Reason = "suspected"
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ExtensionCount summarizes unclassified files sharing an extension.
type ExtensionCount struct {
	Ext        string `json:"ext"`
	Count      int    `json:"count"`
	SamplePath string `json:"sample_path"`
}

// UnknownExtensions reports extensions of files the server could not
// classify, most frequent first.
func (c *Catalog) UnknownExtensions(ctx context.Context) ([]ExtensionCount, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT f.ext, COUNT(*) AS cnt, MIN(f.path) AS sample_path
		FROM files f
		WHERE COALESCE(f.category, 'unknown') = 'unknown'
		GROUP BY f.ext
		ORDER BY cnt DESC, f.ext`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unknown extensions: %w", err)
	}
	defer closeRows(rows)

	var out []ExtensionCount
	for rows.Next() {
		var e ExtensionCount
		if err := rows.Scan(&e.Ext, &e.Count, &e.SamplePath); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetCategoryForExtension reclassifies all files with the given
// extension. Used to promote an unknown extension once identified.
func (c *Catalog) SetCategoryForExtension(ctx context.Context, ext, category string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE files SET category = ? WHERE LOWER(ext) = LOWER(?)`, category, ext)
	return err
}

// DeleteFile removes a file entry; hashes and metadata cascade.
func (c *Catalog) DeleteFile(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	return err
}

// CountFiles returns the total number of cataloged files.
func (c *Catalog) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// LogOperation appends to the operations audit log.
func (c *Catalog) LogOperation(ctx context.Context, opType, beforePath, afterPath, detailsJSON string, success bool) error {
	succ := 0
	if success {
		succ = 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO operations_log(ts, op_type, before_path, after_path, details_json, success)
		VALUES(?,?,?,?,?,?)`,
		nowUnix(), opType, nullIfEmpty(beforePath), nullIfEmpty(afterPath), nullIfEmpty(detailsJSON), succ)
	if err != nil {
		return fmt.Errorf("failed to log operation: %w", err)
	}
	return nil
}

// GetStats implements metrics.StatsProvider.
func (c *Catalog) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats := metrics.Stats{FilesByKind: make(map[string]int)}

	rows, err := c.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM files GROUP BY category`)
	if err != nil {
		logging.Debug("stats query failed: %v", err)
		return stats
	}
	defer closeRows(rows)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			break
		}
		stats.FilesByKind[category] = n
	}

	var junk, roots int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM junk_candidates`).Scan(&junk); err == nil {
		stats.JunkCandidates = junk
	}
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM remote_roots`).Scan(&roots); err == nil {
		stats.RemoteRoots = roots
	}
	return stats
}

// Vacuum reclaims free pages in the database file.
func (c *Catalog) Vacuum(ctx context.Context) error {
	start := time.Now()
	_, err := c.db.ExecContext(ctx, `VACUUM`)
	observeQuery("vacuum", start, err)
	return err
}

// UpdateSizeMetrics refreshes the database file size gauges.
func (c *Catalog) UpdateSizeMetrics() {
	for suffix, label := range map[string]string{"": "main", "-wal": "wal", "-shm": "shm"} {
		if st, err := os.Stat(c.dbPath + suffix); err == nil {
			metrics.DBSizeBytes.WithLabelValues(label).Set(float64(st.Size()))
		}
	}
	metrics.DBConnectionsOpen.Set(float64(c.db.Stats().OpenConnections))
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		logging.Error("failed to close rows: %v", err)
	}
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
