package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medialib_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medialib_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medialib_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Scan pipeline metrics (agent side)
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_scan_runs_total",
			Help: "Total number of scan cycles started",
		},
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_scan_running",
			Help: "Whether a scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_scan_last_run_timestamp",
			Help: "Timestamp of the last completed scan cycle",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_scan_last_run_duration_seconds",
			Help: "Duration of the last scan cycle in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_scan_files_processed_total",
			Help: "Total number of files processed by the scan pipeline",
		},
		[]string{"kind"},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_scan_errors_total",
			Help: "Total number of per-file scan errors",
		},
	)

	HashesComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_hashes_computed_total",
			Help: "Total number of hashes computed",
		},
		[]string{"type"}, // "sample" or "full"
	)

	HashCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_hash_cache_hits_total",
			Help: "Total number of hash computations avoided by the cache",
		},
	)

	ProbesRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_probes_total",
			Help: "Total number of media probe invocations",
		},
		[]string{"status"},
	)

	ProbeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_probe_cache_hits_total",
			Help: "Total number of probes avoided by the cache",
		},
	)

	CacheWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_cache_write_errors_total",
			Help: "Total number of failed local cache writes",
		},
	)

	PipelinePermits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_pipeline_permits",
			Help: "Current adaptive worker permit count",
		},
	)

	PipelineBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_pipeline_backlog",
			Help: "Number of files waiting for a worker permit",
		},
	)

	PipelineThroughput = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_pipeline_throughput_files_per_second",
			Help: "Recent pipeline throughput in files per second",
		},
	)
)

// Sync client metrics (agent side)
var (
	BatchesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_batches_posted_total",
			Help: "Total number of batch post attempts",
		},
		[]string{"status"}, // "success" or "error"
	)

	RecordsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_records_uploaded_total",
			Help: "Total number of records acknowledged by the server",
		},
	)

	OutboxDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_outbox_depth",
			Help: "Number of undelivered batches queued in the outbox",
		},
	)

	OutboxDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_outbox_drained_total",
			Help: "Total number of outbox entries successfully redelivered",
		},
	)
)

// Remote filesystem metrics (agent side). Remote roots are typically NFS or
// SMB mounts, where stat/open can transiently fail with ESTALE.
var (
	RemoteFSStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_remotefs_stale_errors_total",
			Help: "Total number of stale file handle errors seen on remote roots",
		},
		[]string{"op"}, // "stat" or "open"
	)

	RemoteFSRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_remotefs_retry_success_total",
			Help: "Total number of remote filesystem operations that succeeded after retry",
		},
		[]string{"op"},
	)

	RemoteFSRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_remotefs_retry_failures_total",
			Help: "Total number of remote filesystem operations that failed after all retries",
		},
		[]string{"op"},
	)
)

// Ingestion metrics (server side)
var (
	IngestBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialib_ingest_batches_total",
			Help: "Total number of ingestion batches received",
		},
	)

	IngestItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialib_ingest_items_total",
			Help: "Total number of ingestion batch items by outcome",
		},
		[]string{"status"}, // "processed" or "skipped"
	)

	IngestBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medialib_ingest_batch_duration_seconds",
			Help:    "Ingestion batch processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Catalog metrics (server side)
var (
	CatalogFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medialib_catalog_files_total",
			Help: "Total number of cataloged files by kind",
		},
		[]string{"kind"},
	)

	CatalogJunkCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_catalog_junk_candidates_total",
			Help: "Total number of junk candidate paths",
		},
	)

	CatalogRemoteRoots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialib_catalog_remote_roots",
			Help: "Number of configured remote scan roots",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medialib_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
