package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"video", "image", "subtitle", "xml", "other", "unknown", "junk"} {
		ScanFilesProcessed.WithLabelValues(kind)
		CatalogFilesTotal.WithLabelValues(kind)
	}

	for _, t := range []string{"sample", "full"} {
		HashesComputed.WithLabelValues(t)
	}

	for _, status := range []string{"success", "error"} {
		ProbesRun.WithLabelValues(status)
		BatchesPosted.WithLabelValues(status)
	}

	for _, status := range []string{"processed", "skipped"} {
		IngestItemsTotal.WithLabelValues(status)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "upsert_file", "upsert_hash",
		"upsert_metadata", "upsert_junk", "query_duplicates", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
