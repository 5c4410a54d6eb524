package ingest

import (
	"compress/gzip"
	"context"
	"errors"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"medialib/internal/catalog"
	"medialib/internal/logging"
	"medialib/internal/mediatypes"
	"medialib/internal/metrics"
	"medialib/internal/syncclient"
)

// Batch ingests one upload batch. Items are processed independently so
// a bad record never costs the agent the rest of the batch; the agent
// only needs the processed count to acknowledge its outbox.
func (h *Handlers) Batch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			writeJSONError(w, "invalid gzip body", http.StatusBadRequest)
			return
		}
		defer gz.Close()
		body = gz
	}

	var batch syncclient.Batch
	if err := json.NewDecoder(body).Decode(&batch); err != nil {
		writeJSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	logging.Info("/ingest/batch received: id=%s items=%d", batch.BatchID, len(batch.Files))
	metrics.IngestBatchesTotal.Inc()

	ctx := r.Context()
	tables := h.base.Tables()
	processed := 0

	for idx, item := range batch.Files {
		if err := h.ingestItem(ctx, tables, item); err != nil {
			logging.Error("/ingest/batch item error idx=%d path=%s err=%v", idx, item.Path, err)
			metrics.IngestItemsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		processed++
		metrics.IngestItemsTotal.WithLabelValues("processed").Inc()
	}

	metrics.IngestBatchDuration.Observe(time.Since(start).Seconds())
	logging.Info("/ingest/batch processed=%d id=%s", processed, batch.BatchID)

	writeJSON(w, syncclient.BatchResponse{Processed: processed, BatchID: batch.BatchID})
}

func (h *Handlers) ingestItem(ctx context.Context, tables *mediatypes.Tables, item syncclient.FileRecord) error {
	if item.Path == "" {
		return errEmptyPath
	}

	kind := item.Kind
	if kind == "" {
		kind = "media"
	}

	switch kind {
	case "media":
		// Older agents sent a generic kind; classify by extension here.
		return h.catalogFile(ctx, string(tables.ClassifyExtension(item.Ext)), item)
	case string(mediatypes.KindVideo), string(mediatypes.KindImage),
		string(mediatypes.KindSubtitle), string(mediatypes.KindXML),
		string(mediatypes.KindOther), string(mediatypes.KindUnknown):
		return h.catalogFile(ctx, kind, item)
	default:
		// Anything else (typically "junk") goes to the review queue.
		return h.cat.UpsertJunk(ctx, catalog.JunkRow{
			Path:   item.Path,
			Size:   item.Size,
			MTime:  item.MTime,
			Ext:    item.Ext,
			Reason: item.Reason,
		})
	}
}

func (h *Handlers) catalogFile(ctx context.Context, category string, item syncclient.FileRecord) error {
	fileID, err := h.cat.UpsertFile(ctx, item.Path, item.Size, item.MTime, item.CTime, item.InodeKey, item.Ext, category)
	if err != nil {
		return err
	}

	if hs := item.Hashes; hs != nil {
		algo := hs.Algo
		if algo == "" {
			algo = "xxhash64"
		}
		if err := h.cat.UpsertHash(ctx, fileID, algo, hs.SampleSize, hs.SampleHash, hs.FullHash); err != nil {
			return err
		}
	}

	if item.Metadata != nil {
		if err := h.cat.UpsertMetadata(ctx, fileID, item.Metadata); err != nil {
			return err
		}
	}

	return nil
}

var errEmptyPath = errors.New("record has empty path")
