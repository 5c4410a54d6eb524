// Package syncclient delivers scan batches to the catalog server and
// re-queues undeliverable ones in the local outbox.
package syncclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"medialib/internal/cache"
	"medialib/internal/logging"
	"medialib/internal/metrics"
)

// DefaultServerPort is assumed when the server address carries no port.
const DefaultServerPort = 8765

const (
	postTimeout   = 120 * time.Second
	configTimeout = 30 * time.Second
	drainTimeout  = 60 * time.Second
)

// Client posts batches and fetches configuration from the catalog
// server. The outbox store may be nil, in which case failed batches
// are dropped with a warning instead of queued.
type Client struct {
	baseURL string
	http    *http.Client
	store   *cache.Store
}

// NormalizeServerAddr turns a bare host or host:port into a base URL.
// Addresses already carrying a scheme pass through unchanged apart
// from trailing-slash trimming.
func NormalizeServerAddr(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty server address")
	}
	var base string
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		base = addr
	} else {
		base = fmt.Sprintf("http://%s:%d", addr, DefaultServerPort)
	}
	return strings.TrimRight(base, "/"), nil
}

// New creates a client for the given server address.
func New(serverAddr string, store *cache.Store) (*Client, error) {
	base, err := NormalizeServerAddr(serverAddr)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{},
		store:   store,
	}, nil
}

// BaseURL returns the normalized server base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks the server's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchConfig retrieves the agent operating configuration. Settings the
// server omits keep their defaults.
func (c *Client) FetchConfig(ctx context.Context) (*AgentConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, configTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ingest/config", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config fetch failed: %w", err)
	}
	defer closeBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config fetch returned status %d", resp.StatusCode)
	}

	cfg := DefaultConfig()
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config decode failed: %w", err)
	}
	return &cfg, nil
}

// PostBatch sends files to /ingest/batch and returns the number of
// records the server processed. On delivery failure the batch is
// enqueued in the outbox and 0 is returned without an error; scan
// results are never lost to a transient outage. After any successful
// post the outbox is drained opportunistically.
func (c *Client) PostBatch(ctx context.Context, files []FileRecord, useGzip bool) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	batch := Batch{BatchID: "b-" + uuid.NewString(), Files: files}
	payload, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("batch marshal failed: %w", err)
	}

	processed, err := c.post(ctx, payload, useGzip, postTimeout)
	if err != nil {
		metrics.BatchesPosted.WithLabelValues("error").Inc()
		logging.Warn("Batch %s delivery failed, queueing to outbox: %v", batch.BatchID, err)
		if c.store == nil {
			return 0, nil
		}
		if enqErr := c.store.EnqueueOutbox(ctx, batch.BatchID, string(payload)); enqErr != nil {
			return 0, fmt.Errorf("outbox enqueue failed after delivery error: %w", enqErr)
		}
		c.updateOutboxDepth(ctx)
		return 0, nil
	}

	metrics.BatchesPosted.WithLabelValues("success").Inc()
	metrics.RecordsUploaded.Add(float64(processed))
	logging.Info("Sent batch: id=%s, items=%d, raw=%dB, processed=%d",
		batch.BatchID, len(files), len(payload), processed)

	// We are demonstrably online, so retry anything still queued.
	if drained, err := c.DrainOutbox(ctx, useGzip); err != nil {
		logging.Warn("Outbox drain failed: %v", err)
	} else if drained > 0 {
		logging.Info("Drained %d outbox batch(es)", drained)
	}

	return processed, nil
}

// DrainOutbox re-posts every queued batch, deleting entries that the
// server acknowledges. Entries that fail again stay queued.
func (c *Client) DrainOutbox(ctx context.Context, useGzip bool) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	entries, err := c.store.ListOutbox(ctx)
	if err != nil {
		return 0, err
	}

	drained := 0
	for _, e := range entries {
		if _, err := c.post(ctx, []byte(e.Payload), useGzip, drainTimeout); err != nil {
			logging.Debug("Outbox entry %d (%s) still undeliverable: %v", e.ID, e.BatchID, err)
			continue
		}
		if err := c.store.DeleteOutbox(ctx, e.ID); err != nil {
			logging.Warn("Failed to delete delivered outbox entry %d: %v", e.ID, err)
			continue
		}
		metrics.OutboxDrained.Inc()
		drained++
	}
	c.updateOutboxDepth(ctx)
	return drained, nil
}

// post delivers one serialized batch and parses the processed count.
func (c *Client) post(ctx context.Context, payload []byte, useGzip bool, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := payload
	contentEncoding := ""
	if useGzip {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return 0, fmt.Errorf("gzip compress failed: %w", err)
		}
		if err := zw.Close(); err != nil {
			return 0, fmt.Errorf("gzip compress failed: %w", err)
		}
		body = buf.Bytes()
		contentEncoding = "gzip"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/batch", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("batch post returned status %d", resp.StatusCode)
	}

	var br BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return 0, fmt.Errorf("batch response decode failed: %w", err)
	}
	return br.Processed, nil
}

func (c *Client) updateOutboxDepth(ctx context.Context) {
	entries, err := c.store.ListOutbox(ctx)
	if err != nil {
		return
	}
	metrics.OutboxDepth.Set(float64(len(entries)))
}

// closeBody drains and closes a response body so the connection can be
// reused by the transport.
func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
