// Package ingest implements the catalog server's HTTP API.
//
// Agents upload scan results to POST /ingest/batch and fetch their
// operating configuration from GET /ingest/config. Batch uploads may be
// gzip-compressed (Content-Encoding: gzip). Items in a batch are
// processed independently: a malformed or unprocessable item is skipped
// and logged, and never fails the batch.
//
// The package also exposes read endpoints over the catalog (library
// listing, duplicate groups, junk candidates, unhandled extensions) and
// management of the remote root list that agents scan.
package ingest
