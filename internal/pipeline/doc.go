// Package pipeline drives the agent's scan cycle: walking remote roots,
// building upload records with cache-aware hashing and probing, and
// flushing them to the catalog server in batches.
//
// A cycle runs in two phases. The first observes every file and attaches
// content hashes; the second revisits video files and attaches ffprobe
// metadata. Each root+phase pair keeps a resume cursor in the agent
// cache so an interrupted scan continues where it stopped instead of
// re-walking from the start.
//
// Concurrency is gated by a resizable permit pool. When adaptive tuning
// is enabled, a tuner grows the pool while the pipeline keeps up and
// shrinks it when the backlog builds, so a scan adapts to whatever the
// disk and network will bear.
package pipeline
