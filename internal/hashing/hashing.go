// Package hashing computes content hashes for indexed files: cheap sample
// hashes over head/middle/tail byte ranges for duplicate suspicion, and
// full-content hashes for duplicate confirmation.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"

	"medialib/internal/remotefs"
)

// Algo identifies a supported hash algorithm.
type Algo string

const (
	// AlgoXXHash64 is the default, fast non-cryptographic algorithm.
	AlgoXXHash64 Algo = "xxhash64"
	// AlgoSHA256 is the cryptographic fallback.
	AlgoSHA256 Algo = "sha256"
)

const chunkSize = 4 * 1024 * 1024

// newDigest returns a digest for the algorithm. Unrecognized algorithms
// fall back to sha256 so that a misconfigured agent still produces
// consistent hashes rather than failing the sweep.
func newDigest(algo Algo) hash.Hash {
	if algo == AlgoXXHash64 {
		return xxhash.New()
	}
	return sha256.New()
}

// Sample hashes up to three sampleSize-byte ranges of the file: the head,
// a window centered on the middle, and the tail. Files smaller than the
// sample size are hashed whole; empty files hash to the empty string.
func Sample(path string, algo Algo, sampleSize int64) (string, error) {
	info, err := remotefs.Stat(path, remotefs.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("stat for sample hash: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return "", nil
	}

	f, err := remotefs.Open(path, remotefs.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("open for sample hash: %w", err)
	}
	defer f.Close()

	h := newDigest(algo)

	head := sampleSize
	if head > size {
		head = size
	}
	if _, err := io.Copy(h, io.LimitReader(f, head)); err != nil {
		return "", fmt.Errorf("sample hash head: %w", err)
	}

	if size > sampleSize {
		midPos := size/2 - sampleSize/2
		if midPos < 0 {
			midPos = 0
		}
		if _, err := f.Seek(midPos, io.SeekStart); err != nil {
			return "", fmt.Errorf("sample hash seek middle: %w", err)
		}
		mid := sampleSize
		if remaining := size - midPos; mid > remaining {
			mid = remaining
		}
		if _, err := io.Copy(h, io.LimitReader(f, mid)); err != nil {
			return "", fmt.Errorf("sample hash middle: %w", err)
		}
	}

	if size > 2*sampleSize {
		tailPos := size - sampleSize
		if _, err := f.Seek(tailPos, io.SeekStart); err != nil {
			return "", fmt.Errorf("sample hash seek tail: %w", err)
		}
		if _, err := io.Copy(h, io.LimitReader(f, sampleSize)); err != nil {
			return "", fmt.Errorf("sample hash tail: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Full hashes the entire file content in fixed-size chunks.
func Full(path string, algo Algo) (string, error) {
	f, err := remotefs.Open(path, remotefs.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("open for full hash: %w", err)
	}
	defer f.Close()

	h := newDigest(algo)
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("full hash read: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
