package syncclient

import (
	"medialib/internal/mediatypes"
	"medialib/internal/probe"
)

// Hashes is the hash tuple attached to a file record.
type Hashes struct {
	Algo       string `json:"algo"`
	SampleSize int64  `json:"sample_size"`
	SampleHash string `json:"sample_hash,omitempty"`
	FullHash   string `json:"full_hash,omitempty"`
}

// FileRecord is one scanned file as sent to the ingestion endpoint.
// Junk records carry Reason instead of InodeKey/Hashes/Metadata.
type FileRecord struct {
	Kind     string          `json:"kind"`
	Path     string          `json:"path"`
	Size     int64           `json:"size"`
	MTime    float64         `json:"mtime"`
	CTime    float64         `json:"ctime"`
	InodeKey string          `json:"inode_key,omitempty"`
	Ext      string          `json:"ext,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Metadata *probe.Metadata `json:"metadata,omitempty"`
	Hashes   *Hashes         `json:"hashes,omitempty"`
}

// Batch is the ingestion request body.
type Batch struct {
	BatchID string       `json:"batch_id"`
	Files   []FileRecord `json:"files"`
}

// BatchResponse is the ingestion response body.
type BatchResponse struct {
	Processed int    `json:"processed"`
	BatchID   string `json:"batch_id"`
}

// AgentConfig is the operating configuration served by the catalog
// server at /ingest/config. The server is the single source of truth;
// agents poll this before and during each scan cycle.
type AgentConfig struct {
	RemoteRoots           []string `json:"remote_roots"`
	HashAlgo              string   `json:"hash_algo"`
	HashSampleSize        int64    `json:"hash_sample_size"`
	DoFullHash            bool     `json:"do_full_hash"`
	BatchSize             int      `json:"batch_size"`
	MaxWorkers            int      `json:"agent_max_workers"`
	UseGzip               bool     `json:"agent_gzip"`
	Adaptive              bool     `json:"agent_adaptive"`
	OffPeakStart          int      `json:"agent_offpeak_start"`
	OffPeakEnd            int      `json:"agent_offpeak_end"`
	VideoExtensions       []string `json:"media_extensions"`
	ImageExtensions       []string `json:"image_extensions"`
	SubtitleExtensions    []string `json:"subtitle_extensions"`
	XMLExtensions         []string `json:"xml_extensions"`
	OtherExtensions       []string `json:"other_extensions"`
	FollowSymlinks        bool     `json:"follow_symlinks"`
	JunkPatterns          []string `json:"junk_patterns"`
	JunkExcludeExtensions []string `json:"junk_exclude_extensions"`
}

// DefaultConfig returns the configuration an agent operates with when
// the server omits a setting.
func DefaultConfig() AgentConfig {
	return AgentConfig{
		HashAlgo:           "xxhash64",
		HashSampleSize:     4 * 1024 * 1024,
		BatchSize:          500,
		MaxWorkers:         4,
		Adaptive:           true,
		OffPeakStart:       1,
		OffPeakEnd:         6,
		VideoExtensions:    mediatypes.DefaultVideoExtensions,
		ImageExtensions:    mediatypes.DefaultImageExtensions,
		SubtitleExtensions: mediatypes.DefaultSubtitleExtensions,
		XMLExtensions:      mediatypes.DefaultXMLExtensions,
		JunkPatterns:       mediatypes.DefaultJunkPatterns,
	}
}

// Tables builds classification tables from the configured extension lists.
func (c *AgentConfig) Tables() *mediatypes.Tables {
	return mediatypes.NewTables(
		c.VideoExtensions,
		c.ImageExtensions,
		c.SubtitleExtensions,
		c.XMLExtensions,
		c.OtherExtensions,
		c.JunkPatterns,
		c.JunkExcludeExtensions,
	)
}
