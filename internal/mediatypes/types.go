package mediatypes

import (
	"path/filepath"
	"strings"
)

// Kind represents the classification of a scanned filesystem entry.
type Kind string

const (
	// KindVideo represents a video file.
	KindVideo Kind = "video"
	// KindImage represents an image file.
	KindImage Kind = "image"
	// KindSubtitle represents a subtitle file.
	KindSubtitle Kind = "subtitle"
	// KindXML represents an XML/NFO sidecar file.
	KindXML Kind = "xml"
	// KindOther represents an explicitly curated extension that is neither
	// media nor junk.
	KindOther Kind = "other"
	// KindUnknown represents a file whose extension is not registered.
	KindUnknown Kind = "unknown"
	// KindJunk represents a file matching a junk pattern.
	KindJunk Kind = "junk"
)

// Tables holds the extension classification tables and junk patterns an
// agent scans with. All extensions are stored lowercase with the leading dot.
type Tables struct {
	video       map[string]bool
	image       map[string]bool
	subtitle    map[string]bool
	xml         map[string]bool
	other       map[string]bool
	junkExclude map[string]bool

	// JunkPatterns are shell globs matched case-insensitively against the
	// file name, e.g. "*.part".
	JunkPatterns []string
}

// NewTables builds classification tables from extension lists. Extensions
// are normalized to lowercase; junk patterns are kept as configured.
func NewTables(video, image, subtitle, xml, other, junkPatterns, junkExclude []string) *Tables {
	return &Tables{
		video:        toSet(video),
		image:        toSet(image),
		subtitle:     toSet(subtitle),
		xml:          toSet(xml),
		other:        toSet(other),
		junkExclude:  toSet(junkExclude),
		JunkPatterns: junkPatterns,
	}
}

func toSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return set
}

// DefaultVideoExtensions lists the video extensions used when the server
// provides no configuration.
var DefaultVideoExtensions = []string{
	".mp4", ".mkv", ".avi", ".mov", ".wmv", ".m4v", ".mpg", ".mpeg",
	".ts", ".m2ts", ".webm", ".flv",
}

// DefaultImageExtensions lists the default image extensions.
var DefaultImageExtensions = []string{
	".jpg", ".jpeg", ".png", ".webp", ".gif", ".tbn",
}

// DefaultSubtitleExtensions lists the default subtitle extensions.
var DefaultSubtitleExtensions = []string{
	".srt", ".ass", ".ssa", ".vtt", ".sub", ".idx", ".sup",
}

// DefaultXMLExtensions lists the default XML/sidecar extensions.
var DefaultXMLExtensions = []string{".xml", ".nfo"}

// DefaultJunkPatterns lists file name globs treated as junk candidates.
var DefaultJunkPatterns = []string{
	"*.part", "*.partial", "*.!qb", "*.crdownload", "*.tmp", "*.temp",
	"*.r00", "*.r01", "*.r02", "*.rar", "*.zip", "*.7z", "*.par2",
}

// DefaultTables returns tables populated with the default extension lists
// and junk patterns.
func DefaultTables() *Tables {
	return NewTables(
		DefaultVideoExtensions,
		DefaultImageExtensions,
		DefaultSubtitleExtensions,
		DefaultXMLExtensions,
		nil,
		DefaultJunkPatterns,
		nil,
	)
}

// Classify determines the kind of a file from its name. Junk patterns take
// precedence over extension classification, with two carve-outs: extensions
// in the junk-exclude set never match junk patterns, and a junk match on a
// file whose extension is registered as "other" is reported as KindOther.
// The matched junk pattern, if any, is returned alongside the kind.
func (t *Tables) Classify(name string) (Kind, string) {
	ext := strings.ToLower(filepath.Ext(name))

	if !t.junkExclude[ext] {
		lower := strings.ToLower(name)
		for _, pat := range t.JunkPatterns {
			matched, err := filepath.Match(strings.ToLower(pat), lower)
			if err != nil {
				// Bad pattern; skip it rather than fail the walk.
				continue
			}
			if matched {
				if t.other[ext] {
					return KindOther, pat
				}
				return KindJunk, pat
			}
		}
	}

	return t.ClassifyExtension(ext), ""
}

// ClassifyExtension classifies by extension alone, ignoring junk patterns.
// The extension should include the leading dot; case is ignored.
func (t *Tables) ClassifyExtension(ext string) Kind {
	e := strings.ToLower(ext)
	switch {
	case t.video[e]:
		return KindVideo
	case t.image[e]:
		return KindImage
	case t.subtitle[e]:
		return KindSubtitle
	case t.xml[e]:
		return KindXML
	case t.other[e]:
		return KindOther
	default:
		return KindUnknown
	}
}

// IsVideo reports whether the extension is a registered video extension.
func (t *Tables) IsVideo(ext string) bool {
	return t.video[strings.ToLower(ext)]
}
