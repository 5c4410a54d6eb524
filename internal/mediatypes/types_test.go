package mediatypes

import "testing"

func testTables() *Tables {
	return NewTables(
		[]string{".mp4", ".MKV"},
		[]string{".jpg"},
		[]string{".srt"},
		[]string{".nfo"},
		[]string{".sfv"},
		[]string{"*.part", "*.rar", "sample*"},
		[]string{".rar"},
	)
}

func TestClassifyExtension(t *testing.T) {
	tables := testTables()

	tests := []struct {
		ext  string
		want Kind
	}{
		{".mp4", KindVideo},
		{".MP4", KindVideo},
		{".mkv", KindVideo},
		{".jpg", KindImage},
		{".srt", KindSubtitle},
		{".nfo", KindXML},
		{".sfv", KindOther},
		{".xyz", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		if got := tables.ClassifyExtension(tt.ext); got != tt.want {
			t.Errorf("ClassifyExtension(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestClassifyJunkPrecedence(t *testing.T) {
	tables := testTables()

	kind, pat := tables.Classify("movie.mkv.part")
	if kind != KindJunk {
		t.Errorf("expected junk, got %v", kind)
	}
	if pat != "*.part" {
		t.Errorf("expected matched pattern *.part, got %q", pat)
	}

	// Junk pattern wins even when the stem has a registered extension.
	kind, _ = tables.Classify("Sample.Episode.mp4")
	if kind != KindJunk {
		t.Errorf("expected sample* to classify as junk, got %v", kind)
	}
}

func TestClassifyJunkExclude(t *testing.T) {
	tables := testTables()

	// .rar matches *.rar but is in the junk-exclude set, so it is classified
	// purely by extension (unregistered -> unknown).
	kind, pat := tables.Classify("archive.rar")
	if kind != KindUnknown {
		t.Errorf("expected unknown for excluded extension, got %v", kind)
	}
	if pat != "" {
		t.Errorf("expected no matched pattern, got %q", pat)
	}
}

func TestClassifyOtherCarveOut(t *testing.T) {
	tables := NewTables(
		nil, nil, nil, nil,
		[]string{".sfv"},
		[]string{"*.sfv"},
		nil,
	)

	// A junk match on an "other"-registered extension stays kind other.
	kind, pat := tables.Classify("release.sfv")
	if kind != KindOther {
		t.Errorf("expected other, got %v", kind)
	}
	if pat != "*.sfv" {
		t.Errorf("expected pattern to be reported, got %q", pat)
	}
}

func TestClassifyCaseInsensitiveJunk(t *testing.T) {
	tables := testTables()

	kind, _ := tables.Classify("MOVIE.PART")
	if kind != KindJunk {
		t.Errorf("expected junk for MOVIE.PART, got %v", kind)
	}
}

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()

	if k := tables.ClassifyExtension(".mkv"); k != KindVideo {
		t.Errorf("expected .mkv video, got %v", k)
	}
	if k, _ := tables.Classify("download.part"); k != KindJunk {
		t.Errorf("expected .part junk, got %v", k)
	}
	if !tables.IsVideo(".MP4") {
		t.Error("expected IsVideo(.MP4) = true")
	}
}
