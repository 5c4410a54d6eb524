package hashing

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFullHashDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("abc123"), 1000)
	a := writeTemp(t, "a.bin", data)
	b := writeTemp(t, "b.bin", data)

	for _, algo := range []Algo{AlgoXXHash64, AlgoSHA256} {
		ha, err := Full(a, algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		hb, err := Full(b, algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		if ha == "" || ha != hb {
			t.Errorf("%s: expected equal non-empty hashes, got %q vs %q", algo, ha, hb)
		}
	}
}

func TestFullHashDiffers(t *testing.T) {
	a := writeTemp(t, "a.bin", []byte("content one"))
	b := writeTemp(t, "b.bin", []byte("content two"))

	ha, err := Full(a, AlgoXXHash64)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Full(b, AlgoXXHash64)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Error("different content produced the same full hash")
	}
}

func TestSampleHashEmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.bin", nil)

	h, err := Sample(path, AlgoXXHash64, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if h != "" {
		t.Errorf("expected empty hash for empty file, got %q", h)
	}
}

func TestSampleHashSmallFileEqualsWholeContent(t *testing.T) {
	// A file smaller than the sample size is covered entirely by the head
	// read, so two identical small files must produce identical hashes.
	data := []byte("small file content")
	a := writeTemp(t, "a.bin", data)
	b := writeTemp(t, "b.bin", data)

	ha, err := Sample(a, AlgoXXHash64, 4096)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Sample(b, AlgoXXHash64, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if ha == "" || ha != hb {
		t.Errorf("expected equal non-empty sample hashes, got %q vs %q", ha, hb)
	}
}

func TestSampleHashSensitiveToTail(t *testing.T) {
	// Large enough for head+middle+tail sampling with a 1KiB sample size.
	base := bytes.Repeat([]byte{0xAA}, 10*1024)
	modified := append([]byte(nil), base...)
	modified[len(modified)-1] = 0xBB

	a := writeTemp(t, "a.bin", base)
	b := writeTemp(t, "b.bin", modified)

	ha, err := Sample(a, AlgoXXHash64, 1024)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Sample(b, AlgoXXHash64, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Error("tail modification did not change the sample hash")
	}
}

func TestSampleHashIgnoresUnsampledMiddleBytes(t *testing.T) {
	// Bytes outside the three sampled windows must not affect the hash.
	size := 100 * 1024
	sample := int64(1024)
	base := bytes.Repeat([]byte{0x11}, size)
	modified := append([]byte(nil), base...)
	// Mutate a byte between the head window and the middle window.
	modified[10*1024] = 0x22

	a := writeTemp(t, "a.bin", base)
	b := writeTemp(t, "b.bin", modified)

	ha, err := Sample(a, AlgoXXHash64, sample)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Sample(b, AlgoXXHash64, sample)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Error("modification outside sampled ranges changed the sample hash")
	}
}

func TestUnknownAlgoFallsBackToSHA256(t *testing.T) {
	path := writeTemp(t, "a.bin", []byte("data"))

	h1, err := Full(path, Algo("bogus"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Full(path, AlgoSHA256)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("expected fallback to sha256, got %q vs %q", h1, h2)
	}
}
