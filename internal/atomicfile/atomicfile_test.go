package atomicfile

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	want := sample{Name: "champion", N: 7}
	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got sample
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %+v got %+v", want, got)
	}

	// second write must cleanly replace, leaving no temp files behind
	want.N = 8
	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON (2nd): %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no leftover temp files, found %v", matches)
	}
}

func TestAppendLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.jsonl")

	log, err := OpenAppendLog(path)
	if err != nil {
		t.Fatalf("OpenAppendLog: %v", err)
	}
	defer log.Close()

	for i := 0; i < 3; i++ {
		if err := log.Append(sample{Name: "x", N: i}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	// reopen independently and append once more
	log2, err := OpenAppendLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer log2.Close()
	if err := log2.Append(sample{Name: "y", N: 3}); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
}
