package kb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type recordingIndexer struct {
	mu     sync.Mutex
	chunks []Chunk
}

func (r *recordingIndexer) IndexChunks(_ context.Context, chunks []Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunks...)
	return nil
}

func TestIngestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	long := strings.Repeat("The library is open from nine to five. ", 20)
	writeFile(t, dir, "hours.txt", long)
	writeFile(t, dir, "rooms.md", "Room 204 is on the second floor, next to the elevators.")
	writeFile(t, dir, "ignore.pdf", "binary-ish content")

	idx := &recordingIndexer{}
	in := NewIngestor(idx)

	n, err := in.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if n != len(idx.chunks) {
		t.Errorf("returned count %d != indexed chunks %d", n, len(idx.chunks))
	}
	if n < 3 {
		t.Errorf("indexed %d chunks, want several from the long document", n)
	}

	sources := map[string]bool{}
	for _, c := range idx.chunks {
		sources[c.Source] = true
		if c.ID == "" {
			t.Error("chunk with empty ID")
		}
		if len(c.Content) > DefaultChunkSize {
			t.Errorf("chunk exceeds size limit: %d chars", len(c.Content))
		}
	}
	if !sources["hours.txt"] || !sources["rooms.md"] {
		t.Errorf("sources = %v, want hours.txt and rooms.md", sources)
	}
	if sources["ignore.pdf"] {
		t.Error("non-text file was ingested")
	}
}

func TestIngestDirMissing(t *testing.T) {
	t.Parallel()

	in := NewIngestor(&recordingIndexer{})
	if _, err := in.IngestDir(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("IngestDir on a missing directory should fail")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
