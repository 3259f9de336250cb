package kb

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Ingestor builds the knowledge base from a directory of plain-text
// documents (.txt and .md files, walked recursively).
type Ingestor struct {
	index   Indexer
	size    int
	overlap int
	logger  *slog.Logger
}

// IngestOption is a functional option for Ingestor.
type IngestOption func(*Ingestor)

// WithChunking overrides the chunk size and overlap (in characters).
func WithChunking(size, overlap int) IngestOption {
	return func(in *Ingestor) {
		if size > 0 {
			in.size = size
		}
		if overlap >= 0 {
			in.overlap = overlap
		}
	}
}

// WithIngestLogger sets the logger used for per-file progress.
func WithIngestLogger(l *slog.Logger) IngestOption {
	return func(in *Ingestor) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewIngestor constructs an Ingestor writing into index.
func NewIngestor(index Indexer, opts ...IngestOption) *Ingestor {
	in := &Ingestor{
		index:   index,
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// IngestDir walks dir, chunks every .txt and .md file, and indexes the
// chunks. It returns the number of chunks indexed. Unreadable files are
// logged and skipped; the walk continues.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("kb: data directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("kb: %q is not a directory", dir)
	}

	total := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isTextFile(path) {
			return nil
		}

		n, err := in.ingestFile(ctx, dir, path)
		if err != nil {
			in.logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}
		in.logger.Info("ingested document", "path", path, "chunks", n)
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("kb: ingest %q: %w", dir, err)
	}
	return total, nil
}

func (in *Ingestor) ingestFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	source, err := filepath.Rel(root, path)
	if err != nil {
		source = path
	}

	pieces := SplitText(string(data), in.size, in.overlap)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = Chunk{
			ID:      ChunkID(source, content),
			Source:  source,
			Content: content,
		}
	}
	if err := in.index.IndexChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	default:
		return false
	}
}
