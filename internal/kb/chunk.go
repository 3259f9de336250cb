package kb

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 250

	// DefaultChunkOverlap is how many characters consecutive chunks share,
	// so sentences cut at a boundary still appear whole in one chunk.
	DefaultChunkOverlap = 50
)

// SplitText splits text into chunks of at most size characters with the
// given overlap between consecutive chunks. Whitespace-only chunks are
// dropped. size must be positive; overlap is clamped below size.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// ChunkID derives a stable identifier from a chunk's source and content.
func ChunkID(source, content string) string {
	sum := sha1.Sum([]byte(source + "\x00" + content))
	return hex.EncodeToString(sum[:])
}
