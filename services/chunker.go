package services

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github/itish2003/docqa/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits document text into an ordered, finite sequence of chunks.
type Chunker interface {
	Chunks(text string, meta map[string]string) (iter.Seq[models.Chunk], error)
}

// ChunkerConfig selects the chunking strategy. Size and Overlap count runes.
type ChunkerConfig struct {
	Strategy string
	Size     int
	Overlap  int
}

// NewChunker validates cfg and returns the requested strategy.
func NewChunker(cfg ChunkerConfig) (Chunker, error) {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, newError(CodeInvalidConfiguration, "chunker",
			fmt.Sprintf("chunk overlap must be in [0, size): size=%d overlap=%d", cfg.Size, cfg.Overlap), nil)
	}
	switch cfg.Strategy {
	case "", "window":
		return &WindowChunker{size: cfg.Size, overlap: cfg.Overlap}, nil
	case "recursive":
		return &RecursiveChunker{splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.Size),
			textsplitter.WithChunkOverlap(cfg.Overlap),
		)}, nil
	default:
		return nil, newError(CodeInvalidConfiguration, "chunker", fmt.Sprintf("unknown strategy %q", cfg.Strategy), nil)
	}
}

// WindowChunker emits fixed-size rune windows. Consecutive windows share
// exactly overlap runes, so chunk 0 followed by every later chunk minus its
// first overlap runes reproduces the input.
type WindowChunker struct {
	size    int
	overlap int
}

func (w *WindowChunker) Chunks(text string, meta map[string]string) (iter.Seq[models.Chunk], error) {
	runes := []rune(text)
	step := w.size - w.overlap
	return func(yield func(models.Chunk) bool) {
		for idx, start := 0, 0; start < len(runes); idx, start = idx+1, start+step {
			end := min(start+w.size, len(runes))
			if !yield(newChunk(string(runes[start:end]), meta, idx, start)) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}, nil
}

// RecursiveChunker splits on paragraph, line and word boundaries. Separators
// at split points are dropped, so coverage of the input is approximate.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func (r *RecursiveChunker) Chunks(text string, meta map[string]string) (iter.Seq[models.Chunk], error) {
	pieces, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	return func(yield func(models.Chunk) bool) {
		idx, offset := 0, 0
		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			if pos := strings.Index(text[offset:], piece); pos >= 0 {
				offset += pos
			}
			if !yield(newChunk(piece, meta, idx, len([]rune(text[:offset])))) {
				return
			}
			idx++
		}
	}, nil
}

func newChunk(text string, meta map[string]string, idx, startRune int) models.Chunk {
	m := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		m[k] = v
	}
	m["chunk_index"] = strconv.Itoa(idx)
	m["start_offset"] = strconv.Itoa(startRune)
	return models.Chunk{Text: text, Metadata: m, Index: idx}
}
