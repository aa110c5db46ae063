package services

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/docqa/models"
)

// IndexedDocumentSet is the translated chunks of one document, embedded and
// stored in an index owned by exactly one session.
type IndexedDocumentSet struct {
	Index      DocumentIndex
	ChunkCount int
}

// IndexingService embeds chunks and stores them in a fresh document index.
type IndexingService struct {
	store    VectorStore
	embedder embeddings.Embedder
}

func NewIndexingService(store VectorStore, embedder embeddings.Embedder) *IndexingService {
	return &IndexingService{store: store, embedder: embedder}
}

// Build embeds chunks and adds them to a new index called name. On any
// failure the partially built index is dropped.
func (s *IndexingService) Build(ctx context.Context, name string, chunks []models.Chunk) (*IndexedDocumentSet, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, newError(CodeEmbeddingProvider, "index", "embedding provider failed", err)
	}
	if err := validateVectors(vectors, len(chunks)); err != nil {
		return nil, newError(CodeEmbeddingProvider, "index", "embedding provider returned malformed output", err)
	}
	log.Printf("INDEXER: Embedded %d chunks (dimension %d).", len(vectors), len(vectors[0]))

	index, err := s.store.CreateIndex(ctx, name)
	if err != nil {
		return nil, newError(CodeVectorStore, "index", "could not create document index", err)
	}
	if err := index.Add(ctx, chunks, vectors); err != nil {
		if derr := index.Drop(context.WithoutCancel(ctx)); derr != nil {
			log.Printf("INDEXER WARN: could not drop partial index %s: %v", name, derr)
		}
		return nil, newError(CodeVectorStore, "index", "could not store chunks", err)
	}

	return &IndexedDocumentSet{Index: index, ChunkCount: len(chunks)}, nil
}

func validateVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), want)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("empty embedding vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}
