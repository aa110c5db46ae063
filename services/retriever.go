package services

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/docqa/models"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// Retriever finds the chunks of one document closest to a question.
type Retriever struct {
	index    DocumentIndex
	embedder embeddings.Embedder
	k        int
}

func NewRetriever(index DocumentIndex, embedder embeddings.Embedder, k int) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Retriever{index: index, embedder: embedder, k: k}
}

// Retrieve returns up to k chunks ordered by ascending distance to the query.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, newError(CodeEmbeddingProvider, "retrieve", "could not embed the question", err)
	}
	if len(vector) == 0 {
		return nil, newError(CodeEmbeddingProvider, "retrieve", "embedding provider returned an empty vector", nil)
	}
	chunks, err := r.index.Query(ctx, vector, r.k)
	if err != nil {
		return nil, newError(CodeVectorStore, "retrieve", "could not query the document index", err)
	}
	return chunks, nil
}
