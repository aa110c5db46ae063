package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"github/itish2003/docqa/models"
)

const chromaAddBatch = 100

// ChromaVectorStore keeps one Chroma collection per session.
type ChromaVectorStore struct {
	client chromago.Client
}

func NewChromaVectorStore(client chromago.Client) *ChromaVectorStore {
	return &ChromaVectorStore{client: client}
}

func (s *ChromaVectorStore) CreateIndex(ctx context.Context, name string) (DocumentIndex, error) {
	log.Printf("INDEXER: Creating collection '%s'...", name)
	collection, err := s.client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "uploaded document"),
				chromago.NewStringAttribute("created_by", "docqa"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma collection %s: %w", name, err)
	}
	return &chromaIndex{client: s.client, collection: collection, name: name}, nil
}

type chromaIndex struct {
	client     chromago.Client
	collection chromago.Collection
	name       string
}

func (c *chromaIndex) Name() string { return c.name }

func (c *chromaIndex) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for start := 0; start < len(chunks); start += chromaAddBatch {
		end := min(start+chromaAddBatch, len(chunks))

		ids := make([]chromago.DocumentID, 0, end-start)
		texts := make([]string, 0, end-start)
		embs := make([]embeddings.Embedding, 0, end-start)
		metas := make([]chromago.DocumentMetadata, 0, end-start)
		for i := start; i < end; i++ {
			ids = append(ids, chromago.DocumentID(fmt.Sprintf("%s-chunk%d", c.name, chunks[i].Index)))
			texts = append(texts, chunks[i].Text)
			embs = append(embs, embeddings.NewEmbeddingFromFloat32(vectors[i]))
			metas = append(metas, chunkMetadata(chunks[i]))
		}

		err := c.collection.Add(ctx,
			chromago.WithIDs(ids...),
			chromago.WithTexts(texts...),
			chromago.WithEmbeddings(embs...),
			chromago.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add chunks %d-%d to chromadb: %w", start, end-1, err)
		}
	}
	return nil
}

func chunkMetadata(chunk models.Chunk) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(chunk.Metadata)+1)
	for k, v := range chunk.Metadata {
		attrs = append(attrs, chromago.NewStringAttribute(k, v))
	}
	attrs = append(attrs, chromago.NewIntAttribute("chunk_num", int64(chunk.Index)))
	return chromago.NewDocumentMetadata(attrs...)
}

func (c *chromaIndex) Query(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	results, err := c.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(k),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return nil, nil
	}

	chunks := make([]models.Chunk, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		text := doc.ContentString()
		if text == "" {
			continue
		}
		var meta map[string]string
		if len(metadataGroups) > 0 && len(metadataGroups[0]) > i {
			meta = metadataToMap(metadataGroups[0][i])
		}
		idx, _ := strconv.Atoi(meta["chunk_index"])
		chunks = append(chunks, models.Chunk{Text: text, Metadata: meta, Index: idx})
	}
	return chunks, nil
}

// metadataToMap flattens Chroma metadata to strings. DocumentMetadata has no
// public accessor for all values, so it goes through its JSON form.
func metadataToMap(metadata chromago.DocumentMetadata) map[string]string {
	out := make(map[string]string)
	if metadata == nil {
		return out
	}
	jsonBytes, err := json.Marshal(metadata)
	if err != nil {
		log.Printf("WARN: could not marshal chunk metadata: %v", err)
		return out
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		log.Printf("WARN: could not unmarshal chunk metadata: %v", err)
		return out
	}
	for k, v := range raw {
		if k == "chunk_num" {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func (c *chromaIndex) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func (c *chromaIndex) Drop(ctx context.Context) error {
	if err := c.client.DeleteCollection(ctx, c.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", c.name, err)
	}
	log.Printf("INDEXER: Deleted collection '%s'", c.name)
	return nil
}
