package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/docqa/models"
)

const photosynthesisDoc = `Photosynthesis is the main topic of this document. Plants use it to turn light into food.

Chlorophyll in the leaves absorbs sunlight. The absorbed energy splits water molecules and releases oxygen.

The sugar produced by photosynthesis feeds the plant. Animals depend on this sugar through the food chain.`

type testEnv struct {
	svc        RAGService
	embedder   *hashEmbedder
	generator  *keywordGenerator
	translator *rot13Translator
	sessions   *SessionRegistry
	uploads    *UploadStore
}

func newTestEnv(t *testing.T, detector mapDetector, maxSessions int) *testEnv {
	t.Helper()
	uploads, err := NewUploadStore(t.TempDir(), false, 1<<20)
	require.NoError(t, err)
	chunker, err := NewChunker(ChunkerConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap})
	require.NoError(t, err)

	env := &testEnv{
		embedder:   newHashEmbedder(),
		generator:  newKeywordGenerator("topic", "oxygen", "cup"),
		translator: &rot13Translator{},
		sessions:   NewSessionRegistry(maxSessions),
		uploads:    uploads,
	}
	embedder := newTestEmbedder(t, env.embedder)
	env.svc = NewRAGService(RAGDependencies{
		Uploads:        uploads,
		Chunker:        chunker,
		Translator:     NewTranslationService(detector, env.translator, nil, "en"),
		Indexer:        NewIndexingService(NewMemoryVectorStore(), embedder),
		Embedder:       embedder,
		Answerer:       NewAnswerer(env.generator, nil, 0),
		Sessions:       env.sessions,
		IncludeSources: true,
	})
	return env
}

func (e *testEnv) upload(t *testing.T, name, content string) *models.UploadResponse {
	t.Helper()
	resp, err := e.svc.UploadDocument(context.Background(), models.UploadDocumentRequest{
		Filename: name,
		Content:  []byte(content),
		Origin:   "test",
	})
	require.NoError(t, err)
	return resp
}

func TestRAGService_AnswersFromUploadedDocument(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	up := env.upload(t, "plants.txt", photosynthesisDoc)
	assert.Equal(t, "File uploaded and QA system initialized successfully.", up.Status)
	assert.Equal(t, 1, up.Chunks)
	assert.NotEmpty(t, up.SessionID)

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?"})
	require.NoError(t, err)
	assert.NotEqual(t, NotFoundAnswer, resp.Answer)
	assert.Contains(t, resp.Answer, "Photosynthesis is the main topic")
	assert.Equal(t, "en", resp.Language)
	assert.Equal(t, up.SessionID, resp.SessionID)
	require.NotEmpty(t, resp.SourceDocs)
	assert.Equal(t, "plants.txt", resp.SourceDocs[0].Metadata["source"])
	assert.Equal(t, "en", resp.SourceDocs[0].Metadata["language"])
}

func TestRAGService_AskBeforeUpload(t *testing.T) {
	env := newTestEnv(t, nil, 1)

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?"})
	assert.Nil(t, resp)
	require.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, "No document uploaded yet.", MessageOf(err))
	assert.Zero(t, env.embedder.calls.Load())
	assert.Zero(t, env.generator.calls.Load())
	assert.Zero(t, env.translator.calls.Load())
}

func TestRAGService_AnswerNotInDocument(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.upload(t, "plants.txt", photosynthesisDoc)

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "Who won the world cup?"})
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry, I could not find the answer in the provided document.", resp.Answer)
}

func TestRAGService_AnswersInTheQuestionLanguage(t *testing.T) {
	question := rot13("Which gas is released, oxygen?")
	env := newTestEnv(t, mapDetector{question: "fr"}, 1)
	env.upload(t, "plants.txt", photosynthesisDoc)

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: question})
	require.NoError(t, err)
	assert.Equal(t, "fr", resp.Language)
	assert.Equal(t, rot13("Chlorophyll in the leaves absorbs sunlight. The absorbed energy splits water molecules and releases oxygen."), resp.Answer)
	assert.EqualValues(t, 2, env.translator.calls.Load())
}

func TestRAGService_TranslatesDocumentBeforeIndexing(t *testing.T) {
	englishDoc := "The capital of the topic country is Paris."
	frenchDoc := rot13(englishDoc)
	env := newTestEnv(t, mapDetector{frenchDoc: "fr"}, 1)
	env.upload(t, "fr.txt", frenchDoc)

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the topic?"})
	require.NoError(t, err)
	assert.Equal(t, englishDoc, resp.Answer)
	require.Len(t, resp.SourceDocs, 1)
	assert.Equal(t, "fr", resp.SourceDocs[0].Metadata["language"])
}

func TestRAGService_ReuploadIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	ask := func() string {
		resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?"})
		require.NoError(t, err)
		return resp.Answer
	}

	first := env.upload(t, "plants.txt", photosynthesisDoc)
	a1 := ask()
	second := env.upload(t, "plants.txt", photosynthesisDoc)
	a2 := ask()

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	sessions := env.svc.ListSessions(context.Background())
	require.Equal(t, 1, sessions.Count)
	assert.Equal(t, second.SessionID, sessions.Sessions[0].SessionID)
}

func TestRAGService_EmptyDocument(t *testing.T) {
	env := newTestEnv(t, nil, 1)

	for _, content := range []string{"", "   \n\t "} {
		_, err := env.svc.UploadDocument(context.Background(), models.UploadDocumentRequest{
			Filename: "empty.txt",
			Content:  []byte(content),
		})
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
	assert.Zero(t, env.embedder.calls.Load())
	assert.Equal(t, 0, env.svc.ListSessions(context.Background()).Count)
}

func TestRAGService_FailedUploadKeepsActiveSession(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	good := env.upload(t, "plants.txt", photosynthesisDoc)

	env.embedder.failWith(errors.New("invalid api key"))
	_, err := env.svc.UploadDocument(context.Background(), models.UploadDocumentRequest{
		Filename: "other.txt",
		Content:  []byte("A completely different document."),
	})
	require.Error(t, err)
	assert.Equal(t, CodeEmbeddingProvider, CodeOf(err))

	env.embedder.failWith(nil)
	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?"})
	require.NoError(t, err)
	assert.Equal(t, good.SessionID, resp.SessionID)
}

func TestRAGService_UploadsAreRemovedAfterIndexing(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.upload(t, "plants.txt", photosynthesisDoc)

	entries, err := os.ReadDir(env.uploads.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRAGService_AskBySessionID(t *testing.T) {
	env := newTestEnv(t, nil, 2)
	first := env.upload(t, "plants.txt", photosynthesisDoc)
	env.upload(t, "other.txt", "Nothing relevant lives here.")

	resp, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, resp.SessionID)
	assert.Contains(t, resp.Answer, "Photosynthesis")

	_, err = env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?", SessionID: "nope"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRAGService_BlankQuestion(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.upload(t, "plants.txt", photosynthesisDoc)

	_, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "  "})
	assert.Equal(t, CodeInvalidRequest, CodeOf(err))
}

func TestRAGService_ConcurrentAsksDuringReupload(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.upload(t, "plants.txt", photosynthesisDoc)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Ask(context.Background(), models.AskRequest{Question: "What is the main topic?"})
			errs <- err
		}()
	}
	for range 3 {
		_, err := env.svc.UploadDocument(context.Background(), models.UploadDocumentRequest{
			Filename: "plants.txt",
			Content:  []byte(photosynthesisDoc),
		})
		require.NoError(t, err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
