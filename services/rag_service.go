package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/docqa/models"
)

// RAGService interface defines the document question answering operations.
type RAGService interface {
	UploadDocument(ctx context.Context, req models.UploadDocumentRequest) (*models.UploadResponse, error)
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
	ListSessions(ctx context.Context) *models.ListSessionsResponse
}

// RAGDependencies are the collaborators of the RAG service.
type RAGDependencies struct {
	Uploads    *UploadStore
	Chunker    Chunker
	Translator *TranslationService
	Indexer    *IndexingService
	Embedder   embeddings.Embedder
	Answerer   *Answerer
	Sessions   *SessionRegistry

	TopK             int
	IndexLanguage    string
	CollectionPrefix string
	IncludeSources   bool
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	deps RAGDependencies
}

// NewRAGService creates a new RAG service instance
func NewRAGService(deps RAGDependencies) RAGService {
	if deps.IndexLanguage == "" {
		deps.IndexLanguage = "en"
	}
	if deps.CollectionPrefix == "" {
		deps.CollectionPrefix = "docqa"
	}
	if deps.TopK <= 0 {
		deps.TopK = DefaultTopK
	}
	return &ragServiceImpl{deps: deps}
}

type uploadState struct {
	req       models.UploadDocumentRequest
	sessionID string
	path      string
	text      string
	chunks    []models.Chunk
	docs      *IndexedDocumentSet
}

// UploadDocument runs save → extract → chunk → translate → index → activate.
// The registry is only touched by the last stage, so a failure anywhere
// leaves the previously active session in place.
func (r *ragServiceImpl) UploadDocument(ctx context.Context, req models.UploadDocumentRequest) (*models.UploadResponse, error) {
	log.Printf("SERVICE: Uploading document '%s' (%d bytes, origin %s)", req.Filename, len(req.Content), req.Origin)

	st := &uploadState{req: req, sessionID: uuid.New().String()}
	defer func() {
		if st.path != "" {
			r.deps.Uploads.Cleanup(st.path)
		}
	}()

	err := runPipeline(ctx, "upload", st,
		stage[uploadState]{"save", r.saveUpload},
		stage[uploadState]{"extract", r.extractText},
		stage[uploadState]{"chunk", r.chunkText},
		stage[uploadState]{"translate", r.translateChunks},
		stage[uploadState]{"index", r.buildIndex},
		stage[uploadState]{"activate", r.activateSession},
	)
	if err != nil {
		if st.docs != nil {
			if derr := st.docs.Index.Drop(context.WithoutCancel(ctx)); derr != nil {
				log.Printf("SERVICE WARN: could not drop index of failed upload: %v", derr)
			}
		}
		return nil, err
	}

	return &models.UploadResponse{
		Status:    "File uploaded and QA system initialized successfully.",
		SessionID: st.sessionID,
		Chunks:    len(st.chunks),
	}, nil
}

func (r *ragServiceImpl) saveUpload(_ context.Context, st *uploadState) error {
	path, err := r.deps.Uploads.Save(st.req.Filename, st.req.Content)
	if err != nil {
		return err
	}
	st.path = path
	return nil
}

func (r *ragServiceImpl) extractText(_ context.Context, st *uploadState) error {
	text, err := ExtractTextFromFile(st.path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyDocument
	}
	st.text = text
	return nil
}

func (r *ragServiceImpl) chunkText(_ context.Context, st *uploadState) error {
	seq, err := r.deps.Chunker.Chunks(st.text, map[string]string{
		"source": filepath.Base(st.req.Filename),
	})
	if err != nil {
		return newError(CodeInvalidConfiguration, "chunk", "could not split the document", err)
	}
	for c := range seq {
		st.chunks = append(st.chunks, c)
	}
	if len(st.chunks) == 0 {
		return ErrEmptyDocument
	}
	log.Printf("SERVICE: Split '%s' into %d chunks.", st.req.Filename, len(st.chunks))
	return nil
}

func (r *ragServiceImpl) translateChunks(ctx context.Context, st *uploadState) error {
	for i, c := range st.chunks {
		lang, _ := r.deps.Translator.DetectLanguage(c.Text)
		text, err := r.deps.Translator.Translate(ctx, c.Text, lang, r.deps.IndexLanguage)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		translated := c.WithText(text)
		translated.Metadata["language"] = lang
		st.chunks[i] = translated
	}
	return nil
}

func (r *ragServiceImpl) buildIndex(ctx context.Context, st *uploadState) error {
	docs, err := r.deps.Indexer.Build(ctx, r.deps.CollectionPrefix+"-"+st.sessionID, st.chunks)
	if err != nil {
		return err
	}
	st.docs = docs
	return nil
}

func (r *ragServiceImpl) activateSession(ctx context.Context, st *uploadState) error {
	r.deps.Sessions.Activate(context.WithoutCancel(ctx), &Session{
		ID:        st.sessionID,
		Filename:  filepath.Base(st.req.Filename),
		CreatedAt: time.Now().UTC(),
		docs:      st.docs,
		retriever: NewRetriever(st.docs.Index, r.deps.Embedder, r.deps.TopK),
		answerer:  r.deps.Answerer,
	})
	log.Printf("SERVICE: Session %s is now active.", st.sessionID)
	return nil
}

type askState struct {
	req           models.AskRequest
	session       *Session
	question      models.Question
	questionIndex string
	chunks        []models.Chunk
	answerIndex   string
	answer        models.Answer
}

// Ask runs detect → translate → retrieve → generate → translate back against
// the requested session, or the active one.
func (r *ragServiceImpl) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	log.Printf("SERVICE: Asking: '%s' (SessionID: '%s')", req.Question, req.SessionID)

	if strings.TrimSpace(req.Question) == "" {
		return nil, newError(CodeInvalidRequest, "ask", "Question must not be empty.", nil)
	}

	st := &askState{req: req}
	defer func() {
		if st.session != nil {
			st.session.release()
		}
	}()

	err := runPipeline(ctx, "ask", st,
		stage[askState]{"session", r.resolveSession},
		stage[askState]{"detect", r.detectLanguage},
		stage[askState]{"translate-question", r.translateQuestion},
		stage[askState]{"retrieve", r.retrieve},
		stage[askState]{"generate", r.generate},
		stage[askState]{"translate-answer", r.translateAnswer},
	)
	if err != nil {
		return nil, err
	}

	response := &models.AskResponse{
		Answer:    st.answer.Text,
		Language:  st.answer.Language,
		SessionID: st.session.ID,
	}
	if r.deps.IncludeSources {
		for _, c := range st.chunks {
			response.SourceDocs = append(response.SourceDocs, models.SourceDocument{Text: c.Text, Metadata: c.Metadata})
		}
	}
	return response, nil
}

// resolveSession looks the session up and marks it busy. An active session
// replaced between lookup and acquire is looked up again.
func (r *ragServiceImpl) resolveSession(_ context.Context, st *askState) error {
	for attempt := 0; attempt < 3; attempt++ {
		s, err := r.deps.Sessions.Get(st.req.SessionID)
		if err != nil {
			return err
		}
		if s.acquire() {
			st.session = s
			return nil
		}
		if st.req.SessionID != "" {
			return ErrSessionNotFound
		}
	}
	return ErrNoActiveSession
}

func (r *ragServiceImpl) detectLanguage(_ context.Context, st *askState) error {
	lang, fellBack := r.deps.Translator.DetectLanguage(st.req.Question)
	if fellBack {
		log.Printf("SERVICE: Could not detect the question language, answering in '%s'", lang)
	}
	st.question = models.Question{Text: st.req.Question, Language: lang}
	return nil
}

func (r *ragServiceImpl) translateQuestion(ctx context.Context, st *askState) error {
	text, err := r.deps.Translator.Translate(ctx, st.question.Text, st.question.Language, r.deps.IndexLanguage)
	if err != nil {
		return err
	}
	st.questionIndex = text
	return nil
}

func (r *ragServiceImpl) retrieve(ctx context.Context, st *askState) error {
	chunks, err := st.session.retriever.Retrieve(ctx, st.questionIndex)
	if err != nil {
		return err
	}
	log.Printf("SERVICE: Retrieved %d chunks", len(chunks))
	st.chunks = chunks
	return nil
}

func (r *ragServiceImpl) generate(ctx context.Context, st *askState) error {
	answer, err := st.session.answerer.Answer(ctx, st.questionIndex, st.chunks)
	if err != nil {
		return err
	}
	st.answerIndex = answer
	return nil
}

func (r *ragServiceImpl) translateAnswer(ctx context.Context, st *askState) error {
	text, err := r.deps.Translator.Translate(ctx, st.answerIndex, r.deps.IndexLanguage, st.question.Language)
	if err != nil {
		return err
	}
	st.answer = models.Answer{Text: text, Language: st.question.Language}
	return nil
}

// ListSessions reports the documents currently held by the registry.
func (r *ragServiceImpl) ListSessions(context.Context) *models.ListSessionsResponse {
	sessions := r.deps.Sessions.List()
	return &models.ListSessionsResponse{Count: len(sessions), Sessions: sessions}
}
