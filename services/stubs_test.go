package services

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/docqa/models"
)

// hashEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// end up close to each other.
type hashEmbedder struct {
	dim   int
	calls atomic.Int32
	fail  atomic.Pointer[error]
}

func newHashEmbedder() *hashEmbedder { return &hashEmbedder{dim: 64} }

func (h *hashEmbedder) failWith(err error) { h.fail.Store(&err) }

func (h *hashEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	h.calls.Add(1)
	if errp := h.fail.Load(); errp != nil && *errp != nil {
		return nil, *errp
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t, h.dim)
	}
	return out, nil
}

func bagOfWords(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range v {
			v[i] /= n
		}
	}
	return v
}

func newTestEmbedder(t *testing.T, client embeddings.EmbedderClient) embeddings.Embedder {
	t.Helper()
	e, err := NewEmbedder(client, nil, 16)
	require.NoError(t, err)
	return e
}

// keywordGenerator answers with the first context line mentioning a known
// keyword from the question, and with the not-found sentence otherwise.
type keywordGenerator struct {
	keywords []string
	calls    atomic.Int32
	err      error

	mu      sync.Mutex
	prompts []string
}

func newKeywordGenerator(keywords ...string) *keywordGenerator {
	sort.Strings(keywords)
	return &keywordGenerator{keywords: keywords}
}

func (g *keywordGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}

	docContext, question := splitAnswerPrompt(prompt)
	q := strings.ToLower(question)
	for _, kw := range g.keywords {
		if !strings.Contains(q, kw) {
			continue
		}
		for _, line := range strings.Split(docContext, "\n") {
			if strings.Contains(strings.ToLower(line), kw) {
				return strings.TrimSpace(line), nil
			}
		}
	}
	return "Unfortunately: " + NotFoundAnswer, nil
}

func splitAnswerPrompt(prompt string) (docContext, question string) {
	_, rest, _ := strings.Cut(prompt, "Context:\n")
	docContext, rest, _ = strings.Cut(rest, "\n\nQuestion:\n")
	question, _, _ = strings.Cut(rest, "\n\nDetailed Answer:")
	return docContext, question
}

// rot13Translator treats "non-English" text as the ROT13 encoding of
// English, which makes every translation exactly reversible.
type rot13Translator struct {
	calls atomic.Int32
	err   error
}

func (r *rot13Translator) Translate(_ context.Context, text, source, target string) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	if (source == "en") == (target == "en") {
		return text, nil
	}
	return rot13(text), nil
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}

// mapDetector knows the language of a fixed set of texts and fails on the rest.
type mapDetector map[string]string

func (m mapDetector) Detect(text string) (string, error) {
	if lang, ok := m[text]; ok {
		return lang, nil
	}
	return "", ErrLanguageDetection
}

// failingStore creates indexes whose Add always fails.
type failingStore struct {
	created []*failingIndex
}

type failingIndex struct {
	name    string
	dropped bool
}

func (f *failingStore) CreateIndex(_ context.Context, name string) (DocumentIndex, error) {
	idx := &failingIndex{name: name}
	f.created = append(f.created, idx)
	return idx, nil
}

func (f *failingIndex) Name() string { return f.name }
func (f *failingIndex) Add(context.Context, []models.Chunk, [][]float32) error {
	return errors.New("disk full")
}
func (f *failingIndex) Query(context.Context, []float32, int) ([]models.Chunk, error) {
	return nil, errors.New("not queryable")
}
func (f *failingIndex) Count(context.Context) (int, error) { return 0, nil }
func (f *failingIndex) Drop(context.Context) error {
	f.dropped = true
	return nil
}
