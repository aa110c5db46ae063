package models

import "time"

// Chunk is a bounded contiguous slice of document text, the unit of retrieval.
// Chunks are treated as immutable once produced.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Index    int               `json:"index"`
}

// WithText returns a copy of the chunk carrying new text. Metadata is copied
// so the original chunk is never mutated.
func (c Chunk) WithText(text string) Chunk {
	meta := make(map[string]string, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return Chunk{Text: text, Metadata: meta, Index: c.Index}
}

// Question is a user question together with the language it was asked in.
type Question struct {
	Text     string
	Language string
}

// Answer is the generated answer, expressed in the question's language.
type Answer struct {
	Text     string
	Language string
}

// SessionInfo describes one indexed document held by the session registry.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Filename  string    `json:"filename"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// SourceDocument represents a retrieved chunk and its origin.
type SourceDocument struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
