package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github/itish2003/docqa/models"
)

// Session binds one uploaded document's index to the answer pipeline.
type Session struct {
	ID        string
	Filename  string
	CreatedAt time.Time

	docs      *IndexedDocumentSet
	retriever *Retriever
	answerer  *Answerer

	// inUse is read-locked by every ask running against the session and
	// write-locked by close, so an evicted index is dropped only after
	// in-flight asks have finished.
	inUse  sync.RWMutex
	closed bool
}

func (s *Session) info(active bool) models.SessionInfo {
	return models.SessionInfo{
		SessionID: s.ID,
		Filename:  s.Filename,
		Chunks:    s.docs.ChunkCount,
		CreatedAt: s.CreatedAt,
		Active:    active,
	}
}

// acquire marks the session busy. It returns false when the session was
// closed after being looked up.
func (s *Session) acquire() bool {
	s.inUse.RLock()
	if s.closed {
		s.inUse.RUnlock()
		return false
	}
	return true
}

func (s *Session) release() { s.inUse.RUnlock() }

func (s *Session) close(ctx context.Context) {
	s.inUse.Lock()
	defer s.inUse.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.docs.Index.Drop(ctx); err != nil {
		log.Printf("SESSION WARN: could not drop index of session %s: %v", s.ID, err)
	}
}

// SessionRegistry holds the indexed documents, keyed by session id. The most
// recent successful upload is the active session. When more than
// maxSessions are held the oldest is evicted and its index dropped.
type SessionRegistry struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	order       []string
	maxSessions int
}

func NewSessionRegistry(maxSessions int) *SessionRegistry {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &SessionRegistry{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// Activate stores s as the active session and evicts sessions over capacity.
// Evicted sessions are closed after the registry lock is released.
func (r *SessionRegistry) Activate(ctx context.Context, s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	var evicted []*Session
	for len(r.order) > r.maxSessions {
		oldest := r.order[0]
		r.order = r.order[1:]
		evicted = append(evicted, r.sessions[oldest])
		delete(r.sessions, oldest)
	}
	r.mu.Unlock()

	for _, old := range evicted {
		log.Printf("SESSION: Session %s (%s) replaced by %s", old.ID, old.Filename, s.ID)
		old.close(ctx)
	}
}

// Get returns the session with the given id, or the active session when id
// is empty.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		if len(r.order) == 0 {
			return nil, ErrNoActiveSession
		}
		return r.sessions[r.order[len(r.order)-1]], nil
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns every held session, oldest first.
func (r *SessionRegistry) List() []models.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.SessionInfo, 0, len(r.order))
	for i, id := range r.order {
		out = append(out, r.sessions[id].info(i == len(r.order)-1))
	}
	return out
}

// Close drops every held index. Used at shutdown.
func (r *SessionRegistry) Close(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.sessions[id])
	}
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.mu.Unlock()

	for _, s := range all {
		s.close(ctx)
	}
}
