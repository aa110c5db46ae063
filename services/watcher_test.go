package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/docqa/models"
)

type recordingService struct {
	mu      sync.Mutex
	uploads []models.UploadDocumentRequest
}

func (r *recordingService) UploadDocument(_ context.Context, req models.UploadDocumentRequest) (*models.UploadResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, req)
	return &models.UploadResponse{SessionID: "s"}, nil
}

func (r *recordingService) Ask(context.Context, models.AskRequest) (*models.AskResponse, error) {
	return nil, ErrNoActiveSession
}

func (r *recordingService) ListSessions(context.Context) *models.ListSessionsResponse {
	return &models.ListSessionsResponse{}
}

func (r *recordingService) snapshot() []models.UploadDocumentRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.UploadDocumentRequest(nil), r.uploads...)
}

func TestInboxWatcher_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	svc := &recordingService{}
	w := NewInboxWatcher(svc)
	w.debounce = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, dir) }()
	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploaded_notes.txt"), []byte("ours"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("tmp"), 0o644))

	assert.Eventually(t, func() bool { return len(svc.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	got := svc.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "notes.txt", got[0].Filename)
	assert.Equal(t, "hello", string(got[0].Content))
	assert.Equal(t, "watch", got[0].Origin)
}

func TestInboxWatcher_Accepts(t *testing.T) {
	w := NewInboxWatcher(&recordingService{})
	assert.True(t, w.accepts("/in/report.pdf"))
	assert.False(t, w.accepts("/in/uploaded_report.pdf"))
	assert.False(t, w.accepts("/in/.report.pdf.swp"))
	assert.False(t, w.accepts("/in/archive.zip"))
}
