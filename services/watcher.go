package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github/itish2003/docqa/models"
)

const watchDebounce = 500 * time.Millisecond

// InboxWatcher ingests documents dropped into a directory. Each file that is
// created or written becomes the active session once its write settles.
type InboxWatcher struct {
	service  RAGService
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewInboxWatcher(service RAGService) *InboxWatcher {
	return &InboxWatcher{
		service:  service,
		debounce: watchDebounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Watch blocks until ctx is cancelled, ingesting supported files in dirPath.
func (w *InboxWatcher) Watch(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dirPath); err != nil {
		return err
	}
	log.Printf("WATCHER: Watching directory: %s", dirPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.accepts(event.Name) {
				continue
			}
			// Editors often write a file in several steps, so only the last
			// Create/Write event within the debounce window triggers ingestion.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WATCHER ERROR: %v", err)

		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			w.stopPending()
			return nil
		}
	}
}

func (w *InboxWatcher) accepts(path string) bool {
	base := filepath.Base(path)
	return IsSupportedFile(path) && !strings.HasPrefix(base, uploadPrefix) && !strings.HasPrefix(base, ".")
}

func (w *InboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *InboxWatcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *InboxWatcher) ingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		log.Printf("WATCHER WARN: Could not read %s: %v", path, err)
		return
	}
	log.Printf("WATCHER: File created/modified: %s. Indexing...", path)
	resp, err := w.service.UploadDocument(ctx, models.UploadDocumentRequest{
		Filename: filepath.Base(path),
		Content:  content,
		Origin:   "watch",
	})
	if err != nil {
		log.Printf("WATCHER ERROR: Failed to index %s: %v", path, err)
		return
	}
	log.Printf("WATCHER: %s indexed as session %s (%d chunks)", path, resp.SessionID, resp.Chunks)
}
