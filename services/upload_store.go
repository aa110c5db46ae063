package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const uploadPrefix = "uploaded_"

// UploadStore writes uploaded documents to a local directory.
type UploadStore struct {
	Dir      string // absolute path to the upload directory
	Retain   bool   // keep files after indexing
	MaxBytes int64
}

func NewUploadStore(dir string, retain bool, maxBytes int64) (*UploadStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory not set")
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for upload dir: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("could not create upload dir: %w", err)
	}
	return &UploadStore{Dir: absPath, Retain: retain, MaxBytes: maxBytes}, nil
}

// sanitizeFilename maps an uploaded filename to a path inside the upload
// directory. Only the base name is kept, so "../../etc/passwd" becomes
// "uploaded_passwd".
func (u *UploadStore) sanitizeFilename(filename string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	if base == "/" || base == "." || base == "" {
		return "", newError(CodeInvalidRequest, "upload", "Uploaded file has no name.", nil)
	}
	cleanPath := filepath.Join(u.Dir, uploadPrefix+base)
	if !strings.HasPrefix(cleanPath, u.Dir+string(filepath.Separator)) {
		return "", newError(CodeInvalidRequest, "upload", "Invalid filename.", nil)
	}
	return cleanPath, nil
}

// Save writes content under a name derived from filename. A second upload
// with the same name overwrites the first.
func (u *UploadStore) Save(filename string, content []byte) (string, error) {
	if u.MaxBytes > 0 && int64(len(content)) > u.MaxBytes {
		return "", newError(CodeUploadTooLarge, "upload", fmt.Sprintf("Uploaded file exceeds %d bytes.", u.MaxBytes), nil)
	}
	path, err := u.sanitizeFilename(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", newError(CodeInternal, "upload", "Could not store the uploaded file.", err)
	}
	return path, nil
}

// Cleanup removes a stored upload unless uploads are retained.
func (u *UploadStore) Cleanup(path string) {
	if u.Retain {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("SERVICE WARN: could not remove upload %s: %v", path, err)
	}
}
