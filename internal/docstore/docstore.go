// Package docstore is the durable document store behind the site data and
// uploaded images. Writes use optimistic concurrency: a caller must present
// the SHA of the version it read.
package docstore

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict indicates the document changed since it was read.
	ErrConflict = errors.New("document sha mismatch")
	// ErrInvalidPath indicates a path outside the store root.
	ErrInvalidPath = errors.New("invalid document path")
)

// Document is a stored file and its content hash.
type Document struct {
	Path    string
	Content []byte
	SHA     string
}

// FileStore keeps documents as files under a root directory.
type FileStore struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileStore returns a store rooted at root, creating it if needed.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve document root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create document root: %w", err)
	}
	return &FileStore{root: abs, logger: logger}, nil
}

// Root returns the absolute store root.
func (s *FileStore) Root() string {
	return s.root
}

// BlobSHA returns the git blob SHA-1 of content, so hashes match what a
// git-backed store would report for the same bytes.
func BlobSHA(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Get reads the document at path.
func (s *FileStore) Get(path string) (*Document, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &Document{Path: path, Content: content, SHA: BlobSHA(content)}, nil
}

// Put writes content to path if the current SHA equals expectedSHA.
// expectedSHA must be empty when the document does not exist yet.
// It returns the new SHA.
func (s *FileStore) Put(path string, content []byte, expectedSHA, message string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := ""
	existing, err := os.ReadFile(full)
	switch {
	case err == nil:
		current = BlobSHA(existing)
	case errors.Is(err, os.ErrNotExist):
	default:
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if current != expectedSHA {
		return "", fmt.Errorf("%w: %s", ErrConflict, path)
	}

	if err := writeAtomic(full, content); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	sha := BlobSHA(content)
	s.logger.Info("document_written",
		"path", path,
		"sha", sha,
		"message", message,
		"size", len(content),
	)
	return sha, nil
}

// resolve maps a store-relative path to a file under the root.
func (s *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return full, nil
}

func writeAtomic(full string, content []byte) error {
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, full)
}
