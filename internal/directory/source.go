package directory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/franciscoquinteros/landing-anto/internal/docstore"
)

// maxDocumentSize bounds how much of a fetched document is read.
const maxDocumentSize = 5 << 20

// DocumentSource reads the document from the local document store.
type DocumentSource struct {
	docs *docstore.FileStore
	path string
}

// NewDocumentSource returns a Source reading path from docs.
func NewDocumentSource(docs *docstore.FileStore, path string) *DocumentSource {
	return &DocumentSource{docs: docs, path: path}
}

// Fetch reads the document.
func (s *DocumentSource) Fetch(ctx context.Context) ([]byte, error) {
	doc, err := s.docs.Get(s.path)
	if err != nil {
		return nil, err
	}
	return doc.Content, nil
}

// HTTPSource fetches the published document from the site's public URL.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource returns a Source fetching {baseURL}/{path}.
func NewHTTPSource(baseURL, path string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPSource{
		url:    strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		client: client,
	}
}

// URL returns the address the document is fetched from.
func (s *HTTPSource) URL() string {
	return s.url
}

// Fetch downloads the document. Non-2xx responses are errors.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", s.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.url, err)
	}
	return body, nil
}
