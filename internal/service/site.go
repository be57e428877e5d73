// Package service contains the owner-facing business logic: editing the
// site document, uploading images and reading click analytics.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/franciscoquinteros/landing-anto/internal/docstore"
	"github.com/franciscoquinteros/landing-anto/internal/metrics"
	"github.com/franciscoquinteros/landing-anto/internal/model"
)

// Paths inside the document store.
const (
	ProfileImagePath = "data/profile.jpg"
	LinkImageDir     = "data/link-images"
)

// Document write kinds reported to metrics.
const (
	WriteSiteData     = "site_data"
	WriteProfileImage = "profile_image"
	WriteLinkImage    = "link_image"
)

var (
	// ErrInvalidDocument indicates the submitted site data is not a valid directory.
	ErrInvalidDocument = errors.New("invalid site data")
	// ErrMissingImage indicates the upload carried no image.
	ErrMissingImage = errors.New("missing image")
	// ErrInvalidImage indicates the image is not valid base64.
	ErrInvalidImage = errors.New("invalid image encoding")
	// ErrInvalidLinkID indicates a link id unusable as a file name.
	ErrInvalidLinkID = errors.New("invalid link id")
	// ErrCacheRefresh indicates the document was written but the fast cache
	// still holds the previous version.
	ErrCacheRefresh = errors.New("site data cache refresh failed")
)

var linkIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DocumentStore is the durable store the site document and images live in.
type DocumentStore interface {
	Get(path string) (*docstore.Document, error)
	Put(path string, content []byte, expectedSHA, message string) (string, error)
}

// CacheRefresher replaces the cached copy of the site document.
type CacheRefresher interface {
	Refresh(ctx context.Context, raw []byte) error
}

// SiteService applies owner edits to the site document.
type SiteService struct {
	docs     DocumentStore
	cache    CacheRefresher
	sitePath string
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewSiteService creates a SiteService writing the document at sitePath.
func NewSiteService(docs DocumentStore, cache CacheRefresher, sitePath string, recorder metrics.Recorder, logger *slog.Logger) *SiteService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &SiteService{
		docs:     docs,
		cache:    cache,
		sitePath: sitePath,
		metrics:  recorder,
		logger:   logger.With("component", "site"),
	}
}

// Save replaces the site document with body. Fields the directory model
// does not know about are kept as submitted.
func (s *SiteService) Save(ctx context.Context, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidDocument)
	}

	var dir model.Directory
	if err := json.Unmarshal(trimmed, &dir); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := dir.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := s.writeDocument(ctx, trimmed, "Update site data from admin panel"); err != nil {
		s.metrics.IncDocumentWrite(WriteSiteData, metrics.StatusFailed)
		return err
	}
	s.metrics.IncDocumentWrite(WriteSiteData, metrics.StatusSuccess)
	return nil
}

// UploadProfileImage stores the profile picture and points the document's
// image field at it. It returns the public image path.
func (s *SiteService) UploadProfileImage(ctx context.Context, imageBase64 string) (string, error) {
	image, err := decodeImage(imageBase64)
	if err != nil {
		return "", err
	}

	if err := s.putFile(ProfileImagePath, image, "Update profile image from admin panel"); err != nil {
		s.metrics.IncDocumentWrite(WriteProfileImage, metrics.StatusFailed)
		return "", err
	}

	publicPath := "/" + ProfileImagePath
	if err := s.setImageField(ctx, publicPath); err != nil {
		s.metrics.IncDocumentWrite(WriteProfileImage, metrics.StatusFailed)
		return "", err
	}

	s.metrics.IncDocumentWrite(WriteProfileImage, metrics.StatusSuccess)
	return publicPath, nil
}

// UploadLinkImage stores the thumbnail for linkID and returns its public path.
// The document itself is not changed; the caller saves the link's image field.
func (s *SiteService) UploadLinkImage(ctx context.Context, linkID, imageBase64 string) (string, error) {
	if !linkIDPattern.MatchString(linkID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLinkID, linkID)
	}
	image, err := decodeImage(imageBase64)
	if err != nil {
		return "", err
	}

	path := LinkImageDir + "/" + linkID + ".jpg"
	if err := s.putFile(path, image, "Update link image for "+linkID); err != nil {
		s.metrics.IncDocumentWrite(WriteLinkImage, metrics.StatusFailed)
		return "", err
	}

	s.metrics.IncDocumentWrite(WriteLinkImage, metrics.StatusSuccess)
	return "/" + path, nil
}

// setImageField rewrites the document with "image" set to publicPath.
func (s *SiteService) setImageField(ctx context.Context, publicPath string) error {
	doc, err := s.docs.Get(s.sitePath)
	if err != nil {
		return fmt.Errorf("read site data: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc.Content, &fields); err != nil {
		return fmt.Errorf("decode site data: %w", err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	encoded, err := json.Marshal(publicPath)
	if err != nil {
		return err
	}
	fields["image"] = encoded

	updated, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode site data: %w", err)
	}
	return s.writeDocument(ctx, updated, "Update image reference in site data")
}

// writeDocument stores raw pretty-printed and refreshes the cache.
func (s *SiteService) writeDocument(ctx context.Context, raw []byte, message string) error {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	pretty.WriteByte('\n')

	if err := s.putFile(s.sitePath, pretty.Bytes(), message); err != nil {
		return err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := s.cache.Refresh(ctx, compact.Bytes()); err != nil {
		s.logger.Error("site_cache_refresh_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrCacheRefresh, err)
	}
	return nil
}

// putFile writes content over whatever version is current.
func (s *SiteService) putFile(path string, content []byte, message string) error {
	sha := ""
	current, err := s.docs.Get(path)
	switch {
	case err == nil:
		sha = current.SHA
	case errors.Is(err, docstore.ErrNotFound):
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}

	if _, err := s.docs.Put(path, content, sha, message); err != nil {
		s.logger.Error("document_write_failed", "path", path, "error", err)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// decodeImage accepts raw base64 or a data URL.
func decodeImage(imageBase64 string) ([]byte, error) {
	encoded := strings.TrimSpace(imageBase64)
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	if encoded == "" {
		return nil, ErrMissingImage
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return image, nil
}
