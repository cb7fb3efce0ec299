// Package imageloader resolves image references in chat messages into
// bytes the model API can take inline.
package imageloader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"genai-chat/internal/app/chat"
)

// DefaultMaxBytes caps the size of a single image. Gemini rejects inline
// payloads above 20MB per request.
const DefaultMaxBytes = 20 << 20

// ObjectStore reads objects addressed by s3://bucket/key references.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
}

// Loader implements chat.ImageLoader. Data URLs, gs:// URIs, s3:// objects
// and bare base64 payloads are always accepted. Local files and http(s)
// URLs make the process itself read or fetch, so they are refused unless
// enabled with WithLocalFiles and WithRemoteURLs.
type Loader struct {
	httpClient *http.Client
	store      ObjectStore
	maxBytes   int64
	localFiles bool
	remoteURLs bool
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithObjectStore enables s3:// references.
func WithObjectStore(s ObjectStore) Option {
	return func(l *Loader) { l.store = s }
}

// WithLocalFiles accepts file:// references and filesystem paths.
func WithLocalFiles() Option {
	return func(l *Loader) { l.localFiles = true }
}

// WithRemoteURLs accepts http:// and https:// references.
func WithRemoteURLs() Option {
	return func(l *Loader) { l.remoteURLs = true }
}

func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ chat.ImageLoader = (*Loader)(nil)

var (
	ErrLocalFilesDisabled = errors.New("local image files are not accepted here")
	ErrRemoteURLsDisabled = errors.New("image URLs are not accepted here")
)

// Load resolves ref.
func (l *Loader) Load(ctx context.Context, ref string) (*chat.Image, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("empty image reference")
	case strings.HasPrefix(ref, "data:"):
		img, err := chat.ParseDataURL(ref)
		if err != nil {
			return nil, err
		}
		return l.check(img)
	case strings.HasPrefix(ref, "gs://"):
		mimeType := mimeByExt(ref)
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return &chat.Image{FileURI: ref, MIMEType: mimeType}, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if !l.remoteURLs {
			return nil, ErrRemoteURLsDisabled
		}
		return l.fetch(ctx, ref)
	case strings.HasPrefix(ref, "s3://"):
		return l.object(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		if !l.localFiles {
			return nil, ErrLocalFilesDisabled
		}
		return l.file(strings.TrimPrefix(ref, "file://"))
	}
	if l.localFiles {
		if _, err := os.Stat(ref); err == nil {
			return l.file(ref)
		}
	} else if looksLikePath(ref) {
		return nil, ErrLocalFilesDisabled
	}
	if data, err := base64.StdEncoding.DecodeString(ref); err == nil {
		return l.check(&chat.Image{Data: data, MIMEType: http.DetectContentType(data)})
	}
	return nil, fmt.Errorf("unrecognized image reference %q", truncate(ref, 48))
}

func (l *Loader) fetch(ctx context.Context, url string) (*chat.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
	}
	data, err := l.read(resp.Body)
	if err != nil {
		return nil, err
	}
	mimeType := resp.Header.Get("Content-Type")
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return l.check(&chat.Image{Data: data, MIMEType: mimeType})
}

func (l *Loader) object(ctx context.Context, ref string) (*chat.Image, error) {
	if l.store == nil {
		return nil, fmt.Errorf("s3 references need an object store")
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("malformed object reference %q, want s3://bucket/key", ref)
	}
	body, contentType, err := l.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	defer body.Close()
	data, err := l.read(body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	return l.check(&chat.Image{Data: data, MIMEType: contentType})
}

func (l *Loader) file(path string) (*chat.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	data, err := l.read(f)
	if err != nil {
		return nil, err
	}
	mimeType := mimeByExt(path)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return l.check(&chat.Image{Data: data, MIMEType: mimeType})
}

func (l *Loader) read(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

func (l *Loader) check(img *chat.Image) (*chat.Image, error) {
	if int64(len(img.Data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return nil, fmt.Errorf("content type %q is not an image", img.MIMEType)
	}
	return img, nil
}

// looksLikePath reports refs that are clearly paths so they get a useful
// error. Base64 payloads contain no '.', so an extension marks a path.
func looksLikePath(ref string) bool {
	if strings.HasPrefix(ref, ".") || strings.HasPrefix(ref, "~") {
		return true
	}
	return filepath.IsAbs(ref) && filepath.Ext(ref) != ""
}

func mimeByExt(path string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if parsed, _, err := mime.ParseMediaType(t); err == nil {
		return parsed
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
