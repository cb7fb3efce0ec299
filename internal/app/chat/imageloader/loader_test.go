package imageloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genai-chat/internal/app/testutil"
)

type fakeStore struct {
	objects map[string][]byte
}

func (s fakeStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, string, error) {
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, "", errors.New("NoSuchKey")
	}
	return io.NopCloser(strings.NewReader(string(data))), "", nil
}

func TestLoader_DataURL(t *testing.T) {
	img, err := New().Load(context.Background(), testutil.TinyPNGDataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, testutil.TinyPNGBytes(t), img.Data)
}

func TestLoader_GCSReference(t *testing.T) {
	img, err := New().Load(context.Background(), "gs://bucket/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "gs://bucket/cat.png", img.FileURI)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Empty(t, img.Data)
}

func TestLoader_HTTP(t *testing.T) {
	png := testutil.TinyPNGBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pixel.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(png)
		case "/untyped":
			_, _ = w.Write(png)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := New(WithHTTPClient(srv.Client()), WithRemoteURLs())
	ctx := context.Background()

	img, err := l.Load(ctx, srv.URL+"/pixel.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, png, img.Data)

	img, err = l.Load(ctx, srv.URL+"/untyped")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType, "content type sniffed from bytes")

	_, err = l.Load(ctx, srv.URL+"/page")
	assert.ErrorContains(t, err, "not an image")

	_, err = l.Load(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestLoader_LocalFile(t *testing.T) {
	path := testutil.WriteTinyPNG(t)
	l := New(WithLocalFiles())

	img, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	img, err = l.Load(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, img.Data, len(testutil.TinyPNGBytes(t)))
}

func TestLoader_RefusesLocalAndRemoteByDefault(t *testing.T) {
	path := testutil.WriteTinyPNG(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testutil.TinyPNGBytes(t))
	}))
	defer srv.Close()

	l := New(WithHTTPClient(srv.Client()))
	ctx := context.Background()

	for _, ref := range []string{path, "file://" + path, "./pixel.png"} {
		_, err := l.Load(ctx, ref)
		assert.ErrorIs(t, err, ErrLocalFilesDisabled, ref)
	}
	_, err := l.Load(ctx, srv.URL+"/pixel.png")
	assert.ErrorIs(t, err, ErrRemoteURLsDisabled)
	assert.Zero(t, hits.Load())

	img, err := l.Load(ctx, testutil.TinyPNGDataURL)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestLoader_RawBase64(t *testing.T) {
	img, err := New().Load(context.Background(), testutil.TinyPNG)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
}

func TestLoader_ObjectStore(t *testing.T) {
	store := fakeStore{objects: map[string][]byte{"images/pixel.png": testutil.TinyPNGBytes(t)}}
	ctx := context.Background()

	_, err := New().Load(ctx, "s3://images/pixel.png")
	assert.ErrorContains(t, err, "object store")

	l := New(WithObjectStore(store))
	img, err := l.Load(ctx, "s3://images/pixel.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)

	_, err = l.Load(ctx, "s3://images")
	assert.ErrorContains(t, err, "malformed")

	_, err = l.Load(ctx, "s3://images/missing.png")
	assert.ErrorContains(t, err, "NoSuchKey")
}

func TestLoader_MaxBytes(t *testing.T) {
	_, err := New(WithMaxBytes(10)).Load(context.Background(), testutil.TinyPNGDataURL)
	assert.ErrorContains(t, err, "exceeds 10 bytes")
}

func TestLoader_Unrecognized(t *testing.T) {
	_, err := New().Load(context.Background(), "not an image at all")
	assert.Error(t, err)

	_, err = New().Load(context.Background(), "  ")
	assert.ErrorContains(t, err, "empty")
}

func TestNewMinioStore_RequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(MinioConfig{})
	assert.Error(t, err)

	store, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}
