package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	key, err := CleanKey("media/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "media/abc.jpg", key)

	for _, bad := range []string{"", "   ", "../etc/passwd", "media/../../x", "."} {
		_, err := CleanKey(bad)
		assert.Error(t, err, "key %q", bad)
	}
}

func TestLocalSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalFs(afero.NewMemMapFs())

	require.NoError(t, store.Save(ctx, "media/one.txt", strings.NewReader("hola"), "text/plain"))

	rc, err := store.Open(ctx, "media/one.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hola", string(body))

	require.NoError(t, store.Delete(ctx, "media/one.txt"))
	_, err = store.Open(ctx, "media/one.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "media/one.txt"))
	assert.Error(t, store.Save(ctx, "../escape", strings.NewReader("x"), ""))
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3SaveOpenDelete(t *testing.T) {
	backend := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	store, err := NewS3("pqr-media", "us-east-1", srv.URL, credentials.NewStaticCredentials("id", "secret", ""))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "media/scan.pdf", strings.NewReader("pdf-bytes"), "application/pdf"))
	assert.Contains(t, backend.objects, "/pqr-media/media/scan.pdf")

	rc, err := store.Open(ctx, "media/scan.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "pdf-bytes", string(body))

	require.NoError(t, store.Delete(ctx, "media/scan.pdf"))
	_, err = store.Open(ctx, "media/scan.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}
