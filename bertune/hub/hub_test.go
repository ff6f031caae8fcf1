package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveDownloadsArtifacts(t *testing.T) {
	srv := newHubServer(t, map[string]string{
		"/acme/tiny-bert/resolve/main/vocab.txt":       "[PAD]\n[UNK]\n[CLS]\n[SEP]\n",
		"/acme/tiny-bert/resolve/main/onnx/model.onnx": "onnx-bytes",
	})
	c := New(WithBaseURL(srv.URL))

	dest := t.TempDir()
	ckpt, err := c.Resolve(context.Background(), "acme/tiny-bert", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, ckpt.Dir)

	vocab, err := os.ReadFile(ckpt.VocabPath)
	require.NoError(t, err)
	assert.Contains(t, string(vocab), "[CLS]")

	onnx, err := os.ReadFile(ckpt.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(onnx))
}

func TestResolveFallsBackToFlatLayout(t *testing.T) {
	srv := newHubServer(t, map[string]string{
		"/acme/tiny-bert/resolve/main/vocab.txt":  "vocab",
		"/acme/tiny-bert/resolve/main/model.onnx": "flat-onnx-bytes",
	})
	c := New(WithBaseURL(srv.URL))

	ckpt, err := c.Resolve(context.Background(), "acme/tiny-bert", t.TempDir())
	require.NoError(t, err)
	onnx, err := os.ReadFile(ckpt.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "flat-onnx-bytes", string(onnx))
}

func TestResolveKeepsCachedFiles(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "vocab.txt"), []byte("cached"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "model.onnx"), []byte("cached"), 0o644))

	// Server would 404 everything; cached files must short-circuit.
	srv := newHubServer(t, nil)
	c := New(WithBaseURL(srv.URL))

	ckpt, err := c.Resolve(context.Background(), "acme/tiny-bert", dest)
	require.NoError(t, err)
	vocab, err := os.ReadFile(ckpt.VocabPath)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(vocab))
}

func TestResolveMissingRepo(t *testing.T) {
	srv := newHubServer(t, nil)
	c := New(WithBaseURL(srv.URL))

	_, err := c.Resolve(context.Background(), "acme/absent", t.TempDir())
	require.Error(t, err)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestFetchSendsAuthToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	c := New(WithBaseURL(srv.URL), WithToken("secret"))
	_, err := c.Resolve(context.Background(), "acme/tiny-bert", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
}
