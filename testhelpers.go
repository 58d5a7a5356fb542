package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestTree creates a temp directory holding files (slash-separated
// relative path -> content) and returns its canonical path.
func newTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	for name, content := range files {
		writeTestFile(t, root, name, content)
	}
	return root
}

// writeTestFile writes content below dir, creating parent directories
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "create test file %s", name)
	return path
}

// testConfig returns a Config rooted at root with the default limits
func testConfig(root string) Config {
	return Config{
		Root:       root,
		Host:       defaultHost,
		Port:       defaultPort,
		PreviewMax: defaultPreviewMax,
		ChunkSize:  defaultChunkSize,
		LogLevel:   "error",
		LogFormat:  "console",
		Metrics:    true,
	}
}

// newTestServer builds a server over root; opts adjust the config first
func newTestServer(t *testing.T, root string, opts ...func(*Config)) *server {
	t.Helper()
	cfg := testConfig(root)
	for _, opt := range opts {
		opt(&cfg)
	}
	s := newServer(cfg, zap.NewNop())
	s.keepalive = 50 * time.Millisecond
	return s
}

// doRequest runs one request through h and returns the recorded response
func doRequest(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeJSON decodes a recorded JSON response into T
func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// assertAPIError checks status and error code of a failed request
func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) apiError {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	body := decodeJSON[apiError](t, rec)
	require.Equal(t, code, body.Code)
	return body
}
