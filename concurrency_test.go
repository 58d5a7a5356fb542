package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentChunkReads shares one chunkReader across goroutines
// Run with: go test -race
func TestConcurrentChunkReads(t *testing.T) {
	content := strings.Repeat("héllo wörld ", 2000)
	root := newTestTree(t, map[string]string{"big.txt": content})
	cr := newChunkReader(testConfig(root))
	path := filepath.Join(root, "big.txt")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(limit int64) {
			defer wg.Done()
			var sb strings.Builder
			offset := int64(0)
			for {
				chunk, err := cr.readChunk(context.Background(), path, offset, limit)
				if !assert.NoError(t, err) {
					return
				}
				sb.WriteString(chunk.Content)
				if !chunk.HasMore {
					break
				}
				offset = chunk.NextOffset
			}
			assert.Equal(t, content, sb.String(), "limit %d", limit)
		}(int64(100 + i*37))
	}
	wg.Wait()
}

// TestConcurrentHTTPRequests drives every read endpoint at once
func TestConcurrentHTTPRequests(t *testing.T) {
	root := newTestTree(t, map[string]string{
		"doc.md":      testMarkdownComplex,
		"src/main.go": "package main\n\nfunc main() {}\n",
		"img.png":     "\x89PNG\r\n\x1a\n",
	})
	h := newTestServer(t, root).routes()

	targets := []string{
		"/api/files?path=/",
		"/api/files?path=src",
		"/api/search?path=/&q=main&recursive=true",
		"/api/preview?path=doc.md",
		"/api/preview?path=doc.md&offset=10&limit=20",
		"/api/render?path=doc.md",
		"/api/raw?path=src/main.go",
		"/api/image?path=img.png",
		"/api/classify?name=doc.md",
		"/api/language?ext=go",
		"/api/highlight?path=src/main.go",
		"/healthz",
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, target := range targets {
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodGet, target, nil)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, http.StatusOK, rec.Code, "%s: %s", target, rec.Body.String())
			}(target)
		}
	}
	wg.Wait()
}

// TestConcurrentTraversalAttempts checks that violations under load stay denied
func TestConcurrentTraversalAttempts(t *testing.T) {
	root := newTestTree(t, map[string]string{"ok.txt": "ok"})
	h := newTestServer(t, root).routes()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := "/api/preview?path=ok.txt"
			want := http.StatusOK
			if i%2 == 1 {
				target = "/api/preview?path=" + testPathTraversal
				want = http.StatusForbidden
			}
			rec := doRequest(t, h, http.MethodGet, target, nil)
			assert.Equal(t, want, rec.Code, target)
		}(i)
	}
	wg.Wait()
}

// TestWatchExitsOnContextCancellation checks that a stream ends with its request
func TestWatchExitsOnContextCancellation(t *testing.T) {
	root := newTestTree(t, map[string]string{"live.md": "# live"})
	s := newTestServer(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/watch?path=live.md", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.handleWatch(rec, req)
		close(done)
	}()

	// Give the handler time to register the watch
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleWatch did not exit on context cancellation")
	}
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), ": connected")
}

// TestConcurrentWatchStreams opens several streams on one file and checks
// that each sees the modification.
func TestConcurrentWatchStreams(t *testing.T) {
	root := newTestTree(t, map[string]string{"live.md": "# live"})
	ts := httptest.NewServer(newTestServer(t, root).routes())
	defer ts.Close()

	const streams = 3
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		received int
		ready    sync.WaitGroup
	)
	ready.Add(streams)
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/watch?path=live.md", nil)
			if !assert.NoError(t, err) {
				ready.Done()
				return
			}
			resp, err := http.DefaultClient.Do(req)
			if !assert.NoError(t, err) {
				ready.Done()
				return
			}
			defer resp.Body.Close()

			buf := make([]byte, 4096)
			var seen strings.Builder
			signalled := false
			for {
				n, err := resp.Body.Read(buf)
				seen.Write(buf[:n])
				if !signalled && strings.Contains(seen.String(), ": connected") {
					signalled = true
					ready.Done()
				}
				if strings.Contains(seen.String(), `"file_modified"`) {
					mu.Lock()
					received++
					mu.Unlock()
					return
				}
				if err != nil {
					if !signalled {
						ready.Done()
					}
					return
				}
			}
		}()
	}

	ready.Wait()
	writeTestFile(t, root, "live.md", "# changed")

	wg.Wait()
	require.NoError(t, ctx.Err(), "streams timed out waiting for events")
	assert.Equal(t, streams, received, fmt.Sprintf("%d of %d streams saw the change", received, streams))
}
