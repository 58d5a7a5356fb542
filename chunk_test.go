package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunkReader(previewMax, chunkSize int64) *chunkReader {
	return &chunkReader{previewMax: previewMax, chunkSize: chunkSize}
}

// TestReadChunkPagination walks a file in fixed windows and checks that the
// pieces concatenate back to the original.
func TestReadChunkPagination(t *testing.T) {
	content := strings.Repeat("0123456789", 25) // 250 bytes
	root := newTestTree(t, map[string]string{"data.txt": content})
	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)
	path := filepath.Join(root, "data.txt")

	var (
		got    strings.Builder
		offset int64
		calls  int
	)
	for {
		chunk, err := cr.readChunk(context.Background(), path, offset, 100)
		require.NoError(t, err)
		calls++
		assert.Equal(t, offset, chunk.Offset)
		assert.Equal(t, int64(250), chunk.Size)
		assert.Equal(t, chunk.Offset+int64(len(chunk.Content)), chunk.NextOffset)
		assert.Equal(t, chunk.NextOffset < chunk.Size, chunk.HasMore)
		got.WriteString(chunk.Content)
		if !chunk.HasMore {
			break
		}
		offset = chunk.NextOffset
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, content, got.String())
}

// TestReadChunkRuneBoundaries checks every limit against multi-byte text
func TestReadChunkRuneBoundaries(t *testing.T) {
	root := newTestTree(t, map[string]string{"utf8.txt": testTextMultibyte})
	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)
	path := filepath.Join(root, "utf8.txt")

	for limit := int64(1); limit <= int64(len(testTextMultibyte)); limit++ {
		var got strings.Builder
		var offset int64
		for i := 0; i < len(testTextMultibyte)+1; i++ {
			chunk, err := cr.readChunk(context.Background(), path, offset, limit)
			require.NoError(t, err)
			require.True(t, utf8.ValidString(chunk.Content), "limit %d offset %d", limit, offset)
			require.Greater(t, chunk.NextOffset, offset, "limit %d must make progress", limit)
			got.WriteString(chunk.Content)
			if !chunk.HasMore {
				break
			}
			offset = chunk.NextOffset
		}
		require.Equal(t, testTextMultibyte, got.String(), "limit %d", limit)
	}
}

func TestReadChunkDefaults(t *testing.T) {
	content := strings.Repeat("a", 300)
	root := newTestTree(t, map[string]string{"a.txt": content})
	path := filepath.Join(root, "a.txt")

	t.Run("zero limit uses chunk size", func(t *testing.T) {
		cr := newTestChunkReader(1000, 128)
		chunk, err := cr.readChunk(context.Background(), path, 0, 0)
		require.NoError(t, err)
		assert.Len(t, chunk.Content, 128)
		assert.Equal(t, int64(128), chunk.Limit)
		assert.True(t, chunk.HasMore)
	})

	t.Run("limit capped at preview max", func(t *testing.T) {
		cr := newTestChunkReader(64, 128)
		chunk, err := cr.readChunk(context.Background(), path, 0, 10_000)
		require.NoError(t, err)
		assert.Len(t, chunk.Content, 64)
		assert.Equal(t, int64(64), chunk.Limit)
	})

	t.Run("offset past end clamps to size", func(t *testing.T) {
		cr := newTestChunkReader(1000, 128)
		chunk, err := cr.readChunk(context.Background(), path, 10_000, 10)
		require.NoError(t, err)
		assert.Empty(t, chunk.Content)
		assert.Equal(t, int64(300), chunk.Offset)
		assert.Equal(t, int64(300), chunk.NextOffset)
		assert.False(t, chunk.HasMore)
	})

	t.Run("negative values rejected", func(t *testing.T) {
		cr := newTestChunkReader(1000, 128)
		_, err := cr.readChunk(context.Background(), path, -1, 10)
		assert.ErrorIs(t, err, errInvalidRange)
		_, err = cr.readChunk(context.Background(), path, 0, -5)
		assert.ErrorIs(t, err, errInvalidRange)
	})
}

func TestReadWhole(t *testing.T) {
	root := newTestTree(t, map[string]string{
		"small.md": testMarkdownHeader,
		"big.txt":  strings.Repeat("x", 2048),
		"empty.md": "",
	})
	cr := newTestChunkReader(1024, 256)

	t.Run("fits", func(t *testing.T) {
		chunk, err := cr.readWhole(context.Background(), filepath.Join(root, "small.md"))
		require.NoError(t, err)
		assert.Equal(t, testMarkdownHeader, chunk.Content)
		assert.Equal(t, "small.md", chunk.Name)
		assert.False(t, chunk.HasMore)
		_, err = time.Parse(time.RFC3339, chunk.Modified)
		assert.NoError(t, err)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := cr.readWhole(context.Background(), filepath.Join(root, "big.txt"))
		var tooLarge *tooLargeError
		require.ErrorAs(t, err, &tooLarge)
		assert.Equal(t, int64(2048), tooLarge.Size)
		assert.Equal(t, int64(1024), tooLarge.Max)
	})

	t.Run("empty file", func(t *testing.T) {
		chunk, err := cr.readWhole(context.Background(), filepath.Join(root, "empty.md"))
		require.NoError(t, err)
		assert.Empty(t, chunk.Content)
		assert.Equal(t, int64(0), chunk.Size)
		assert.False(t, chunk.HasMore)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := cr.readWhole(context.Background(), root)
		assert.ErrorIs(t, err, errNotAFile)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := cr.readWhole(context.Background(), filepath.Join(root, "nope.md"))
		assert.ErrorIs(t, err, errNotFound)
	})
}

// TestReadChunkIdempotent reads the same window twice from an unchanged file
func TestReadChunkIdempotent(t *testing.T) {
	root := newTestTree(t, map[string]string{"a.txt": testTextMultibyte})
	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)
	path := filepath.Join(root, "a.txt")

	first, err := cr.readChunk(context.Background(), path, 3, 9)
	require.NoError(t, err)
	second, err := cr.readChunk(context.Background(), path, 3, 9)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestReadChunkSeesChanges ensures nothing is cached between calls
func TestReadChunkSeesChanges(t *testing.T) {
	root := newTestTree(t, map[string]string{"a.txt": "before"})
	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)
	path := filepath.Join(root, "a.txt")

	chunk, err := cr.readWhole(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "before", chunk.Content)

	require.NoError(t, os.WriteFile(path, []byte("after!"), 0644))
	chunk, err = cr.readWhole(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "after!", chunk.Content)
}

func TestReadChunkCancelled(t *testing.T) {
	root := newTestTree(t, map[string]string{"a.txt": "content"})
	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cr.readChunk(ctx, filepath.Join(root, "a.txt"), 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestReadChunkTimeout checks that an expired read deadline fails the whole
// read instead of returning part of the window.
func TestReadChunkTimeout(t *testing.T) {
	root := newTestTree(t, map[string]string{"a.txt": strings.Repeat("x", 4096)})
	path := filepath.Join(root, "a.txt")

	cr := newTestChunkReader(defaultPreviewMax, defaultChunkSize)
	cr.timeout = time.Nanosecond
	chunk, err := cr.readChunk(context.Background(), path, 0, 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, previewChunk{}, chunk)

	chunk, err = cr.readWhole(context.Background(), path)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, previewChunk{}, chunk)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	chunk, err = newTestChunkReader(defaultPreviewMax, defaultChunkSize).readChunk(ctx, path, 0, 100)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, previewChunk{}, chunk)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "plain", decodeText([]byte("plain")))
	assert.Equal(t, "a�b", decodeText([]byte{'a', 0xff, 'b'}))
	assert.Equal(t, "x�", decodeText([]byte{'x', 0xc3}), "lone lead byte")
	assert.Equal(t, "��", decodeText([]byte{0xff, 0xfe}), "one replacement per byte")
	assert.Equal(t, "é", decodeText([]byte("é")))
}

func TestIncompleteRuneTail(t *testing.T) {
	check := []byte("✓") // 3 bytes
	assert.Equal(t, 0, incompleteRuneTail([]byte("abc")))
	assert.Equal(t, 0, incompleteRuneTail(check))
	assert.Equal(t, 1, incompleteRuneTail(append([]byte("a"), check[:1]...)))
	assert.Equal(t, 2, incompleteRuneTail(append([]byte("a"), check[:2]...)))
	assert.Equal(t, 0, incompleteRuneTail(nil))
}
