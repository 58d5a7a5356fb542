package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// readPiece bounds each ReadAt so cancellation is observed between pieces
const readPiece = 32 * 1024

// previewChunk is one window of a file's text. Offsets are byte offsets into
// the file; for valid UTF-8, Offset+len(Content) == NextOffset.
type previewChunk struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Offset     int64  `json:"offset"`
	Limit      int64  `json:"limit"`
	NextOffset int64  `json:"nextOffset"`
	Size       int64  `json:"size"`
	HasMore    bool   `json:"hasMore"`
	Modified   string `json:"modified"`
}

// chunkReader serves bounded windows of files that already passed the
// sandbox. Every call stats and reads afresh; nothing is cached.
type chunkReader struct {
	previewMax int64
	chunkSize  int64
	timeout    time.Duration
}

func newChunkReader(cfg Config) *chunkReader {
	return &chunkReader{
		previewMax: cfg.PreviewMax,
		chunkSize:  cfg.ChunkSize,
		timeout:    cfg.ReadTimeout,
	}
}

// readChunk returns up to limit bytes starting at offset. A zero limit means
// the configured chunk size; limits above the preview ceiling are capped.
func (cr *chunkReader) readChunk(ctx context.Context, path string, offset, limit int64) (previewChunk, error) {
	if offset < 0 || limit < 0 {
		return previewChunk{}, errInvalidRange
	}
	if limit == 0 {
		limit = cr.chunkSize
	}
	if cr.previewMax > 0 && limit > cr.previewMax {
		limit = cr.previewMax
	}
	return cr.read(ctx, path, offset, limit, false)
}

// readWhole returns the entire file in one chunk, or a *tooLargeError when
// the file exceeds the preview ceiling.
func (cr *chunkReader) readWhole(ctx context.Context, path string) (previewChunk, error) {
	return cr.read(ctx, path, 0, 0, true)
}

func (cr *chunkReader) read(ctx context.Context, path string, offset, limit int64, whole bool) (chunk previewChunk, err error) {
	defer func() {
		recordChunkRead(chunkResult(err), int64(len(chunk.Content)))
	}()

	if cr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cr.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return previewChunk{}, fmt.Errorf("read: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return previewChunk{}, statError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return previewChunk{}, statError(err)
	}
	if info.IsDir() {
		return previewChunk{}, errNotAFile
	}

	size := info.Size()
	if whole {
		if cr.previewMax > 0 && size > cr.previewMax {
			return previewChunk{}, &tooLargeError{Size: size, Max: cr.previewMax}
		}
		limit = size
	}
	if offset > size {
		offset = size
	}
	want := limit
	if remaining := size - offset; want > remaining {
		want = remaining
	}

	buf, err := readWindow(ctx, f, offset, want)
	if err != nil {
		return previewChunk{}, err
	}

	// Never split a multi-byte rune when more data follows
	if offset+int64(len(buf)) < size {
		if cut := incompleteRuneTail(buf); cut > 0 {
			if cut < len(buf) {
				buf = buf[:len(buf)-cut]
			} else {
				buf, err = completeRune(ctx, f, offset, buf)
				if err != nil {
					return previewChunk{}, err
				}
			}
		}
	}

	// A timed-out read fails entirely rather than returning a partial window
	if err := ctx.Err(); err != nil {
		return previewChunk{}, fmt.Errorf("read: %w", err)
	}

	next := offset + int64(len(buf))
	return previewChunk{
		Name:       info.Name(),
		Content:    decodeText(buf),
		Offset:     offset,
		Limit:      limit,
		NextOffset: next,
		Size:       size,
		HasMore:    next < size,
		Modified:   info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// readWindow reads n bytes at offset in pieces, checking ctx between them.
// A file that shrank since stat yields a shorter window.
func readWindow(ctx context.Context, f *os.File, offset, n int64) ([]byte, error) {
	buf := make([]byte, n)
	var read int64
	for read < n {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		end := min(read+readPiece, n)
		got, err := f.ReadAt(buf[read:end], offset+read)
		read += int64(got)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read: %w", stripPath(err))
		}
	}
	return buf[:read], nil
}

// completeRune extends a window that consists only of the start of a
// multi-byte rune (a limit smaller than the rune) so progress is made.
func completeRune(ctx context.Context, f *os.File, offset int64, buf []byte) ([]byte, error) {
	extra, err := readWindow(ctx, f, offset+int64(len(buf)), int64(utf8.UTFMax-len(buf)))
	if err != nil {
		return nil, err
	}
	joined := append(buf, extra...)
	_, size := utf8.DecodeRune(joined)
	if size > len(buf) {
		return joined[:size], nil
	}
	return buf, nil
}

// incompleteRuneTail returns how many trailing bytes of b begin a multi-byte
// rune that b cuts off, or 0.
func incompleteRuneTail(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// decodeText converts bytes to a string, replacing each invalid byte with
// U+FFFD so byte offsets stay meaningful.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}

// statError maps open/stat failures onto the error taxonomy without
// carrying the absolute path.
func statError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errNotFound
	}
	return fmt.Errorf("stat: %w", stripPath(err))
}

func stripPath(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err
	}
	return err
}

func chunkResult(err error) string {
	var tooLarge *tooLargeError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errNotFound):
		return "not_found"
	case errors.Is(err, errNotAFile):
		return "not_a_file"
	case errors.As(err, &tooLarge):
		return "too_large"
	case errors.Is(err, errInvalidRange):
		return "invalid_range"
	default:
		return "error"
	}
}
