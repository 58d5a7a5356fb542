package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const defaultWatchKeepalive = 10 * time.Second

// server wires the preview components to HTTP. All fields are set once in
// newServer; handlers share no mutable state.
type server struct {
	cfg       Config
	logger    *zap.Logger
	sandbox   *sandbox
	chunks    *chunkReader
	policy    *bluemonday.Policy
	markdown  *markdownRenderer
	lister    *lister
	keepalive time.Duration
}

func newServer(cfg Config, logger *zap.Logger) *server {
	if logger == nil {
		logger = zap.NewNop()
	}
	sb := newSandbox(cfg.Root, logger)
	policy := newSanitizerPolicy()
	return &server{
		cfg:       cfg,
		logger:    logger,
		sandbox:   sb,
		chunks:    newChunkReader(cfg),
		policy:    policy,
		markdown:  newMarkdownRenderer(policy),
		lister:    newLister(sb, newExcludeMatcher(cfg.Root, cfg.Exclude, logger)),
		keepalive: defaultWatchKeepalive,
	}
}

// routes registers every endpoint on a fresh mux
func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, withRequestLogging(s.logger, route, withRecovery(s.logger, h)))
	}

	handle("GET /api/files", "files", s.handleFiles)
	handle("GET /api/search", "search", s.handleSearch)
	handle("GET /api/preview", "preview", s.handlePreview)
	handle("GET /api/raw", "raw", s.handleRaw)
	handle("GET /api/image", "image", s.handleImage)
	handle("GET /api/download", "download", s.handleDownload)
	handle("GET /api/watch", "watch", s.handleWatch)
	handle("GET /api/classify", "classify", s.handleClassify)
	handle("GET /api/render", "render", s.handleRenderFile)
	handle("POST /api/render", "render", s.handleRenderBody)
	handle("GET /api/language", "language", s.handleLanguage)
	handle("GET /api/highlight", "highlight", s.handleHighlight)
	handle("GET /api/highlight.css", "highlight_css", s.handleHighlightCSS)
	handle("GET /healthz", "healthz", s.handleHealth)
	if s.cfg.Metrics {
		mux.Handle("GET /metrics", metricsHandler())
	}
	return mux
}

// withRecovery wraps an HTTP handler with panic recovery
func withRecovery(logger *zap.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				loggerFrom(r.Context(), logger).Error("panic in handler",
					zap.Any("panic", err),
					zap.ByteString("stack", debug.Stack()),
				)
				writeJSON(w, http.StatusInternalServerError, apiError{
					Error: "Internal server error",
					Code:  "INTERNAL",
				})
			}
		}()
		next(w, r)
	}
}

// apiError is the JSON body of every failed request
type apiError struct {
	Error string         `json:"error"`
	Code  string         `json:"code"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// errorResponse maps an error onto a status code and a client-safe body.
// Messages never include absolute paths.
func errorResponse(err error) (int, apiError) {
	var (
		tooLarge *tooLargeError
		maxBytes *http.MaxBytesError
		reqErr   *requestError
	)
	switch {
	case errors.Is(err, errSandboxViolation):
		return http.StatusForbidden, apiError{Error: "Access denied", Code: "ACCESS_DENIED"}
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, apiError{Error: "File not found", Code: "NOT_FOUND"}
	case errors.Is(err, errNotAFile):
		return http.StatusBadRequest, apiError{Error: "Path is a directory", Code: "NOT_A_FILE"}
	case errors.Is(err, errNotADirectory):
		return http.StatusBadRequest, apiError{Error: "Path is not a directory", Code: "NOT_A_DIRECTORY"}
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, apiError{
			Error: "File too large to preview",
			Code:  "TOO_LARGE",
			Meta:  map[string]any{"size": tooLarge.Size, "maxBytes": tooLarge.Max},
		}
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, apiError{
			Error: "Request body too large",
			Code:  "TOO_LARGE",
			Meta:  map[string]any{"maxBytes": maxBytes.Limit},
		}
	case errors.Is(err, errInvalidRange):
		return http.StatusBadRequest, apiError{Error: "offset and limit must be non-negative integers", Code: "INVALID_RANGE"}
	case errors.Is(err, errInvalidQuery):
		return http.StatusBadRequest, apiError{Error: "Invalid search pattern", Code: "INVALID_QUERY"}
	case errors.Is(err, errNotAnImage):
		return http.StatusUnsupportedMediaType, apiError{Error: "File is not an image", Code: "UNSUPPORTED_TYPE"}
	case errors.Is(err, errUnsupportedType):
		return http.StatusUnsupportedMediaType, apiError{Error: "File type is not supported here", Code: "UNSUPPORTED_TYPE"}
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, apiError{Error: reqErr.msg, Code: "BAD_REQUEST"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apiError{Error: "Read timed out", Code: "TIMEOUT"}
	default:
		return http.StatusInternalServerError, apiError{Error: "Failed to read file", Code: "READ_FAILED"}
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context(), s.logger).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// resolveFile resolves a request path that must name a regular file. It
// returns the canonical path and the display path.
func (s *server) resolveFile(requestPath string) (string, string, os.FileInfo, error) {
	abs, err := s.sandbox.resolve(requestPath)
	if err != nil {
		return "", "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", nil, statError(err)
	}
	if info.IsDir() {
		return "", "", nil, errNotAFile
	}
	return abs, s.sandbox.display(requestPath), info, nil
}

func (s *server) handleFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.lister.listEntries(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recursive := false
	if v := q.Get("recursive"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, badRequest("recursive must be true or false"))
			return
		}
		recursive = parsed
	}
	results, err := s.lister.search(r.Context(), q.Get("path"), q.Get("q"), recursive)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// parseRange reads offset/limit. paged is false when neither was supplied,
// which selects whole-file mode.
func parseRange(q url.Values) (offset, limit int64, paged bool, err error) {
	parse := func(key string) (int64, error) {
		v := q.Get(key)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, errInvalidRange
		}
		return n, nil
	}
	paged = q.Has("offset") || q.Has("limit")
	if offset, err = parse("offset"); err != nil {
		return 0, 0, false, err
	}
	if limit, err = parse("limit"); err != nil {
		return 0, 0, false, err
	}
	return offset, limit, paged, nil
}

// getChunk is the chunk read shared by the HTTP and MCP surfaces
func (s *server) getChunk(ctx context.Context, requestPath string, offset, limit int64, paged bool) (previewChunk, error) {
	abs, err := s.sandbox.resolve(requestPath)
	if err != nil {
		return previewChunk{}, err
	}
	var chunk previewChunk
	if paged {
		chunk, err = s.chunks.readChunk(ctx, abs, offset, limit)
	} else {
		chunk, err = s.chunks.readWhole(ctx, abs)
	}
	if err != nil {
		return previewChunk{}, err
	}
	chunk.Path = s.sandbox.display(requestPath)
	return chunk, nil
}

// readFile reads a whole file for a transform. The Classifier decides from the
// resolved name whether accept applies before any content is decoded.
func (s *server) readFile(ctx context.Context, requestPath string, accept func(category) bool) (previewChunk, error) {
	abs, display, info, err := s.resolveFile(requestPath)
	if err != nil {
		return previewChunk{}, err
	}
	if !accept(classifyFile(info.Name()).Category) {
		return previewChunk{}, errUnsupportedType
	}
	chunk, err := s.chunks.readWhole(ctx, abs)
	if err != nil {
		return previewChunk{}, err
	}
	chunk.Path = display
	return chunk, nil
}

func isMarkdown(c category) bool {
	return c == categoryMarkdown
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, limit, paged, err := parseRange(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	chunk, err := s.getChunk(r.Context(), q.Get("path"), offset, limit, paged)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

// serveFile streams a sandboxed file with range and conditional GET support.
// Textual files are always served as text/plain so that markup inside the
// root is never rendered by the browser on this origin.
func (s *server) serveFile(w http.ResponseWriter, r *http.Request, requireImage, attachment bool) {
	abs, _, info, err := s.resolveFile(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	class := classifyFile(info.Name())
	if requireImage && class.Category != categoryImage {
		s.writeError(w, r, errNotAnImage)
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		s.writeError(w, r, statError(err))
		return
	}
	defer f.Close()

	contentType := "text/plain; charset=utf-8"
	if !class.Category.isTextual() {
		mtype, err := mimetype.DetectReader(f)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("detect type: %w", stripPath(err)))
			return
		}
		contentType = mtype.String()
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			s.writeError(w, r, fmt.Errorf("seek: %w", stripPath(err)))
			return
		}
	}

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "sandbox")
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": info.Name()}))

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *server) handleRaw(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, false, false)
}

func (s *server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, true, false)
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serveFile(w, r, false, true)
}

func (s *server) handleClassify(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, r, badRequest("name is required"))
		return
	}
	writeJSON(w, http.StatusOK, classifyFile(name))
}

type renderResponse struct {
	Path string `json:"path,omitempty"`
	HTML string `json:"html"`
	renderedDocument
}

func (s *server) handleRenderBody(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.PreviewMax))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc := s.markdown.render(string(body))
	writeJSON(w, http.StatusOK, renderResponse{HTML: doc.String(), renderedDocument: doc})
}

func (s *server) handleRenderFile(w http.ResponseWriter, r *http.Request) {
	chunk, err := s.readFile(r.Context(), r.URL.Query().Get("path"), isMarkdown)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc := s.markdown.render(chunk.Content)
	writeJSON(w, http.StatusOK, renderResponse{Path: chunk.Path, HTML: doc.String(), renderedDocument: doc})
}

func (s *server) handleLanguage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var language *string
	if grammar := resolveLanguage(q.Get("ext"), q.Get("name")); grammar != autoDetect {
		language = &grammar
	}
	writeJSON(w, http.StatusOK, map[string]*string{"language": language})
}

type highlightResponse struct {
	Path string `json:"path"`
	highlightedCode
}

func (s *server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	chunk, err := s.readFile(r.Context(), r.URL.Query().Get("path"), category.isTextual)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	grammar := resolveLanguage(fileExtension(chunk.Name), chunk.Name)
	code, err := highlightCode(chunk.Content, grammar, s.policy.Sanitize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, highlightResponse{Path: chunk.Path, highlightedCode: code})
}

func (s *server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	style := r.URL.Query().Get("style")
	if style == "" {
		style = "github"
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if err := writeHighlightCSS(w, style); err != nil {
		loggerFrom(r.Context(), s.logger).Warn("write highlight css", zap.Error(err))
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
