package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// sandbox confines request paths to a single canonical root directory.
// It holds no mutable state and is safe for concurrent use.
type sandbox struct {
	root   string
	logger *zap.Logger
}

func newSandbox(root string, logger *zap.Logger) *sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &sandbox{root: filepath.Clean(root), logger: logger}
}

// contains reports whether p is the root or lies below it
func (s *sandbox) contains(p string) bool {
	if p == s.root {
		return true
	}
	prefix := s.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}

// resolveLexical joins requestPath onto the root and normalizes it without
// touching the filesystem. An empty path or "/" means the root itself.
func (s *sandbox) resolveLexical(requestPath string) (string, error) {
	if strings.ContainsRune(requestPath, 0) {
		return "", s.violation(requestPath)
	}
	joined := filepath.Join(s.root, filepath.FromSlash(requestPath))
	if !s.contains(joined) {
		return "", s.violation(requestPath)
	}
	return joined, nil
}

// resolve is resolveLexical followed by symlink canonicalization and a
// second prefix check, so a link inside the root cannot point outside it.
func (s *sandbox) resolve(requestPath string) (string, error) {
	lexical, err := s.resolveLexical(requestPath)
	if err != nil {
		return "", err
	}

	canonical, err := filepath.EvalSymlinks(lexical)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", errNotFound
		}
		// Drop the path from the error so it cannot reach the client
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		return "", fmt.Errorf("resolve path: %w", err)
	}

	if !s.contains(canonical) {
		return "", s.violation(requestPath)
	}
	return canonical, nil
}

// rel converts a path inside the root into the "/"-rooted form shown to clients
func (s *sandbox) rel(abs string) string {
	r, err := filepath.Rel(s.root, abs)
	if err != nil || r == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(r)
}

func (s *sandbox) violation(requestPath string) error {
	sandboxViolations.Inc()
	s.logger.Warn("sandbox violation",
		zap.String("request_path", requestPath),
	)
	return errSandboxViolation
}

// display normalizes a request path into the "/"-rooted form without
// touching the filesystem. Only call it for paths that resolved.
func (s *sandbox) display(requestPath string) string {
	return s.rel(filepath.Join(s.root, filepath.FromSlash(requestPath)))
}
