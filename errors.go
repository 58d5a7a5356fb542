package main

import (
	"errors"
	"fmt"
)

var (
	// errSandboxViolation is returned when a request path resolves outside the
	// root. Its message never includes the resolved path.
	errSandboxViolation = errors.New("access denied")
	errNotFound         = errors.New("not found")
	errNotAFile         = errors.New("path is a directory")
	errInvalidRange     = errors.New("offset/limit must be >= 0")
	errNotADirectory    = errors.New("path is not a directory")
	errInvalidQuery     = errors.New("invalid search pattern")
	errNotAnImage       = errors.New("file is not an image")
	errUnsupportedType  = errors.New("unsupported file type")
)

// tooLargeError reports a whole-file preview over the configured ceiling
type tooLargeError struct {
	Size int64
	Max  int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("file too large to preview: %d bytes (max %d)", e.Size, e.Max)
}

// requestError is a missing or malformed request parameter
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}
