package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileEvent is one message on a watch stream
type fileEvent struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// handleWatch streams change notifications for a single sandboxed file as
// Server-Sent Events. Each connection owns its watcher; the stream ends when
// the client goes away or the file is removed or renamed.
func (s *server) handleWatch(w http.ResponseWriter, r *http.Request) {
	abs, display, _, err := s.resolveFile(r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logger := loggerFrom(r.Context(), s.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("SSE: ResponseWriter doesn't support flushing")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Streaming unsupported", Code: "INTERNAL"})
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("create watcher: %w", err))
		return
	}
	defer watcher.Close()
	if err := watcher.Add(abs); err != nil {
		s.writeError(w, r, statError(err))
		return
	}

	watchStreamsActive.Inc()
	defer watchStreamsActive.Dec()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				_ = writeEvent(w, flusher, fileEvent{Type: "file_removed", Path: display})
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Chmod) {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil {
				continue
			}
			if err := writeEvent(w, flusher, fileEvent{
				Type:     "file_modified",
				Path:     display,
				Size:     info.Size(),
				Modified: info.ModTime().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event fileEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
