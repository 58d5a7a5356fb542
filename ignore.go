package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

const ignoreFileName = ".peekdirignore"

// searchSkipDirs are never descended into by recursive search (build
// artifacts and dependencies). They are still shown in listings.
var searchSkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	"dist":         true,
	"venv":         true,
	"virtualenv":   true,
}

// excludeMatcher hides entries whose base name matches one of its patterns
type excludeMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// newExcludeMatcher compiles the patterns from --exclude and the root's
// ignore file. Invalid patterns are logged and skipped.
func newExcludeMatcher(root string, flagPatterns []string, logger *zap.Logger) *excludeMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &excludeMatcher{}
	for _, p := range append(append([]string{}, flagPatterns...), parseIgnoreFile(root, logger)...) {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			logger.Warn("invalid exclude pattern", zap.String("pattern", p), zap.Error(err))
			continue
		}
		m.patterns = append(m.patterns, p)
		m.globs = append(m.globs, g)
	}
	return m
}

// excluded matches case-insensitively against a base name
func (m *excludeMatcher) excluded(name string) bool {
	if m == nil {
		return false
	}
	lower := strings.ToLower(name)
	for _, g := range m.globs {
		if g.Match(lower) {
			return true
		}
	}
	return false
}

// parseIgnoreFile reads one glob pattern per line from the ignore file at the
// root. Blank lines and "#" comments are skipped, as are patterns containing a
// path separator (they match base names only).
func parseIgnoreFile(root string, logger *zap.Logger) []string {
	f, err := os.Open(filepath.Join(root, ignoreFileName))
	if err != nil {
		return nil
	}
	defer f.Close()

	const maxWarnings = 3
	const maxPatternLength = 256

	var patterns []string
	invalid := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > maxPatternLength || strings.ContainsAny(line, `/\`) {
			invalid++
			if invalid <= maxWarnings {
				logger.Warn("ignored pattern in "+ignoreFileName, zap.Int("length", len(line)))
			}
			continue
		}
		patterns = append(patterns, line)
	}
	if invalid > maxWarnings {
		logger.Warn("suppressed further ignore file warnings", zap.Int("count", invalid-maxWarnings))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading "+ignoreFileName, zap.Error(err))
		return nil
	}
	return patterns
}
