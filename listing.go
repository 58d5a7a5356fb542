package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/gobwas/glob"
)

const maxSearchResults = 100

// fileEntry describes one child of a listed directory
type fileEntry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	Extension string `json:"extension,omitempty"`
	Size      int64  `json:"size"`
	Modified  string `json:"modified"`
	Created   string `json:"created,omitempty"`
}

func (e fileEntry) isDir() bool {
	return e.Type == "dir"
}

// lister serves directory listings and name searches below the sandbox root
type lister struct {
	sandbox  *sandbox
	excludes *excludeMatcher
}

func newLister(sb *sandbox, excludes *excludeMatcher) *lister {
	return &lister{sandbox: sb, excludes: excludes}
}

// listEntries returns the direct children of the directory at requestPath
func (l *lister) listEntries(requestPath string) ([]fileEntry, error) {
	dir, err := l.sandbox.resolve(requestPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, statError(err)
	}
	if !info.IsDir() {
		return nil, errNotADirectory
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, statError(err)
	}

	entries := make([]fileEntry, 0, len(children))
	for _, child := range children {
		if l.excludes.excluded(child.Name()) {
			continue
		}
		entry, ok := l.entry(filepath.Join(dir, child.Name()))
		if ok {
			entries = append(entries, entry)
		}
	}
	sortEntries(entries)
	return entries, nil
}

// entry stats one path. Symlinks are followed and kept only when their
// target stays inside the root; broken links are dropped.
func (l *lister) entry(path string) (fileEntry, bool) {
	lst, err := os.Lstat(path)
	if err != nil {
		return fileEntry{}, false
	}
	if lst.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil || !l.sandbox.contains(target) {
			return fileEntry{}, false
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileEntry{}, false
	}

	e := fileEntry{
		Name:     info.Name(),
		Path:     l.sandbox.rel(path),
		Type:     "file",
		Size:     info.Size(),
		Modified: info.ModTime().UTC().Format(time.RFC3339),
	}
	if info.IsDir() {
		e.Type = "dir"
		e.Size = 0
	} else {
		e.Extension = classifyFile(info.Name()).Extension
	}
	if ts, err := times.Stat(path); err == nil && ts.HasBirthTime() {
		e.Created = ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return e, true
}

// sortEntries orders directories first, then by case-insensitive name
func sortEntries(entries []fileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].isDir() != entries[j].isDir() {
			return entries[i].isDir()
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
}

// nameMatcher builds the search predicate. Queries with glob meta characters
// are compiled as globs, anything else is a substring match; both ignore case.
func nameMatcher(query string) (func(string) bool, error) {
	q := strings.ToLower(query)
	if strings.ContainsAny(q, "*?[{") {
		g, err := glob.Compile(q)
		if err != nil {
			return nil, errInvalidQuery
		}
		return func(name string) bool { return g.Match(strings.ToLower(name)) }, nil
	}
	return func(name string) bool { return strings.Contains(strings.ToLower(name), q) }, nil
}

// search finds entries below requestPath whose names match query. A
// recursive search skips excluded and dependency directories and never
// follows symlinked directories. At most maxSearchResults are returned.
func (l *lister) search(ctx context.Context, requestPath, query string, recursive bool) ([]fileEntry, error) {
	if strings.TrimSpace(query) == "" {
		return []fileEntry{}, nil
	}
	match, err := nameMatcher(query)
	if err != nil {
		return nil, err
	}

	if !recursive {
		entries, err := l.listEntries(requestPath)
		if err != nil {
			return nil, err
		}
		results := make([]fileEntry, 0)
		for _, e := range entries {
			if match(e.Name) {
				results = append(results, e)
				if len(results) == maxSearchResults {
					break
				}
			}
		}
		return results, nil
	}

	dir, err := l.sandbox.resolve(requestPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, statError(err)
	}
	if !info.IsDir() {
		return nil, errNotADirectory
	}

	results := make([]fileEntry, 0)
	errLimit := errors.New("result limit reached")
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == dir {
			return nil
		}
		name := d.Name()
		if l.excludes.excluded(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if match(name) {
			if e, ok := l.entry(path); ok {
				results = append(results, e)
				if len(results) == maxSearchResults {
					return errLimit
				}
			}
		}
		if d.IsDir() && searchSkipDirs[name] {
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, errLimit) {
		return nil, walkErr
	}
	sortEntries(results)
	return results, nil
}
