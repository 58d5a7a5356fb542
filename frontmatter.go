package main

import (
	"html"
	"regexp"
	"strings"
)

const frontMatterDelimiter = "---"

var (
	frontMatterItem = regexp.MustCompile(`^(\s*)-\s+(.+)$`)
	frontMatterPair = regexp.MustCompile(`^([^:]+):\s*(.*)$`)
)

// frontMatterValue is either a scalar string or a list of strings
type frontMatterValue struct {
	Scalar string
	List   []string
	IsList bool
}

func (v frontMatterValue) empty() bool {
	if v.IsList {
		return len(v.List) == 0
	}
	return v.Scalar == ""
}

// frontMatter is an insertion-ordered key/value block
type frontMatter struct {
	keys   []string
	values map[string]*frontMatterValue
}

func newFrontMatter() *frontMatter {
	return &frontMatter{values: make(map[string]*frontMatterValue)}
}

func (fm *frontMatter) set(key string, v frontMatterValue) {
	if _, ok := fm.values[key]; !ok {
		fm.keys = append(fm.keys, key)
	}
	fm.values[key] = &v
}

func (fm *frontMatter) get(key string) (frontMatterValue, bool) {
	v, ok := fm.values[key]
	if !ok {
		return frontMatterValue{}, false
	}
	return *v, true
}

// len is the number of keys, including ones with empty values
func (fm *frontMatter) len() int {
	return len(fm.keys)
}

// splitFrontMatter separates a leading "---" delimited block from the body.
// found is false, and body is the whole input, when the block is missing or
// never closed.
func splitFrontMatter(raw string) (block, body string, found bool) {
	first, rest, ok := cutLine(raw)
	if !ok || first != frontMatterDelimiter {
		return "", raw, false
	}

	var lines []string
	for {
		line, remaining, more := cutLine(rest)
		if line == frontMatterDelimiter {
			return strings.Join(lines, "\n"), remaining, true
		}
		if !more {
			return "", raw, false
		}
		lines = append(lines, line)
		rest = remaining
	}
}

// cutLine splits off the first line, dropping its "\n" or "\r\n" ending.
// more is false when s held no line break.
func cutLine(s string) (line, rest string, more bool) {
	line, rest, more = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, more
}

// parseFrontMatter is a forgiving line-oriented parser: "key: value" sets a
// scalar, "key:" starts a list, "- item" appends to the most recent list.
// Anything else is ignored.
func parseFrontMatter(block string) *frontMatter {
	fm := newFrontMatter()
	currentKey := ""

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := frontMatterItem.FindStringSubmatch(line); m != nil {
			if v, ok := fm.values[currentKey]; ok && v.IsList {
				v.List = append(v.List, strings.TrimSpace(m[2]))
			}
			continue
		}

		if m := frontMatterPair.FindStringSubmatch(line); m != nil {
			currentKey = strings.TrimSpace(m[1])
			value := strings.TrimSpace(m[2])
			if value != "" {
				fm.set(currentKey, frontMatterValue{Scalar: value})
			} else {
				fm.set(currentKey, frontMatterValue{IsList: true})
			}
		}
	}
	return fm
}

// renderFrontMatter renders the non-empty keys; it returns "" when none survive
func renderFrontMatter(fm *frontMatter) string {
	var items strings.Builder
	for _, key := range fm.keys {
		value := *fm.values[key]
		if value.empty() {
			continue
		}

		valueClass := "fm-value"
		if key == "tags" || (value.IsList && len(value.List) > 1) {
			valueClass = "fm-value fm-tags"
		}

		items.WriteString(`<div class="fm-item"><span class="fm-key">`)
		items.WriteString(html.EscapeString(key))
		items.WriteString(`</span><span class="`)
		items.WriteString(valueClass)
		items.WriteString(`">`)
		if value.IsList {
			for i, item := range value.List {
				if i > 0 {
					items.WriteString(" ")
				}
				items.WriteString(`<span class="fm-tag">`)
				items.WriteString(html.EscapeString(item))
				items.WriteString(`</span>`)
			}
		} else {
			items.WriteString(html.EscapeString(value.Scalar))
		}
		items.WriteString(`</span></div>`)
	}

	if items.Len() == 0 {
		return ""
	}
	return `<div class="fm-container">` + items.String() + `</div>`
}
