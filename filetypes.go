package main

import "strings"

// category is the presentation category of a file
type category string

const (
	categoryImage    category = "image"
	categoryMarkdown category = "markdown"
	categoryCode     category = "code"
	categoryText     category = "text"
	categoryBinary   category = "binary"
)

// classification is the result of classifyFile
type classification struct {
	Category  category `json:"category"`
	Extension string   `json:"extension"`
	Language  string   `json:"language,omitempty"`
}

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "svg": {}, "webp": {}, "bmp": {}, "ico": {},
}

var markdownExtensions = map[string]struct{}{
	"md": {}, "markdown": {},
}

// codeExtensions are previewed with syntax highlighting
var codeExtensions = map[string]struct{}{
	"js": {}, "jsx": {}, "ts": {}, "tsx": {}, "mjs": {}, "cjs": {},
	"py": {}, "rb": {}, "go": {}, "rs": {}, "java": {},
	"c": {}, "cc": {}, "cpp": {}, "cxx": {}, "h": {}, "hh": {}, "hpp": {}, "hxx": {}, "m": {}, "mm": {},
	"cs": {}, "kt": {}, "kts": {}, "swift": {}, "php": {}, "lua": {}, "scala": {}, "groovy": {},
	"clj": {}, "cljs": {}, "cljc": {}, "dart": {}, "r": {},
	"css": {}, "scss": {}, "sass": {}, "less": {}, "styl": {},
	"html": {}, "xml": {}, "yaml": {}, "yml": {}, "json": {}, "toml": {}, "ini": {}, "conf": {},
	"sh": {}, "bash": {}, "zsh": {}, "ps1": {}, "psm1": {}, "bat": {}, "cmd": {},
	"sql": {}, "dockerfile": {}, "proto": {}, "graphql": {}, "gql": {}, "vue": {}, "svelte": {}, "astro": {},
	"env": {}, "gitignore": {}, "eslintrc": {}, "prettierrc": {}, "lock": {}, "tsconfig": {},
	"gradle": {}, "properties": {}, "makefile": {},
}

// textExtensions are previewed as plain text
var textExtensions = map[string]struct{}{
	"txt": {}, "text": {}, "log": {}, "csv": {}, "tsv": {},
	"rst": {}, "adoc": {}, "asciidoc": {}, "org": {}, "tex": {},
	"diff": {}, "patch": {}, "srt": {}, "vtt": {}, "nfo": {}, "cfg": {},
	"editorconfig": {}, "npmrc": {}, "nvmrc": {}, "dockerignore": {},
	"gitattributes": {}, "gitmodules": {}, "mailmap": {}, "browserslistrc": {}, "htaccess": {},
}

// textFileNames are extensionless names that are conventionally plain text
var textFileNames = map[string]struct{}{
	"readme": {}, "license": {}, "licence": {}, "copying": {}, "authors": {},
	"contributors": {}, "changelog": {}, "notice": {}, "todo": {}, "codeowners": {},
}

// specialFileExtension returns the pseudo-extension for Dockerfile/Makefile
// style names, or "" for any other name.
func specialFileExtension(name string) string {
	lower := strings.ToLower(name)
	for _, special := range []string{"dockerfile", "makefile"} {
		if lower == special || strings.HasPrefix(lower, special+".") {
			return special
		}
	}
	return ""
}

// fileExtension extracts the lower-cased extension used for classification.
// Dockerfile.* and Makefile.* map to pseudo-extensions, a dot-file without a
// further dot yields its remainder, and names without a usable dot yield "".
func fileExtension(name string) string {
	if special := specialFileExtension(name); special != "" {
		return special
	}
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") && !strings.Contains(lower[1:], ".") {
		return lower[1:]
	}
	idx := strings.LastIndex(lower, ".")
	if idx <= 0 || idx == len(lower)-1 {
		return ""
	}
	return lower[idx+1:]
}

func isImageExtension(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}

func isMarkdownExtension(ext string) bool {
	_, ok := markdownExtensions[ext]
	return ok
}

func isCodeExtension(ext string) bool {
	_, ok := codeExtensions[ext]
	return ok
}

func isTextExtension(ext string) bool {
	_, ok := textExtensions[ext]
	return ok
}

// classifyFile maps a file name to its presentation category. It is a pure
// function of the name; directories are never passed in.
func classifyFile(name string) classification {
	ext := fileExtension(name)
	c := classification{Extension: ext}

	switch {
	case isImageExtension(ext):
		c.Category = categoryImage
	case isMarkdownExtension(ext):
		c.Category = categoryMarkdown
	case isCodeExtension(ext):
		c.Category = categoryCode
		c.Language = resolveLanguage(ext, name)
	case isTextExtension(ext):
		c.Category = categoryText
	case ext == "" && isTextFileName(name):
		c.Category = categoryText
	default:
		c.Category = categoryBinary
	}
	return c
}

func isTextFileName(name string) bool {
	_, ok := textFileNames[strings.ToLower(name)]
	return ok
}

// isTextual reports whether a category is decoded as text for previews
func (c category) isTextual() bool {
	return c == categoryMarkdown || c == categoryCode || c == categoryText
}
