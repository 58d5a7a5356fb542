package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// autoDetect is returned by resolveLanguage when no registered grammar
// matches; callers then run detectLanguage on the content.
const autoDetect = ""

// registeredGrammars is the set of grammar names a preview may request directly
var registeredGrammars = map[string]struct{}{
	"bash": {}, "c": {}, "cpp": {}, "cs": {}, "dockerfile": {}, "go": {}, "graphql": {},
	"ini": {}, "java": {}, "javascript": {}, "json": {}, "kotlin": {}, "lua": {},
	"makefile": {}, "php": {}, "plaintext": {}, "protobuf": {}, "python": {}, "ruby": {},
	"rust": {}, "sql": {}, "swift": {}, "typescript": {}, "xml": {}, "yaml": {},
}

// languageAliases maps file extensions to grammar names
var languageAliases = map[string]string{
	"yml":        "yaml",
	"sh":         "bash",
	"zsh":        "bash",
	"js":         "javascript",
	"mjs":        "javascript",
	"cjs":        "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"py":         "python",
	"rb":         "ruby",
	"rs":         "rust",
	"kt":         "kotlin",
	"kts":        "kotlin",
	"proto":      "protobuf",
	"gql":        "graphql",
	"html":       "xml",
	"cc":         "cpp",
	"cxx":        "cpp",
	"h":          "cpp",
	"hh":         "cpp",
	"hpp":        "cpp",
	"hxx":        "cpp",
	"gitignore":  "ini",
	"env":        "ini",
	"conf":       "ini",
	"toml":       "ini",
	"properties": "ini",
	"eslintrc":   "json",
	"prettierrc": "json",
	"tsconfig":   "json",
	"lock":       "plaintext",
	"gradle":     "plaintext",
	"vue":        "plaintext",
	"svelte":     "plaintext",
	"astro":      "plaintext",
	"scala":      "plaintext",
	"dart":       "plaintext",
	"r":          "plaintext",
	"clj":        "plaintext",
	"cljs":       "plaintext",
	"cljc":       "plaintext",
	"ps1":        "plaintext",
	"psm1":       "plaintext",
	"bat":        "plaintext",
	"cmd":        "plaintext",
	"css":        "plaintext",
	"scss":       "plaintext",
	"sass":       "plaintext",
	"less":       "plaintext",
	"styl":       "plaintext",
}

// chromaNames maps grammar names onto chroma lexer names where they differ
var chromaNames = map[string]string{
	"cpp":        "c++",
	"cs":         "c#",
	"dockerfile": "docker",
	"makefile":   "make",
}

// resolveLanguage maps an extension (and optionally the file name) to a
// registered grammar name, or autoDetect.
func resolveLanguage(extension, filename string) string {
	if special := specialFileExtension(filename); special != "" {
		return special
	}

	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	if alias, ok := languageAliases[ext]; ok {
		ext = alias
	}
	if _, ok := registeredGrammars[ext]; ok {
		return ext
	}
	return autoDetect
}

// detectLanguage guesses a chroma lexer from content. It always returns a
// lexer name, "plaintext" when nothing scores.
func detectLanguage(content string) string {
	lexer := lexers.Analyse(content)
	if lexer == nil {
		return "plaintext"
	}
	return strings.ToLower(lexer.Config().Name)
}

func lexerFor(grammar, content string) chroma.Lexer {
	var lexer chroma.Lexer
	if grammar != autoDetect {
		name := grammar
		if mapped, ok := chromaNames[grammar]; ok {
			name = mapped
		}
		lexer = lexers.Get(name)
	}
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// highlightedCode is the result of highlightCode
type highlightedCode struct {
	Language string `json:"language"`
	Detected bool   `json:"detected"`
	HTML     string `json:"html"`
}

// highlightCode renders content as class-annotated HTML. An autoDetect
// grammar runs chroma's analysers; the output is sanitized before return.
func highlightCode(content, grammar string, sanitize func(string) string) (highlightedCode, error) {
	lexer := lexerFor(grammar, content)
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return highlightedCode{}, fmt.Errorf("tokenise: %w", err)
	}

	formatter := chromahtml.New(chromahtml.WithClasses(true))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, styles.Fallback, iterator); err != nil {
		return highlightedCode{}, fmt.Errorf("format: %w", err)
	}

	language := grammar
	if grammar == autoDetect {
		language = strings.ToLower(lexer.Config().Name)
	}
	return highlightedCode{
		Language: language,
		Detected: grammar == autoDetect,
		HTML:     sanitize(buf.String()),
	}, nil
}

// writeHighlightCSS writes the stylesheet for class-based output in the named
// chroma style, falling back to the default style for unknown names.
func writeHighlightCSS(w io.Writer, styleName string) error {
	style := styles.Get(styleName)
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	return formatter.WriteCSS(w, style)
}
