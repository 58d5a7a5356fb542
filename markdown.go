package main

import (
	"bytes"
	"html"
	"reflect"
	"regexp"
	"strings"
	"time"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	wikiLinkPattern    = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	reverseLinkPattern = regexp.MustCompile(`\(([^)]+)\)\[([^\]]+)\]`)
)

// internalLinkHref is the non-navigating href of wiki and reverse links. A
// bare "#" is not kept by the sanitizer.
const internalLinkHref = "#internal"

// renderedDocument holds the sanitized fragments of a markdown render
type renderedDocument struct {
	FrontMatterHTML string `json:"frontMatterHtml"`
	BodyHTML        string `json:"bodyHtml"`
}

// String joins the fragments, front matter first
func (d renderedDocument) String() string {
	return d.FrontMatterHTML + d.BodyHTML
}

// markdownRenderer runs the transform pipeline. It is built once and is safe
// for concurrent use; render has no filesystem or network access.
type markdownRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newMarkdownRenderer(policy *bluemonday.Policy) *markdownRenderer {
	md := goldmark.New(
		goldmark.WithParser(newMarkdownParser()),
		goldmark.WithExtensions(
			extension.NewTable(
				extension.WithTableCellAlignMethod(extension.TableCellAlignAttribute),
			),
			extension.Strikethrough,
			extension.TaskList,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
			&linkTargetBlank{},
			&escapedRawHTML{},
		),
		goldmark.WithRendererOptions(
			goldhtml.WithHardWraps(),
		),
	)
	return &markdownRenderer{md: md, policy: policy}
}

// newMarkdownParser is goldmark's default parser without HTML blocks. Tag
// lines then parse as paragraph text, so markdown between them still renders
// and the tags themselves come out escaped as inline raw HTML.
func newMarkdownParser() parser.Parser {
	htmlBlock := reflect.TypeOf(parser.NewHTMLBlockParser())
	var blocks []util.PrioritizedValue
	for _, v := range parser.DefaultBlockParsers() {
		if reflect.TypeOf(v.Value) == htmlBlock {
			continue
		}
		blocks = append(blocks, v)
	}
	return parser.NewParser(
		parser.WithBlockParsers(blocks...),
		parser.WithInlineParsers(parser.DefaultInlineParsers()...),
		parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
	)
}

// render extracts front matter, converts the body, rewrites wiki and reverse
// links and sanitizes both fragments. Malformed front matter is treated as
// absent; render never fails.
func (r *markdownRenderer) render(raw string) renderedDocument {
	start := time.Now()
	defer func() {
		markdownRenderDuration.Observe(time.Since(start).Seconds())
	}()

	body := raw
	var fmHTML string
	if block, rest, ok := splitFrontMatter(raw); ok {
		body = rest
		fmHTML = renderFrontMatter(parseFrontMatter(block))
	}

	bodyHTML := r.convert(body)
	bodyHTML = convertWikiLinks(bodyHTML)
	bodyHTML = convertReverseLinks(bodyHTML)

	return renderedDocument{
		FrontMatterHTML: r.sanitize(fmHTML),
		BodyHTML:        r.sanitize(bodyHTML),
	}
}

// renderHTML is render joined into a single fragment
func (r *markdownRenderer) renderHTML(raw string) string {
	return r.render(raw).String()
}

func (r *markdownRenderer) sanitize(s string) string {
	if s == "" {
		return ""
	}
	return r.policy.Sanitize(s)
}

func (r *markdownRenderer) convert(body string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		// Only writer failures reach here; degrade to escaped text
		return "<p>" + html.EscapeString(body) + "</p>\n"
	}
	return buf.String()
}

// convertWikiLinks rewrites [[path]] and [[path|label]] into internal links
func convertWikiLinks(s string) string {
	return wikiLinkPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := wikiLinkPattern.FindStringSubmatch(match)
		path := html.UnescapeString(m[1])
		label := html.UnescapeString(m[2])
		if label == "" {
			label = lastPathSegment(path)
		}
		return internalLink(path, label)
	})
}

// convertReverseLinks rewrites (label)[path] into internal links
func convertReverseLinks(s string) string {
	return reverseLinkPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := reverseLinkPattern.FindStringSubmatch(match)
		return internalLink(html.UnescapeString(m[2]), html.UnescapeString(m[1]))
	})
}

func lastPathSegment(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 && i < len(trimmed)-1 {
		return trimmed[i+1:]
	}
	if trimmed == "" {
		return path
	}
	return trimmed
}

// internalLink builds an anchor a host page intercepts for in-app navigation
func internalLink(path, label string) string {
	escapedPath := html.EscapeString(path)
	return `<a href="` + internalLinkHref + `" class="internal-link" data-file-path="` + escapedPath +
		`" title="` + escapedPath + `">` + html.EscapeString(label) + `</a>`
}

// linkTargetBlank opens every rendered link in a new browsing context
type linkTargetBlank struct{}

func (e *linkTargetBlank) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&linkTargetBlankTransformer{}, 100),
	))
}

type linkTargetBlankTransformer struct{}

func (t *linkTargetBlankTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Link, *ast.AutoLink:
			n.SetAttributeString("target", []byte("_blank"))
			n.SetAttributeString("rel", []byte("noopener noreferrer"))
		}
		return ast.WalkContinue, nil
	})
}

// escapedRawHTML renders inline raw HTML in the source as visible text instead
// of passing it through.
type escapedRawHTML struct{}

func (e *escapedRawHTML) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&escapedRawHTMLRenderer{}, 100),
	))
}

type escapedRawHTMLRenderer struct{}

func (r *escapedRawHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
}

func (r *escapedRawHTMLRenderer) renderRawHTML(
	w util.BufWriter, source []byte, node ast.Node, entering bool,
) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		segment := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(segment.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}
