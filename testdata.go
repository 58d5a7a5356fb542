package main

// Test content constants
// These eliminate magic values scattered throughout test files

const (
	// Basic markdown
	testMarkdownSimple = "# Test"
	testMarkdownHeader = "# Hello World\n\nThis is a **test**."

	// GFM features
	testMarkdownTable         = "| A | B |\n|:--|--:|\n| 1 | 2 |"
	testMarkdownCode          = "```go\nfunc main() {}\n```"
	testMarkdownStrikethrough = "~~deleted~~"
	testMarkdownTaskList      = "- [x] Done\n- [ ] Todo"
	testMarkdownAutolink      = "https://example.com"

	// Front matter
	testMarkdownFrontMatter = "---\ntitle: Notes\ntags:\n  - go\n  - preview\n---\n# Body"
	testMarkdownUnclosedFM  = "---\ntitle: Notes\n# Body"

	// Links
	testMarkdownWikiLink    = "See [[docs/setup.md]] and [[notes/todo.md|the list]]."
	testMarkdownReverseLink = "Open (the guide)[guides/start.md] now."

	// Hostile markdown
	testMarkdownScript      = "Hello <script>alert(1)</script>\n\n<img src=x onerror=alert(1)>"
	testMarkdownJSLink      = "[click](javascript:alert(1))"
	testMarkdownInlineEvent = `text <span onclick="steal()">x</span>`

	// Complex markdown
	testMarkdownComplex = `# Complex Document

This has:
- Lists
- **Bold** and *italic*
- [Links](https://example.com)

` + "```go\nfunc test() {}\n```"

	// Chunk content
	testTextMultibyte = "héllo wörld ✓ 日本語 🎉 end"

	// Security test paths
	testPathTraversal     = "../../../etc/passwd"
	testPathDeepTraversal = "docs/../../../etc/passwd"
	testPathEncodedDots   = "%2e%2e%2fetc%2fpasswd"
	testPathAbsolute      = "/etc/passwd"
	testPathNullByte      = "safe.md\x00/../../etc/passwd"
)
