package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"main.go", "go"},
		{"Photo.JPG", "jpg"},
		{"archive.tar.gz", "gz"},
		{"Dockerfile", "dockerfile"},
		{"dockerfile.dev", "dockerfile"},
		{"Makefile", "makefile"},
		{"Makefile.am", "makefile"},
		{".gitignore", "gitignore"},
		{".env", "env"},
		{".eslintrc.json", "json"},
		{"README", ""},
		{"trailingdot.", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileExtension(tt.name))
		})
	}
}

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		name     string
		category category
		language string
	}{
		{"logo.png", categoryImage, ""},
		{"diagram.SVG", categoryImage, ""},
		{"README.md", categoryMarkdown, ""},
		{"notes.markdown", categoryMarkdown, ""},
		{"main.go", categoryCode, "go"},
		{"app.tsx", categoryCode, "typescript"},
		{"script.py", categoryCode, "python"},
		{"config.yml", categoryCode, "yaml"},
		{"Dockerfile", categoryCode, "dockerfile"},
		{"Makefile", categoryCode, "makefile"},
		{".gitignore", categoryCode, "ini"},
		{"styles.css", categoryCode, "plaintext"},
		{"app.log", categoryText, ""},
		{"data.csv", categoryText, ""},
		{"LICENSE", categoryText, ""},
		{"README", categoryText, ""},
		{"program.exe", categoryBinary, ""},
		{"archive.zip", categoryBinary, ""},
		{"noextension", categoryBinary, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyFile(tt.name)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.language, got.Language)
		})
	}
}

// TestClassifyFileDeterministic checks that classification depends only on the name
func TestClassifyFileDeterministic(t *testing.T) {
	for _, name := range []string{"a.go", "b.md", "c.png", "d.bin", "Dockerfile"} {
		assert.Equal(t, classifyFile(name), classifyFile(name))
	}
}

// TestCategoryTablesDisjoint keeps the first-match order meaningful
func TestCategoryTablesDisjoint(t *testing.T) {
	for ext := range imageExtensions {
		assert.False(t, isMarkdownExtension(ext), ext)
		assert.False(t, isCodeExtension(ext), ext)
	}
	for ext := range markdownExtensions {
		assert.False(t, isCodeExtension(ext), ext)
		assert.False(t, isTextExtension(ext), ext)
	}
	for ext := range codeExtensions {
		assert.False(t, isTextExtension(ext), ext)
	}
}

func TestCategoryIsTextual(t *testing.T) {
	assert.True(t, categoryMarkdown.isTextual())
	assert.True(t, categoryCode.isTextual())
	assert.True(t, categoryText.isTextual())
	assert.False(t, categoryImage.isTextual())
	assert.False(t, categoryBinary.isTextual())
}
