package tfidf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// chunk is one indexed unit of corpus text.
type chunk struct {
	id      string
	content string
	source  string
}

// loadCorpus reads every markdown file under dir and splits it into chunks.
// Chunk ids follow "<file stem>::chunk<n>" with n counting from 0 per file.
func loadCorpus(dir string) ([]chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	var chunks []chunk
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read corpus file %s: %w", entry.Name(), err)
		}
		source := strings.TrimSuffix(entry.Name(), ".md")
		for idx, section := range splitSections(raw) {
			chunks = append(chunks, chunk{
				id:      fmt.Sprintf("%s::chunk%d", source, idx),
				content: section,
				source:  source,
			})
		}
	}
	return chunks, nil
}

// splitSections walks the markdown AST and emits one section per top-level
// block. A heading is folded into the section of the block that follows it so
// that policy paragraphs keep their titles.
func splitSections(raw []byte) []string {
	parser := goldmark.New().Parser()
	root := parser.Parse(text.NewReader(raw))

	var sections []string
	var pendingHeading string

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		payload := strings.TrimSpace(blockText(raw, node))
		if payload == "" {
			continue
		}

		if node.Kind() == ast.KindHeading {
			if pendingHeading != "" {
				sections = append(sections, pendingHeading)
			}
			pendingHeading = payload
			continue
		}

		if pendingHeading != "" {
			payload = pendingHeading + "\n" + payload
			pendingHeading = ""
		}
		sections = append(sections, payload)
	}

	// Trailing heading with no body still counts as a section.
	if pendingHeading != "" {
		sections = append(sections, pendingHeading)
	}
	return sections
}

// blockText recovers the raw source text covered by a block node.
func blockText(raw []byte, node ast.Node) string {
	lines := node.Lines()
	if lines == nil || lines.Len() == 0 {
		// Container blocks (e.g. lists) keep their lines on children.
		var b strings.Builder
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			part := blockText(raw, child)
			if part == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(part)
		}
		return b.String()
	}

	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(raw))
	}
	return strings.TrimRight(b.String(), "\n")
}
