package tfidf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/sweetpotato0/askdata/errors"
)

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write corpus file: %v", err)
		}
	}
	return dir
}

const policyDoc = `# Product Policy

## Returns

Unopened Beverages may be returned within 14 days of delivery.

Opened items are not eligible for return.

## Definitions

AOV means average order value: total revenue divided by order count.
`

func TestNewEmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir)
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Fatalf("expected ErrCorpusUnavailable, got %v", err)
	}
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, apperrors.ErrCorpusUnavailable) {
		t.Fatalf("expected ErrCorpusUnavailable, got %v", err)
	}
}

func TestChunkIDs(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"policy.md": policyDoc})
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frag, ok := idx.FragmentByID("policy::chunk0")
	if !ok {
		t.Fatalf("expected chunk policy::chunk0 to exist")
	}
	if frag.Source != "policy" {
		t.Errorf("expected source 'policy', got %q", frag.Source)
	}
	if _, ok := idx.FragmentByID("policy::chunk999"); ok {
		t.Errorf("unexpected chunk found")
	}
}

func TestHeadingsFoldIntoSections(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"policy.md": policyDoc})
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var returnsChunk string
	for i := 0; i < idx.Len(); i++ {
		frag, _ := idx.FragmentByID(chunkID("policy", i))
		if strings.Contains(frag.Content, "14 days") {
			returnsChunk = frag.Content
		}
	}
	if returnsChunk == "" {
		t.Fatalf("no chunk mentions the return window")
	}
	if !strings.Contains(returnsChunk, "Returns") {
		t.Errorf("heading was not folded into its section: %q", returnsChunk)
	}
}

func TestRetrieveRanksRelevantChunkFirst(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"policy.md": policyDoc})
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	frags, err := idx.Retrieve(context.Background(), "return window for unopened beverages", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(frags) == 0 {
		t.Fatalf("no fragments returned")
	}
	if !strings.Contains(frags[0].Content, "14 days") {
		t.Errorf("expected the returns section first, got %q", frags[0].Content)
	}
	if frags[0].Score <= 0 {
		t.Errorf("expected positive score for matching chunk, got %f", frags[0].Score)
	}
	for i := 1; i < len(frags); i++ {
		if frags[i].Score > frags[i-1].Score {
			t.Errorf("fragments not ordered by descending score")
		}
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"policy.md": policyDoc, "marketing.md": "# Campaigns\n\nSummer Beverages ran 1997-06-01 through 1997-06-30.\n"})
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := idx.Retrieve(context.Background(), "summer campaign dates", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	second, err := idx.Retrieve(context.Background(), "summer campaign dates", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("result count changed between calls")
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Score != second[i].Score {
			t.Errorf("retrieval not deterministic at rank %d", i)
		}
	}
}

func TestRetrieveTopKBounds(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"policy.md": policyDoc})
	idx, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := idx.Retrieve(context.Background(), "anything", 0); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for topK=0, got %v", err)
	}

	frags, err := idx.Retrieve(context.Background(), "anything", 100)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(frags) != idx.Len() {
		t.Errorf("topK larger than corpus should return all %d chunks, got %d", idx.Len(), len(frags))
	}
}

func TestTokenizeBigrams(t *testing.T) {
	terms := tokenize("Return Window for Beverages")
	want := map[string]bool{"return": true, "window": true, "beverages": true, "return window": true, "window beverages": true}
	for _, term := range terms {
		if !want[term] {
			t.Errorf("unexpected term %q", term)
		}
		delete(want, term)
	}
	if len(want) != 0 {
		t.Errorf("missing terms: %v", want)
	}
}

func chunkID(source string, n int) string {
	return fmt.Sprintf("%s::chunk%d", source, n)
}
