package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// fakeCompleter echoes prompts back with a marker, or fails on demand
type fakeCompleter struct {
	calls     []string
	failAfter int // fail every call once this many calls have happened; -1 never
}

func (f *fakeCompleter) complete(_ context.Context, _, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	if f.failAfter >= 0 && len(f.calls) > f.failAfter {
		return "", errors.New("upstream overloaded")
	}
	return "FORMATTED:" + prompt, nil
}

func (f *fakeCompleter) name() string { return "fake" }

func newTestTransformer(provider completer, chunkSize int) *Transformer {
	return &Transformer{
		provider:  provider,
		chunkSize: chunkSize,
		logger:    arbor.NewLogger(),
	}
}

func TestTransformSinglePassForShortContent(t *testing.T) {
	provider := &fakeCompleter{failAfter: -1}
	tr := newTestTransformer(provider, 24000)

	out, err := tr.Transform(context.Background(), "# Guide\n\nShort page.\n", "https://docs.example.com/guide", "Guide")
	require.NoError(t, err)

	require.Len(t, provider.calls, 1, "short content should need exactly one call")
	assert.Contains(t, out, "FORMATTED:")
	assert.Contains(t, provider.calls[0], "Short page.")
	assert.Contains(t, provider.calls[0], "https://docs.example.com/guide")
}

func TestTransformChunksLongContentWithReviewPass(t *testing.T) {
	provider := &fakeCompleter{failAfter: -1}
	tr := newTestTransformer(provider, 500)

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("## Section\n\n")
		b.WriteString(strings.Repeat("Body text. ", 30))
		b.WriteString("\n\n")
	}

	out, err := tr.Transform(context.Background(), b.String(), "https://docs.example.com/guide", "Guide")
	require.NoError(t, err)

	// N chunk calls plus one review call
	require.Greater(t, len(provider.calls), 2)
	review := provider.calls[len(provider.calls)-1]
	assert.Contains(t, review, "FORMATTED:", "review input should contain the formatted chunks")
	assert.Contains(t, out, "FORMATTED:")
}

func TestTransformChunkFailureAborts(t *testing.T) {
	provider := &fakeCompleter{failAfter: 1}
	tr := newTestTransformer(provider, 500)

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("## Section\n\n")
		b.WriteString(strings.Repeat("Body text. ", 30))
		b.WriteString("\n\n")
	}

	_, err := tr.Transform(context.Background(), b.String(), "https://docs.example.com/guide", "Guide")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 2")
}

func TestReviewDocumentSinglePass(t *testing.T) {
	provider := &fakeCompleter{failAfter: -1}
	tr := newTestTransformer(provider, 24000)

	out, err := tr.ReviewDocument(context.Background(), "# Documentation\n\n## Contents\n\nPage content.\n")
	require.NoError(t, err)

	require.Len(t, provider.calls, 1)
	assert.Contains(t, provider.calls[0], "Page content.")
	assert.Contains(t, out, "FORMATTED:")
}

func TestReviewDocumentChunksOversizedInput(t *testing.T) {
	provider := &fakeCompleter{failAfter: -1}
	tr := newTestTransformer(provider, 500)

	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("## Page\n\n")
		b.WriteString(strings.Repeat("Combined text. ", 30))
		b.WriteString("\n\n")
	}

	out, err := tr.ReviewDocument(context.Background(), b.String())
	require.NoError(t, err)
	require.Greater(t, len(provider.calls), 1)
	assert.Contains(t, out, "FORMATTED:")
}

func TestReviewDocumentFailurePropagates(t *testing.T) {
	provider := &fakeCompleter{failAfter: 0}
	tr := newTestTransformer(provider, 24000)

	_, err := tr.ReviewDocument(context.Background(), "# Documentation\n\nContent.\n")
	require.Error(t, err)
}

func TestTransformReviewFailureKeepsChunkedOutput(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("## Section\n\n")
		b.WriteString(strings.Repeat("Body text. ", 30))
		b.WriteString("\n\n")
	}
	chunks := splitMarkdown(b.String(), 500)

	// Fail only the review call, after every chunk succeeded
	provider := &fakeCompleter{failAfter: len(chunks)}
	tr := newTestTransformer(provider, 500)

	out, err := tr.Transform(context.Background(), b.String(), "https://docs.example.com/guide", "Guide")
	require.NoError(t, err, "review failure must not lose the chunked output")
	assert.Contains(t, out, "FORMATTED:")
}
