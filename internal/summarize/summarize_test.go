package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tech-news-daily/apptrack/internal/gemini"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
	lastReq  gemini.GenerateRequest
}

func (f *fakeGenerator) GenerateText(_ context.Context, req gemini.GenerateRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func TestSummarizeAppliesSummariesByIndex(t *testing.T) {
	gen := &fakeGenerator{
		response: `[{"index": 1, "summary": "New first."}, {"index": 3, "summary": "New third."}]`,
	}
	s := New(gen)

	items := []Item{
		{Name: "First", Description: "old first"},
		{Name: "Second", Description: "old second"},
		{Name: "Third", Description: "old third"},
	}
	descriptions := s.Summarize(context.Background(), items)

	require.Len(t, descriptions, 3)
	assert.Equal(t, "New first.", descriptions[0])
	assert.Equal(t, "old second", descriptions[1])
	assert.Equal(t, "New third.", descriptions[2])
	assert.Equal(t, 1, gen.calls)
}

func TestSummarizeIgnoresOutOfRangeAndEmpty(t *testing.T) {
	gen := &fakeGenerator{
		response: `[{"index": 0, "summary": "Below range."}, {"index": 9, "summary": "Above range."}, {"index": 1, "summary": ""}]`,
	}
	s := New(gen)

	items := []Item{
		{Name: "Only", Description: "original"},
	}
	descriptions := s.Summarize(context.Background(), items)

	require.Len(t, descriptions, 1)
	assert.Equal(t, "original", descriptions[0])
}

func TestSummarizeGeneratorFailureKeepsOriginals(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	s := New(gen)

	items := []Item{
		{Name: "A", Description: "alpha"},
		{Name: "B", Description: "beta"},
	}
	descriptions := s.Summarize(context.Background(), items)

	assert.Equal(t, []string{"alpha", "beta"}, descriptions)
}

func TestSummarizeEmptyResponseKeepsOriginals(t *testing.T) {
	gen := &fakeGenerator{response: ""}
	s := New(gen)

	descriptions := s.Summarize(context.Background(), []Item{{Name: "A", Description: "alpha"}})

	assert.Equal(t, []string{"alpha"}, descriptions)
}

func TestSummarizeUnparseableResponseKeepsOriginals(t *testing.T) {
	gen := &fakeGenerator{response: "Sorry, I cannot help with that."}
	s := New(gen)

	descriptions := s.Summarize(context.Background(), []Item{{Name: "A", Description: "alpha"}})

	assert.Equal(t, []string{"alpha"}, descriptions)
}

func TestSummarizeNoItemsSkipsGenerator(t *testing.T) {
	gen := &fakeGenerator{}
	s := New(gen)

	descriptions := s.Summarize(context.Background(), nil)

	assert.Empty(t, descriptions)
	assert.Zero(t, gen.calls)
}

func TestDisabledReturnsDescriptionsUnchanged(t *testing.T) {
	descriptions := Disabled{}.Summarize(context.Background(), []Item{
		{Name: "A", Description: "alpha"},
		{Name: "B", Description: "beta"},
	})

	assert.Equal(t, []string{"alpha", "beta"}, descriptions)
}

func TestSummarizeRequestShape(t *testing.T) {
	gen := &fakeGenerator{response: `[{"index": 1, "summary": "Done."}]`}
	s := New(gen)

	longDescription := strings.Repeat("x", 400)
	items := []Item{
		{Name: "TikTok", Description: longDescription},
		{Name: "Mystery", Description: "   "},
	}
	s.Summarize(context.Background(), items)

	req := gen.lastReq
	assert.True(t, req.EnableSearch)
	assert.Equal(t, 4000, req.MaxOutputTokens)
	assert.InDelta(t, 0.3, req.Temperature, 0.0001)
	assert.NotEmpty(t, req.SystemInstruction)

	assert.Contains(t, req.Prompt, "1. App: TikTok")
	assert.Contains(t, req.Prompt, "2. App: Mystery")
	// Raw descriptions are truncated before being quoted in the prompt.
	assert.Contains(t, req.Prompt, strings.Repeat("x", 300))
	assert.NotContains(t, req.Prompt, strings.Repeat("x", 301))
	// Blank descriptions get the explicit placeholder.
	assert.Contains(t, req.Prompt, "(no description available)")
}
