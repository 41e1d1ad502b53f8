// Package summarize rewrites app descriptions in batches through the
// text-generation API, with layered parsing of the model's reply.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tech-news-daily/apptrack/internal/gemini"
	"github.com/tech-news-daily/apptrack/internal/util"
)

const (
	// maxRawDescriptionLen caps the raw description quoted in the prompt.
	maxRawDescriptionLen = 300

	maxOutputTokens = 4000
	temperature     = 0.3
)

const promptTemplate = `For each app below, write EXACTLY 2 sentences describing what the app does.

RULES:
- Write EXACTLY 2 sentences per app. Not 1, not 3. TWO sentences.
- Sentence 1: What the app is and its primary function.
- Sentence 2: A key feature or what makes it useful to users.
- ALL output MUST be in English. Translate any non-English descriptions to English.
- App names that are not in English should be kept in their original language (do NOT translate app names).
- Do NOT include: ranking data, pricing, update dates, chart positions, download counts.
- Do NOT start with "This app..." — start directly with the app name or a description of its function.
- If the description is empty or unhelpful, use your knowledge to describe the app.
- Keep each summary under 200 characters total.

Apps:
%s

Respond with ONLY a JSON array of objects, each with "index" (1-based) and "summary" (exactly 2 sentences in English).
Example: [{"index": 1, "summary": "TikTok is a short-form video platform where users create and share entertaining clips. It features AI-powered recommendations, filters, effects, and a vast music library."}]
No other text, no markdown code blocks.`

const systemInstruction = "You are a professional app reviewer. Write exactly TWO sentences per app in English — no more, no less. Be specific and factual. Translate all non-English content to English except app names. Return valid JSON only."

// Item is one row's view presented to the summarizer.
type Item struct {
	Name        string
	Description string
}

// TextGenerator is the text-generation call the summarizer depends on.
type TextGenerator interface {
	GenerateText(ctx context.Context, req gemini.GenerateRequest) (string, error)
}

// Summarizer produces two-sentence descriptions for ranked apps, one
// generation call per ranking list.
type Summarizer struct {
	generator TextGenerator
}

// New creates a summarizer backed by the given generator.
func New(generator TextGenerator) *Summarizer {
	return &Summarizer{generator: generator}
}

// Disabled stands in for a Summarizer when no generator is configured; it
// returns every description unchanged.
type Disabled struct{}

// Summarize returns the input descriptions as-is.
func (Disabled) Summarize(_ context.Context, items []Item) []string {
	descriptions := make([]string, len(items))
	for i, item := range items {
		descriptions[i] = item.Description
	}
	return descriptions
}

// Summarize returns the final description for each item, by position: the
// model's summary wherever one parsed cleanly, the original description
// everywhere else. Any failure returns the originals untouched.
func (s *Summarizer) Summarize(ctx context.Context, items []Item) []string {
	descriptions := make([]string, len(items))
	for i, item := range items {
		descriptions[i] = item.Description
	}
	if len(items) == 0 {
		return descriptions
	}

	result, err := s.generator.GenerateText(ctx, gemini.GenerateRequest{
		Prompt:            buildPrompt(items),
		SystemInstruction: systemInstruction,
		MaxOutputTokens:   maxOutputTokens,
		Temperature:       temperature,
		EnableSearch:      true,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Int("items", len(items)).
			Msg("Batch summarization failed, keeping raw descriptions")
		return descriptions
	}
	if result == "" {
		log.Warn().
			Int("items", len(items)).
			Msg("Batch summarization returned no content, keeping raw descriptions")
		return descriptions
	}

	summaries := parseSummaries(result)
	if len(summaries) == 0 {
		log.Warn().
			Int("items", len(items)).
			Msg("Failed to parse batch summarization response, keeping raw descriptions")
		return descriptions
	}

	applied := 0
	for _, summary := range summaries {
		idx := summary.Index - 1
		if idx < 0 || idx >= len(descriptions) || summary.Summary == "" {
			continue
		}
		descriptions[idx] = summary.Summary
		applied++
	}

	log.Debug().
		Int("applied", applied).
		Int("items", len(items)).
		Msg("Applied batch description summaries")

	return descriptions
}

// buildPrompt enumerates the items with 1-based indices and truncated raw
// descriptions.
func buildPrompt(items []Item) string {
	var entries strings.Builder
	for i, item := range items {
		desc := strings.TrimSpace(util.TruncateRunes(item.Description, maxRawDescriptionLen))
		if desc == "" {
			desc = "(no description available)"
		}

		name := item.Name
		if name == "" {
			name = "Unknown"
		}

		fmt.Fprintf(&entries, "\n%d. App: %s\n   Description: %s\n", i+1, name, desc)
	}

	return fmt.Sprintf(promptTemplate, entries.String())
}
