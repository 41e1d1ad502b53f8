package summarize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// indexedSummary is one {index, summary} pair from the model's reply.
// Indices are 1-based.
type indexedSummary struct {
	Index   int    `json:"index"`
	Summary string `json:"summary"`
}

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
	arrayRe      = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)
	pairRe       = regexp.MustCompile(`"index"\s*:\s*(\d+)\s*,\s*"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// parseSummaries extracts {index, summary} pairs from a model reply through
// an ordered fallback chain: a direct parse after unwrapping any fenced code
// block, then a parse of the first array-shaped substring, then a scrape of
// individual pairs. The first stage to yield anything wins.
func parseSummaries(result string) []indexedSummary {
	stages := []func(string) []indexedSummary{
		parseDirect,
		parseEmbeddedArray,
		parsePairs,
	}
	for _, parse := range stages {
		if summaries := parse(result); len(summaries) > 0 {
			return summaries
		}
	}
	return nil
}

// parseDirect unwraps a fenced code block and parses the whole reply as a
// JSON array.
func parseDirect(result string) []indexedSummary {
	cleaned := strings.TrimSpace(result)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = fenceOpenRe.ReplaceAllString(cleaned, "")
		cleaned = fenceCloseRe.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)
	}

	var summaries []indexedSummary
	if err := json.Unmarshal([]byte(cleaned), &summaries); err != nil {
		return nil
	}
	return summaries
}

// parseEmbeddedArray parses the first array-of-objects substring, for
// replies that wrap the JSON in prose.
func parseEmbeddedArray(result string) []indexedSummary {
	match := arrayRe.FindString(result)
	if match == "" {
		return nil
	}

	var summaries []indexedSummary
	if err := json.Unmarshal([]byte(match), &summaries); err != nil {
		return nil
	}
	return summaries
}

// parsePairs scrapes individual pairs out of otherwise malformed output.
func parsePairs(result string) []indexedSummary {
	var summaries []indexedSummary
	for _, match := range pairRe.FindAllStringSubmatch(result, -1) {
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		summaries = append(summaries, indexedSummary{
			Index:   index,
			Summary: unescapeJSONString(match[2]),
		})
	}
	return summaries
}

// unescapeJSONString resolves JSON escapes in a string body captured by the
// pair regex. Returns the input unchanged if it does not decode.
func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
