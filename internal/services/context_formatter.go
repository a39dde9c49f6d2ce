package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

type Format string

const (
	FormatMarkdown   Format = "markdown"
	FormatPlain      Format = "plain"
	FormatStructured Format = "structured"
)

// ParseFormat resolves a format name; anything unrecognized is markdown.
func ParseFormat(name string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatPlain:
		return FormatPlain
	case FormatStructured:
		return FormatStructured
	default:
		return FormatMarkdown
	}
}

const (
	previewContentLength = 500
	charsPerToken        = 4

	maxPreviewTokens      = 4000
	maxPreviewItems       = 10
	lowRelevanceThreshold = 0.5
)

var previewPolicy = bluemonday.UGCPolicy()

// FormatContext renders items for prompt injection. An empty list renders as "".
func FormatContext(items []ContextItem, format Format) string {
	if len(items) == 0 {
		return ""
	}

	switch format {
	case FormatPlain:
		return formatPlain(items)
	case FormatStructured:
		data, err := json.Marshal(items)
		if err != nil {
			return formatMarkdown(items)
		}
		return string(data)
	default:
		return formatMarkdown(items)
	}
}

// ParseStructured is the inverse of the structured format.
func ParseStructured(formatted string) ([]ContextItem, error) {
	if strings.TrimSpace(formatted) == "" {
		return nil, nil
	}
	var items []ContextItem
	if err := json.Unmarshal([]byte(formatted), &items); err != nil {
		return nil, fmt.Errorf("failed to parse structured context: %w", err)
	}
	return items, nil
}

func formatMarkdown(items []ContextItem) string {
	var b strings.Builder
	b.WriteString("## Relevant Context\n\n")

	order, groups := groupByType(items)
	for _, t := range order {
		fmt.Fprintf(&b, "### %s\n\n", typeHeading(t))
		for _, item := range groups[t] {
			fmt.Fprintf(&b, "**%s** (Relevance: %d%%)\n", item.Title, int(math.Round(item.RelevanceScore*100)))
			fmt.Fprintf(&b, "*Source: %s*\n\n", item.Source)
			if excerpt := contentExcerpt(item.Content); excerpt != "" {
				b.WriteString(excerpt)
				b.WriteString("\n\n")
			}
			b.WriteString("---\n\n")
		}
	}
	return b.String()
}

func formatPlain(items []ContextItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Title+": "+item.Content)
	}
	return strings.Join(parts, "\n\n")
}

func contentExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= previewContentLength {
		return content
	}
	return truncateRunes(content, previewContentLength) + "..."
}

func typeHeading(t ContextType) string {
	r, size := utf8.DecodeRuneInString(string(t))
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + string(t)[size:]
}

// groupByType buckets items by type, keeping first-seen type order and item order.
func groupByType(items []ContextItem) ([]ContextType, map[ContextType][]ContextItem) {
	var order []ContextType
	groups := make(map[ContextType][]ContextItem)
	for _, item := range items {
		if _, ok := groups[item.Type]; !ok {
			order = append(order, item.Type)
		}
		groups[item.Type] = append(groups[item.Type], item)
	}
	return order, groups
}

// EstimateTokens applies the four-characters-per-token heuristic.
func EstimateTokens(text string) int {
	return ceilDiv(utf8.RuneCountInString(text), charsPerToken)
}

// EstimateItemTokens estimates tokens over the titles and contents of items.
func EstimateItemTokens(items []ContextItem) int {
	chars := 0
	for _, item := range items {
		chars += utf8.RuneCountInString(item.Title) + utf8.RuneCountInString(item.Content)
	}
	return ceilDiv(chars, charsPerToken)
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// BuildContextSummary renders the one-line summary for a ranked list.
func BuildContextSummary(items []ContextItem) string {
	if len(items) == 0 {
		return "No relevant context found."
	}

	order, groups := groupByType(items)
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s items", len(groups[t]), t))
	}
	return fmt.Sprintf("Found %d relevant context items: %s", len(items), strings.Join(parts, ", "))
}

// BuildPreview renders the markdown preview with its token count, type histogram and advice.
func BuildPreview(items []ContextItem) ContextPreview {
	preview := FormatContext(items, FormatMarkdown)
	tokenCount := EstimateTokens(preview)

	histogram := make(map[ContextType]int)
	for _, item := range items {
		histogram[item.Type]++
	}

	return ContextPreview{
		Preview:         preview,
		PreviewHTML:     RenderPreviewHTML(preview),
		TokenCount:      tokenCount,
		ContextTypes:    histogram,
		Recommendations: recommendations(items, tokenCount),
	}
}

func recommendations(items []ContextItem, tokenCount int) []string {
	recs := []string{}
	if tokenCount > maxPreviewTokens {
		recs = append(recs, "Consider reducing context items to stay within token limits")
	}
	if len(items) > maxPreviewItems {
		recs = append(recs, "Too many context items may overwhelm the AI - consider filtering")
	}

	lowRelevance := 0
	for _, item := range items {
		if item.RelevanceScore < lowRelevanceThreshold {
			lowRelevance++
		}
	}
	if lowRelevance > 0 {
		recs = append(recs, fmt.Sprintf("%d items have low relevance scores", lowRelevance))
	}

	if len(items) == 0 {
		recs = append(recs, "No relevant context found - consider adding more project documentation")
	}
	return recs
}

// RenderPreviewHTML converts a markdown preview to sanitized HTML for display.
func RenderPreviewHTML(md string) string {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	unsafeHTML := markdown.Render(p.Parse([]byte(md)), renderer)
	return string(previewPolicy.SanitizeBytes(unsafeHTML))
}
