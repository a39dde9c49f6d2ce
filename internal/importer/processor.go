// backend/internal/importer/processor.go
package importer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Ayash-Bera/ctxinject/backend/internal/services"
	"github.com/inbucket/html2text"
)

// ContentProcessor turns crawled HTML into knowledge-entry text.
type ContentProcessor struct {
	multiSpace  *regexp.Regexp
	sentenceEnd *regexp.Regexp
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{
		multiSpace:  regexp.MustCompile(`[ \t]+`),
		sentenceEnd: regexp.MustCompile(`[.!?]+\s+`),
	}
}

// HTMLToText renders HTML as plain text, dropping link targets.
func (cp *ContentProcessor) HTMLToText(html string) (string, error) {
	text, err := html2text.FromString(html, html2text.Options{
		OmitLinks:    true,
		PrettyTables: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}
	return cp.CleanContent(text), nil
}

// CleanContent collapses runs of spaces and keeps at most two consecutive blank lines.
func (cp *ContentProcessor) CleanContent(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var cleaned []string
	emptyLines := 0

	for _, line := range lines {
		line = strings.TrimSpace(cp.multiSpace.ReplaceAllString(line, " "))
		if line == "" {
			emptyLines++
			if emptyLines <= 2 {
				cleaned = append(cleaned, "")
			}
		} else {
			emptyLines = 0
			cleaned = append(cleaned, line)
		}
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// SplitIntoChunks splits content on paragraph boundaries, falling back to sentences
// for paragraphs longer than maxChunkSize.
func (cp *ContentProcessor) SplitIntoChunks(content string, maxChunkSize int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= maxChunkSize {
		return []string{content}
	}

	paragraphs := strings.Split(content, "\n\n")
	var chunks []string
	var currentChunk strings.Builder

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if currentChunk.Len() > 0 && currentChunk.Len()+len(paragraph)+2 > maxChunkSize {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			currentChunk.Reset()
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString("\n\n")
		}
		currentChunk.WriteString(paragraph)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	var finalChunks []string
	for _, chunk := range chunks {
		if len(chunk) <= maxChunkSize {
			finalChunks = append(finalChunks, chunk)
		} else {
			finalChunks = append(finalChunks, cp.splitBySentences(chunk, maxChunkSize)...)
		}
	}

	return finalChunks
}

func (cp *ContentProcessor) splitBySentences(text string, maxSize int) []string {
	sentences := cp.sentenceEnd.Split(text, -1)
	var chunks []string
	var currentChunk strings.Builder

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if currentChunk.Len() > 0 && currentChunk.Len()+len(sentence)+2 > maxSize {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			currentChunk.Reset()
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(". ")
		}
		currentChunk.WriteString(sentence)
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

// ExtractTags tags an entry with the same topics used to analyze chat messages.
func (cp *ContentProcessor) ExtractTags(content string) []string {
	return services.ExtractTopics(content)
}

// InferCategory guesses a category when the importer was not given one.
func (cp *ContentProcessor) InferCategory(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "troubleshoot"):
		return "troubleshooting"
	case strings.Contains(lower, "install"):
		return "installation"
	case strings.Contains(lower, "config"):
		return "configuration"
	default:
		return "general"
	}
}
