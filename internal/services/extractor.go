package services

import (
	"regexp"
	"strings"
)

var (
	nonWordPattern = regexp.MustCompile(`[^\w\s]`)

	stopWords = buildStopWords(
		"a", "an", "the", "and", "or", "but", "i", "me", "my", "we", "our", "you", "your",
		"it", "its", "they", "them", "their", "this", "that", "these", "those",
		"is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
		"do", "does", "did", "will", "would", "could", "should", "may", "might", "must", "can",
		"in", "on", "at", "to", "for", "of", "with", "by", "from", "about",
		"what", "which", "who", "when", "where", "why", "how",
		"all", "any", "some", "not", "there",
	)
)

func buildStopWords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

type topicPattern struct {
	name    string
	pattern *regexp.Regexp
}

// topicPatterns match anywhere in the raw message, without word boundaries.
var topicPatterns = []topicPattern{
	{"authentication", regexp.MustCompile(`(?i)auth|login|signin|signup|password|token|jwt`)},
	{"database", regexp.MustCompile(`(?i)database|sql|query|table|schema|migration|postgres`)},
	{"api", regexp.MustCompile(`(?i)api|endpoint|rest|graphql|request|response|fetch`)},
	{"frontend", regexp.MustCompile(`(?i)frontend|react|component|css|html|layout|styling`)},
	{"backend", regexp.MustCompile(`(?i)backend|server|middleware|handler|service`)},
	{"deployment", regexp.MustCompile(`(?i)deploy|hosting|production|docker|pipeline|release`)},
	{"testing", regexp.MustCompile(`(?i)test|jest|unit|integration|e2e|mock`)},
	{"performance", regexp.MustCompile(`(?i)performance|slow|optimi[sz]e|speed|cache|latency`)},
	{"security", regexp.MustCompile(`(?i)security|secure|vulnerab|permission|encrypt|xss|csrf`)},
	{"error", regexp.MustCompile(`(?i)error|bug|issue|problem|fail|crash|exception|broken`)},
}

// ExtractKeywords returns the distinct non-stop-words longer than three characters,
// in first-seen order.
func ExtractKeywords(message string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(message), " ")

	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 3 || isStopWord(word) {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

// ExtractTopics returns matching topic names in table order.
func ExtractTopics(message string) []string {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	var topics []string
	for _, tp := range topicPatterns {
		if tp.pattern.MatchString(message) {
			topics = append(topics, tp.name)
		}
	}
	return topics
}
