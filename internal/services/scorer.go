package services

import (
	"math"
	"strings"
)

const (
	keywordWeight = 0.4
	topicWeight   = 0.3
	lexicalWeight = 0.3
)

// Scorer computes how relevant a candidate text is to a user message, in [0,1].
type Scorer interface {
	Score(userMessage, candidateText string, keywords, topics []string) float64
}

// LexicalScorer is the coarse baseline: substring overlap of keywords and topics plus
// shared non-stop-word tokens. No stemming, synonyms or embeddings.
type LexicalScorer struct{}

func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

func (LexicalScorer) Score(userMessage, candidateText string, keywords, topics []string) float64 {
	return CalculateRelevanceScore(userMessage, candidateText, keywords, topics)
}

// CalculateRelevanceScore is 0.4*keywordOverlap + 0.3*topicOverlap + 0.3*lexicalSimilarity.
func CalculateRelevanceScore(userMessage, candidateText string, keywords, topics []string) float64 {
	text := strings.ToLower(candidateText)

	score := keywordWeight*substringFraction(text, keywords) +
		topicWeight*substringFraction(text, topics) +
		lexicalWeight*lexicalSimilarity(userMessage, text)

	return math.Min(score, 1.0)
}

func substringFraction(text string, terms []string) float64 {
	matches := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matches++
		}
	}
	return float64(matches) / float64(max(len(terms), 1))
}

// lexicalSimilarity counts message tokens (with repeats) that also occur in the
// candidate and are not stop-words, over the message token count.
func lexicalSimilarity(userMessage, lowerText string) float64 {
	messageWords := strings.Fields(strings.ToLower(userMessage))
	if len(messageWords) == 0 {
		return 0
	}

	contentWords := make(map[string]struct{})
	for _, w := range strings.Fields(lowerText) {
		contentWords[w] = struct{}{}
	}

	shared := 0
	for _, w := range messageWords {
		if isStopWord(w) {
			continue
		}
		if _, ok := contentWords[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(messageWords))
}
