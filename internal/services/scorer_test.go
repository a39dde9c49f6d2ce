package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoreFor(message, text string) float64 {
	return CalculateRelevanceScore(message, text, ExtractKeywords(message), ExtractTopics(message))
}

func TestCalculateRelevanceScore_Components(t *testing.T) {
	// keywords deploy+docker both present (0.4), topic "deployment" absent (0),
	// both message tokens shared (0.3)
	score := scoreFor("deploy docker", "Docker deploy guide")
	assert.InDelta(t, 0.7, score, 1e-9)
}

func TestCalculateRelevanceScore_GreetingUsesLexicalTermOnly(t *testing.T) {
	assert.InDelta(t, 0.3, scoreFor("hi", "hi there, welcome"), 1e-9)
	assert.Zero(t, scoreFor("hi", "Release notes for version two"))
}

func TestCalculateRelevanceScore_StopWordsNeverShared(t *testing.T) {
	assert.Zero(t, scoreFor("the and of", "the and of"))
}

func TestCalculateRelevanceScore_Bounds(t *testing.T) {
	messages := []string{
		"",
		"hi",
		"How do I set up authentication with JWT tokens?",
		"error error error",
		"database query slow on production server, security issue with login tokens",
		strings.Repeat("docker ", 200),
	}
	texts := []string{
		"",
		"auth login token jwt database sql query deploy docker error crash",
		"Completely unrelated text about gardening",
		strings.Repeat("authentication database ", 100),
	}

	for _, m := range messages {
		for _, text := range texts {
			score := scoreFor(m, text)
			assert.GreaterOrEqual(t, score, 0.0, "message=%q", m)
			assert.LessOrEqual(t, score, 1.0, "message=%q", m)
		}
	}
}

func TestCalculateRelevanceScore_AuthGuide(t *testing.T) {
	message := "How do I set up authentication with JWT tokens?"
	text := "Auth Guide This guide covers JWT authentication and login flows"

	// 0.4 * 1/2 keywords + 0.3 * 1/1 topics + 0.3 * 2/9 shared tokens
	assert.InDelta(t, 0.2+0.3+0.3*2.0/9.0, scoreFor(message, text), 1e-9)
}

func TestLexicalScorer_DelegatesToFormula(t *testing.T) {
	scorer := NewLexicalScorer()
	keywords := ExtractKeywords("deploy docker")
	topics := ExtractTopics("deploy docker")

	assert.Equal(t,
		CalculateRelevanceScore("deploy docker", "docker deploy", keywords, topics),
		scorer.Score("deploy docker", "docker deploy", keywords, topics),
	)
}
