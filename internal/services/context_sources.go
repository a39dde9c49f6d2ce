package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/dustin/go-humanize"
)

// DefaultConversationLimit is how many recent conversations are considered.
const DefaultConversationLimit = 5

// conversationExcerptLength bounds the content kept on a conversation item.
const conversationExcerptLength = 1000

// RetrievalQuery carries everything a source needs to score its candidates.
type RetrievalQuery struct {
	ProjectID string
	Message   string
	Keywords  []string
	Topics    []string
}

// ContextSource is one retrieval channel. Implementations return only items scoring above zero.
type ContextSource interface {
	Type() ContextType
	Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error)
}

type KnowledgeSource struct {
	repo   models.KnowledgeRepository
	scorer Scorer
}

func NewKnowledgeSource(repo models.KnowledgeRepository, scorer Scorer) *KnowledgeSource {
	return &KnowledgeSource{repo: repo, scorer: scorer}
}

func (s *KnowledgeSource) Type() ContextType { return ContextKnowledge }

func (s *KnowledgeSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	entries, err := s.repo.ListByProject(ctx, q.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}

	var items []ContextItem
	for _, entry := range entries {
		score := s.scorer.Score(q.Message, entry.Title+" "+entry.Content, q.Keywords, q.Topics)
		if score <= 0 {
			continue
		}
		items = append(items, ContextItem{
			ID:             entry.ID,
			Type:           ContextKnowledge,
			Title:          entry.Title,
			Content:        entry.Content,
			RelevanceScore: score,
			Source:         fmt.Sprintf("Knowledge Base - %s", entry.Category),
			Metadata: map[string]interface{}{
				"category": entry.Category,
				"tags":     stringList(entry.Tags),
			},
			CreatedAt: entry.CreatedAt.UTC(),
		})
	}
	return items, nil
}

// CodeSource is the extension point for a repository-backed code retriever.
// It has no backing store yet and always returns nothing.
type CodeSource struct{}

func NewCodeSource() *CodeSource { return &CodeSource{} }

func (s *CodeSource) Type() ContextType { return ContextCode }

func (s *CodeSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	return nil, nil
}

type AssetSource struct {
	repo   models.AssetRepository
	scorer Scorer
}

func NewAssetSource(repo models.AssetRepository, scorer Scorer) *AssetSource {
	return &AssetSource{repo: repo, scorer: scorer}
}

func (s *AssetSource) Type() ContextType { return ContextAsset }

// Retrieve scores assets by name only; file contents are never read.
func (s *AssetSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	assets, err := s.repo.ListByProject(ctx, q.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project assets: %w", err)
	}

	var items []ContextItem
	for _, asset := range assets {
		score := s.scorer.Score(q.Message, asset.Name, q.Keywords, q.Topics)
		if score <= 0 {
			continue
		}
		items = append(items, ContextItem{
			ID:             asset.ID,
			Type:           ContextAsset,
			Title:          asset.Name,
			Content:        describeAsset(asset),
			RelevanceScore: score,
			Source:         "Project Assets",
			Metadata: map[string]interface{}{
				"fileUrl":  asset.FileURL,
				"fileType": asset.FileType,
				"fileSize": float64(asset.FileSize),
			},
			CreatedAt: asset.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func describeAsset(asset models.ProjectAsset) string {
	fileType := asset.FileType
	if fileType == "" {
		fileType = "unknown"
	}
	return fmt.Sprintf("Project asset %q (%s, %s)", asset.Name, fileType, humanize.Bytes(uint64(max(asset.FileSize, 0))))
}

type ConversationSource struct {
	repo   models.ConversationRepository
	scorer Scorer
	limit  int
}

func NewConversationSource(repo models.ConversationRepository, scorer Scorer, limit int) *ConversationSource {
	if limit < 1 {
		limit = DefaultConversationLimit
	}
	return &ConversationSource{repo: repo, scorer: scorer, limit: limit}
}

func (s *ConversationSource) Type() ContextType { return ContextConversation }

// Retrieve scores each recent conversation as a whole: title plus every message body.
func (s *ConversationSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	conversations, err := s.repo.ListRecentActive(ctx, q.ProjectID, s.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent conversations: %w", err)
	}

	var items []ContextItem
	for _, conv := range conversations {
		bodies := make([]string, 0, len(conv.Messages))
		for _, msg := range conv.Messages {
			bodies = append(bodies, msg.Content)
		}
		transcript := strings.Join(bodies, " ")

		score := s.scorer.Score(q.Message, conv.Title+" "+transcript, q.Keywords, q.Topics)
		if score <= 0 {
			continue
		}
		items = append(items, ContextItem{
			ID:             conv.ID,
			Type:           ContextConversation,
			Title:          conv.Title,
			Content:        truncateRunes(transcript, conversationExcerptLength),
			RelevanceScore: score,
			Source:         "Previous Conversation",
			Metadata: map[string]interface{}{
				"messageCount":  float64(len(conv.Messages)),
				"lastMessageAt": conv.LastMessageAt.UTC().Format(time.RFC3339Nano),
			},
			CreatedAt: conv.CreatedAt.UTC(),
		})
	}
	return items, nil
}

// Metadata holds only JSON-native values (strings, float64, []interface{}) and
// timestamps are UTC, so the structured format parses back to equal items.
func stringList(values []string) []interface{} {
	list := make([]interface{}, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}
	return list
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
