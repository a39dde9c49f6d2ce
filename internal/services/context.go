// backend/internal/services/context.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// AccessChecker decides whether a user may read a project's context.
type AccessChecker interface {
	HasAccess(ctx context.Context, projectID, userID string) (bool, error)
}

type ContextServiceConfig struct {
	// TolerateSourceFailures drops failing sources and reports them as warnings
	// instead of failing the whole analysis.
	TolerateSourceFailures bool
}

// ContextService suggests, formats and previews project context for a chat message.
// It holds no per-request state.
type ContextService struct {
	access   AccessChecker
	feedback models.ContextFeedbackRepository
	sources  []ContextSource
	config   ContextServiceConfig
	logger   *logrus.Logger
	now      func() time.Time
}

func NewContextService(
	access AccessChecker,
	feedback models.ContextFeedbackRepository,
	sources []ContextSource,
	config ContextServiceConfig,
	logger *logrus.Logger,
) *ContextService {
	return &ContextService{
		access:   access,
		feedback: feedback,
		sources:  sources,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// DefaultSources wires the four retrieval channels in declaration order.
func DefaultSources(
	knowledge models.KnowledgeRepository,
	assets models.AssetRepository,
	conversations models.ConversationRepository,
	scorer Scorer,
	conversationLimit int,
) []ContextSource {
	return []ContextSource{
		NewKnowledgeSource(knowledge, scorer),
		NewCodeSource(),
		NewAssetSource(assets, scorer),
		NewConversationSource(conversations, scorer, conversationLimit),
	}
}

// Analyze ranks the project's context items against a message.
func (s *ContextService) Analyze(ctx context.Context, projectID, userID, message string, opts ContextInjectionOptions) (*ContextAnalysisResult, error) {
	if err := s.checkAccess(ctx, projectID, userID); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(message) == "" {
		return &ContextAnalysisResult{
			SuggestedContext:   []ContextItem{},
			TotalRelevantItems: 0,
			ContextSummary:     "No message to analyze",
			EstimatedTokens:    0,
		}, nil
	}

	query := RetrievalQuery{
		ProjectID: projectID,
		Message:   message,
		Keywords:  ExtractKeywords(message),
		Topics:    ExtractTopics(message),
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"keywords":   query.Keywords,
		"topics":     query.Topics,
	}).Debug("Analyzing message for context")

	candidates, warnings, err := s.retrieve(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	result := rank(candidates, opts)
	result.Warnings = warnings

	s.logger.WithFields(logrus.Fields{
		"project_id": projectID,
		"candidates": len(candidates),
		"relevant":   result.TotalRelevantItems,
		"suggested":  len(result.SuggestedContext),
		"tokens":     result.EstimatedTokens,
	}).Info("Context analysis completed")

	return result, nil
}

// Format renders items in the requested encoding.
func (s *ContextService) Format(items []ContextItem, format Format) string {
	return FormatContext(items, format)
}

// Preview shows what would be injected for the given items.
func (s *ContextService) Preview(ctx context.Context, projectID, userID string, items []ContextItem) (*ContextPreview, error) {
	if err := s.checkAccess(ctx, projectID, userID); err != nil {
		return nil, err
	}
	preview := BuildPreview(items)
	return &preview, nil
}

// RecordFeedback appends a feedback record. Failures are logged and never returned.
func (s *ContextService) RecordFeedback(ctx context.Context, userID, itemID string, feedback models.FeedbackType, userMessage string) {
	record := &models.ContextFeedback{
		UserID:        userID,
		ContextItemID: itemID,
		Feedback:      feedback,
		UserMessage:   userMessage,
		CreatedAt:     s.now(),
	}

	if err := s.feedback.Create(ctx, record); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"item_id": itemID,
		}).Error("Failed to record context feedback")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"item_id":  itemID,
		"feedback": feedback,
	}).Debug("Context feedback recorded")
}

func (s *ContextService) checkAccess(ctx context.Context, projectID, userID string) error {
	ok, err := s.access.HasAccess(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to verify project access: %w", err)
	}
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"project_id": projectID,
			"user_id":    userID,
		}).Warn("Project access denied")
		return ErrAccessDenied
	}
	return nil
}

// retrieve runs every enabled source concurrently. Results keep source declaration
// order, then item order within a source.
func (s *ContextService) retrieve(ctx context.Context, q RetrievalQuery, opts ContextInjectionOptions) ([]ContextItem, []SourceWarning, error) {
	var enabled []ContextSource
	for _, src := range s.sources {
		if opts.Enabled(src.Type()) {
			enabled = append(enabled, src)
		}
	}

	results := make([][]ContextItem, len(enabled))
	errs := make([]error, len(enabled))

	if s.config.TolerateSourceFailures {
		var wg sync.WaitGroup
		for i, src := range enabled {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = src.Retrieve(ctx, q)
			}()
		}
		wg.Wait()
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, src := range enabled {
			g.Go(func() error {
				items, err := src.Retrieve(gctx, q)
				if err != nil {
					return &SourceError{Source: src.Type(), Err: err}
				}
				results[i] = items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			var srcErr *SourceError
			if errors.As(err, &srcErr) {
				s.logger.WithError(srcErr.Err).WithField("source", srcErr.Source).Error("Context source failed")
			}
			return nil, nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var warnings []SourceWarning
	var merged []ContextItem
	for i, src := range enabled {
		if errs[i] != nil {
			s.logger.WithError(errs[i]).WithField("source", src.Type()).Warn("Skipping failed context source")
			warnings = append(warnings, SourceWarning{Source: src.Type(), Error: errs[i].Error()})
			continue
		}
		for _, item := range results[i] {
			if item.RelevanceScore > 0 {
				merged = append(merged, item)
			}
		}
	}
	return merged, warnings, nil
}

// rank applies the threshold, sorts stably by score, truncates and summarizes.
func rank(candidates []ContextItem, opts ContextInjectionOptions) *ContextAnalysisResult {
	relevant := make([]ContextItem, 0, len(candidates))
	for _, item := range candidates {
		if item.RelevanceScore >= opts.MinRelevanceScore {
			relevant = append(relevant, item)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})

	total := len(relevant)
	suggested := relevant
	if len(suggested) > opts.MaxItems {
		suggested = suggested[:opts.MaxItems]
	}

	return &ContextAnalysisResult{
		SuggestedContext:   suggested,
		TotalRelevantItems: total,
		ContextSummary:     BuildContextSummary(suggested),
		EstimatedTokens:    EstimateItemTokens(suggested),
	}
}
