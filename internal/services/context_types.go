package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
)

// ContextType is the closed set of retrievable sources.
type ContextType string

const (
	ContextKnowledge    ContextType = "knowledge"
	ContextCode         ContextType = "code"
	ContextAsset        ContextType = "asset"
	ContextConversation ContextType = "conversation"
)

// AllContextTypes lists the sources in retrieval order.
var AllContextTypes = []ContextType{ContextKnowledge, ContextCode, ContextAsset, ContextConversation}

func (t ContextType) Valid() bool {
	switch t {
	case ContextKnowledge, ContextCode, ContextAsset, ContextConversation:
		return true
	}
	return false
}

// ContextItem is a single scored candidate eligible for prompt injection.
type ContextItem struct {
	ID             string                 `json:"id"`
	Type           ContextType            `json:"type"`
	Title          string                 `json:"title"`
	Content        string                 `json:"content"`
	RelevanceScore float64                `json:"relevanceScore"`
	Source         string                 `json:"source"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// SourceWarning names a source that was skipped because its retrieval failed.
type SourceWarning struct {
	Source ContextType `json:"source"`
	Error  string      `json:"error"`
}

type ContextAnalysisResult struct {
	SuggestedContext   []ContextItem   `json:"suggestedContext"`
	TotalRelevantItems int             `json:"totalRelevantItems"`
	ContextSummary     string          `json:"contextSummary"`
	EstimatedTokens    int             `json:"estimatedTokens"`
	Warnings           []SourceWarning `json:"warnings,omitempty"`
}

type ContextInjectionOptions struct {
	IncludeKnowledge             bool          `json:"includeKnowledge"`
	IncludeCode                  bool          `json:"includeCode"`
	IncludeAssets                bool          `json:"includeAssets"`
	IncludePreviousConversations bool          `json:"includePreviousConversations"`
	MaxItems                     int           `json:"maxItems"`
	MinRelevanceScore            float64       `json:"minRelevanceScore"`
	ContextTypes                 []ContextType `json:"contextTypes"`
}

const (
	DefaultMaxItems          = 10
	DefaultMinRelevanceScore = 0.3
)

// DefaultOptions enables every source.
func DefaultOptions() ContextInjectionOptions {
	types := make([]ContextType, len(AllContextTypes))
	copy(types, AllContextTypes)
	return ContextInjectionOptions{
		IncludeKnowledge:             true,
		IncludeCode:                  true,
		IncludeAssets:                true,
		IncludePreviousConversations: true,
		MaxItems:                     DefaultMaxItems,
		MinRelevanceScore:            DefaultMinRelevanceScore,
		ContextTypes:                 types,
	}
}

func (o ContextInjectionOptions) Validate() error {
	if o.MaxItems < 1 {
		return fmt.Errorf("%w: maxItems must be a positive integer, got %d", ErrInvalidOptions, o.MaxItems)
	}
	if o.MinRelevanceScore < 0 || o.MinRelevanceScore > 1 {
		return fmt.Errorf("%w: minRelevanceScore must be within [0,1], got %v", ErrInvalidOptions, o.MinRelevanceScore)
	}
	for _, t := range o.ContextTypes {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown context type %q", ErrInvalidOptions, t)
		}
	}
	return nil
}

// WithOverrides returns a copy of o with every field present in req applied.
func (o ContextInjectionOptions) WithOverrides(req *models.ContextOptionsRequest) ContextInjectionOptions {
	if req == nil {
		return o
	}
	if req.IncludeKnowledge != nil {
		o.IncludeKnowledge = *req.IncludeKnowledge
	}
	if req.IncludeCode != nil {
		o.IncludeCode = *req.IncludeCode
	}
	if req.IncludeAssets != nil {
		o.IncludeAssets = *req.IncludeAssets
	}
	if req.IncludePreviousConversations != nil {
		o.IncludePreviousConversations = *req.IncludePreviousConversations
	}
	if req.MaxItems != nil {
		o.MaxItems = *req.MaxItems
	}
	if req.MinRelevanceScore != nil {
		o.MinRelevanceScore = *req.MinRelevanceScore
	}
	if req.ContextTypes != nil {
		types := make([]ContextType, 0, len(*req.ContextTypes))
		for _, t := range *req.ContextTypes {
			types = append(types, ContextType(t))
		}
		o.ContextTypes = types
	}
	return o
}

// Enabled reports whether a source runs: its toggle and the allow-list must agree.
func (o ContextInjectionOptions) Enabled(t ContextType) bool {
	var toggled bool
	switch t {
	case ContextKnowledge:
		toggled = o.IncludeKnowledge
	case ContextCode:
		toggled = o.IncludeCode
	case ContextAsset:
		toggled = o.IncludeAssets
	case ContextConversation:
		toggled = o.IncludePreviousConversations
	}
	if !toggled {
		return false
	}
	for _, allowed := range o.ContextTypes {
		if allowed == t {
			return true
		}
	}
	return false
}

// ContextPreview is what a user sees before context is injected into a prompt.
type ContextPreview struct {
	Preview         string              `json:"preview"`
	PreviewHTML     string              `json:"previewHtml"`
	TokenCount      int                 `json:"tokenCount"`
	ContextTypes    map[ContextType]int `json:"contextTypes"`
	Recommendations []string            `json:"recommendations"`
}

var (
	ErrAccessDenied   = errors.New("access denied to project")
	ErrInvalidOptions = errors.New("invalid context injection options")
)

// SourceError reports that one retrieval source could not reach its collaborator.
type SourceError struct {
	Source ContextType
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
