package models

// ContextOptionsRequest carries caller overrides. Absent fields keep their defaults.
type ContextOptionsRequest struct {
	IncludeKnowledge             *bool     `json:"includeKnowledge"`
	IncludeCode                  *bool     `json:"includeCode"`
	IncludeAssets                *bool     `json:"includeAssets"`
	IncludePreviousConversations *bool     `json:"includePreviousConversations"`
	MaxItems                     *int      `json:"maxItems"`
	MinRelevanceScore            *float64  `json:"minRelevanceScore"`
	ContextTypes                 *[]string `json:"contextTypes"`
}

type AnalyzeRequest struct {
	Message string                 `json:"message"`
	Options *ContextOptionsRequest `json:"options"`
}

type FormatResponse struct {
	Formatted string `json:"formatted"`
}

type FeedbackRequest struct {
	ItemID      string `json:"itemId" binding:"required"`
	Feedback    string `json:"feedback" binding:"required"`
	UserMessage string `json:"userMessage"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
