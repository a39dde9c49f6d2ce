package models

// GORM models

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringArray for PostgreSQL array support
type StringArray []string

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	return fmt.Sprintf("{%s}", strings.Join(s, ",")), nil
}

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	switch v := value.(type) {
	case string:
		v = strings.Trim(v, "{}")
		if v == "" {
			*s = StringArray{}
			return nil
		}
		*s = StringArray(strings.Split(v, ","))
	case []byte:
		return s.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into StringArray", value)
	}
	return nil
}

// Base model with common fields
type BaseModel struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Project is a workspace owned by a single user and shared with members
type Project struct {
	BaseModel
	OwnerID     string `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`

	// Associations
	Members []ProjectMember `json:"members" gorm:"foreignKey:ProjectID"`
}

// CanAccess reports whether userID owns the project or is a loaded member.
func (p *Project) CanAccess(userID string) bool {
	if userID == "" {
		return false
	}
	if p.OwnerID == userID {
		return true
	}
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

type ProjectMember struct {
	BaseModel
	ProjectID string `json:"project_id" gorm:"type:uuid;not null;uniqueIndex:idx_project_member"`
	UserID    string `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_project_member"`
	Role      string `json:"role" gorm:"default:'member'"`
}

// KnowledgeEntry is a documentation entry in a project's knowledge base
type KnowledgeEntry struct {
	BaseModel
	ProjectID string      `json:"project_id" gorm:"type:uuid;not null;index"`
	Title     string      `json:"title" gorm:"not null"`
	Content   string      `json:"content" gorm:"type:text"`
	Category  string      `json:"category" gorm:"default:'general'"`
	Tags      StringArray `json:"tags" gorm:"type:text[]"`
	SourceURL string      `json:"source_url"`
}

// ProjectAsset is an uploaded file. Only its metadata lives here; bytes stay in object storage.
type ProjectAsset struct {
	BaseModel
	ProjectID string `json:"project_id" gorm:"type:uuid;not null;index"`
	Name      string `json:"name" gorm:"not null"`
	FileURL   string `json:"file_url"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
}

type Conversation struct {
	BaseModel
	ProjectID     string    `json:"project_id" gorm:"type:uuid;not null;index"`
	UserID        string    `json:"user_id" gorm:"type:uuid"`
	Title         string    `json:"title"`
	Archived      bool      `json:"archived" gorm:"default:false"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"default:NOW();index"`

	// Associations
	Messages []Message `json:"messages" gorm:"foreignKey:ConversationID"`
}

type Message struct {
	BaseModel
	ConversationID string `json:"conversation_id" gorm:"type:uuid;not null;index"`
	Role           string `json:"role" gorm:"not null;check:role IN ('user','assistant','system')"`
	Content        string `json:"content" gorm:"type:text"`
}

// FeedbackType is a user's verdict on a suggested context item
type FeedbackType string

const (
	FeedbackHelpful    FeedbackType = "helpful"
	FeedbackNotHelpful FeedbackType = "not_helpful"
	FeedbackIrrelevant FeedbackType = "irrelevant"
)

func (f FeedbackType) Valid() bool {
	switch f {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackIrrelevant:
		return true
	}
	return false
}

// ContextFeedback is an append-only record. Rows are never updated or deleted.
type ContextFeedback struct {
	ID            string       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string       `json:"user_id" gorm:"type:uuid;not null;index"`
	ContextItemID string       `json:"context_item_id" gorm:"not null;index"`
	Feedback      FeedbackType `json:"feedback" gorm:"not null;check:feedback IN ('helpful','not_helpful','irrelevant')"`
	UserMessage   string       `json:"user_message" gorm:"type:text"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SystemHealth represents service health monitoring
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// Database interfaces for repository pattern
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*Project, error)
	HasAccess(ctx context.Context, projectID, userID string) (bool, error)
}

type KnowledgeRepository interface {
	Create(ctx context.Context, entry *KnowledgeEntry) error
	ListByProject(ctx context.Context, projectID string) ([]KnowledgeEntry, error)
}

type AssetRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]ProjectAsset, error)
}

type ConversationRepository interface {
	ListRecentActive(ctx context.Context, projectID string, limit int) ([]Conversation, error)
}

type ContextFeedbackRepository interface {
	Create(ctx context.Context, feedback *ContextFeedback) error
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error
	GetAllServicesHealth() ([]SystemHealth, error)
}

// TableName methods for custom table names
func (Project) TableName() string         { return "projects" }
func (ProjectMember) TableName() string   { return "project_members" }
func (KnowledgeEntry) TableName() string  { return "knowledge_entries" }
func (ProjectAsset) TableName() string    { return "project_assets" }
func (Conversation) TableName() string    { return "conversations" }
func (Message) TableName() string         { return "messages" }
func (ContextFeedback) TableName() string { return "context_feedback" }
func (SystemHealth) TableName() string    { return "system_health" }

// Model validation methods
func (k *KnowledgeEntry) Validate() error {
	if k.ProjectID == "" {
		return fmt.Errorf("project ID is required")
	}
	if strings.TrimSpace(k.Title) == "" {
		return fmt.Errorf("knowledge entry title is required")
	}
	return nil
}

func (cf *ContextFeedback) Validate() error {
	if cf.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if cf.ContextItemID == "" {
		return fmt.Errorf("context item ID is required")
	}
	if !cf.Feedback.Valid() {
		return fmt.Errorf("invalid feedback type: %s", cf.Feedback)
	}
	return nil
}

// GORM hooks
func (k *KnowledgeEntry) BeforeCreate(tx *gorm.DB) error {
	if err := k.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return k.Validate()
}

func (cf *ContextFeedback) BeforeCreate(tx *gorm.DB) error {
	if cf.ID == "" {
		cf.ID = uuid.NewString()
	}
	return cf.Validate()
}
