package repository

import (
	"context"
	"errors"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"gorm.io/gorm"
)

// ProjectRepositoryImpl implements ProjectRepository
type ProjectRepositoryImpl struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) models.ProjectRepository {
	return &ProjectRepositoryImpl{db: db}
}

func (r *ProjectRepositoryImpl) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Preload("Members").First(&project, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// HasAccess reports whether the user owns the project or is one of its members.
// A missing project is not an error, it just grants nothing.
func (r *ProjectRepositoryImpl) HasAccess(ctx context.Context, projectID, userID string) (bool, error) {
	if projectID == "" || userID == "" {
		return false, nil
	}

	project, err := r.GetByID(ctx, projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return project.CanAccess(userID), nil
}

// KnowledgeRepositoryImpl implements KnowledgeRepository
type KnowledgeRepositoryImpl struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) models.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{db: db}
}

func (r *KnowledgeRepositoryImpl) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *KnowledgeRepositoryImpl) ListByProject(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error) {
	var entries []models.KnowledgeEntry
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at").
		Find(&entries).Error
	return entries, err
}

// AssetRepositoryImpl implements AssetRepository
type AssetRepositoryImpl struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) models.AssetRepository {
	return &AssetRepositoryImpl{db: db}
}

func (r *AssetRepositoryImpl) ListByProject(ctx context.Context, projectID string) ([]models.ProjectAsset, error) {
	var assets []models.ProjectAsset
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).
		Order("created_at").
		Find(&assets).Error
	return assets, err
}

// ConversationRepositoryImpl implements ConversationRepository
type ConversationRepositoryImpl struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) models.ConversationRepository {
	return &ConversationRepositoryImpl{db: db}
}

// ListRecentActive returns the newest non-archived conversations with their messages
// in chronological order.
func (r *ConversationRepositoryImpl) ListRecentActive(ctx context.Context, projectID string, limit int) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND archived = ?", projectID, false).
		Order("last_message_at DESC").
		Limit(limit).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at")
		}).
		Find(&conversations).Error
	return conversations, err
}

// ContextFeedbackRepositoryImpl implements ContextFeedbackRepository. Feedback is
// append-only, so there is no update or delete.
type ContextFeedbackRepositoryImpl struct {
	db *gorm.DB
}

func NewContextFeedbackRepository(db *gorm.DB) models.ContextFeedbackRepository {
	return &ContextFeedbackRepositoryImpl{db: db}
}

func (r *ContextFeedbackRepositoryImpl) Create(ctx context.Context, feedback *models.ContextFeedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.Exec(`
		INSERT INTO system_health (service_name, status, response_time_ms, error_message, checked_at)
		VALUES (?, ?, ?, ?, NOW())
	`, serviceName, status, responseTime, errorMsg).Error
}

// GetAllServicesHealth returns the latest recorded row per service.
func (r *SystemHealthRepositoryImpl) GetAllServicesHealth() ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	err := r.db.Raw(`
		SELECT DISTINCT ON (service_name) *
		FROM system_health
		ORDER BY service_name, checked_at DESC
	`).Scan(&health).Error
	return health, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	Project         models.ProjectRepository
	Knowledge       models.KnowledgeRepository
	Asset           models.AssetRepository
	Conversation    models.ConversationRepository
	ContextFeedback models.ContextFeedbackRepository
	SystemHealth    models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		Project:         NewProjectRepository(db),
		Knowledge:       NewKnowledgeRepository(db),
		Asset:           NewAssetRepository(db),
		Conversation:    NewConversationRepository(db),
		ContextFeedback: NewContextFeedbackRepository(db),
		SystemHealth:    NewSystemHealthRepository(db),
	}
}
