package repository

import (
	"context"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/database"
	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// KnowledgeSnapshotCache is the subset of database.Cache the decorator needs.
type KnowledgeSnapshotCache interface {
	CacheKnowledgeSnapshot(ctx context.Context, projectID string, entries []models.KnowledgeEntry, expiration time.Duration) error
	GetCachedKnowledgeSnapshot(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error)
	InvalidateKnowledgeSnapshot(ctx context.Context, projectID string) error
}

// CachedKnowledgeRepository serves ListByProject from a short-lived snapshot.
// Any cache failure falls through to the wrapped repository.
type CachedKnowledgeRepository struct {
	next   models.KnowledgeRepository
	cache  KnowledgeSnapshotCache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedKnowledgeRepository(next models.KnowledgeRepository, cache KnowledgeSnapshotCache, ttl time.Duration, logger *logrus.Logger) *CachedKnowledgeRepository {
	return &CachedKnowledgeRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *CachedKnowledgeRepository) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	if err := r.next.Create(ctx, entry); err != nil {
		return err
	}
	if err := r.cache.InvalidateKnowledgeSnapshot(ctx, entry.ProjectID); err != nil {
		r.logger.WithError(err).WithField("project_id", entry.ProjectID).Warn("Failed to invalidate knowledge snapshot")
	}
	return nil
}

func (r *CachedKnowledgeRepository) ListByProject(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error) {
	entries, err := r.cache.GetCachedKnowledgeSnapshot(ctx, projectID)
	if err == nil {
		r.logger.WithField("project_id", projectID).Debug("Knowledge served from cache")
		return entries, nil
	}
	if !database.IsMiss(err) {
		r.logger.WithError(err).WithField("project_id", projectID).Warn("Knowledge cache read failed")
	}

	entries, err = r.next.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheKnowledgeSnapshot(ctx, projectID, entries, r.ttl); err != nil {
		r.logger.WithError(err).WithField("project_id", projectID).Warn("Failed to cache knowledge snapshot")
	}
	return entries, nil
}
