package services

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeAccess struct {
	allowed bool
	err     error
	calls   atomic.Int32
}

func (f *fakeAccess) HasAccess(ctx context.Context, projectID, userID string) (bool, error) {
	f.calls.Add(1)
	return f.allowed, f.err
}

type fakeKnowledgeRepo struct {
	entries []models.KnowledgeEntry
	err     error
	calls   atomic.Int32
}

func (f *fakeKnowledgeRepo) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeKnowledgeRepo) ListByProject(ctx context.Context, projectID string) ([]models.KnowledgeEntry, error) {
	f.calls.Add(1)
	return f.entries, f.err
}

type fakeAssetRepo struct {
	assets []models.ProjectAsset
	err    error
	calls  atomic.Int32
}

func (f *fakeAssetRepo) ListByProject(ctx context.Context, projectID string) ([]models.ProjectAsset, error) {
	f.calls.Add(1)
	return f.assets, f.err
}

type fakeConversationRepo struct {
	conversations []models.Conversation
	err           error
	calls         atomic.Int32
	lastLimit     atomic.Int32
}

func (f *fakeConversationRepo) ListRecentActive(ctx context.Context, projectID string, limit int) ([]models.Conversation, error) {
	f.calls.Add(1)
	f.lastLimit.Store(int32(limit))
	return f.conversations, f.err
}

type fakeFeedbackRepo struct {
	mu      sync.Mutex
	records []models.ContextFeedback
	err     error
}

func (f *fakeFeedbackRepo) Create(ctx context.Context, feedback *models.ContextFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *feedback)
	return nil
}

// stubSource returns fixed items, ignoring the query.
type stubSource struct {
	kind  ContextType
	items []ContextItem
	err   error
	calls atomic.Int32
}

func (s *stubSource) Type() ContextType { return s.kind }

func (s *stubSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	s.calls.Add(1)
	return s.items, s.err
}

// blockingSource waits for cancellation.
type blockingSource struct {
	kind ContextType
}

func (s *blockingSource) Type() ContextType { return s.kind }

func (s *blockingSource) Retrieve(ctx context.Context, q RetrievalQuery) ([]ContextItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
