//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Ayash-Bera/ctxinject/backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Project{},
		&models.ProjectMember{},
		&models.KnowledgeEntry{},
		&models.ProjectAsset{},
		&models.Conversation{},
		&models.Message{},
		&models.ContextFeedback{},
		&models.SystemHealth{},
	))
	return db
}

func TestProjectRepository_HasAccess(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositoryManager(db)

	owner, member, stranger := uuid.NewString(), uuid.NewString(), uuid.NewString()
	project := &models.Project{OwnerID: owner, Name: "ctx"}
	require.NoError(t, db.Create(project).Error)
	require.NoError(t, db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: member, Role: "editor"}).Error)

	for user, want := range map[string]bool{owner: true, member: true, stranger: false} {
		ok, err := repos.Project.HasAccess(ctx, project.ID, user)
		require.NoError(t, err)
		assert.Equal(t, want, ok, "user %s", user)
	}

	ok, err := repos.Project.HasAccess(ctx, uuid.NewString(), owner)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProjectRepository_GetByIDLoadsMembers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositoryManager(db)

	project := &models.Project{OwnerID: uuid.NewString(), Name: "members"}
	require.NoError(t, db.Create(project).Error)
	member := uuid.NewString()
	require.NoError(t, db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: member}).Error)

	loaded, err := repos.Project.GetByID(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Members, 1)
	assert.Equal(t, member, loaded.Members[0].UserID)

	_, err = repos.Project.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSystemHealthRepository_LatestPerService(t *testing.T) {
	db := openTestDB(t)
	repos := NewRepositoryManager(db)
	require.NoError(t, db.Exec("DELETE FROM system_health").Error)

	require.NoError(t, repos.SystemHealth.UpdateServiceHealth("redis", "unhealthy", 5, "connection refused"))
	require.NoError(t, db.Exec("UPDATE system_health SET checked_at = NOW() - INTERVAL '1 minute'").Error)
	require.NoError(t, repos.SystemHealth.UpdateServiceHealth("redis", "healthy", 1, ""))
	require.NoError(t, repos.SystemHealth.UpdateServiceHealth("postgresql", "healthy", 2, ""))

	rows, err := repos.SystemHealth.GetAllServicesHealth()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "postgresql", rows[0].ServiceName)
	assert.Equal(t, "redis", rows[1].ServiceName)
	assert.Equal(t, "healthy", rows[1].Status)
}

func TestConversationRepository_ListRecentActive(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositoryManager(db)

	projectID := uuid.NewString()
	base := time.Now().Add(-time.Hour)
	for i, archived := range []bool{false, true, false, false} {
		conv := &models.Conversation{
			ProjectID:     projectID,
			Title:         []string{"oldest", "archived", "middle", "newest"}[i],
			Archived:      archived,
			LastMessageAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(conv).Error)
		require.NoError(t, db.Create(&models.Message{ConversationID: conv.ID, Role: "user", Content: "first"}).Error)
		require.NoError(t, db.Create(&models.Message{ConversationID: conv.ID, Role: "assistant", Content: "second"}).Error)
	}

	conversations, err := repos.Conversation.ListRecentActive(ctx, projectID, 2)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "newest", conversations[0].Title)
	assert.Equal(t, "middle", conversations[1].Title)
	require.Len(t, conversations[0].Messages, 2)
	assert.Equal(t, "first", conversations[0].Messages[0].Content)
}

func TestKnowledgeAndFeedbackRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repos := NewRepositoryManager(db)

	projectID := uuid.NewString()
	require.NoError(t, repos.Knowledge.Create(ctx, &models.KnowledgeEntry{
		ProjectID: projectID,
		Title:     "Auth Guide",
		Content:   "JWT login flow",
		Tags:      models.StringArray{"auth", "jwt"},
	}))

	entries, err := repos.Knowledge.ListByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "general", entries[0].Category)
	assert.Equal(t, models.StringArray{"auth", "jwt"}, entries[0].Tags)

	feedback := &models.ContextFeedback{
		UserID:        uuid.NewString(),
		ContextItemID: entries[0].ID,
		Feedback:      models.FeedbackHelpful,
		UserMessage:   "How do I log in?",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, repos.ContextFeedback.Create(ctx, feedback))
	assert.NotEmpty(t, feedback.ID)

	invalid := &models.ContextFeedback{UserID: uuid.NewString(), ContextItemID: "x", Feedback: "meh"}
	assert.Error(t, repos.ContextFeedback.Create(ctx, invalid))
}
