package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/id"
)

// Runs against a disposable database named by WA_TEST_DATABASE_URL.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("WA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("WA_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func TestTemplateRepository(t *testing.T) {
	pool := testPool(t)
	repo := NewTemplateRepository(pool)
	ctx := context.Background()

	created, err := repo.CreateTemplate(ctx, &domain.Template{Title: "Follow up", Content: "Checking in"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	list, err := repo.ListTemplates(ctx)
	require.NoError(t, err)
	var found bool
	for _, tpl := range list {
		if tpl.ID == created.ID {
			found = true
			assert.Equal(t, "Checking in", tpl.Content)
		}
	}
	assert.True(t, found)

	require.NoError(t, repo.DeleteTemplate(ctx, created.ID))
	assert.ErrorIs(t, repo.DeleteTemplate(ctx, created.ID), domain.ErrTemplateNotFound)
}

func TestMessageLogRepository(t *testing.T) {
	pool := testPool(t)
	repo := NewMessageLogRepository(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	res := &domain.DispatchResult{
		BatchID: id.NewBatchID(),
		Request: domain.DispatchRequest{Body: "hello"},
		Entries: []domain.LedgerEntry{
			{ID: id.NewULID("msg"), RecipientID: "1", Phone: "919876543210", Outcome: domain.OutcomeSent, FinishedAt: now},
			{ID: id.NewULID("msg"), RecipientID: "2", Phone: "919123456789", Outcome: domain.OutcomeFailed, Reason: "not on whatsapp", FinishedAt: now.Add(time.Millisecond)},
		},
	}
	require.NoError(t, repo.SaveLedger(ctx, "user-1", res))
	// Saving the same ledger twice is a no-op.
	require.NoError(t, repo.SaveLedger(ctx, "user-1", res))

	logs, err := repo.ListRecent(ctx, 200)
	require.NoError(t, err)

	byID := map[string]*domain.MessageLog{}
	for _, l := range logs {
		byID[l.ID] = l
	}
	failed := byID[res.Entries[1].ID]
	require.NotNil(t, failed)
	assert.Equal(t, res.BatchID, failed.BatchID)
	assert.Equal(t, domain.OutcomeFailed, failed.Status)
	assert.Equal(t, "not on whatsapp", failed.Reason)
	assert.Equal(t, "hello", failed.Content)

	assert.NoError(t, repo.SaveLedger(ctx, "user-1", &domain.DispatchResult{}))
}
