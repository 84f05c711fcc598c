package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/pg-schema-mcp-server/internal/domain"
	"github.com/FreePeak/pg-schema-mcp-server/internal/domain/shared"
)

func TestInMemoryToolRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryToolRepository()

	tools, err := repo.ListTools(ctx)
	require.NoError(t, err)
	assert.Empty(t, tools)

	require.NoError(t, repo.AddTool(ctx, shared.Tool{Name: "alpha"}))
	require.NoError(t, repo.AddTool(ctx, shared.Tool{Name: "beta"}))

	tool, err := repo.GetTool(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", tool.Name)

	_, err = repo.GetTool(ctx, "missing")
	var notFound *domain.ToolNotFoundError
	assert.ErrorAs(t, err, &notFound)

	// re-adding replaces in place
	require.NoError(t, repo.AddTool(ctx, shared.Tool{Name: "alpha", Description: "updated"}))
	tool, err = repo.GetTool(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "updated", tool.Description)

	tools, err = repo.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestInMemoryToolRepositoryReplaceAll(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryToolRepository()
	require.NoError(t, repo.AddTool(ctx, shared.Tool{Name: "old"}))

	require.NoError(t, repo.ReplaceAll(ctx, []shared.Tool{{Name: "new"}}))

	_, err := repo.GetTool(ctx, "old")
	assert.Error(t, err)
	tool, err := repo.GetTool(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", tool.Name)

	// the returned snapshot is a copy, mutating it cannot corrupt the catalog
	tools, err := repo.ListTools(ctx)
	require.NoError(t, err)
	tools[0].Name = "mutated"
	tool, err = repo.GetTool(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", tool.Name)
}

func TestInMemoryToolRepositoryConcurrentRefresh(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryToolRepository()
	require.NoError(t, repo.ReplaceAll(ctx, []shared.Tool{{Name: "a"}, {Name: "b"}}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = repo.ReplaceAll(ctx, []shared.Tool{{Name: "a"}, {Name: "b"}})
		}
	}()

	// readers always observe a complete two-tool snapshot
	for i := 0; i < 200; i++ {
		tools, err := repo.ListTools(ctx)
		require.NoError(t, err)
		assert.Len(t, tools, 2)
	}
	<-done
}

func TestInMemorySessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySessionRepository()
	session := domain.NewClientSession("agent")

	require.NoError(t, repo.AddSession(ctx, session))
	assert.ErrorIs(t, repo.AddSession(ctx, session), ErrSessionExists)

	got, err := repo.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, repo.DeleteSession(ctx, session.ID))
	_, err = repo.GetSession(ctx, session.ID)
	var notFound *domain.SessionNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorAs(t, repo.DeleteSession(ctx, session.ID), &notFound)
}
