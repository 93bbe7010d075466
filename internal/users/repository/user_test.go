package repository

import (
	"context"
	"testing"

	"skedit/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserRepository_FindByID(t *testing.T) {
	repo := NewMemoryUserRepository(&model.User{ID: "alice", Name: "Alice", Role: "user"})

	u, err := repo.FindByID(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Alice", u.Name)

	u.Name = "changed"
	again, err := repo.FindByID(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name)

	missing, err := repo.FindByID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryUserRepository_HonoursCancelledContext(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FindByID(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}
