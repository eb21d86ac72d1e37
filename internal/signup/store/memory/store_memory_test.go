package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/platform/sentinel"
)

func TestSaveAndGet(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	store.now = func() time.Time { return now }

	sess := models.NewSession(id.NewSessionID(), "alice", now, time.Hour)
	sess.Draft.Name = "Ada"
	require.NoError(t, store.Save(context.Background(), sess))

	got, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Draft.Name)

	got.Draft.Name = "changed"
	again, err := store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Draft.Name)
}

func TestExpiredSessionsAreGone(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	store := NewInMemoryStore()
	store.now = func() time.Time { return now }

	sess := models.NewSession(id.NewSessionID(), "", now, time.Hour)
	require.NoError(t, store.Save(context.Background(), sess))

	store.now = func() time.Time { return now.Add(time.Hour) }
	_, err := store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
}

func TestGetUnknown(t *testing.T) {
	_, err := NewInMemoryStore().Get(context.Background(), id.NewSessionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
