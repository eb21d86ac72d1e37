package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clocklayer/internal/broadcast/models"
	id "clocklayer/pkg/domain"
)

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	for i, title := range []string{"a", "b", "c"} {
		require.NoError(t, store.Append(ctx, models.Message{
			ID:        id.NewMessageID(),
			Title:     title,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Title)
	assert.Equal(t, "a", all[2].Title)

	top, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestReadMarker(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	at, err := store.LastRead(ctx, "uid_1")
	require.NoError(t, err)
	assert.Nil(t, at)

	now := time.Now()
	require.NoError(t, store.MarkRead(ctx, "uid_1", now))
	at, err = store.LastRead(ctx, "uid_1")
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, now.Equal(*at))

	require.NoError(t, store.MarkRead(ctx, "uid_1", now.Add(-time.Hour)), "older marker")
	at, err = store.LastRead(ctx, "uid_1")
	require.NoError(t, err)
	assert.True(t, now.Equal(*at), "marker never moves backwards")
}
