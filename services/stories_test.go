package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/models"
	"darkchat/store"
)

func TestPublishCreatesAndAppendsBundle(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(t, clock)
	stories := NewStoryService(s, 0, WithClock(clock.Now))

	first, err := stories.Publish(ctx, "u1", StoryInput{Content: "good morning"})
	require.NoError(t, err)
	assert.Equal(t, models.StoryText, first.Kind)
	assert.Equal(t, models.DefaultStoryBackground, first.BackgroundColor)
	assert.NotEmpty(t, first.ID)

	clock.Advance(time.Minute)
	second, err := stories.Publish(ctx, "u1", StoryInput{Kind: models.StoryImage, Content: "https://example.com/p.png"})
	require.NoError(t, err)
	assert.Empty(t, second.BackgroundColor)

	doc, err := s.Get(ctx, models.StoryRef("u1"))
	require.NoError(t, err)
	bundle := models.StoryBundleFromDoc(doc)
	assert.Equal(t, "u1", bundle.UserID)
	require.Len(t, bundle.Items, 2)
	assert.Equal(t, first.ID, bundle.Items[0].ID)
	assert.Equal(t, second.ID, bundle.Items[1].ID)
	assert.False(t, bundle.UpdatedAt.Before(second.CreatedAt))

	_, err = stories.Publish(ctx, "u1", StoryInput{Content: " "})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestPublishRejectsUnknownKind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	stories := NewStoryService(s, 0)

	_, err := stories.Publish(ctx, "u1", StoryInput{Kind: "video", Content: "clip.mp4"})
	assert.ErrorIs(t, err, ErrInvalidStoryKind)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, OpCreateStory, we.Op)

	_, err = s.Get(ctx, models.StoryRef("u1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFetchActiveFiltersExpiredItems(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(t, clock)
	stories := NewStoryService(s, 24*time.Hour, WithClock(clock.Now))

	// u1: старая история и свежая в одном документе
	old, err := stories.Publish(ctx, "u1", StoryInput{Content: "yesterday"})
	require.NoError(t, err)
	// u2: только старая история
	_, err = stories.Publish(ctx, "u2", StoryInput{Content: "long ago"})
	require.NoError(t, err)

	clock.Advance(20 * time.Hour)
	fresh, err := stories.Publish(ctx, "u1", StoryInput{Content: "today"})
	require.NoError(t, err)
	clock.Advance(5 * time.Hour)

	bundles, err := stories.FetchActive(ctx)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "u1", bundles[0].UserID)
	require.Len(t, bundles[0].Items, 1)
	assert.Equal(t, fresh.ID, bundles[0].Items[0].ID)

	cutoff := clock.Now().Add(-24 * time.Hour)
	for _, b := range bundles {
		for _, item := range b.Items {
			assert.True(t, item.CreatedAt.After(cutoff))
			assert.NotEqual(t, old.ID, item.ID)
		}
	}

	clock.Advance(20 * time.Hour)
	bundles, err = stories.FetchActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, bundles)
}

func TestFetchActiveNewestBundleFirst(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(t, clock)
	stories := NewStoryService(s, 0, WithClock(clock.Now))

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := stories.Publish(ctx, user, StoryInput{Content: user})
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}
	bundles, err := stories.FetchActive(ctx)
	require.NoError(t, err)
	require.Len(t, bundles, 3)
	assert.Equal(t, "u3", bundles[0].UserID)
	assert.Equal(t, "u1", bundles[2].UserID)
}

func TestMarkViewed(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(t, clock)
	stories := NewStoryService(s, 0, WithClock(clock.Now))

	item, err := stories.Publish(ctx, "u1", StoryInput{Content: "look"})
	require.NoError(t, err)

	require.NoError(t, stories.MarkViewed(ctx, "u1", item.ID, "u2"))
	require.NoError(t, stories.MarkViewed(ctx, "u1", item.ID, "u2"))
	require.NoError(t, stories.MarkViewed(ctx, "u1", item.ID, "u1"))

	bundles, err := stories.FetchActive(ctx)
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, []string{"u2"}, bundles[0].Items[0].ViewedBy)

	assert.ErrorIs(t, stories.MarkViewed(ctx, "u1", "missing", "u2"), ErrStoryNotFound)
}
