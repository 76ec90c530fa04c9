package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/models"
)

func TestUnimplementedCapabilities(t *testing.T) {
	ctx := context.Background()
	u := Unimplemented{Texts: NewTexts("en")}

	var f Follower = u
	assert.ErrorIs(t, f.Follow(ctx, "a", "b"), ErrNotImplemented)
	assert.ErrorIs(t, f.Unfollow(ctx, "a", "b"), ErrNotImplemented)
	var b Blocker = u
	assert.ErrorIs(t, b.Block(ctx, "a", "b"), ErrNotImplemented)
	var r StoryReplier = u
	err := r.ReplyToStory(ctx, "a", "b", "s1", "nice")
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Equal(t, "This feature is not available yet", UserMessage(err, NewTexts("en")))
}

func TestMessageSharerSendsPostLink(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)
	var sharer Sharer = NewMessageSharer(messages)

	require.NoError(t, sharer.SharePost(ctx, "u1", "p42", []string{"u2", "u3"}, "look at this"))

	for _, other := range []string{"u2", "u3"} {
		msgs, err := messages.ListMessages(ctx, ChannelID("u1", other))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		parsed := models.ParseContent(msgs[0].Content)
		assert.Equal(t, models.ContentPost, parsed.Kind)
		assert.Equal(t, "p42", parsed.Value)
		assert.Equal(t, "look at this", parsed.Note)
	}

	err := sharer.SharePost(ctx, "u1", "p42", []string{"u1", "u2"}, "")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	msgs, err := messages.ListMessages(ctx, ChannelID("u1", "u2"))
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	assert.Error(t, sharer.SharePost(ctx, "u1", "", []string{"u2"}, ""))
}
