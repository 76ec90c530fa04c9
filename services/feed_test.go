package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/cache"
	"darkchat/events"
	"darkchat/models"
	"darkchat/store"
)

func TestCreatePostDenormalizesAuthor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	profiles := newProfiles(s)
	author := seedProfile(t, profiles, "u1", "alice")
	feed := NewFeedService(s, 0)

	id, err := feed.CreatePost(ctx, author, "  first post ")
	require.NoError(t, err)

	post, err := feed.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first post", post.Content)
	assert.Equal(t, "u1", post.AuthorID)
	assert.Equal(t, "alice", post.AuthorUsername)
	assert.Equal(t, author.Avatar, post.AuthorAvatar)
	assert.Empty(t, post.LikedBy)
	assert.Zero(t, post.LikeCount)
	assert.False(t, post.CreatedAt.IsZero())

	updated, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.PostsCount)

	_, err = feed.CreatePost(ctx, author, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, OpCreatePost, we.Op)
}

func TestCreatePostInvalidatesCachedProfile(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newTestStore(t, newTestClock())
	profileCache := cache.NewProfileCache(rdb, time.Minute)
	profiles := NewProfileService(s, profileCache, nil, ProfileDefaults{BioTemplate: "hi %s"})
	author := seedProfile(t, profiles, "u1", "alice")
	feed := NewFeedService(s, 0, WithProfileCache(profileCache))

	warm, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, warm.PostsCount)
	require.True(t, mr.Exists(cache.ProfileKeyPrefix+"u1"))

	_, err = feed.CreatePost(ctx, author, "hello")
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.ProfileKeyPrefix+"u1"))

	fresh, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.PostsCount)
}

func TestSubscribePostsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	author := seedProfile(t, newProfiles(s), "u1", "alice")
	feed := NewFeedService(s, 3)

	for i := 0; i < 5; i++ {
		_, err := feed.CreatePost(ctx, author, fmt.Sprintf("post %d", i))
		require.NoError(t, err)
	}

	got := make(chan []models.Post, 8)
	stop := feed.SubscribePosts(func(posts []models.Post, err error) {
		assert.NoError(t, err)
		got <- posts
	})
	defer stop()

	posts := receive(t, got)
	require.Len(t, posts, 3)
	assert.Equal(t, "post 4", posts[0].Content)
	assert.Equal(t, "post 2", posts[2].Content)

	_, err := feed.CreatePost(ctx, author, "post 5")
	require.NoError(t, err)
	posts = receive(t, got)
	require.Len(t, posts, 3)
	assert.Equal(t, "post 5", posts[0].Content)
}

func TestToggleLikeTwiceRestoresPost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	author := seedProfile(t, newProfiles(s), "u1", "alice")
	feed := NewFeedService(s, 0)

	id, err := feed.CreatePost(ctx, author, "hello")
	require.NoError(t, err)
	_, err = feed.ToggleLike(ctx, id, "u9")
	require.NoError(t, err)
	before, err := feed.GetPost(ctx, id)
	require.NoError(t, err)

	liked, err := feed.ToggleLike(ctx, id, "u2")
	require.NoError(t, err)
	assert.True(t, liked.HasLiked("u2"))
	assert.Equal(t, int64(2), liked.LikeCount)

	_, err = feed.ToggleLike(ctx, id, "u2")
	require.NoError(t, err)
	after, err := feed.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.LikedBy, after.LikedBy)
	assert.Equal(t, before.LikeCount, after.LikeCount)

	_, err = feed.ToggleLike(ctx, "missing", "u2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentLikesAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	author := seedProfile(t, newProfiles(s), "u1", "alice")
	feed := NewFeedService(s, 0)
	id, err := feed.CreatePost(ctx, author, "popular")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := feed.ToggleLike(ctx, id, fmt.Sprintf("user%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	post, err := feed.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Len(t, post.LikedBy, 20)
	assert.Equal(t, int64(20), post.LikeCount)
}

func TestAddCommentIncrementsReplyCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	profiles := newProfiles(s)
	author := seedProfile(t, profiles, "u1", "alice")
	commenter := seedProfile(t, profiles, "u2", "bob")
	recorder := events.NewRecorder(64)
	feed := NewFeedService(s, 0, WithEvents(recorder))

	postID, err := feed.CreatePost(ctx, author, "discuss")
	require.NoError(t, err)
	<-recorder.Events()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := feed.AddComment(ctx, postID, commenter, gofakeit.Sentence(5))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	post, err := feed.GetPost(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), post.ReplyCount)

	comments, err := feed.ListComments(ctx, postID)
	require.NoError(t, err)
	require.Len(t, comments, 10)
	for i := 1; i < len(comments); i++ {
		assert.True(t, comments[i].CreatedAt.After(comments[i-1].CreatedAt))
	}
	assert.Equal(t, "bob", comments[0].AuthorUsername)

	event := <-recorder.Events()
	assert.Equal(t, events.CommentAdded, event.Type)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "u2", event.ActorID)

	_, err = feed.AddComment(ctx, "missing", commenter, "hi")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubscribeComments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	author := seedProfile(t, newProfiles(s), "u1", "alice")
	feed := NewFeedService(s, 0)
	postID, err := feed.CreatePost(ctx, author, "post")
	require.NoError(t, err)

	got := make(chan []models.Comment, 8)
	stop := feed.SubscribeComments(postID, func(comments []models.Comment, err error) {
		assert.NoError(t, err)
		got <- comments
	})
	defer stop()
	assert.Empty(t, receive(t, got))

	_, err = feed.AddComment(ctx, postID, author, "reply")
	require.NoError(t, err)
	comments := receive(t, got)
	require.Len(t, comments, 1)
	assert.Equal(t, "reply", comments[0].Content)
}

func TestLikedBy(t *testing.T) {
	posts := []models.Post{
		{ID: "a", LikedBy: []string{"u1"}},
		{ID: "b", LikedBy: []string{}},
		{ID: "c", LikedBy: []string{"u2", "u1"}},
	}
	liked := LikedBy(posts, "u1")
	require.Len(t, liked, 2)
	assert.Equal(t, "a", liked[0].ID)
	assert.Equal(t, "c", liked[1].ID)
	assert.Empty(t, LikedBy(posts, "u3"))
}
