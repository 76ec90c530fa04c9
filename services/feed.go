package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"darkchat/events"
	"darkchat/models"
	"darkchat/store"
)

const DefaultFeedLimit = 50

type FeedService struct {
	base
	limit int
}

func NewFeedService(s store.Store, limit int, opts ...Option) *FeedService {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return &FeedService{base: newBase(s, opts), limit: limit}
}

func (f *FeedService) postsQuery() store.Query {
	return store.Collection(models.PostsCollection).
		OrderBy("createdAt", store.Desc).
		Limit(f.limit)
}

// SubscribePosts - живая лента: последние посты, новые сверху
func (f *FeedService) SubscribePosts(fn func([]models.Post, error)) store.Unsubscribe {
	return f.store.Subscribe(f.postsQuery(), func(docs []store.Document, err error) {
		if err != nil {
			fn(nil, f.fail(OpLoadPosts, err))
			return
		}
		posts := make([]models.Post, 0, len(docs))
		for _, doc := range docs {
			posts = append(posts, models.PostFromDoc(doc))
		}
		fn(posts, nil)
	})
}

// ListPosts - разовое чтение ленты
func (f *FeedService) ListPosts(ctx context.Context) ([]models.Post, error) {
	docs, err := f.store.Query(ctx, f.postsQuery())
	if err != nil {
		return nil, f.fail(OpLoadPosts, err)
	}
	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, models.PostFromDoc(doc))
	}
	return posts, nil
}

// CreatePost публикует пост от имени автора и увеличивает его postsCount
func (f *FeedService) CreatePost(ctx context.Context, author models.UserProfile, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", f.fail(OpCreatePost, ErrEmptyContent)
	}
	ref := store.Collection(models.PostsCollection).NewDoc()
	err := f.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Create(ref, models.NewPostData(author.Author(), content)); err != nil {
			return err
		}
		return tx.Update(models.UserRef(author.ID), map[string]any{"postsCount": store.Increment(1)})
	})
	if err != nil {
		return "", f.fail(OpCreatePost, err)
	}
	f.invalidateProfile(ctx, author.ID)
	f.publish(ctx, events.Event{Type: events.PostCreated, ActorID: author.ID, PostID: ref.ID, Content: content})
	return ref.ID, nil
}

// ToggleLike добавляет или убирает userID из likedBy в транзакции;
// likeCount всегда равен размеру likedBy
func (f *FeedService) ToggleLike(ctx context.Context, postID, userID string) (models.Post, error) {
	if userID == "" {
		return models.Post{}, f.fail(OpUpdatePost, ErrInvalidCredentials)
	}
	ref := models.PostRef(postID)
	var result models.Post
	err := f.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		post := models.PostFromDoc(doc)
		likedBy := toggle(post.LikedBy, userID)
		post.LikedBy = likedBy
		post.LikeCount = int64(len(likedBy))
		result = post
		return tx.Update(ref, map[string]any{
			"likedBy":   stringsToValue(likedBy),
			"likeCount": post.LikeCount,
		})
	})
	if err != nil {
		return models.Post{}, f.fail(OpUpdatePost, err)
	}
	return result, nil
}

func toggle(set []string, id string) []string {
	out := make([]string, 0, len(set)+1)
	found := false
	for _, v := range set {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func stringsToValue(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// AddComment пишет комментарий, затем атомарно увеличивает replyCount поста
func (f *FeedService) AddComment(ctx context.Context, postID string, author models.UserProfile, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", f.fail(OpAddComment, ErrEmptyContent)
	}
	postRef := models.PostRef(postID)
	post, err := f.store.Get(ctx, postRef)
	if err != nil {
		return "", f.fail(OpAddComment, fmt.Errorf("failed to get post %s: %w", postID, err))
	}

	id, err := f.store.Add(ctx, store.Collection(models.CommentsCollection), models.NewCommentData(postID, author.Author(), content))
	if err != nil {
		return "", f.fail(OpAddComment, err)
	}
	if err := f.store.Update(ctx, postRef, map[string]any{"replyCount": store.Increment(1)}); err != nil {
		return id, f.fail(OpAddComment, fmt.Errorf("comment %s saved, reply count not updated: %w", id, err))
	}

	if owner := store.String(post.Data, "authorId"); owner != "" && owner != author.ID {
		f.publish(ctx, events.Event{Type: events.CommentAdded, UserID: owner, ActorID: author.ID, PostID: postID, Content: content})
	}
	return id, nil
}

func (f *FeedService) commentsQuery(postID string) store.Query {
	return store.Collection(models.CommentsCollection).
		Where("postId", store.Equal, postID).
		OrderBy("createdAt", store.Asc)
}

// ListComments - комментарии поста по возрастанию времени
func (f *FeedService) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	docs, err := f.store.Query(ctx, f.commentsQuery(postID))
	if err != nil {
		return nil, f.fail(OpLoadComments, err)
	}
	return commentsFromDocs(docs), nil
}

func (f *FeedService) SubscribeComments(postID string, fn func([]models.Comment, error)) store.Unsubscribe {
	return f.store.Subscribe(f.commentsQuery(postID), func(docs []store.Document, err error) {
		if err != nil {
			fn(nil, f.fail(OpLoadComments, err))
			return
		}
		fn(commentsFromDocs(docs), nil)
	})
}

func commentsFromDocs(docs []store.Document) []models.Comment {
	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		comments = append(comments, models.CommentFromDoc(doc))
	}
	return comments
}

// GetPost читает один пост
func (f *FeedService) GetPost(ctx context.Context, postID string) (models.Post, error) {
	doc, err := f.store.Get(ctx, models.PostRef(postID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			f.logger.Debug("post not found", zap.String("post_id", postID))
		}
		return models.Post{}, f.fail(OpLoadPosts, err)
	}
	return models.PostFromDoc(doc), nil
}

// LikedBy оставляет посты, которые лайкнул userID
func LikedBy(posts []models.Post, userID string) []models.Post {
	out := make([]models.Post, 0)
	for _, p := range posts {
		if p.HasLiked(userID) {
			out = append(out, p)
		}
	}
	return out
}
