package models

import (
	"time"

	"darkchat/store"
)

const (
	PostsCollection    = "posts"
	CommentsCollection = "comments"
)

// Post - пост ленты, posts/{id}
type Post struct {
	ID                string    `json:"id"`
	AuthorID          string    `json:"authorId"`
	AuthorUsername    string    `json:"authorUsername"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	AuthorAvatar      string    `json:"authorAvatar"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"createdAt"`
	LikeCount         int64     `json:"likeCount"`
	LikedBy           []string  `json:"likedBy"`
	ReplyCount        int64     `json:"replyCount"`
}

func PostRef(id string) store.DocRef {
	return store.Collection(PostsCollection).Doc(id)
}

func PostFromDoc(doc store.Document) Post {
	d := doc.Data
	likedBy := store.Strings(d, "likedBy")
	if likedBy == nil {
		likedBy = []string{}
	}
	return Post{
		ID:                doc.ID,
		AuthorID:          store.String(d, "authorId"),
		AuthorUsername:    store.String(d, "authorUsername"),
		AuthorDisplayName: store.String(d, "authorDisplayName"),
		AuthorAvatar:      store.String(d, "authorAvatar"),
		Content:           store.String(d, "content"),
		CreatedAt:         store.Time(d, "createdAt"),
		LikeCount:         store.Int(d, "likeCount"),
		LikedBy:           likedBy,
		ReplyCount:        store.Int(d, "replyCount"),
	}
}

// NewPostData - документ нового поста с денормализованным автором
func NewPostData(author Author, content string) map[string]any {
	return map[string]any{
		"authorId":          author.ID,
		"authorUsername":    author.Username,
		"authorDisplayName": author.DisplayName,
		"authorAvatar":      author.Avatar,
		"content":           content,
		"createdAt":         store.ServerTimestamp,
		"likeCount":         int64(0),
		"likedBy":           []any{},
		"replyCount":        int64(0),
	}
}

// HasLiked - есть ли userID в likedBy
func (p Post) HasLiked(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment - комментарий к посту, comments/{id}
type Comment struct {
	ID                string    `json:"id"`
	PostID            string    `json:"postId"`
	AuthorID          string    `json:"authorId"`
	AuthorUsername    string    `json:"authorUsername"`
	AuthorDisplayName string    `json:"authorDisplayName"`
	AuthorAvatar      string    `json:"authorAvatar"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"createdAt"`
}

func CommentFromDoc(doc store.Document) Comment {
	d := doc.Data
	return Comment{
		ID:                doc.ID,
		PostID:            store.String(d, "postId"),
		AuthorID:          store.String(d, "authorId"),
		AuthorUsername:    store.String(d, "authorUsername"),
		AuthorDisplayName: store.String(d, "authorDisplayName"),
		AuthorAvatar:      store.String(d, "authorAvatar"),
		Content:           store.String(d, "content"),
		CreatedAt:         store.Time(d, "createdAt"),
	}
}

func NewCommentData(postID string, author Author, content string) map[string]any {
	return map[string]any{
		"postId":            postID,
		"authorId":          author.ID,
		"authorUsername":    author.Username,
		"authorDisplayName": author.DisplayName,
		"authorAvatar":      author.Avatar,
		"content":           content,
		"createdAt":         store.ServerTimestamp,
	}
}
