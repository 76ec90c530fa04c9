// Package events - уведомления об активности пользователей (новый пост,
// сообщение, комментарий) для шлюза. На данные в хранилище не влияют.
package events

import (
	"context"
	"time"
)

type Type string

const (
	PostCreated    Type = "post_created"
	CommentAdded   Type = "comment_added"
	MessageSent    Type = "message_sent"
	StoryPublished Type = "story_published"
)

// Event - событие для push-уведомления.
// UserID - получатель; пустой UserID означает рассылку всем.
type Event struct {
	Type      Type      `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	ChatID    string    `json:"chat_id,omitempty"`
	PostID    string    `json:"post_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoutingKey: user.{id} для адресных событий, broadcast.{type} для остальных
func (e Event) RoutingKey() string {
	if e.UserID != "" {
		return "user." + e.UserID
	}
	return "broadcast." + string(e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop - издатель-заглушка, когда брокер не настроен
type Nop struct{}

func (Nop) Publish(context.Context, Event) error {
	return nil
}

// Recorder копит события в памяти (локальный режим и тесты)
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

// Publish не блокируется: при заполненном буфере событие отбрасывается
func (r *Recorder) Publish(_ context.Context, event Event) error {
	select {
	case r.ch <- event:
	default:
	}
	return nil
}

func (r *Recorder) Events() <-chan Event {
	return r.ch
}
