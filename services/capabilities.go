package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"darkchat/models"
)

// Follower - подписки на пользователей
type Follower interface {
	Follow(ctx context.Context, userID, targetID string) error
	Unfollow(ctx context.Context, userID, targetID string) error
}

type Blocker interface {
	Block(ctx context.Context, userID, targetID string) error
}

// Sharer отправляет пост выбранным пользователям
type Sharer interface {
	SharePost(ctx context.Context, fromID, postID string, to []string, note string) error
}

type StoryReplier interface {
	ReplyToStory(ctx context.Context, fromID, ownerID, itemID, content string) error
}

// Unimplemented - функции, которые еще не подключены к хранилищу.
// Каждый метод возвращает ErrNotImplemented.
type Unimplemented struct {
	Texts Texts
}

func (u Unimplemented) err() error {
	return &WriteError{Op: OpUnavailable, Message: u.Texts.Message(OpUnavailable), Err: ErrNotImplemented}
}

func (u Unimplemented) Follow(context.Context, string, string) error {
	return u.err()
}

func (u Unimplemented) Unfollow(context.Context, string, string) error {
	return u.err()
}

func (u Unimplemented) Block(context.Context, string, string) error {
	return u.err()
}

func (u Unimplemented) SharePost(context.Context, string, string, []string, string) error {
	return u.err()
}

func (u Unimplemented) ReplyToStory(context.Context, string, string, string, string) error {
	return u.err()
}

var (
	_ Follower     = Unimplemented{}
	_ Blocker      = Unimplemented{}
	_ Sharer       = Unimplemented{}
	_ StoryReplier = Unimplemented{}
	_ Sharer       = (*MessageSharer)(nil)
)

// MessageSharer делится постом через личные сообщения: [POST] id и подпись
type MessageSharer struct {
	messages *MessageService
}

func NewMessageSharer(messages *MessageService) *MessageSharer {
	return &MessageSharer{messages: messages}
}

// SharePost отправляет ссылку каждому получателю; сбои по отдельным
// получателям собираются в одну ошибку
func (s *MessageSharer) SharePost(ctx context.Context, fromID, postID string, to []string, note string) error {
	postID = strings.TrimSpace(postID)
	if postID == "" || len(to) == 0 {
		return s.messages.fail(OpSharePost, ErrEmptyContent)
	}
	content := models.PostShareContent(postID, strings.TrimSpace(note))
	var errs []error
	for _, userID := range to {
		channelID, err := s.messages.OpenChannel(ctx, fromID, userID)
		if err == nil {
			_, err = s.messages.Send(ctx, channelID, fromID, content)
		}
		if err != nil {
			s.messages.logger.Warn("failed to share post", zap.String("post_id", postID), zap.String("to", userID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", userID, err))
		}
	}
	if len(errs) > 0 {
		return &WriteError{
			Op:      OpSharePost,
			Message: s.messages.texts.Message(OpSharePost),
			Err:     fmt.Errorf("failed for %d of %d recipients: %w", len(errs), len(to), errors.Join(errs...)),
		}
	}
	return nil
}
