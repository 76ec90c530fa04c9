package services

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrNotImplemented     = errors.New("not implemented")
	ErrEmptyContent       = errors.New("content is empty")
	ErrNotParticipant     = errors.New("user is not a chat participant")
	ErrInvalidChannel     = errors.New("invalid chat participants")
	ErrStoryNotFound      = errors.New("story not found")
	ErrInvalidStoryKind   = errors.New("story kind must be text or image")
)

// Op - операция, по которой выбирается локализованное сообщение
type Op string

const (
	OpRegister      Op = "register"
	OpSignIn        Op = "sign_in"
	OpSignInGuest   Op = "sign_in_guest"
	OpLoadProfile   Op = "load_profile"
	OpUpdateProfile Op = "update_profile"
	OpUploadAvatar  Op = "upload_avatar"
	OpCreatePost    Op = "create_post"
	OpLoadPosts     Op = "load_posts"
	OpUpdatePost    Op = "update_post"
	OpAddComment    Op = "add_comment"
	OpLoadComments  Op = "load_comments"
	OpOpenChat      Op = "open_chat"
	OpSendMessage   Op = "send_message"
	OpLoadMessages  Op = "load_messages"
	OpLoadChats     Op = "load_chats"
	OpMarkRead      Op = "mark_read"
	OpCreateStory   Op = "create_story"
	OpLoadStories   Op = "load_stories"
	OpViewStory     Op = "view_story"
	OpSharePost     Op = "share_post"
	OpUnavailable   Op = "unavailable"
)

// AuthError - ошибка входа или регистрации, сессия не меняется
type AuthError struct {
	Op      Op
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// WriteError - сбой операции с данными. Повторов нет.
type WriteError struct {
	Op      Op
	Message string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// UserMessage возвращает локализованный текст ошибки для показа пользователю
func UserMessage(err error, texts Texts) string {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return texts.Message(OpUnavailable)
}
