package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"darkchat/events"
	"darkchat/models"
	"darkchat/store"
)

type MessageService struct {
	base
}

func NewMessageService(s store.Store, opts ...Option) *MessageService {
	return &MessageService{base: newBase(s, opts)}
}

// ChannelID - ID чата пары пользователей, не зависит от порядка
func ChannelID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

func validUserID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/_")
}

// OpenChannel создает чат пары, если его нет, и возвращает его ID.
// Одновременные вызовы обоих участников сходятся на одном документе.
func (m *MessageService) OpenChannel(ctx context.Context, selfID, otherID string) (string, error) {
	if !validUserID(selfID) || !validUserID(otherID) || selfID == otherID {
		return "", m.fail(OpOpenChat, ErrInvalidChannel)
	}
	participants := []string{selfID, otherID}
	sort.Strings(participants)
	id := strings.Join(participants, "_")

	err := m.store.Create(ctx, models.ChatRef(id), map[string]any{
		"participants": stringsToValue(participants),
		"createdAt":    store.ServerTimestamp,
		"lastMessage":  nil,
	})
	if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return "", m.fail(OpOpenChat, err)
	}
	return id, nil
}

func messagesQuery(channelID string) store.Query {
	return models.MessagesRef(channelID).OrderBy("createdAt", store.Asc)
}

// SubscribeMessages - живой поток сообщений чата по возрастанию времени
func (m *MessageService) SubscribeMessages(channelID string, fn func([]models.Message, error)) store.Unsubscribe {
	return m.store.Subscribe(messagesQuery(channelID), func(docs []store.Document, err error) {
		if err != nil {
			fn(nil, m.fail(OpLoadMessages, err))
			return
		}
		fn(messagesFromDocs(channelID, docs), nil)
	})
}

func (m *MessageService) ListMessages(ctx context.Context, channelID string) ([]models.Message, error) {
	docs, err := m.store.Query(ctx, messagesQuery(channelID))
	if err != nil {
		return nil, m.fail(OpLoadMessages, err)
	}
	return messagesFromDocs(channelID, docs), nil
}

func messagesFromDocs(channelID string, docs []store.Document) []models.Message {
	out := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.MessageFromDoc(channelID, doc))
	}
	return out
}

// GetChannel читает чат и проверяет, что userID - участник
func (m *MessageService) GetChannel(ctx context.Context, channelID, userID string) (models.ChatChannel, error) {
	doc, err := m.store.Get(ctx, models.ChatRef(channelID))
	if err != nil {
		return models.ChatChannel{}, m.fail(OpLoadMessages, err)
	}
	ch := models.ChatChannelFromDoc(doc)
	if _, ok := ch.Other(userID); !ok {
		return models.ChatChannel{}, m.fail(OpLoadMessages, ErrNotParticipant)
	}
	return ch, nil
}

// Send добавляет сообщение и обновляет lastMessage чата одной транзакцией
func (m *MessageService) Send(ctx context.Context, channelID, senderID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", m.fail(OpSendMessage, ErrEmptyContent)
	}
	chatRef := models.ChatRef(channelID)
	msgRef := models.MessagesRef(channelID).NewDoc()
	var recipient string
	err := m.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(chatRef)
		if err != nil {
			return err
		}
		other, ok := models.ChatChannelFromDoc(doc).Other(senderID)
		if !ok {
			return ErrNotParticipant
		}
		recipient = other
		if err := tx.Create(msgRef, map[string]any{
			"senderId":  senderID,
			"content":   content,
			"createdAt": store.ServerTimestamp,
			"isRead":    false,
		}); err != nil {
			return err
		}
		return tx.Update(chatRef, map[string]any{
			"lastMessage": map[string]any{
				"text":      content,
				"senderId":  senderID,
				"createdAt": store.ServerTimestamp,
			},
		})
	})
	if err != nil {
		return "", m.fail(OpSendMessage, err)
	}
	m.publish(ctx, events.Event{Type: events.MessageSent, UserID: recipient, ActorID: senderID, ChatID: channelID, Content: content})
	return msgRef.ID, nil
}

// SendGIF отправляет гифку как текст с маркером [GIF]
func (m *MessageService) SendGIF(ctx context.Context, channelID, senderID, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", m.fail(OpSendMessage, ErrEmptyContent)
	}
	return m.Send(ctx, channelID, senderID, models.GIFContent(url))
}

// MarkRead отмечает прочитанными все сообщения собеседника в чате
// и проставляет readAt.<readerID> в документе чата.
// Возвращает число отмеченных сообщений.
func (m *MessageService) MarkRead(ctx context.Context, channelID, readerID string) (int, error) {
	chatRef := models.ChatRef(channelID)
	var marked int
	err := m.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		marked = 0
		doc, err := tx.Get(chatRef)
		if err != nil {
			return err
		}
		if _, ok := models.ChatChannelFromDoc(doc).Other(readerID); !ok {
			return ErrNotParticipant
		}
		unread, err := tx.Query(models.MessagesRef(channelID).
			Where("senderId", store.NotEqual, readerID).
			Where("isRead", store.Equal, false))
		if err != nil {
			return err
		}
		for _, msg := range unread {
			if err := tx.Update(msg.Ref(), map[string]any{"isRead": true}); err != nil {
				return err
			}
		}
		marked = len(unread)
		if marked == 0 {
			return nil
		}
		// отметка в документе чата, чтобы подписка на chats пересчитала счетчик
		readAt := make(map[string]any)
		for k, v := range store.Map(doc.Data, "readAt") {
			readAt[k] = v
		}
		readAt[readerID] = store.ServerTimestamp
		return tx.Update(chatRef, map[string]any{"readAt": readAt})
	})
	if err != nil {
		return 0, m.fail(OpMarkRead, err)
	}
	return marked, nil
}
