package models

import (
	"time"

	"darkchat/store"
)

const (
	ChatsCollection    = "chats"
	MessagesCollection = "messages"
)

// LastMessage - проекция последнего сообщения в документе чата
type LastMessage struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatChannel - чат двух пользователей, chats/{a_b}
type ChatChannel struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastMessage  *LastMessage `json:"lastMessage"`
}

func ChatRef(id string) store.DocRef {
	return store.Collection(ChatsCollection).Doc(id)
}

func MessagesRef(chatID string) store.CollectionRef {
	return store.Collection(ChatsCollection, chatID, MessagesCollection)
}

func ChatChannelFromDoc(doc store.Document) ChatChannel {
	d := doc.Data
	ch := ChatChannel{
		ID:           doc.ID,
		Participants: store.Strings(d, "participants"),
		CreatedAt:    store.Time(d, "createdAt"),
	}
	if lm := store.Map(d, "lastMessage"); lm != nil {
		ch.LastMessage = &LastMessage{
			Text:      store.String(lm, "text"),
			SenderID:  store.String(lm, "senderId"),
			CreatedAt: store.Time(lm, "createdAt"),
		}
	}
	return ch
}

// Other возвращает второго участника; false, если selfID не участник
func (c ChatChannel) Other(selfID string) (string, bool) {
	if len(c.Participants) != 2 {
		return "", false
	}
	switch selfID {
	case c.Participants[0]:
		return c.Participants[1], c.Participants[1] != selfID
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return "", false
}

// ActivityAt - время для сортировки списка чатов
func (c ChatChannel) ActivityAt() time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// Message - сообщение чата, chats/{a_b}/messages/{id}
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsRead    bool      `json:"isRead"`
}

func MessageFromDoc(chatID string, doc store.Document) Message {
	d := doc.Data
	return Message{
		ID:        doc.ID,
		ChatID:    chatID,
		SenderID:  store.String(d, "senderId"),
		Content:   store.String(d, "content"),
		CreatedAt: store.Time(d, "createdAt"),
		IsRead:    store.Bool(d, "isRead"),
	}
}

// ConversationView - чат с профилем собеседника и числом непрочитанных.
// Вычисляется на клиенте, не хранится.
type ConversationView struct {
	ChatChannel
	OtherUser   UserProfile `json:"otherUser"`
	UnreadCount int         `json:"unreadCount"`
}
