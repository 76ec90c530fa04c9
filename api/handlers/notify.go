package handlers

import (
	"darkchat/events"
)

const maxNotifyLength = 100

type Notify struct {
	NotifyType string `json:"notify_type"`
	Message    string `json:"message"`
	ActorID    string `json:"actor_id,omitempty"`
	ChatID     string `json:"chat_id,omitempty"`
	PostID     string `json:"post_id,omitempty"`
}

// HandleEvent пересылает событие активности в уведомительные соединения:
// адресное - получателю, остальные - всем, кроме автора
func (h *Handlers) HandleEvent(event events.Event) {
	message := []rune(event.Content)
	if len(message) > maxNotifyLength {
		message = append(message[:maxNotifyLength], []rune("...")...)
	}
	notifyType := string(event.Type)
	if notifyType == "" {
		notifyType = "info"
	}
	frame := Frame{Event: "notify", Data: Notify{
		NotifyType: notifyType,
		Message:    string(message),
		ActorID:    event.ActorID,
		ChatID:     event.ChatID,
		PostID:     event.PostID,
	}}
	if event.UserID != "" {
		h.Conns.Send(event.UserID, frame)
		return
	}
	h.Conns.broadcastExcept(event.ActorID, frame)
}
