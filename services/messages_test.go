package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/events"
	"darkchat/models"
	"darkchat/store"
)

func TestChannelIDIsOrderIndependent(t *testing.T) {
	pairs := [][2]string{{"a", "b"}, {"zed", "amy"}, {"u1", "u10"}, {"same", "same"}}
	for _, p := range pairs {
		assert.Equal(t, ChannelID(p[0], p[1]), ChannelID(p[1], p[0]))
	}
	assert.Equal(t, "amy_zed", ChannelID("zed", "amy"))
}

func TestOpenChannelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			self, other := "alice", "bob"
			if i%2 == 1 {
				self, other = other, self
			}
			id, err := messages.OpenChannel(ctx, self, other)
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, "alice_bob", id)
	}

	chats, err := s.Query(ctx, store.Collection(models.ChatsCollection).Query())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	ch := models.ChatChannelFromDoc(chats[0])
	assert.Equal(t, []string{"alice", "bob"}, ch.Participants)
	assert.Nil(t, ch.LastMessage)

	_, err = messages.OpenChannel(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = messages.OpenChannel(ctx, "", "bob")
	assert.ErrorIs(t, err, ErrInvalidChannel)
	_, err = messages.OpenChannel(ctx, "a_b", "c")
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestSendUpdatesStreamAndLastMessage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	recorder := events.NewRecorder(8)
	messages := NewMessageService(s, WithEvents(recorder))

	chatID, err := messages.OpenChannel(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = messages.Send(ctx, chatID, "u1", "hi")
	require.NoError(t, err)

	got := make(chan []models.Message, 4)
	stop := messages.SubscribeMessages(chatID, func(msgs []models.Message, err error) {
		assert.NoError(t, err)
		got <- msgs
	})
	defer stop()

	msgs := receive(t, got)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "u1", msgs[0].SenderID)
	assert.False(t, msgs[0].IsRead)
	assert.Equal(t, chatID, msgs[0].ChatID)

	ch, err := messages.GetChannel(ctx, chatID, "u2")
	require.NoError(t, err)
	require.NotNil(t, ch.LastMessage)
	assert.Equal(t, "hi", ch.LastMessage.Text)
	assert.Equal(t, "u1", ch.LastMessage.SenderID)
	assert.Equal(t, msgs[0].CreatedAt, ch.LastMessage.CreatedAt)

	event := <-recorder.Events()
	assert.Equal(t, events.MessageSent, event.Type)
	assert.Equal(t, "u2", event.UserID)
	assert.Equal(t, chatID, event.ChatID)
}

func TestSendRejectsOutsiders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)
	chatID, err := messages.OpenChannel(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = messages.Send(ctx, chatID, "u3", "intrude")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = messages.Send(ctx, chatID, "u1", " ")
	assert.ErrorIs(t, err, ErrEmptyContent)
	_, err = messages.Send(ctx, "u1_u9", "u1", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	msgs, err := messages.ListMessages(ctx, chatID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendGIF(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)
	chatID, err := messages.OpenChannel(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = messages.SendGIF(ctx, chatID, "u2", "https://media.giphy.com/x.gif")
	require.NoError(t, err)
	msgs, err := messages.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	parsed := models.ParseContent(msgs[0].Content)
	assert.Equal(t, models.ContentGIF, parsed.Kind)
	assert.Equal(t, "https://media.giphy.com/x.gif", parsed.Value)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)
	chatID, err := messages.OpenChannel(ctx, "u1", "u2")
	require.NoError(t, err)
	for _, text := range []string{"one", "two"} {
		_, err := messages.Send(ctx, chatID, "u1", text)
		require.NoError(t, err)
	}
	_, err = messages.Send(ctx, chatID, "u2", "reply")
	require.NoError(t, err)

	n, err := messages.MarkRead(ctx, chatID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := messages.ListMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].IsRead)
	assert.True(t, msgs[1].IsRead)
	assert.False(t, msgs[2].IsRead)

	chat, err := s.Get(ctx, models.ChatRef(chatID))
	require.NoError(t, err)
	readAt := store.Map(chat.Data, "readAt")
	assert.False(t, store.Time(readAt, "u2").IsZero())
	assert.NotContains(t, readAt, "u1")

	n, err = messages.MarkRead(ctx, chatID, "u2")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = messages.MarkRead(ctx, chatID, "u3")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestUnsubscribeStopsMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, newTestClock())
	messages := NewMessageService(s)
	chatID, err := messages.OpenChannel(ctx, "u1", "u2")
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	first := make(chan struct{}, 1)
	stop := messages.SubscribeMessages(chatID, func([]models.Message, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		select {
		case first <- struct{}{}:
		default:
		}
	})
	receive(t, first)
	stop()

	_, err = messages.Send(ctx, chatID, "u1", "after")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Zero(t, s.ActiveSubscriptions())
}
