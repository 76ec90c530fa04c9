package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "user.u2", Event{Type: MessageSent, UserID: "u2"}.RoutingKey())
	assert.Equal(t, "broadcast.post_created", Event{Type: PostCreated}.RoutingKey())
}

func TestEventJSON(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(Event{Type: MessageSent, UserID: "u2", ActorID: "u1", ChatID: "u1_u2", CreatedAt: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message_sent","user_id":"u2","actor_id":"u1","chat_id":"u1_u2","created_at":"2026-01-01T00:00:00Z"}`, string(raw))
}

func TestRecorderDropsWhenFull(t *testing.T) {
	r := NewRecorder(1)
	require.NoError(t, r.Publish(context.Background(), Event{Type: PostCreated}))
	require.NoError(t, r.Publish(context.Background(), Event{Type: CommentAdded}))
	ev := <-r.Events()
	assert.Equal(t, PostCreated, ev.Type)
	assert.Len(t, r.Events(), 0)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
}
