package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/events"
	"darkchat/giphy"
	"darkchat/services"
	"darkchat/store"
)

func TestRespondErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	texts := services.NewTexts("en")
	h := New(Deps{Texts: texts})

	tests := []struct {
		err    error
		status int
	}{
		{&services.AuthError{Op: services.OpRegister, Message: "taken", Err: services.ErrDuplicateUsername}, http.StatusConflict},
		{&services.AuthError{Op: services.OpSignIn, Message: "bad", Err: services.ErrInvalidCredentials}, http.StatusUnauthorized},
		{&services.WriteError{Op: services.OpLoadProfile, Message: "missing", Err: services.ErrProfileNotFound}, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrNotFound), http.StatusNotFound},
		{&services.WriteError{Op: services.OpLoadMessages, Message: "denied", Err: services.ErrNotParticipant}, http.StatusForbidden},
		{&services.WriteError{Op: services.OpSendMessage, Message: "empty", Err: services.ErrEmptyContent}, http.StatusBadRequest},
		{&services.WriteError{Op: services.OpCreateStory, Message: "kind", Err: services.ErrInvalidStoryKind}, http.StatusBadRequest},
		{giphy.ErrNoAPIKey, http.StatusNotImplemented},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		h.respondError(c, tt.err)

		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, services.UserMessage(tt.err, texts), body["error"])
	}
}

func TestNewDefaultsCapabilities(t *testing.T) {
	h := New(Deps{Texts: services.NewTexts("en")})

	ctx := context.Background()
	err := h.Follower.Follow(ctx, "a", "b")
	assert.ErrorIs(t, err, services.ErrNotImplemented)
	assert.ErrorIs(t, h.Sharer.SharePost(ctx, "a", "p", []string{"b"}, ""), services.ErrNotImplemented)
	assert.NotNil(t, h.Logger)
	assert.Equal(t, 0, h.Conns.Connected())
}

func TestHandleEventWithoutConnections(t *testing.T) {
	h := New(Deps{Texts: services.NewTexts("en")})
	assert.NotPanics(t, func() {
		h.HandleEvent(events.Event{Type: events.PostCreated, ActorID: "a", Content: strings.Repeat("x", 500)})
		h.HandleEvent(events.Event{Type: events.MessageSent, UserID: "b", ActorID: "a", Content: "hi"})
	})
}
