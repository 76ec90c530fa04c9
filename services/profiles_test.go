package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkchat/cache"
	"darkchat/objectstore"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestProfileGetNotFound(t *testing.T) {
	profiles := newProfiles(newTestStore(t, newTestClock()))
	_, err := profiles.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestEnsureProfileDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	profiles := newProfiles(newTestStore(t, newTestClock()))
	seedProfile(t, profiles, "u1", "alice")

	again := profiles.NewProfile("u1", "mallory", "Mallory", true)
	created, err := profiles.EnsureProfile(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)

	profile, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.False(t, profile.IsGuest)
}

func TestProfileCacheAside(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := newTestStore(t, newTestClock())
	profileCache := cache.NewProfileCache(rdb, time.Minute)
	profiles := NewProfileService(s, profileCache, nil, ProfileDefaults{BioTemplate: "hi %s"})
	seedProfile(t, profiles, "u1", "alice")

	_, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.ProfileKeyPrefix+"u1"))

	bio := "new bio"
	updated, err := profiles.Update(ctx, "u1", ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "new bio", updated.Bio)

	cached, err := profileCache.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "new bio", cached.Bio)
}

func TestProfileUpdateUploadsAvatar(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	uploader, err := objectstore.NewLocal(dir, "/uploads")
	require.NoError(t, err)
	s := newTestStore(t, newTestClock())
	profiles := NewProfileService(s, nil, uploader, ProfileDefaults{})
	seedProfile(t, profiles, "u1", "alice")

	updated, err := profiles.Update(ctx, "u1", ProfileUpdate{
		Avatar: &AvatarUpload{Filename: "me", Data: pngHeader},
	})
	require.NoError(t, err)
	assert.Equal(t, "/uploads/profile-pictures/u1/me.png", updated.Avatar)
	_, err = os.Stat(filepath.Join(dir, "profile-pictures", "u1", "me.png"))
	assert.NoError(t, err)

	_, err = profiles.Update(ctx, "u1", ProfileUpdate{
		Avatar: &AvatarUpload{Filename: "notes.txt", Data: []byte("text")},
	})
	assert.ErrorIs(t, err, objectstore.ErrUnsupportedType)

	empty := " "
	_, err = profiles.Update(ctx, "u1", ProfileUpdate{DisplayName: &empty})
	assert.ErrorIs(t, err, ErrEmptyContent)

	name := "Al"
	_, err = profiles.Update(ctx, "u404", ProfileUpdate{DisplayName: &name})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUserMessageLocales(t *testing.T) {
	profiles := NewProfileService(newTestStore(t, newTestClock()), nil, nil, ProfileDefaults{}, WithTexts(NewTexts("en")))
	_, err := profiles.Get(context.Background(), "nobody")
	assert.Equal(t, "Failed to load profile", UserMessage(err, NewTexts("en")))

	ar := NewTexts("xx")
	assert.Equal(t, "ar", ar.Locale())
	assert.Equal(t, "هذه الميزة غير متاحة بعد", UserMessage(assert.AnError, ar))
	assert.Equal(t, "فشل في إرسال الرسالة", ar.Message(OpSendMessage))
}
