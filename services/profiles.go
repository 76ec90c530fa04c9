package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"darkchat/cache"
	"darkchat/models"
	"darkchat/objectstore"
	"darkchat/store"
)

// ProfileDefaults - значения нового профиля
type ProfileDefaults struct {
	Avatar string
	// BioTemplate - %s заменяется отображаемым именем
	BioTemplate string
}

// ProfileUpdate - изменяемые поля профиля; nil - не менять. Username не меняется.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Avatar      *AvatarUpload
}

type AvatarUpload struct {
	Filename string
	Data     []byte
}

type ProfileService struct {
	base
	cache    *cache.ProfileCache
	uploader objectstore.Uploader
	defaults ProfileDefaults
}

// NewProfileService: cache и uploader могут быть nil
func NewProfileService(s store.Store, profileCache *cache.ProfileCache, uploader objectstore.Uploader, defaults ProfileDefaults, opts ...Option) *ProfileService {
	return &ProfileService{
		base:     newBase(s, opts),
		cache:    profileCache,
		uploader: uploader,
		defaults: defaults,
	}
}

// NewProfile собирает профиль с нулевыми счетчиками и значениями по умолчанию
func (p *ProfileService) NewProfile(uid, username, displayName string, guest bool) models.UserProfile {
	bio := ""
	if p.defaults.BioTemplate != "" {
		bio = fmt.Sprintf(p.defaults.BioTemplate, displayName)
	}
	return models.UserProfile{
		ID:          uid,
		Username:    strings.ToLower(username),
		DisplayName: displayName,
		Avatar:      p.defaults.Avatar,
		Bio:         bio,
		IsGuest:     guest,
	}
}

// Get читает профиль: сначала кеш, затем хранилище
func (p *ProfileService) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	if uid == "" {
		return models.UserProfile{}, p.fail(OpLoadProfile, ErrProfileNotFound)
	}
	cached, err := p.cache.Get(ctx, uid)
	if err != nil {
		p.logger.Warn("profile cache read failed", zap.String("uid", uid), zap.Error(err))
	}
	if cached != nil {
		return *cached, nil
	}

	doc, err := p.store.Get(ctx, models.UserRef(uid))
	if errors.Is(err, store.ErrNotFound) {
		return models.UserProfile{}, &WriteError{Op: OpLoadProfile, Message: p.texts.Message(OpLoadProfile), Err: ErrProfileNotFound}
	}
	if err != nil {
		return models.UserProfile{}, p.fail(OpLoadProfile, err)
	}
	profile := models.UserProfileFromDoc(doc)
	if err := p.cache.Set(ctx, profile); err != nil {
		p.logger.Warn("profile cache write failed", zap.String("uid", uid), zap.Error(err))
	}
	return profile, nil
}

// EnsureProfile создает профиль, только если его еще нет.
// Возвращает true, если документ был создан этим вызовом.
func (p *ProfileService) EnsureProfile(ctx context.Context, profile models.UserProfile) (bool, error) {
	ref := models.UserRef(profile.ID)
	var created bool
	err := p.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		created = false
		_, err := tx.Get(ref)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		created = true
		return tx.Create(ref, profile.ToMap())
	})
	if err != nil {
		return false, p.fail(OpUpdateProfile, fmt.Errorf("failed to create profile %s: %w", profile.ID, err))
	}
	return created, nil
}

// Update меняет отображаемое имя, био и аватар
func (p *ProfileService) Update(ctx context.Context, uid string, upd ProfileUpdate) (models.UserProfile, error) {
	updates := map[string]any{}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return models.UserProfile{}, p.fail(OpUpdateProfile, ErrEmptyContent)
		}
		updates["displayName"] = name
	}
	if upd.Bio != nil {
		updates["bio"] = *upd.Bio
	}
	if upd.Avatar != nil {
		url, err := p.uploadAvatar(ctx, uid, *upd.Avatar)
		if err != nil {
			return models.UserProfile{}, err
		}
		updates["avatar"] = url
	}

	if len(updates) > 0 {
		if err := p.store.Update(ctx, models.UserRef(uid), updates); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = ErrProfileNotFound
			}
			return models.UserProfile{}, p.fail(OpUpdateProfile, err)
		}
		if err := p.cache.Invalidate(ctx, uid); err != nil {
			p.logger.Warn("profile cache invalidation failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return p.Get(ctx, uid)
}

func (p *ProfileService) uploadAvatar(ctx context.Context, uid string, avatar AvatarUpload) (string, error) {
	if p.uploader == nil {
		return "", p.fail(OpUploadAvatar, ErrNotImplemented)
	}
	head := avatar.Data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType, ext, err := objectstore.DetectImage(head, avatar.Filename)
	if err != nil {
		return "", p.fail(OpUploadAvatar, err)
	}
	filename := objectstore.SanitizeName(avatar.Filename)
	if path.Ext(filename) == "" {
		filename += ext
	}
	url, err := p.uploader.Upload(ctx, objectstore.AvatarPath(uid, filename), bytes.NewReader(avatar.Data), contentType)
	if err != nil {
		return "", p.fail(OpUploadAvatar, err)
	}
	return url, nil
}
