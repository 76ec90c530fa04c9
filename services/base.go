// Package services - синхронизация ленты, чатов, историй и сессии
// поверх хранилища документов.
package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"darkchat/cache"
	"darkchat/events"
	"darkchat/store"
)

// base - общие зависимости сервисов
type base struct {
	store  store.Store
	logger *zap.Logger
	texts  Texts
	events events.Publisher
	now    func() time.Time

	profileCache *cache.ProfileCache
}

type Option func(*base)

func WithLogger(logger *zap.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithTexts(texts Texts) Option {
	return func(b *base) {
		b.texts = texts
	}
}

func WithEvents(publisher events.Publisher) Option {
	return func(b *base) {
		if publisher != nil {
			b.events = publisher
		}
	}
}

// WithClock подменяет часы клиента (окно историй, время элементов)
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

// WithProfileCache - кэш профилей, который сбрасывается после записей в users/{uid}
func WithProfileCache(c *cache.ProfileCache) Option {
	return func(b *base) {
		b.profileCache = c
	}
}

func newBase(s store.Store, opts []Option) base {
	b := base{
		store:  s,
		logger: zap.NewNop(),
		texts:  NewTexts(DefaultLocale),
		events: events.Nop{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// fail заворачивает ошибку в WriteError с локализованным сообщением
func (b *base) fail(op Op, err error) error {
	var we *WriteError
	if errors.As(err, &we) {
		return err
	}
	b.logger.Warn("operation failed", zap.String("op", string(op)), zap.Error(err))
	return &WriteError{Op: op, Message: b.texts.Message(op), Err: err}
}

// publish отправляет событие; ошибка брокера на результат операции не влияет
func (b *base) publish(ctx context.Context, event events.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.now().UTC()
	}
	if err := b.events.Publish(ctx, event); err != nil {
		b.logger.Warn("failed to publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// invalidateProfile сбрасывает закэшированный профиль; промах кэша не ошибка
func (b *base) invalidateProfile(ctx context.Context, uid string) {
	if err := b.profileCache.Invalidate(ctx, uid); err != nil {
		b.logger.Warn("profile cache invalidation failed", zap.String("uid", uid), zap.Error(err))
	}
}
