package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"darkchat/api/handlers"
	"darkchat/api/middleware"
	"darkchat/api/routes"
	"darkchat/cache"
	"darkchat/config"
	"darkchat/db"
	"darkchat/events"
	"darkchat/firebaseapp"
	"darkchat/giphy"
	"darkchat/identity"
	"darkchat/objectstore"
	"darkchat/services"
	"darkchat/store"
	"darkchat/store/firestore"
	"darkchat/store/memstore"
	"darkchat/store/sqlstore"
)

// App - собранный шлюз: хранилище, сервисы, обработчики и роутер
type App struct {
	Conf     *config.ConfigSchema
	Logger   *zap.Logger
	Store    store.Store
	Handlers *handlers.Handlers
	Router   *gin.Engine

	closers []func() error
}

func needsFirebase(conf *config.ConfigSchema) bool {
	return conf.Store.Driver == "firestore" ||
		conf.Identity.Provider == "firebase" ||
		conf.Uploads.Driver == "firebase"
}

// NewApp поднимает все зависимости по конфигу. Фоновые потребители событий
// живут до отмены ctx.
func NewApp(ctx context.Context, conf *config.ConfigSchema, logger *zap.Logger) (*App, error) {
	app := &App{Conf: conf, Logger: logger}
	if err := app.build(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	conf := a.Conf

	var fb *firebase.App
	if needsFirebase(conf) {
		var err error
		if fb, err = firebaseapp.New(ctx, conf); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if conf.RedisEnabled() {
		var err error
		if rdb, err = cache.NewRedisClient(ctx, conf); err != nil {
			return err
		}
		a.closers = append(a.closers, rdb.Close)
	}

	raw, err := a.openStore(ctx, fb, rdb)
	if err != nil {
		return err
	}
	a.Store = store.Instrument(raw)
	a.closers = append(a.closers, a.Store.Close)

	provider, err := a.openProvider(ctx, fb)
	if err != nil {
		return err
	}

	uploader, err := a.openUploader(ctx, fb)
	if err != nil {
		return err
	}

	publisher, consume, err := a.openEvents()
	if err != nil {
		return err
	}

	texts := services.NewTexts(conf.App.Locale)
	profileCache := cache.NewProfileCache(rdb, conf.Redis.CacheTTL)
	opts := []services.Option{
		services.WithLogger(a.Logger),
		services.WithTexts(texts),
		services.WithEvents(publisher),
		services.WithProfileCache(profileCache),
	}

	profiles := services.NewProfileService(
		a.Store,
		profileCache,
		uploader,
		services.ProfileDefaults{Avatar: conf.Profiles.DefaultAvatar, BioTemplate: conf.Profiles.DefaultBio},
		opts...,
	)
	messages := services.NewMessageService(a.Store, opts...)

	var gifs *giphy.Client
	if conf.Giphy.APIKey != "" {
		gifs = giphy.NewClient(conf.Giphy.APIKey, conf.Giphy.BaseURL, conf.Giphy.Timeout)
	}

	a.Handlers = handlers.New(handlers.Deps{
		Provider:       provider,
		Domain:         conf.Identity.Domain,
		Profiles:       profiles,
		Feed:           services.NewFeedService(a.Store, conf.Feed.Limit, opts...),
		Conversations:  services.NewConversationService(a.Store, profiles, opts...),
		Messages:       messages,
		Stories:        services.NewStoryService(a.Store, conf.Stories.Window, opts...),
		Sharer:         services.NewMessageSharer(messages),
		Giphy:          gifs,
		Texts:          texts,
		Logger:         a.Logger,
		ServiceOptions: opts,
	})

	if err := consume(ctx, a.Handlers.HandleEvent); err != nil {
		return err
	}

	a.Router = NewRouter(conf, a.Handlers)
	return nil
}

func (a *App) openStore(ctx context.Context, fb *firebase.App, rdb *redis.Client) (store.Store, error) {
	switch a.Conf.Store.Driver {
	case "memory":
		return memstore.New(), nil
	case "sql":
		if err := db.ConnectDB(); err != nil {
			return nil, fmt.Errorf("failed to connect to the database: %w", err)
		}
		opts := []sqlstore.Option{sqlstore.WithLogger(a.Logger)}
		if rdb != nil {
			opts = append(opts, sqlstore.WithRedis(rdb))
		}
		return sqlstore.New(db.ORM, opts...), nil
	case "firestore":
		return firestore.NewFromApp(ctx, fb, a.Logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", a.Conf.Store.Driver)
}

func (a *App) openProvider(ctx context.Context, fb *firebase.App) (identity.Provider, error) {
	switch a.Conf.Identity.Provider {
	case "local":
		return identity.NewLocalProvider(a.Store), nil
	case "firebase":
		authClient, err := fb.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to init firebase auth: %w", err)
		}
		return identity.NewFirebaseProvider(authClient, a.Conf.Firebase.APIKey), nil
	}
	return nil, fmt.Errorf("unknown identity provider %q", a.Conf.Identity.Provider)
}

func (a *App) openUploader(ctx context.Context, fb *firebase.App) (objectstore.Uploader, error) {
	switch a.Conf.Uploads.Driver {
	case "local":
		return objectstore.NewLocal(a.Conf.Uploads.Dir, a.Conf.Uploads.BaseURL)
	case "firebase":
		return objectstore.NewFirebase(ctx, fb, a.Conf.Firebase.StorageBucket)
	}
	return nil, fmt.Errorf("unknown uploads driver %q", a.Conf.Uploads.Driver)
}

type consumeFunc func(ctx context.Context, handler func(events.Event)) error

// openEvents - RabbitMQ, если задан URL, иначе очередь в памяти процесса
func (a *App) openEvents() (events.Publisher, consumeFunc, error) {
	conf := a.Conf
	if conf.RabbitMQ.URL != "" {
		mq, err := events.DialRabbitMQ(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange, a.Logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, mq.Close)
		return mq, func(ctx context.Context, handler func(events.Event)) error {
			return mq.Consume(ctx, conf.RabbitMQ.Queue, handler)
		}, nil
	}

	recorder := events.NewRecorder(1024)
	return recorder, func(ctx context.Context, handler func(events.Event)) error {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-recorder.Events():
					handler(event)
				}
			}
		}()
		return nil
	}, nil
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

func NewRouter(conf *config.ConfigSchema, h *handlers.Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	if len(conf.Backend.AllowedOrigins) > 0 {
		corsConf.AllowOrigins = conf.Backend.AllowedOrigins
	} else {
		corsConf.AllowAllOrigins = true
	}
	corsConf.AllowHeaders = append(corsConf.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConf))
	router.Use(middleware.PrometheusMiddleware(conf.App.Name))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if conf.Uploads.Driver == "local" {
		router.Static(conf.Uploads.BaseURL, conf.Uploads.Dir)
	}

	routes.PublicApi(router, h)
	routes.StreamApi(router, h)
	return router
}
