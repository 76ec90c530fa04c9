// Package firebaseapp поднимает приложение Firebase Admin SDK из конфига
package firebaseapp

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"darkchat/config"
)

// Options собирает параметры доступа: JSON сервисного аккаунта или файл.
// Без них SDK использует Application Default Credentials или эмулятор.
func Options(conf *config.ConfigSchema) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	switch {
	case conf.Firebase.ServiceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(conf.Firebase.ServiceAccountJSON)))
	case conf.Firebase.CredentialsFile != "":
		if _, err := os.Stat(conf.Firebase.CredentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %q not readable: %w", conf.Firebase.CredentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(conf.Firebase.CredentialsFile))
	}
	return opts, nil
}

func New(ctx context.Context, conf *config.ConfigSchema) (*firebase.App, error) {
	if conf.Firebase.ProjectID == "" {
		return nil, fmt.Errorf("firebase project_id is not set")
	}
	opts, err := Options(conf)
	if err != nil {
		return nil, err
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     conf.Firebase.ProjectID,
		StorageBucket: conf.Firebase.StorageBucket,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase: %w", err)
	}
	return app, nil
}
