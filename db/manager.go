package db

import (
	"context"
	"fmt"

	"darkchat/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var ORM *gorm.DB

func dsnFromConfig(dbConf config.DBConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		dbConf.Host, dbConf.Port, dbConf.User, dbConf.Password, dbConf.DBName,
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		// ErrDuplicatedKey вместо ошибок драйвера
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

// ConnectDB открывает базу из config.AppConfig и накатывает миграции
func ConnectDB() error {
	if ORM != nil {
		return nil
	}
	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}
	conf := config.AppConfig

	var (
		db  *gorm.DB
		err error
	)
	switch conf.Databases.Dialect {
	case "postgres":
		db, err = OpenPostgres(conf.Databases.Master, conf.Databases.Replicas)
	case "sqlite":
		db, err = OpenSQLite(conf.Databases.SQLite)
	default:
		return fmt.Errorf("unknown database dialect %q", conf.Databases.Dialect)
	}
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	ORM = db
	return nil
}

// OpenPostgres подключается к мастеру и регистрирует реплики для чтения
func OpenPostgres(master config.DBConfig, replicas []config.DBConfig) (*gorm.DB, error) {
	if master.Host == "" {
		return nil, fmt.Errorf("master database configuration is missing")
	}
	db, err := gorm.Open(postgres.Open(dsnFromConfig(master)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	replicaDSNs := make([]gorm.Dialector, 0, len(replicas))
	for _, r := range replicas {
		replicaDSNs = append(replicaDSNs, postgres.Open(dsnFromConfig(r)))
	}
	if len(replicaDSNs) > 0 {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicaDSNs,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to register replicas: %w", err)
		}
	}
	return db, nil
}

// OpenSQLite открывает файл SQLite (":memory:" для тестов).
// Соединение одно: SQLite не любит конкурентных писателей.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// GetReadOnlyDB возвращает подключение для чтения (слейвы)
func GetReadOnlyDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).Clauses(dbresolver.Read)
}

// GetWriteDB возвращает подключение для записи (мастер)
func GetWriteDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).Clauses(dbresolver.Write)
}

// IsPostgres - нужен ли SELECT ... FOR UPDATE в транзакциях
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}
