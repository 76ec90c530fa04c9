package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type ConfigSchema struct {
	App struct {
		Name   string `yaml:"name"`
		// Locale - язык сообщений об ошибках (ar, en)
		Locale string `yaml:"locale"`
	} `yaml:"app"`
	Backend struct {
		Host           string   `yaml:"host"`
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"backend"`
	Store struct {
		// Driver: memory, sql, firestore
		Driver string `yaml:"driver"`
	} `yaml:"store"`
	Databases struct {
		// Dialect: postgres, sqlite
		Dialect  string     `yaml:"dialect"`
		SQLite   string     `yaml:"sqlite_path"`
		Master   DBConfig   `yaml:"master"`
		Replicas []DBConfig `yaml:"replicas"`
	} `yaml:"db"`
	Redis struct {
		Host     string        `yaml:"host"`
		Port     int           `yaml:"port"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	RabbitMQ struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
		Queue    string `yaml:"queue"`
	} `yaml:"rabbitmq"`
	Firebase struct {
		ProjectID          string `yaml:"project_id"`
		CredentialsFile    string `yaml:"credentials_file"`
		ServiceAccountJSON string `yaml:"service_account_json"`
		APIKey             string `yaml:"api_key"`
		StorageBucket      string `yaml:"storage_bucket"`
	} `yaml:"firebase"`
	Identity struct {
		// Provider: local, firebase
		Provider string `yaml:"provider"`
		Domain   string `yaml:"domain"`
	} `yaml:"identity"`
	Giphy struct {
		APIKey  string        `yaml:"api_key"`
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"giphy"`
	Uploads struct {
		// Driver: local, firebase
		Driver  string `yaml:"driver"`
		Dir     string `yaml:"dir"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"uploads"`
	Feed struct {
		Limit int `yaml:"limit"`
	} `yaml:"feed"`
	Stories struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"stories"`
	Profiles struct {
		DefaultAvatar string `yaml:"default_avatar"`
		// DefaultBio - шаблон, %s заменяется отображаемым именем
		DefaultBio    string `yaml:"default_bio"`
	} `yaml:"profiles"`
	Logs struct {
		Level string `yaml:"level"`
	} `yaml:"logs"`
}

var AppConfig *ConfigSchema

// LoadConfig читает .env (если есть), yaml-файл и переменные окружения
func LoadConfig(filePath string) error {
	_ = godotenv.Load()

	conf := &ConfigSchema{}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, conf); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	conf.ApplyEnv()
	conf.ApplyDefaults()
	AppConfig = conf
	return nil
}

// ApplyEnv переопределяет секреты и адреса из окружения
func (c *ConfigSchema) ApplyEnv() {
	setString(&c.Firebase.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&c.Firebase.ServiceAccountJSON, "FIREBASE_SERVICE_ACCOUNT_JSON")
	setString(&c.Firebase.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.Firebase.APIKey, "FIREBASE_API_KEY")
	setString(&c.Firebase.StorageBucket, "FIREBASE_STORAGE_BUCKET")
	setString(&c.Giphy.APIKey, "GIPHY_API_KEY")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Identity.Provider, "IDENTITY_PROVIDER")
	setString(&c.Databases.Master.Password, "DB_PASSWORD")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		c.Redis.Host = host
		if p, err := strconv.Atoi(port); err == nil {
			c.Redis.Port = p
		}
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		c.Backend.Port = port
	}
}

func (c *ConfigSchema) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "darkchat"
	}
	if c.App.Locale == "" {
		c.App.Locale = "ar"
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8080
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Databases.Dialect == "" {
		c.Databases.Dialect = "sqlite"
	}
	if c.Databases.SQLite == "" {
		c.Databases.SQLite = "darkchat.db"
	}
	if c.Databases.Master.Port == 0 {
		c.Databases.Master.Port = 5432
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "darkchat_events"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "darkchat_gateway"
	}
	if c.Identity.Provider == "" {
		c.Identity.Provider = "local"
	}
	if c.Identity.Domain == "" {
		c.Identity.Domain = "darkchat.app"
	}
	if c.Giphy.BaseURL == "" {
		c.Giphy.BaseURL = "https://api.giphy.com/v1/gifs"
	}
	if c.Giphy.Timeout == 0 {
		c.Giphy.Timeout = 10 * time.Second
	}
	if c.Uploads.Driver == "" {
		c.Uploads.Driver = "local"
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.BaseURL == "" {
		c.Uploads.BaseURL = "/uploads"
	}
	if c.Feed.Limit == 0 {
		c.Feed.Limit = 50
	}
	if c.Stories.Window == 0 {
		c.Stories.Window = 24 * time.Hour
	}
	if c.Profiles.DefaultAvatar == "" {
		c.Profiles.DefaultAvatar = "https://firebasestorage.googleapis.com/v0/b/darklight-chat.appspot.com/o/profile-pictures%2Fdefault_avatar.png?alt=media"
	}
	if c.Profiles.DefaultBio == "" {
		c.Profiles.DefaultBio = "مرحباً! أنا %s في Dark*Chat"
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
}

// RedisEnabled - задан ли адрес Redis
func (c *ConfigSchema) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
