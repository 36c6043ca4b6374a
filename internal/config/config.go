package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Http Http

	Cors CORS `validate:"required"`

	API API `validate:"required"`

	Retry Retry

	Storage Storage `validate:"required"`

	Kafka Kafka `validate:"required"`

	Auth Auth
}

// Http — адрес локального моста.
type Http struct {
	Host string `validate:"required,hostname|ip"`
	Port string `validate:"required,gt=0,lte=65535"`
}

// API — удалённый сервис заказов.
type API struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gte=0"`
}

// Retry — расписание повторов загрузки списка.
type Retry struct {
	MaxAttempts  int           `validate:"gte=1"`
	InitialDelay time.Duration `validate:"gte=0"`
}

type Storage struct {
	Path string `validate:"required"`
}

type Kafka struct {
	GroupID string   `validate:"required"`
	Brokers []string `validate:"required,min=1,dive,hostname_port"`
	Topic   string   `validate:"required"`

	ReaderMaxWait time.Duration `validate:"gte=0"`
}

// Auth — учётные данные для входа безголового агента. Пустые, если
// сессию поднимают из сохранённого токена.
type Auth struct {
	Email    string `validate:"omitempty,email"`
	Password string
}

type CORS struct {
	AllowedOrigins []string `validate:"required,min=1,dive,url"`
}

func New() Config {
	return Config{
		Env: env("ENV", "development"),

		Http: Http{
			Host: env("HOST", "localhost"),
			Port: env("PORT", "8080"),
		},

		Cors: CORS{
			AllowedOrigins: strings.Split(env("ALLOWED_CORS_ORIGINS", "http://localhost:3000"), ","),
		},

		API: API{
			BaseURL: env("API_BASE_URL", "https://api.fastship.example.com"),
			Timeout: envDuration("API_TIMEOUT", 15*time.Second),
		},

		Retry: Retry{
			MaxAttempts:  envInt("LIST_RETRY_ATTEMPTS", 3),
			InitialDelay: envDuration("LIST_RETRY_DELAY", 500*time.Millisecond),
		},

		Storage: Storage{
			Path: env("STORAGE_PATH", "shipper-agent.db"),
		},

		Kafka: Kafka{
			GroupID: env("KAFKA_GROUP_ID", "shipper-agent"),
			Topic:   env("KAFKA_TOPIC", "shipper-notifications"),
			Brokers: strings.Split(env("KAFKA_BROKERS", "localhost:9092"), ","),

			ReaderMaxWait: envDuration("KAFKA_READER_MAX_WAIT", 10*time.Millisecond),
		},

		Auth: Auth{
			Email:    env("SHIPPER_EMAIL", ""),
			Password: env("SHIPPER_PASSWORD", ""),
		},
	}
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
