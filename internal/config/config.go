package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	Port              string
	StoreDriver       string
	MongoURI          string
	DBName            string
	JWTSecret         string
	AccessTokenTTL    time.Duration
	StaffPasswordHash string

	SessionDuration time.Duration
	SessionTick     time.Duration
	SessionGrace    time.Duration
	FeedRetryDelay  time.Duration

	FloorPlanFile string
	TableCount    int

	EventsDriver     string
	KafkaBrokers     []string
	KafkaTopic       string
	RabbitMQURL      string
	RabbitMQExchange string

	CORSOrigins []string
}

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"

	EventsNone     = "none"
	EventsKafka    = "kafka"
	EventsRabbitMQ = "rabbitmq"
)

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() Config {
	return Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		StoreDriver:       strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMongo)),
		MongoURI:          getEnvOrDefault("MONGO_URI", ""),
		DBName:            getEnvOrDefault("DB_NAME", "tableside"),
		JWTSecret:         getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:    getDurationEnv("ACCESS_TOKEN_TTL", 720, time.Minute),
		StaffPasswordHash: getEnvOrDefault("STAFF_PASSWORD_HASH", ""),

		SessionDuration: getDurationEnv("SESSION_DURATION", 10, time.Minute),
		SessionTick:     getDurationEnv("SESSION_TICK_MS", 1000, time.Millisecond),
		SessionGrace:    getDurationEnv("SESSION_GRACE", 5, time.Second),
		FeedRetryDelay:  getDurationEnv("FEED_RETRY_DELAY", 3, time.Second),

		FloorPlanFile: getEnvOrDefault("FLOOR_PLAN_FILE", ""),
		TableCount:    getIntEnv("TABLE_COUNT", 12),

		EventsDriver:     strings.ToLower(getEnvOrDefault("EVENTS_DRIVER", EventsNone)),
		KafkaBrokers:     getListEnv("KAFKA_BROKERS", nil),
		KafkaTopic:       getEnvOrDefault("KAFKA_TOPIC", "orders.lifecycle"),
		RabbitMQURL:      getEnvOrDefault("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "order_events"),

		CORSOrigins: getListEnv("CORS_ORIGINS", []string{"*"}),
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be mongo or memory"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.EventsDriver {
	case EventsNone:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka events driver"))
		}
	case EventsRabbitMQ:
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for the rabbitmq events driver"))
		}
	default:
		errs = append(errs, errors.New("EVENTS_DRIVER must be none, kafka or rabbitmq"))
	}
	return errors.Join(errs...)
}
