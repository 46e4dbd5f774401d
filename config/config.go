package config

import (
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"bramble-api"`
	Port               int    `env:"PORT" env-default:"3008"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (double record keys)
	DatabaseHost                string        `env:"DB_HOST" env-default:"" validate:"required"`
	DatabasePort                int           `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"bramble"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// Record graph (neo4j/bolt)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost" validate:"required"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Redis (permission cache)
	RedisHost     string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	VIPCacheTTL   time.Duration `env:"VIP_CACHE_TTL" env-default:"5m"`

	// Collaborator services
	VIPBaseURL      string `env:"VIP_BASE_URL" env-default:"" validate:"required,url"`
	HoldingsBaseURL string `env:"HOLDINGS_BASE_URL" env-default:"" validate:"required,url"`
	RulesBaseURL    string `env:"RULES_BASE_URL" env-default:"" validate:"required,url"`

	// Kafka
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic     string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"record-events"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"record-updates"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"bramble-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Queue providers by library group
	ProviderDBC     string `env:"PROVIDER_DBC" env-default:"dataio-update"`
	ProviderFBS     string `env:"PROVIDER_FBS" env-default:"opencataloging-update"`
	ProviderPH      string `env:"PROVIDER_PH" env-default:"ph-update"`
	DefaultPriority int    `env:"DEFAULT_PRIORITY" env-default:"500"`

	// Tracing
	TracingEndpoint string `env:"TRACING_ENDPOINT" env-default:""`
	TracingProtocol string `env:"TRACING_PROTOCOL" env-default:"grpc"`
	TracingInsecure bool   `env:"TRACING_INSECURE" env-default:"true"`
}

// Load binds the environment onto the config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
