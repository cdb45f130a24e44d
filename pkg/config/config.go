package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/inventory-audit/pkg/utils"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Env      string  `yaml:"env" env:"ENV" env-default:"local"`
	Logger   Logger  `yaml:"logger"`
	HTTP     HTTP    `yaml:"http"`
	GRPC     GRPC    `yaml:"grpc"`
	Metrics  Metrics `yaml:"metrics"`
	Storage  Storage `yaml:"storage"`
	Postgres PG      `yaml:"postgres"`
	Redis    Redis   `yaml:"redis"`
	Lock     Lock    `yaml:"lock"`
	Kafka    Kafka   `yaml:"kafka"`
	Outbox   Outbox  `yaml:"outbox"`
	Import   Import  `yaml:"import"`
	Tracing  Tracing `yaml:"tracing"`
	Limiter  Limiter `yaml:"limiter"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"HTTP_PORT" env-default:":5000"`
	Timeout      time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"4s"`
	BodyLimit    int           `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"10485760"`
	AllowOrigins string        `yaml:"allow_origins" env:"HTTP_ALLOW_ORIGINS" env-default:"*"`
}

type GRPC struct {
	Port string `yaml:"port" env:"GRPC_PORT" env-default:":50052"`
}

type Metrics struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:":9092"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
}

type PG struct {
	URL         string `yaml:"url" env:"DB_URL"`
	MaxConns    int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
	MinConns    int32  `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`
	Migrations  string `yaml:"migrations" env:"DB_MIGRATIONS" env-default:"file://migrations"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Lock struct {
	Driver        string        `yaml:"driver" env:"LOCK_DRIVER" env-default:"local"`
	TTL           time.Duration `yaml:"ttl" env:"LOCK_TTL" env-default:"10s"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"LOCK_RETRY_INTERVAL" env-default:"25ms"`
}

type Kafka struct {
	Enabled          bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers          []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	EventsTopic      string   `yaml:"events_topic" env:"KAFKA_EVENTS_TOPIC" env-default:"product_events"`
	AdjustmentsTopic string   `yaml:"adjustments_topic" env:"KAFKA_ADJUSTMENTS_TOPIC" env-default:"stock_adjustments"`
	GroupID          string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"inventory-audit-group"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env:"OUTBOX_INTERVAL" env-default:"500ms"`
}

type Import struct {
	Actor   string        `yaml:"actor" env:"IMPORT_ACTOR" env-default:"import"`
	Timeout time.Duration `yaml:"timeout" env:"IMPORT_TIMEOUT" env-default:"60s"`
}

type Tracing struct {
	Enabled  bool   `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
	Endpoint string `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
}

type Limiter struct {
	Max        int           `yaml:"max" env:"LIMITER_MAX" env-default:"100"`
	Expiration time.Duration `yaml:"expiration" env:"LIMITER_EXPIRATION" env-default:"1s"`
}

// Load reads the yaml file at path and applies env overrides on top.
// A missing file is not an error: env and defaults are used instead.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("error reading env config: %w", err)
		}
	} else {
		return nil, fmt.Errorf("error checking config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	return cfg
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres storage requires postgres.url (DB_URL)")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case LockLocal, LockRedis:
	default:
		return fmt.Errorf("unknown lock driver %q", c.Lock.Driver)
	}

	if c.Kafka.Enabled && c.Storage.Driver != StoragePostgres {
		return errors.New("kafka requires postgres storage for the outbox")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled without brokers")
	}

	return nil
}
