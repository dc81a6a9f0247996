package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the full runtime configuration for the image-relay service.
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Fetch     FetchConfig
	Resolver  ResolverConfig
	Firestore FirestoreConfig
	Kafka     KafkaConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Name        string `env:"APP_NAME" envDefault:"imagerelay"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	Version     string `env:"APP_VERSION" envDefault:"0.1.0"`
	LogLevel    string `env:"APP_LOG_LEVEL" envDefault:"info"`
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
}

// AuthConfig holds the shared secret for the upload endpoint. An empty key
// fails closed: uploads are rejected as server-misconfigured.
type AuthConfig struct {
	APIKey string `env:"API_KEY"`
}

type StorageConfig struct {
	Provider  string        `env:"STORAGE_PROVIDER" envDefault:"minio"`
	Endpoint  string        `env:"STORAGE_ENDPOINT" envDefault:"localhost:9000"`
	Region    string        `env:"STORAGE_REGION" envDefault:"us-east-1"`
	Bucket    string        `env:"STORAGE_BUCKET" envDefault:"imagerelay-images"`
	AccessKey string        `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string        `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	UseSSL    bool          `env:"STORAGE_USE_SSL" envDefault:"false"`
	Timeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"30s"`
}

type FetchConfig struct {
	Timeout      time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes int64         `env:"FETCH_MAX_BODY_BYTES" envDefault:"33554432"`
}

type ResolverConfig struct {
	Endpoint string        `env:"RESOLVER_ENDPOINT" envDefault:"http://localhost:9100"`
	Timeout  time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"15s"`
}

type FirestoreConfig struct {
	ProjectID       string        `env:"FIRESTORE_PROJECT_ID"`
	Collection      string        `env:"FIRESTORE_COLLECTION" envDefault:"ingestion_records"`
	CredentialsFile string        `env:"FIRESTORE_CREDENTIALS_FILE"`
	Timeout         time.Duration `env:"RECORD_TIMEOUT" envDefault:"10s"`
}

type KafkaConfig struct {
	Brokers          []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	IngestedTopic    string        `env:"KAFKA_INGESTED_TOPIC" envDefault:"imagerelay.ingested"`
	Retries          int           `env:"KAFKA_RETRIES" envDefault:"3"`
	CompressionCodec string        `env:"KAFKA_COMPRESSION_CODEC" envDefault:"snappy"`
	BatchSize        int           `env:"KAFKA_BATCH_SIZE" envDefault:"100"`
	BatchTimeout     time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"1s"`
	PublishTimeout   time.Duration `env:"KAFKA_PUBLISH_TIMEOUT" envDefault:"5s"`
}

type TracingConfig struct {
	Endpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	Insecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio  float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
	ResourceAttr string  `env:"OTEL_RESOURCE_ATTRIBUTES" envDefault:"service.namespace=imagerelay"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
