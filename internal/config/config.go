package config

import (
	"log"
	"os"
	"strconv"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// QuotaConfig is the tier → creation-ceiling table. -1 means unlimited.
type QuotaConfig struct {
	FreeCeiling int
	PlusCeiling int
	ProCeiling  int
}

type AppConfig struct {
	Port string

	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config
	Quota    QuotaConfig

	// UseMemoryStore swaps the postgres record store for the in-memory
	// fixture backend. The services are oblivious to which one is active.
	UseMemoryStore bool

	// SettleForwardOnly disables the unsettle path for deployments that
	// want strict forward-only settlement.
	SettleForwardOnly bool

	// UseS3Storage selects the S3 export backend over local disk.
	UseS3Storage      bool
	ExportDir         string
	FilesPublicPrefix string
	ExternalURL       string
	ExportPrefix      string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8020"),
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DBName:   getenv("PG_DB", "tripsplit"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "tripsplit_"),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		Quota: QuotaConfig{
			FreeCeiling: mustAtoi(getenv("QUOTA_FREE_CEILING", "5")),
			PlusCeiling: mustAtoi(getenv("QUOTA_PLUS_CEILING", "-1")),
			ProCeiling:  mustAtoi(getenv("QUOTA_PRO_CEILING", "-1")),
		},
		UseMemoryStore:    mustBool(getenv("USE_MEMORY_STORE", "false")),
		SettleForwardOnly: mustBool(getenv("SETTLE_FORWARD_ONLY", "false")),
		UseS3Storage:      mustBool(getenv("USE_S3_STORAGE", "false")),
		ExportDir:         getenv("EXPORT_DIR", "./exports"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
		ExportPrefix:      getenv("EXPORT_CACHE_PREFIX", "tripsplit_export"),
	}
}
