package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Database settings are
// optional: with no DB_HOST the service runs on the in-memory stores,
// which is how tests and local experiments work.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host; empty selects the in-memory stores
	DBPort string // database port number
	DBName string // database name

	AMQPURL string // RabbitMQ URL; empty disables lifecycle events

	LockTTL   time.Duration // show lock expiry for crashed holders
	LockWait  time.Duration // bounded wait before ErrContention
	LockRetry time.Duration // polling interval between lock attempts

	CacheTTL      time.Duration // availability cache staleness bound
	PurgeInterval time.Duration // periodic purge interval; 0 disables
}

// Load reads configuration from the environment, consulting a .env
// file first when one exists.  APP_ENV and APP_PORT are required;
// everything else has a sensible default.
func Load() Config {
	// Missing .env is fine; the process environment wins either way.
	_ = godotenv.Load()

	cfg := Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        os.Getenv("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		AMQPURL:       amqpURL(),
		LockTTL:       envDur("SHOW_LOCK_TTL", 10*time.Second),
		LockWait:      envDur("SHOW_LOCK_WAIT", 2*time.Second),
		LockRetry:     envDur("SHOW_LOCK_RETRY", 50*time.Millisecond),
		CacheTTL:      envDur("AVAILABILITY_CACHE_TTL", 30*time.Second),
		PurgeInterval: envDur("PURGE_INTERVAL", 0),
	}
	if cfg.DBHost != "" {
		if cfg.DBUser == "" {
			log.Fatal("DB_USER is required when DB_HOST is set")
		}
		if cfg.DBPort == "" {
			cfg.DBPort = "3306"
		}
		if cfg.DBName == "" {
			log.Fatal("DB_NAME is required when DB_HOST is set")
		}
	}
	return cfg
}

// amqpURL resolves the broker URL from either RABBITMQ_URL or
// AMQP_URL.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}
