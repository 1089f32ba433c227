package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application's configuration.
type Config struct {
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MQTTBrokerHost string
	MQTTBrokerPort int
	MQTTTopic      string

	HTTPPort   string
	CORSOrigin string
}

// Load reads the configuration from a .env file (when present) and the
// environment. Every option has a default so the process always starts;
// an unreachable store is handled downstream as degraded mode, not here.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on system environment variables")
	}

	return Config{
		InfluxURL:    envOr("http://localhost:8086", "INFLUXDB_URL"),
		InfluxToken:  envOr("my-super-secret-auth-token", "INFLUXDB_TOKEN", "DOCKER_INFLUXDB_INIT_ADMIN_TOKEN"),
		InfluxOrg:    envOr("power-monitoring", "INFLUXDB_ORG", "DOCKER_INFLUXDB_INIT_ORG"),
		InfluxBucket: envOr("sensor-data", "INFLUXDB_BUCKET", "DOCKER_INFLUXDB_INIT_BUCKET"),

		MQTTBrokerHost: envOr("localhost", "MQTT_BROKER_HOST"),
		MQTTBrokerPort: envIntOr(1883, "MQTT_BROKER_PORT", logger),
		MQTTTopic:      envOr("campus/data/#", "MQTT_TOPIC"),

		HTTPPort:   envOr("8000", "HTTP_PORT"),
		CORSOrigin: envOr("http://localhost:5173", "CORS_ORIGIN"),
	}
}

// envOr returns the first set, non-empty value among keys, else the default.
func envOr(def string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return def
}

func envIntOr(def int, key string, logger *slog.Logger) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}
