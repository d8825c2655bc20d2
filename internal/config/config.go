// Package config loads the service configuration from the environment.
// Read once at startup; nothing here is hot-reloaded.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full service configuration.
type Config struct {
	ServiceName string
	HTTPAddr    string

	// RunLogPath is the SQLite file holding fulfillment runs.
	RunLogPath string

	RedisAddr    string
	KafkaBrokers []string
	NotifyTopic  string

	// DefaultProvider selects the registry default.
	DefaultProvider string

	// PrintfulAPIBase / PrintfulToken configure the Printful adapter.
	PrintfulAPIBase string
	PrintfulToken   string
	// VendorTimeoutSeconds bounds each vendor round trip.
	VendorTimeoutSeconds int

	// WebhookSecret signs inbound vendor webhooks. May be empty: the
	// receiver then runs without verification, loudly.
	WebhookSecret string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		ServiceName:          getenv("SERVICE_NAME", "fulfillment-service"),
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		RunLogPath:           getenv("RUN_LOG_PATH", "./data/fulfillment.db"),
		RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
		NotifyTopic:          getenv("NOTIFY_TOPIC", "fulfillment.notification"),
		DefaultProvider:      getenv("DEFAULT_PROVIDER", "printful"),
		PrintfulAPIBase:      getenv("PRINTFUL_API_BASE", "https://api.printful.com"),
		PrintfulToken:        getenv("PRINTFUL_TOKEN", ""),
		VendorTimeoutSeconds: getenvInt("VENDOR_TIMEOUT_SECONDS", 15),
		WebhookSecret:        getenv("WEBHOOK_SECRET", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
