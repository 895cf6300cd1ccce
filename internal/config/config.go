package config

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type NetSuite struct {
	AccountID      string
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
}

type Kafka struct {
	Brokers        []string
	ValidatedTopic string
	CompletedTopic string
	WorkerGroup    string
}

type Config struct {
	Port          string
	AllowedOrigin string
	PostgresURL   string
	CacheTTL      time.Duration

	NetSuite NetSuite
	Kafka    Kafka
}

// Load reads the environment, optionally seeded from a .env file. Validation
// is per-binary: the server needs NetSuite credentials, the worker needs a
// broker, both need Postgres.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          envDefault("PORT", "8080"),
		AllowedOrigin: envDefault("ALLOWED_ORIGINS", "*"),
		PostgresURL:   strings.TrimSpace(os.Getenv("POSTGRES_URL")),
		CacheTTL:      time.Duration(envInt("CACHE_TTL_HOURS", 2)) * time.Hour,

		NetSuite: NetSuite{
			AccountID:      strings.TrimSpace(os.Getenv("NETSUITE_ACCOUNT_ID")),
			ConsumerKey:    strings.TrimSpace(os.Getenv("NETSUITE_CONSUMER_KEY")),
			ConsumerSecret: strings.TrimSpace(os.Getenv("NETSUITE_CONSUMER_SECRET")),
			TokenID:        strings.TrimSpace(os.Getenv("NETSUITE_TOKEN_ID")),
			TokenSecret:    strings.TrimSpace(os.Getenv("NETSUITE_TOKEN_SECRET")),
		},

		Kafka: Kafka{
			Brokers:        splitCSV(os.Getenv("KAFKA_BROKERS")),
			ValidatedTopic: envDefault("KAFKA_VALIDATED_TOPIC", "pickup.order-validated"),
			CompletedTopic: envDefault("KAFKA_COMPLETED_TOPIC", "pickup.completed"),
			WorkerGroup:    envDefault("KAFKA_WORKER_GROUP", "pickup-completion-worker"),
		},
	}
}

// ValidateServer reports the env keys the validation server cannot start
// without.
func (c Config) ValidateServer() error {
	missing := requireKeys(map[string]string{
		"POSTGRES_URL":             c.PostgresURL,
		"NETSUITE_ACCOUNT_ID":      c.NetSuite.AccountID,
		"NETSUITE_CONSUMER_KEY":    c.NetSuite.ConsumerKey,
		"NETSUITE_CONSUMER_SECRET": c.NetSuite.ConsumerSecret,
		"NETSUITE_TOKEN_ID":        c.NetSuite.TokenID,
		"NETSUITE_TOKEN_SECRET":    c.NetSuite.TokenSecret,
	})
	if len(missing) > 0 {
		return &missingEnvError{Keys: missing}
	}
	return nil
}

// ValidateWorker reports the env keys the completion worker cannot start
// without.
func (c Config) ValidateWorker() error {
	missing := requireKeys(map[string]string{
		"POSTGRES_URL":  c.PostgresURL,
		"KAFKA_BROKERS": strings.Join(c.Kafka.Brokers, ","),
	})
	if len(missing) > 0 {
		return &missingEnvError{Keys: missing}
	}
	return nil
}

type missingEnvError struct{ Keys []string }

func (e *missingEnvError) Error() string {
	return "missing required envs: " + strings.Join(e.Keys, ", ")
}

func requireKeys(req map[string]string) []string {
	var missing []string
	for k, v := range req {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	slices.Sort(missing)
	return missing
}

func envDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
