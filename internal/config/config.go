package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIURL string

	// identity slot storage: sqlite | mysql | redis | memory
	StateDriver   string
	StateDSN      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SlotSecret    string

	RequestTimeout   time.Duration
	BackendRateLimit float64

	ExpiryWindowDays      int
	ExpiryRecheckInterval time.Duration

	// chat collaborator: backend | ollama
	ChatResponder string
	OllamaBaseURL string
	OllamaModel   string

	// rabbitMQ alert publishing, disabled when RabbitURL is empty
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int

	LogLevel string
}

func Load() Config {
	apiURL := os.Getenv("PANTRY_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8000"
	}

	driver := strings.ToLower(os.Getenv("PANTRY_STATE_DRIVER"))
	if driver == "" {
		driver = "sqlite"
	}

	dsn := os.Getenv("PANTRY_STATE_DSN")
	if dsn == "" && driver == "sqlite" {
		dsn = defaultStatePath()
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	secret := os.Getenv("PANTRY_SLOT_SECRET")
	if secret == "" {
		secret = "dev-slot-secret-change-me"
	}

	timeout := 15 * time.Second
	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	var rateLimit float64
	if v := os.Getenv("BACKEND_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			rateLimit = f
		}
	}

	window := 3
	if v := os.Getenv("EXPIRY_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			window = n
		}
	}

	var recheck time.Duration
	if v := os.Getenv("EXPIRY_RECHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			recheck = d
		}
	}

	responder := strings.ToLower(os.Getenv("CHAT_RESPONDER"))
	if responder == "" {
		responder = "backend"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}

	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "pantry_expiry_alerts"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	return Config{
		APIURL: strings.TrimRight(apiURL, "/"),

		StateDriver:   driver,
		StateDSN:      dsn,
		RedisAddr:     redisAddr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		SlotSecret:    secret,

		RequestTimeout:   timeout,
		BackendRateLimit: rateLimit,

		ExpiryWindowDays:      window,
		ExpiryRecheckInterval: recheck,

		ChatResponder: responder,
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       rabbitQueue,
		WorkerConcurrency: workerConcurrency(),

		LogLevel: logLevel,
	}
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".pantry", "state.db")
	}
	return filepath.Join(home, ".pantry", "state.db")
}

// workerConcurrency bounds WORKER_CONCURRENCY to 1..50, default 2.
func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}
