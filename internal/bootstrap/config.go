package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	WhisperAddress string

	AudiosDir  string
	SaveAudios bool

	JobTTL        time.Duration
	SweepInterval time.Duration

	VADThreshold float64
	VADHangover  int

	LLMUpstreamURL string
	LLMAPIKey      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN string

	StaticDir string
	IndexHTML string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		WhisperAddress: getEnv("WHISPER_ADDRESS", "http://localhost:9000"),

		AudiosDir:  getEnv("AUDIOS_DIR", "./audios"),
		SaveAudios: getEnv("SAVE_AUDIOS", "true") == "true",

		JobTTL:        getEnvDuration("JOB_TTL", 30*time.Minute),
		SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),

		VADThreshold: getEnvFloat("VAD_THRESHOLD", 0.015),
		VADHangover:  getEnvInt("VAD_HANGOVER_CHUNKS", 12),

		LLMUpstreamURL: getEnv("LLM_UPSTREAM_URL", "http://localhost:3000/v1/chat/completions"),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		StaticDir: getEnv("STATIC_DIR", "./client"),
		IndexHTML: getEnv("INDEX_HTML", "./client/index.html"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
