package bootstrap

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	OpenAIKey        string
	ElevenLabsKey    string
	DefaultProvider  string
	FallbackProvider string

	ArtifactDir     string
	StreamTimeoutMs int
	MaxBufferedMs   int
	CacheTTLHours   int

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		ElevenLabsKey:    getEnv("ELEVENLABS_API_KEY", ""),
		DefaultProvider:  getEnv("SPEECH_DEFAULT_PROVIDER", ""),
		FallbackProvider: getEnv("SPEECH_FALLBACK_PROVIDER", ""),

		ArtifactDir:     getEnv("SPEECH_ARTIFACT_DIR", "./artifacts"),
		StreamTimeoutMs: getEnvInt("SPEECH_STREAM_TIMEOUT_MS", 5000),
		MaxBufferedMs:   getEnvInt("SPEECH_MAX_BUFFERED_MS", 6000),
		CacheTTLHours:   getEnvInt("SPEECH_CACHE_TTL_HOURS", 24),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
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
