package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Server ServerConfig
}

type AppConfig struct {
	Environment          string
	LogFilePath          string
	TransportLogFilePath string
	TokenFilePath        string
}

type ServerConfig struct {
	BaseURL          string
	WsBaseURL        string
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	StateCacheTTL    time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Environment:          getEnv("GO_ENV", "development"),
			LogFilePath:          getEnv("LOG_FILE_PATH", "nexus-cli.log"),
			TransportLogFilePath: getEnv("TRANSPORT_LOG_FILE_PATH", "nexus-cli-transport.log"),
			TokenFilePath:        getEnv("TOKEN_FILE_PATH", defaultTokenPath()),
		},
		Server: ServerConfig{
			BaseURL:          getEnv("NEXUS_BASE_URL", "http://localhost:3000"),
			WsBaseURL:        getEnv("NEXUS_WS_BASE_URL", "ws://localhost:3000"),
			RequestTimeout:   getEnvAsDuration("NEXUS_REQUEST_TIMEOUT", 120*time.Second),
			HandshakeTimeout: getEnvAsDuration("NEXUS_HANDSHAKE_TIMEOUT", 10*time.Second),
			StateCacheTTL:    getEnvAsDuration("NEXUS_STATE_CACHE_TTL", 30*time.Second),
		},
	}
}

func (c *Config) IsProd() bool {
	return c.App.Environment == "production"
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nexus-token"
	}
	return home + "/.nexus-token"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
