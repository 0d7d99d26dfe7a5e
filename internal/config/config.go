package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr  string
	DBPath      string
	DataDir     string
	LogLevel    string
	LogFile     string
	CORSOrigins []string
}

// Load reads configuration from the environment. Variables defined in the
// given .env files (default ".env") fill in anything the environment does
// not already set; missing files are ignored.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	return &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		DBPath:      getEnv("DB_PATH", "/data/gallery.db"),
		DataDir:     getEnv("DATA_DIR", "/data/local"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
