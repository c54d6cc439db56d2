package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppName  string
	Env      string
	Host     string
	Port     int
	DBDriver string

	SQLitePath  string
	DatabaseURL string

	JWTSecret          string
	AccessTokenMinutes int

	CORSOrigins []string

	LogLevel      string
	LogFilePath   string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	HeartbeatInterval time.Duration
	WSSendBuffer      int
	WSMaxMessageBytes int64

	KeyCacheSize int
	KeyCacheTTL  time.Duration

	RSAKeyBits    int
	Argon2Memory  int
	Argon2Time    int
	Argon2Threads int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; it never overrides variables that
// are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbUser := getEnv("POSTGRES_USER", "postgres")
	dbPass := getEnv("POSTGRES_PASSWORD", "postgres")
	dbName := getEnv("POSTGRES_DB", "uchat")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbUser, dbPass),
		Host:     fmt.Sprintf("%s:%s", dbHost, dbPort),
		Path:     dbName,
		RawQuery: "sslmode=disable",
	}

	cfg := &Config{
		AppName:  getEnv("APP_NAME", "uchat"),
		Env:      getEnv("APP_ENV", "development"),
		Host:     getEnv("HTTP_HOST", "0.0.0.0"),
		Port:     getEnvAsInt("HTTP_PORT", 5000),
		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),

		SQLitePath:  getEnv("SQLITE_PATH", "uchat.db"),
		DatabaseURL: u.String(),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFilePath:   getEnv("LOG_FILE_PATH", ""),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 10),
		LogMaxAgeDays: getEnvAsInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvAsBool("LOG_COMPRESS", true),

		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_INTERVAL", 60*time.Second),
		WSSendBuffer:      getEnvAsInt("WS_SEND_BUFFER", 256),
		WSMaxMessageBytes: int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 1<<20)),

		KeyCacheSize: getEnvAsInt("KEY_CACHE_SIZE", 4096),
		KeyCacheTTL:  getEnvAsDuration("KEY_CACHE_TTL", 10*time.Minute),

		RSAKeyBits:    getEnvAsInt("RSA_KEY_BITS", 2048),
		Argon2Memory:  getEnvAsInt("ARGON2_MEMORY_KIB", 64*1024),
		Argon2Time:    getEnvAsInt("ARGON2_TIME", 4),
		Argon2Threads: getEnvAsInt("ARGON2_THREADS", 4),
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DBDriver)
	}
	if cfg.RSAKeyBits < 2048 {
		return nil, fmt.Errorf("RSA_KEY_BITS must be at least 2048")
	}
	if cfg.Argon2Memory < 1 {
		return nil, fmt.Errorf("ARGON2_MEMORY_KIB must be at least 1")
	}
	if cfg.Argon2Time < 1 {
		return nil, fmt.Errorf("ARGON2_TIME must be at least 1")
	}
	if cfg.Argon2Threads < 1 || cfg.Argon2Threads > 255 {
		return nil, fmt.Errorf("ARGON2_THREADS must be between 1 and 255")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	return def
}
