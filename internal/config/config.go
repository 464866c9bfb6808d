package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DB      DBConfig
	JWT     JWTConfig
	Server  ServerConfig
	Storage StorageConfig
	Disk    DiskConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	// Root is the directory holding one subdirectory per user.
	Root string
	// DefaultQuotaGB applies to admin-created accounts, RegisterQuotaGB to
	// self-registered ones.
	DefaultQuotaGB  int
	RegisterQuotaGB int
}

type DiskConfig struct {
	// Subdir is the well-known directory name looked up under each mount
	// when computing per-user usage for the disk report.
	Subdir string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "cloudvault"),
			Password: getEnv("DB_PASSWORD", "cloudvault_secret"),
			Name:     getEnv("DB_NAME", "cloudvault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Storage: StorageConfig{
			Root:            getEnv("STORAGE_ROOT", "/srv/cloudvault"),
			DefaultQuotaGB:  getEnvAsInt("DEFAULT_QUOTA_GB", 1),
			RegisterQuotaGB: getEnvAsInt("REGISTER_QUOTA_GB", 2),
		},
		Disk: DiskConfig{
			Subdir: getEnv("DISK_REPORT_SUBDIR", "cloudvault"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
