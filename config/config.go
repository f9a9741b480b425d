package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func New() map[string]string {
	environ := os.Environ()
	envAsMap := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry != "" {
			key, value := split(entry)
			envAsMap[key] = value
		}
	}
	return envAsMap
}

// assumes entry is not the empty string
func split(entry string) (key, value string) {
	parts := strings.SplitN(entry, "=", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func GetString(config map[string]string, key string, defaultValue string) string {
	if config == nil {
		return defaultValue
	}

	if val, ok := config[key]; ok && val != "" {
		return val
	}
	return defaultValue
}

func GetInt(config map[string]string, key string, defaultValue int) int {
	if config == nil {
		return defaultValue
	}

	s, ok := config[key]
	if !ok {
		return defaultValue
	}

	asInt, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}

	return asInt
}

func GetBool(config map[string]string, key string, defaultValue bool) bool {
	if config == nil {
		return defaultValue
	}

	s, ok := config[key]
	if !ok {
		return defaultValue
	}

	asBool, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}

	return asBool
}

// GetList splits a comma separated value, dropping blanks.
func GetList(config map[string]string, key string, defaultValue []string) []string {
	raw := GetString(config, key, "")
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Config is the typed view of the environment used to wire the application.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Database DatabaseConfig
	Storage  StorageConfig
	S3       S3Config
	Auth     AuthConfig

	AcceptedOrigins       []string
	AccessLogBuffer       int
	DisableAccessLog      bool
	ShutdownTimeout       time.Duration
	DevelopmentLogConsole bool
}

type DatabaseConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	ReplicaDSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the key/value connection string the postgres driver expects.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// URL builds the postgres:// form used by the migration driver.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type StorageConfig struct {
	MarkdownDir    string
	UploadsDir     string
	MaxUploadBytes int64
}

type S3Config struct {
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Endpoint      string
	UsePathStyle  bool
	PublicBaseURL string
	KeyPrefix     string
}

// Enabled reports whether uploads should go to object storage instead of the local uploads dir.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type AuthConfig struct {
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration
}

// Load assembles Config from an env map produced by New.
func Load(c map[string]string) Config {
	return Config{
		Port:         GetString(c, "PORT", "4000"),
		ReadTimeout:  time.Duration(GetInt(c, "READ_TIMEOUT_SECONDS", 180)) * time.Second,
		WriteTimeout: time.Duration(GetInt(c, "WRITE_TIMEOUT_SECONDS", 180)) * time.Second,
		IdleTimeout:  time.Duration(GetInt(c, "IDLE_TIMEOUT_SECONDS", 180)) * time.Second,

		Database: DatabaseConfig{
			Host:            GetString(c, "DB_HOST", "localhost"),
			Port:            GetString(c, "DB_PORT", "5432"),
			User:            GetString(c, "DB_USER", "postgres"),
			Password:        GetString(c, "DB_PASSWORD", ""),
			Name:            GetString(c, "DB_NAME", "portfolio"),
			SSLMode:         GetString(c, "DB_SSLMODE", "disable"),
			ReplicaDSN:      GetString(c, "DB_REPLICA_DSN", ""),
			MaxOpenConns:    GetInt(c, "DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    GetInt(c, "DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: time.Duration(GetInt(c, "DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		},

		Storage: StorageConfig{
			MarkdownDir:    GetString(c, "MARKDOWN_DIR", "markdown"),
			UploadsDir:     GetString(c, "UPLOADS_DIR", "uploads"),
			MaxUploadBytes: int64(GetInt(c, "MAX_UPLOAD_MB", 10)) << 20,
		},

		S3: S3Config{
			Bucket:        GetString(c, "AWS_S3_BUCKET", ""),
			Region:        GetString(c, "AWS_REGION", "ap-northeast-2"),
			AccessKey:     GetString(c, "AWS_ACCESS_KEY_ID", ""),
			SecretKey:     GetString(c, "AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:      GetString(c, "AWS_S3_ENDPOINT", ""),
			UsePathStyle:  GetBool(c, "AWS_S3_PATH_STYLE", false),
			PublicBaseURL: GetString(c, "AWS_S3_PUBLIC_URL", ""),
			KeyPrefix:     GetString(c, "AWS_S3_KEY_PREFIX", "uploads"),
		},

		Auth: AuthConfig{
			AdminPassword: GetString(c, "BACKEND_PASSWORD", ""),
			JWTSecret:     GetString(c, "JWT_SECRET", ""),
			TokenTTL:      time.Duration(GetInt(c, "ADMIN_TOKEN_TTL_MINUTES", 120)) * time.Minute,
		},

		AcceptedOrigins:       GetList(c, "ACCEPTED_ORIGINS", []string{"https://apol.site", "https://www.apol.site"}),
		AccessLogBuffer:       GetInt(c, "ACCESS_LOG_BUFFER", 1024),
		DisableAccessLog:      GetBool(c, "DISABLE_ACCESS_LOG", false),
		ShutdownTimeout:       time.Duration(GetInt(c, "SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
		DevelopmentLogConsole: GetBool(c, "LOG_CONSOLE", true),
	}
}
