package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// DatabaseURL empty means the in-memory store (local development).
	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret     string `yaml:"jwtSecret"`
	SessionTTL    string `yaml:"sessionTTL"`
	RememberTTL   string `yaml:"rememberTTL"`
	ResetTokenTTL string `yaml:"resetTokenTTL"`
	ResetBaseURL  string `yaml:"resetBaseURL"`

	SMTPAddr     string `yaml:"smtpAddr"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	InferenceURL            string `yaml:"inferenceURL"`
	InferenceAnalyzeTimeout string `yaml:"inferenceAnalyzeTimeout"`
	TranscribeTimeout       string `yaml:"transcribeTimeout"`

	MaxUploadBytes           int64    `yaml:"maxUploadBytes"`
	CORSAllowedOrigin        string   `yaml:"corsAllowedOrigin"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
	LoginRateLimitPerMinute  int      `yaml:"loginRateLimitPerMinute"`
	SignupRateLimitPerMinute int      `yaml:"signupRateLimitPerMinute"`
	ResetRateLimitPerMinute  int      `yaml:"resetRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.SessionTTL, "SESSION_TTL")
	setString(&cfg.RememberTTL, "REMEMBER_TTL")
	setString(&cfg.ResetTokenTTL, "RESET_TOKEN_TTL")
	setString(&cfg.ResetBaseURL, "RESET_BASE_URL")
	setString(&cfg.SMTPAddr, "SMTP_ADDR")
	setString(&cfg.SMTPUsername, "SMTP_USERNAME")
	setString(&cfg.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.SMTPFrom, "SMTP_FROM")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setString(&cfg.InferenceURL, "INFERENCE_URL")
	setString(&cfg.CORSAllowedOrigin, "CORS_ALLOWED_ORIGIN")

	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setInt(&cfg.LoginRateLimitPerMinute, "LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.SignupRateLimitPerMinute, "SIGNUP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.ResetRateLimitPerMinute, "RESET_RATE_LIMIT_PER_MINUTE")
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.SignupRateLimitPerMinute < 0 || cfg.ResetRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	hasRateLimits := cfg.LoginRateLimitPerMinute > 0 || cfg.SignupRateLimitPerMinute > 0 || cfg.ResetRateLimitPerMinute > 0
	if hasRateLimits && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when rate limits are enabled")
	}
	return nil
}

// ParseTTL parses an optional duration string, falling back to def when empty.
func ParseTTL(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return dur, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
