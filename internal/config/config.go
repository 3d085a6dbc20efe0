package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API and its collaborators.
type Config struct {
	ListenAddr      string
	LogLevel        string
	MySQLDSN        string
	DBMaxOpenConns  int
	JWTSecret       string
	AppBaseURL      string
	AppLogoURL      string
	FreePlanMaxPost int

	PayChanguSecretKey     string
	PayChanguBaseURL       string
	PayChanguWebhookSecret string
	PaymentCurrency        string
	GatewayTimeout         time.Duration

	EscrowCallbackURL       string
	EscrowReturnURL         string
	SubscriptionCallbackURL string
	SubscriptionReturnURL   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UsePathStyle bool
	S3Prefix       string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultPayChanguBaseURL = "https://api.paychangu.com"

	cfg := Config{
		ListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBMaxOpenConns:  getInt("DB_MAX_OPEN_CONNS", 10),
		AppBaseURL:      strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
		AppLogoURL:      os.Getenv("APP_LOGO_URL"),
		FreePlanMaxPost: getInt("FREE_PLAN_MAX_POSTS", 3),

		PayChanguBaseURL:       normalizeBaseURL(getEnv("PAYCHANGU_BASE_URL", defaultPayChanguBaseURL), defaultPayChanguBaseURL),
		PayChanguWebhookSecret: os.Getenv("PAYCHANGU_WEBHOOK_SECRET"),
		PaymentCurrency:        strings.ToUpper(getEnv("PAYMENT_CURRENCY", "MWK")),
		GatewayTimeout:         time.Second * time.Duration(getInt("GATEWAY_TIMEOUT_SECONDS", 20)),

		EscrowCallbackURL:     os.Getenv("ESCROW_CALLBACK_URL"),
		EscrowReturnURL:       os.Getenv("ESCROW_RETURN_URL"),
		SubscriptionReturnURL: os.Getenv("SUBSCRIPTION_RETURN_URL"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPSender:   getEnv("SMTP_SENDER", "no-reply@localhost"),

		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Region:       os.Getenv("S3_REGION"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3UsePathStyle: getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:       getEnv("S3_PREFIX", "campusgigs"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.PayChanguSecretKey = os.Getenv("PAYCHANGU_SECRET_KEY")

	cfg.SubscriptionCallbackURL = os.Getenv("SUBSCRIPTION_CALLBACK_URL")
	if cfg.SubscriptionCallbackURL == "" && cfg.AppBaseURL != "" {
		cfg.SubscriptionCallbackURL = cfg.AppBaseURL + "/api/subscriptions/webhook"
	}
	if cfg.EscrowCallbackURL == "" && cfg.AppBaseURL != "" {
		cfg.EscrowCallbackURL = cfg.AppBaseURL + "/api/escrow/webhook"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 20 * time.Second
	}

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.PayChanguSecretKey == "" {
		missing = append(missing, "PAYCHANGU_SECRET_KEY")
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// ArchiveEnabled reports whether webhook payloads should be copied to S3.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// MailEnabled reports whether an SMTP relay is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// normalizeBaseURL keeps the gateway host usable when it is configured without a scheme.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile loads the first env file found. Running without one is fine:
// containers inject the environment directly.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
