// internal/infra/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port     string
	LogLevel string
	Dev      bool

	// storage: memory | firestore | postgres
	StoreBackend             string
	GCPProjectID             string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	DatabaseURL              string
	RecordTable              string

	// auth
	FirebaseProjectID string
	SessionSecret     string
	SessionTTL        time.Duration
	AllowedOrigins    []string

	// storefront backend
	BackendBaseURL string
	BackendTimeout time.Duration

	// downloads
	GCSBucket         string
	GCSSignerEmail    string
	DownloadURLExpiry time.Duration

	// mail
	SendGridAPIKey   string
	MailFrom         string
	MailFromName     string
	StoreBaseURL     string
	NewsletterListID string

	// events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// sessions
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration
	ShutdownTimeout      time.Duration
}

// Load は .env（あれば）と環境変数を読み込み Config を返します。
func Load() *Config {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	defaultProject := getenvDefault("GCP_PROJECT_ID", "")

	return &Config{
		Port:     getenvDefault("PORT", "8080"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
		Dev:      getenvBool("DEV", false),

		StoreBackend:             strings.ToLower(getenvDefault("STORE_BACKEND", BackendMemory)),
		GCPProjectID:             defaultProject,
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RecordTable:              getenvDefault("RECORD_TABLE", "storefront_records"),

		FirebaseProjectID: getenvDefault("FIREBASE_PROJECT_ID", defaultProject),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		SessionTTL:        getenvDuration("SESSION_TTL", 14*24*time.Hour),
		AllowedOrigins:    splitList(getenvDefault("ALLOWED_ORIGINS", "http://localhost:5173")),

		BackendBaseURL: os.Getenv("STOREFRONT_API_BASE_URL"),
		BackendTimeout: getenvDuration("STOREFRONT_API_TIMEOUT", 15*time.Second),

		GCSBucket:         os.Getenv("GCS_DOWNLOAD_BUCKET"),
		GCSSignerEmail:    os.Getenv("GCS_SIGNER_EMAIL"),
		DownloadURLExpiry: getenvDuration("DOWNLOAD_URL_EXPIRY", 15*time.Minute),

		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		MailFrom:         os.Getenv("MAIL_FROM"),
		MailFromName:     getenvDefault("MAIL_FROM_NAME", "Storefront"),
		StoreBaseURL:     getenvDefault("STORE_BASE_URL", "http://localhost:5173"),
		NewsletterListID: os.Getenv("SENDGRID_NEWSLETTER_LIST_ID"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: os.Getenv("AMQP_EXCHANGE"),
		AMQPQueue:    os.Getenv("AMQP_QUEUE"),

		SessionIdleTimeout:   getenvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: getenvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		ShutdownTimeout:      getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvDuration accepts Go durations ("90s") or plain seconds ("90").
func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
