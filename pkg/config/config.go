package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Database
	DBDriver    string // "postgres" or "sqlite"
	DatabaseURL string
	SQLitePath  string

	// AI
	AIProvider        string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	OllamaBaseURL     string
	OllamaModel       string
	ClassifierTimeout time.Duration
	ClassifierBreaker bool

	// Mail source
	MailSource         string // "gmail", "imap" or "none"
	GoogleClientID     string
	GoogleClientSecret string
	GmailAccessToken   string
	GmailRefreshToken  string
	IMAPServer         string
	IMAPPort           int
	IMAPUsername       string
	IMAPPassword       string
	IMAPMailbox        string

	// Fetch scheduling
	FetchInterval      time.Duration
	FetchMaxResults    int
	FetchLookbackHours int
	FetchOnlyUnread    bool
	WorkerCount        int

	// Pub/Sub urgent alerts
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string

	// Gmail push notifications (subscription on the Gmail watch topic)
	GmailPushSubscription string

	// FCM on-call alerts
	FirebaseCredentials string
	FCMDeviceTokens     []string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "triage.db"),

		AIProvider:        strings.ToLower(getEnv("AI_PROVIDER", "auto")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", ""),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", ""),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
		ClassifierBreaker: getEnvBool("CLASSIFIER_BREAKER", true),

		MailSource:         strings.ToLower(getEnv("MAIL_SOURCE", "none")),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GmailAccessToken:   getEnv("GMAIL_ACCESS_TOKEN", ""),
		GmailRefreshToken:  getEnv("GMAIL_REFRESH_TOKEN", ""),
		IMAPServer:         getEnv("IMAP_SERVER", ""),
		IMAPPort:           getEnvInt("IMAP_PORT", 993),
		IMAPUsername:       getEnv("IMAP_USERNAME", ""),
		IMAPPassword:       getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:        getEnv("IMAP_MAILBOX", "INBOX"),

		FetchInterval:      getEnvDuration("FETCH_INTERVAL", 0),
		FetchMaxResults:    getEnvInt("FETCH_MAX_RESULTS", 10),
		FetchLookbackHours: getEnvInt("FETCH_LOOKBACK_HOURS", 48),
		FetchOnlyUnread:    getEnvBool("FETCH_ONLY_UNREAD", true),
		WorkerCount:        getEnvInt("WORKER_COUNT", 3),

		GoogleProjectID:   getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic: getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials: getEnv("GOOGLE_CREDENTIALS", ""),

		GmailPushSubscription: getEnv("GMAIL_PUSH_SUBSCRIPTION", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMDeviceTokens:     getEnvList("FCM_DEVICE_TOKENS"),
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
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
