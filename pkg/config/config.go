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

	// IMAP (Proton Mail Bridge by default)
	IMAPHost     string
	IMAPPort     string
	IMAPUser     string
	IMAPPassword string
	IMAPTLS      bool

	// Database
	DatabaseURL string

	// Sync
	SyncFolders      []string
	SyncInterval     time.Duration
	InitialSyncLimit int
	SyncBatchCap     int
	ArchiveFolder    string

	// AI oracle
	AIProvider       string
	OllamaBaseURL    string
	OllamaModel      string
	GeminiAPIKey     string
	OracleTimeout    time.Duration
	OracleMaxInflight int

	// Classification
	ClassifyBatchSize   int
	ClassifyMaxAttempts int

	// Links
	LinkRelevanceFloor  float64
	ExtractMinRelevance float64

	// Sender intelligence
	SenderRollingWindow  int
	SenderLowRelevance   float64
	SenderMinEmails      int
	SenderDisengagedDays int
	FoldAddressCase      bool

	// Proposals
	ArchiveAfterDays     int
	ArchiveCategories    []string
	ExecConcurrency      int
	ProposalOverlapRatio float64
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8400"),

		IMAPHost:     getEnv("IMAP_HOST", "127.0.0.1"),
		IMAPPort:     getEnv("IMAP_PORT", "1143"),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPTLS:      getEnvBool("IMAP_TLS", true),

		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=mailsense port=5432 sslmode=disable"),

		SyncFolders:      getEnvList("SYNC_FOLDERS", "INBOX"),
		SyncInterval:     getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
		InitialSyncLimit: getEnvInt("INITIAL_SYNC_LIMIT", 5000),
		SyncBatchCap:     getEnvInt("SYNC_BATCH_CAP", 500),
		ArchiveFolder:    getEnv("ARCHIVE_FOLDER", "Archive"),

		AIProvider:        getEnv("AI_PROVIDER", "auto"),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "qwen2.5:14b"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OracleTimeout:     getEnvDuration("ORACLE_TIMEOUT", 120*time.Second),
		OracleMaxInflight: getEnvInt("ORACLE_MAX_INFLIGHT", 2),

		ClassifyBatchSize:   getEnvInt("CLASSIFY_BATCH_SIZE", 8),
		ClassifyMaxAttempts: getEnvInt("CLASSIFY_MAX_ATTEMPTS", 3),

		LinkRelevanceFloor:  getEnvFloat("LINK_RELEVANCE_FLOOR", 0.5),
		ExtractMinRelevance: getEnvFloat("EXTRACT_MIN_RELEVANCE", 0.6),

		SenderRollingWindow:  getEnvInt("SENDER_ROLLING_WINDOW", 5),
		SenderLowRelevance:   getEnvFloat("SENDER_LOW_RELEVANCE", 0.3),
		SenderMinEmails:      getEnvInt("SENDER_MIN_EMAILS", 3),
		SenderDisengagedDays: getEnvInt("SENDER_DISENGAGED_DAYS", 60),
		FoldAddressCase:      getEnvBool("SENDER_FOLD_ADDRESS_CASE", false),

		ArchiveAfterDays:     getEnvInt("ARCHIVE_AFTER_DAYS", 30),
		ArchiveCategories:    getEnvList("ARCHIVE_CATEGORIES", "noise,transactional,notification,marketing"),
		ExecConcurrency:      getEnvInt("EXEC_CONCURRENCY", 4),
		ProposalOverlapRatio: getEnvFloat("PROPOSAL_OVERLAP_RATIO", 0.5),
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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

func getEnvList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
