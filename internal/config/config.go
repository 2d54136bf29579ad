package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"snapscan/internal"
)

type Config struct {
	DBPath     string
	OutputDir  string
	SlipRawDir string

	BarcodesSource    string
	BarcodesTimeoutMs int

	WeightUnit        string
	DefaultItemWeight float64

	NormalizeTokens    []internal.ListContext
	PickUndoDepth      int
	SimilarThreshold   float64
	SimilarLimit       int
	ImportMatchCatalog bool
	ExportLocale       string

	StationContext    string
	StationListenAddr string
	StationDedupeMs   int

	LogLevel  string
	LogFormat string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string
	GmailQuery        string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	InboxProvider     string
	InboxLabel        string
	InboxIntervalSec  int
	InboxFetchMax     int
	InboxParseBatch   int
	InboxAutoImport   bool
	InboxLookbackDays int
	InboxDir          string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "snapscan.db")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		SlipRawDir: getEnv("SLIP_RAW_DIR", filepath.Join(cwd, "data", "slips")),

		BarcodesSource:    getEnv("BARCODES_SOURCE", filepath.Join(cwd, "barcodes.json")),
		BarcodesTimeoutMs: getEnvInt("BARCODES_TIMEOUT_MS", 15000),

		WeightUnit:        getEnv("WEIGHT_UNIT", internal.DefaultWeightUnit),
		DefaultItemWeight: getEnvFloat("DEFAULT_ITEM_WEIGHT", internal.DefaultItemWeight),

		NormalizeTokens:    getEnvContexts("NORMALIZE_TOKENS", []internal.ListContext{internal.ContextReturn}),
		PickUndoDepth:      getEnvInt("PICK_UNDO_DEPTH", 1),
		SimilarThreshold:   getEnvFloat("SIMILAR_THRESHOLD", 0.7),
		SimilarLimit:       getEnvInt("SIMILAR_LIMIT", 5),
		ImportMatchCatalog: getEnvBool("IMPORT_MATCH_CATALOG", false),
		ExportLocale:       getEnv("EXPORT_LOCALE", "nb-NO"),

		StationContext:    getEnv("STATION_CONTEXT", "pick"),
		StationListenAddr: getEnv("STATION_LISTEN_ADDR", ""),
		StationDedupeMs:   getEnvInt("STATION_DEDUPE_MS", 2000),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailQuery:        getEnv("GMAIL_QUERY", "has:attachment"),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		InboxProvider:     getEnv("INBOX_PROVIDER", "imap"),
		InboxLabel:        getEnv("INBOX_LABEL", "INBOX"),
		InboxIntervalSec:  getEnvInt("INBOX_INTERVAL_SEC", 60),
		InboxFetchMax:     getEnvInt("INBOX_FETCH_MAX", 20),
		InboxParseBatch:   getEnvInt("INBOX_PARSE_BATCH", 20),
		InboxAutoImport:   getEnvBool("INBOX_AUTO_IMPORT", false),
		InboxLookbackDays: getEnvInt("INBOX_LOOKBACK_DAYS", 14),
		InboxDir:          getEnv("INBOX_DIR", filepath.Join(cwd, "data", "inbox")),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// NormalizesTokens reports whether scanned tokens are stripped to
// alphanumerics before lookup in the given context.
func (c Config) NormalizesTokens(ctx internal.ListContext) bool {
	for _, n := range c.NormalizeTokens {
		if n == ctx {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvContexts parses a comma list of context names. "none" yields an
// empty list; unknown names are ignored.
func getEnvContexts(key string, fallback []internal.ListContext) []internal.ListContext {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	out := []internal.ListContext{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "none") {
			continue
		}
		if ctx, err := internal.ParseContext(part); err == nil {
			out = append(out, ctx)
		}
	}
	return out
}
