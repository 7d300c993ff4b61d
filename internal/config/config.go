package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultModels is the Gemini model ladder tried for every API key.
var DefaultModels = []string{
	"gemini-2.5-flash-lite",
	"gemini-3-flash",
	"gemma-3-1b",
	"gemini-2.5-flash-tts",
}

const (
	defaultBMKGURL      = "https://api.bmkg.go.id/publik/prakiraan-cuaca"
	defaultGeminiURL    = "https://generativelanguage.googleapis.com/"
	defaultSatelliteURL = "https://inderaja.bmkg.go.id/IMAGE/HIMA/H08_RP_Indonesia.png"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	BotName  string

	// Storage
	DatabasePath string // region store
	SQLFile      string // dump imported when the region store is empty
	UserDBPath   string // bot usage log
	OutputFile   string
	ImageDir     string

	// BMKG forecast API
	BMKGURL       string
	TargetHour    int
	RequestDelay  time.Duration
	FetchDeadline time.Duration

	// Article composition
	TotalCities int
	WIBCities   int
	WITACities  int
	WITCities   int

	// Gemini (optional)
	GeminiAPIKeys []string
	GeminiModels  []string
	GeminiURL     string
	UseAI         bool
	AIParagraphs  bool // also generate intro and closing paragraphs

	// Telegram (optional)
	TelegramBotToken string
	TelegramChatID   string

	// WhatsApp Cloud API (optional)
	WAPhoneID            string
	WAToken              string
	WAVerifyToken        string
	WAAppSecret          string
	WhatsAppTargetNumber string

	// HTTP server
	Port       int
	WebhookURL string

	// Scheduler
	DailyArticleSchedule string
	SatelliteSchedule    string
	SatelliteURL         string
}

// Load reads configuration from the environment and an optional .env file.
// Nothing is required here; callers check what their binary needs with
// RequireTelegram or RequireTransport.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional if env vars are set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:   getEnvString("APP_ENV", "dev"),
		LogLevel: parseLogLevel(getEnvString("LOG_LEVEL", "info")),
		BotName:  getEnvString("BOT_NAME", "BMKG Weather Bot"),

		DatabasePath: getEnvString("DATABASE_PATH", "wilayah.db"),
		SQLFile:      getEnvString("SQL_FILE", "wilayah_2020.sql"),
		UserDBPath:   getEnvString("USER_DB_PATH", "bot_users.db"),
		OutputFile:   getEnvString("OUTPUT_FILE", "artikel_cuaca.txt"),
		ImageDir:     getEnvString("IMAGE_DIR", "bmkg_images"),

		BMKGURL:       getEnvString("BMKG_API_URL", defaultBMKGURL),
		TargetHour:    getEnvInt("TARGET_HOUR", 6),
		RequestDelay:  getEnvDuration("REQUEST_DELAY", 1500*time.Millisecond),
		FetchDeadline: getEnvDuration("FETCH_DEADLINE", 3*time.Minute),

		TotalCities: getEnvInt("TOTAL_CITIES", 4),
		WIBCities:   getEnvInt("WIB_CITIES", 2),
		WITACities:  getEnvInt("WITA_CITIES", 1),
		WITCities:   getEnvInt("WIT_CITIES", 1),

		GeminiAPIKeys: getEnvList("GOOGLE_GEMINI_API_KEYS"),
		GeminiModels:  getEnvList("GEMINI_MODELS"),
		GeminiURL:     getEnvString("GEMINI_API_URL", defaultGeminiURL),
		UseAI:         getEnvBool("USE_AI_ENHANCEMENT", true),
		AIParagraphs:  getEnvBool("AI_PARAGRAPHS", false),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),

		WAPhoneID:            os.Getenv("WA_PHONE_ID"),
		WAToken:              os.Getenv("WA_TOKEN"),
		WAVerifyToken:        os.Getenv("WA_VERIFY_TOKEN"),
		WAAppSecret:          os.Getenv("WA_APP_SECRET"),
		WhatsAppTargetNumber: os.Getenv("WHATSAPP_TARGET_NUMBER"),

		Port:       getEnvInt("PORT", 5000),
		WebhookURL: strings.TrimRight(getEnvString("WEBHOOK_URL", "http://localhost:5000"), "/"),

		DailyArticleSchedule: getEnvString("DAILY_ARTICLE_SCHEDULE", "0 4 * * *"),
		SatelliteSchedule:    os.Getenv("SATELLITE_SCHEDULE"),
		SatelliteURL:         getEnvString("SATELLITE_IMAGE_URL", defaultSatelliteURL),
	}

	if len(cfg.GeminiModels) == 0 {
		cfg.GeminiModels = append([]string(nil), DefaultModels...)
	}
	if _, ok := os.LookupEnv("SATELLITE_SCHEDULE"); !ok {
		cfg.SatelliteSchedule = "0 */3 * * *"
	}

	// Serverless deployments only have a writable /tmp.
	if os.Getenv("VERCEL") == "1" {
		cfg.DatabasePath = filepath.Join("/tmp", filepath.Base(cfg.DatabasePath))
		cfg.UserDBPath = filepath.Join("/tmp", filepath.Base(cfg.UserDBPath))
		cfg.ImageDir = filepath.Join("/tmp", filepath.Base(cfg.ImageDir))
	}

	return cfg, nil
}

// HasTelegram returns true if the Telegram bot token is configured.
func (c *Config) HasTelegram() bool {
	return c.TelegramBotToken != ""
}

// HasWhatsApp returns true if the WhatsApp Cloud API is configured.
func (c *Config) HasWhatsApp() bool {
	return c.WAPhoneID != "" && c.WAToken != "" && c.WAVerifyToken != ""
}

// AIEnabled returns true when AI enhancement is switched on and keys exist.
func (c *Config) AIEnabled() bool {
	return c.UseAI && len(c.GeminiAPIKeys) > 0
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// RequireTelegram reports missing Telegram settings.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("missing required config: %v", []string{"TELEGRAM_BOT_TOKEN"})
	}
	return nil
}

// RequireTransport reports an error when neither Telegram nor WhatsApp is
// configured. A partially configured WhatsApp setup lists its missing fields.
func (c *Config) RequireTransport() error {
	var missingFields []string
	waStarted := c.WAPhoneID != "" || c.WAToken != "" || c.WAVerifyToken != ""
	if waStarted {
		if c.WAPhoneID == "" {
			missingFields = append(missingFields, "WA_PHONE_ID")
		}
		if c.WAToken == "" {
			missingFields = append(missingFields, "WA_TOKEN")
		}
		if c.WAVerifyToken == "" {
			missingFields = append(missingFields, "WA_VERIFY_TOKEN")
		}
	}
	if len(missingFields) > 0 {
		return fmt.Errorf("missing required config: %v", missingFields)
	}
	if !c.HasTelegram() && !c.HasWhatsApp() {
		return fmt.Errorf("missing required config: %v", []string{"TELEGRAM_BOT_TOKEN or WA_PHONE_ID/WA_TOKEN/WA_VERIFY_TOKEN"})
	}
	return nil
}

// Validate performs runtime validation of config values
func (c *Config) Validate() error {
	if c.TargetHour < 0 || c.TargetHour > 23 {
		return errors.New("TARGET_HOUR must be between 0 and 23")
	}
	if c.WIBCities < 0 || c.WITACities < 0 || c.WITCities < 0 {
		return errors.New("WIB_CITIES, WITA_CITIES and WIT_CITIES must be non-negative")
	}
	if c.WIBCities+c.WITACities+c.WITCities < 1 && c.TotalCities < 1 {
		return errors.New("at least one city must be selected across WIB, WITA and WIT, or TOTAL_CITIES")
	}
	if c.RequestDelay < 0 {
		return errors.New("REQUEST_DELAY must be non-negative")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// getEnvDuration accepts Go durations ("1.5s") or plain seconds ("2").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs * float64(time.Second))
}

func getEnvString(key string, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
