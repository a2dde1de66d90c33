package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"propwise/models"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	LogPath     string
	LogLevel    string
	Env         string
	Redis       RedisConfig
	Scheduler   SchedulerConfig
	HTTP        HTTPConfig
	Mail        MailConfig
	Site        SiteConfig
	AI          AIConfig
	Amenities   AmenityStyles
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	AlertInterval    time.Duration
	AlertCron        string
	FeaturedInterval time.Duration
	FeaturedBatch    int
	LockTTL          time.Duration
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type SiteConfig struct {
	Domain   string
	Currency string
}

type AIConfig struct {
	GeminiAPIKey string
	GeminiModel  string
}

// AmenityStyle is how an amenity category is drawn on the area map.
type AmenityStyle struct {
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

type AmenityStyles map[models.AmenityCategory]AmenityStyle

var defaultAmenityStyle = AmenityStyle{Icon: "fa-map-marker-alt", Color: "gray"}

// For returns the style of a category, falling back to "other" and then a generic marker.
func (s AmenityStyles) For(c models.AmenityCategory) AmenityStyle {
	if st, ok := s[c]; ok {
		return st
	}
	if st, ok := s[models.AmenityOther]; ok {
		return st
	}
	return defaultAmenityStyle
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "propwise.db"),
		LogPath:     getEnv("LOG_PATH", "propwise.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         getEnv("APP_ENV", "production"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scheduler: SchedulerConfig{
			AlertCron:        os.Getenv("ALERT_CRON"),
			AlertInterval:    getEnvDuration("ALERT_INTERVAL", time.Hour),
			FeaturedInterval: getEnvDuration("FEATURED_INTERVAL", 15*time.Minute),
			FeaturedBatch:    getEnvInt("FEATURED_BATCH", 200),
			LockTTL:          getEnvDuration("ALERT_LOCK_TTL", 30*time.Minute),
		},
		HTTP: HTTPConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 25),
			User:     os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("MAIL_FROM", "alerts@propwise.local"),
		},
		Site: SiteConfig{
			Domain:   getEnv("SITE_DOMAIN", "localhost:8000"),
			Currency: getEnv("CURRENCY", "PKR"),
		},
		AI: AIConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
	}

	styles, err := LoadAmenityStyles(getEnv("AMENITY_STYLES", "config/amenities.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Amenities = styles

	return cfg, nil
}

// LoadAmenityStyles reads the category styling file. A missing file yields an empty set.
func LoadAmenityStyles(path string) (AmenityStyles, error) {
	styles := AmenityStyles{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return styles, nil
		}
		return nil, err
	}

	var raw map[string]AmenityStyle
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for k, v := range raw {
		styles[models.AmenityCategory(strings.ToLower(k))] = v
	}
	return styles, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
