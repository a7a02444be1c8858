package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures model locations, the posting account, scheduling and storage.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Emotion   EmotionConfig   `yaml:"emotion"`
	Facebook  FacebookConfig  `yaml:"facebook"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// Requests allowed per RateWindow per client address
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
	CORSOrigin string        `yaml:"corsOrigin"`
}

type ModelsConfig struct {
	Dir string `yaml:"dir"`
	// Captions longer than this many runes are truncated before inference
	MaxCaptionLength int `yaml:"maxCaptionLength"`
	// Ensemble member whose raw probability drives the status label
	TrustedStatusMember string `yaml:"trustedStatusMember"`
	// Calibration used when status_meta.json carries none
	StatusCenter float64 `yaml:"statusCenter"`
	StatusSpread float64 `yaml:"statusSpread"`
	// IANA zone for hour/day-of-week features; empty means local time
	Timezone string `yaml:"timezone"`
}

type EmbedderConfig struct {
	Provider  string        `yaml:"provider"` // "hugot", "http" or "hash"
	ModelPath string        `yaml:"modelPath"`
	Endpoint  string        `yaml:"endpoint"`
	// Bearer token for the http provider; if empty, read from env HF_API_TOKEN
	Token     string        `yaml:"token"`
	Dim       int           `yaml:"dim"`
	Timeout   time.Duration `yaml:"timeout"`
	Cache     CacheConfig   `yaml:"cache"`
}

type CacheConfig struct {
	Provider string        `yaml:"provider"` // "none", "memory" or "valkey"
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

type EmotionConfig struct {
	Provider  string `yaml:"provider"` // "hugot" or "none"
	ModelPath string `yaml:"modelPath"`
	MaxLength int    `yaml:"maxLength"`
}

type FacebookConfig struct {
	// If empty, read from env FACEBOOK_PAGE_ID
	PageID string `yaml:"pageID"`
	// If empty, read from env FACEBOOK_TOKEN
	AccessToken string        `yaml:"accessToken"`
	BaseURL     string        `yaml:"baseURL"`
	APIVersion  string        `yaml:"apiVersion"`
	Timeout     time.Duration `yaml:"timeout"`
	RPS         float64       `yaml:"rps"`
	Burst       int           `yaml:"burst"`
	// Interval between token validity checks; zero disables the monitor
	TokenCheckInterval time.Duration `yaml:"tokenCheckInterval"`
}

type SchedulerConfig struct {
	Store       string        `yaml:"store"` // "json", "sqlite" or "dynamodb"
	Path        string        `yaml:"path"`
	Interval    time.Duration `yaml:"interval"`
	DynamoTable string        `yaml:"dynamoTable"`
	DynamoURL   string        `yaml:"dynamoURL"`
	// Posted/Failed posts older than this are pruned by `posts prune`
	RetainDays int `yaml:"retainDays"`
	// Publish caps; zero is unlimited
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
}

type StorageConfig struct {
	DBPath           string `yaml:"dbPath"`
	TrackPredictions bool   `yaml:"trackPredictions"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "none"
	Model    string `yaml:"model"`
	// If empty, read from env OPENAI_API_KEY
	APIKey string `yaml:"apiKey"`
}

type EventsConfig struct {
	KafkaBroker string `yaml:"kafkaBroker"`
	Topic       string `yaml:"topic"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":5000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 25 * time.Second,
			RateLimit:      100,
			RateWindow:     60 * time.Second,
			CORSOrigin:     "*",
		},
		Models: ModelsConfig{
			Dir:                 "./models",
			MaxCaptionLength:    5000,
			TrustedStatusMember: "rf",
			StatusCenter:        0.46,
			StatusSpread:        0.008,
		},
		Embedder: EmbedderConfig{
			Provider:  "hugot",
			ModelPath: "./models/all-MiniLM-L6-v2",
			Dim:       384,
			Timeout:   10 * time.Second,
			Cache:     CacheConfig{Provider: "none", TTL: 24 * time.Hour},
		},
		Emotion: EmotionConfig{
			Provider:  "hugot",
			ModelPath: "./models/emotion-english-distilroberta-base",
			MaxLength: 512,
		},
		Facebook: FacebookConfig{
			BaseURL:            "https://graph.facebook.com",
			APIVersion:         "v18.0",
			Timeout:            15 * time.Second,
			RPS:                1,
			Burst:              5,
			TokenCheckInterval: 30 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Store:      "json",
			Path:       "./scheduled_posts.json",
			Interval:   30 * time.Second,
			RetainDays: 30,
		},
		Storage: StorageConfig{DBPath: "./inspiro.db"},
		LLM:     LLMConfig{Provider: "none", Model: "gpt-4o-mini"},
		Events:  EventsConfig{Topic: "inspiro.posts"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadEnvFile loads config/envs/.env.<APP_ENV> (or .env when APP_ENV is unset)
// into the process environment. A missing file is not an error.
func LoadEnvFile() error {
	name := ".env"
	if env := os.Getenv("APP_ENV"); env != "" {
		name = filepath.Join("config", "envs", ".env."+env)
	}
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return gotenv.Load(name)
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Facebook.AccessToken == "" {
		c.Facebook.AccessToken = os.Getenv("FACEBOOK_TOKEN")
	}
	if c.Facebook.PageID == "" {
		c.Facebook.PageID = os.Getenv("FACEBOOK_PAGE_ID")
	}
	if v := os.Getenv("MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
	if c.LLM.APIKey == "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedder.Token == "" {
		c.Embedder.Token = os.Getenv("HF_API_TOKEN")
	}
	if c.Embedder.Cache.Address == "" {
		c.Embedder.Cache.Address = os.Getenv("VALKEY_INIT_ADDRESS")
	}
	if c.Embedder.Cache.Password == "" {
		c.Embedder.Cache.Password = os.Getenv("VALKEY_PASSWORD")
	}
	if c.Events.KafkaBroker == "" {
		c.Events.KafkaBroker = os.Getenv("KAFKA_BROKER")
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = os.Getenv("METRICS_ADDR")
	}
}

// Load reads YAML config from path. Fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Location resolves the configured feature timezone.
func (m ModelsConfig) Location() *time.Location {
	if m.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
