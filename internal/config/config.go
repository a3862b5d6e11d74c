package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token        string  `env:"TOKEN"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"                 envDefault:"db.sqlite"`
	OpenAIAPIKey string  `env:"OPENAI_API_KEY"`
	OpenAIModel  string  `env:"OPENAI_MODEL"            envDefault:"gpt-5-mini"`
	HTTPAddr     string  `env:"HTTP_ADDR"`
	FeedsFile    string  `env:"FEEDS_FILE"`

	MaxArticlesPerFeed   int           `env:"MAX_ARTICLES_PER_FEED"  envDefault:"100"`
	RetentionDays        int           `env:"RETENTION_DAYS"         envDefault:"30"`
	RetentionKeepStarred bool          `env:"RETENTION_KEEP_STARRED" envDefault:"true"`
	RefreshInterval      time.Duration `env:"REFRESH_INTERVAL"       envDefault:"30m"`
	CleanupSpec          string        `env:"CLEANUP_SPEC"           envDefault:"@daily"`
	FeedTimeout          time.Duration `env:"FEED_TIMEOUT"           envDefault:"15s"`
	RefreshConcurrency   int           `env:"REFRESH_CONCURRENCY"    envDefault:"8"`
}

func LoadConfig() Config {
	return env.Must(env.ParseAs[Config]())
}
