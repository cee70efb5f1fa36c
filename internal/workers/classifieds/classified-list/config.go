package classifiedlist

import (
	"time"

	"cms-query-workers/internal/classifieds"
)

type Config struct {
	Timeout         time.Duration
	FetchTimeout    time.Duration
	CacheTTL        time.Duration
	MaxItems        int
	DefaultLanguage string
	DefaultLocale   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		FetchTimeout:    5 * time.Second,
		CacheTTL:        5 * time.Minute,
		MaxItems:        classifieds.DefaultMaxItems,
		DefaultLanguage: "en",
		DefaultLocale:   "en",
	}
}
