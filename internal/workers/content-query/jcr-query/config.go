package jcrqueryworker

import (
	"time"

	"cms-query-workers/internal/jcrquery"
)

type Config struct {
	Timeout         time.Duration
	QueryTimeout    time.Duration
	CacheTTL        time.Duration
	DefaultLanguage string
	DefaultView     string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		QueryTimeout:    jcrquery.DefaultTimeout,
		CacheTTL:        5 * time.Minute,
		DefaultLanguage: "en",
		DefaultView:     "default",
	}
}
