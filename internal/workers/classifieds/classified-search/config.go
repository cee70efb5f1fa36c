package classifiedsearch

import (
	"time"

	"cms-query-workers/internal/classifieds"
	"cms-query-workers/internal/jcrquery"
)

type Config struct {
	Timeout         time.Duration
	QueryTimeout    time.Duration
	Workspace       jcrquery.Workspace
	DefaultLanguage string
	ResultsPerPage  int
	SubNodeView     string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		QueryTimeout:    jcrquery.DefaultTimeout,
		Workspace:       jcrquery.WorkspaceLive,
		DefaultLanguage: "en",
		ResultsPerPage:  classifieds.DefaultResultsPerPage,
		SubNodeView:     classifieds.SearchSubNodeView,
	}
}
