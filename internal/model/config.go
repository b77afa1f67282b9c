package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete Athena configuration
type Config struct {
	API          APIConfig         `yaml:"api" mapstructure:"api"`
	Polling      PollingConfig     `yaml:"polling" mapstructure:"polling"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Authority    AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// APIConfig describes the remote fact-checking service
type APIConfig struct {
	BaseURL       string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per request
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	Pipeline      string        `yaml:"pipeline" mapstructure:"pipeline"`
	MaxInputChars int           `yaml:"max_input_chars" mapstructure:"max_input_chars"`
}

// PollingConfig bounds the result polling loop
type PollingConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	Step         time.Duration `yaml:"step" mapstructure:"step"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// CacheConfig controls the verdict cache
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir        string        `yaml:"dir" mapstructure:"dir"` // Empty disables the disk layer
	DiskTTL    time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig limits outgoing requests per host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// HTTPConfig holds settings for page fetches and link checks
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ConcurrencyConfig sizes the worker pools
type ConcurrencyConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`
	ValidationWorkers int `yaml:"validation_workers" mapstructure:"validation_workers"`
}

// AuthorityConfig drives source reliability classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"` // host -> tier name
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// LLMConfig configures the optional educational explainer
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	cacheDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".athena", "cache")
	}

	return &Config{
		API: APIConfig{
			BaseURL:       "http://localhost:8000",
			Timeout:       15 * time.Second,
			UserAgent:     "Athena/0.1 (+https://github.com/ppiankov/athena)",
			Pipeline:      "fact",
			MaxInputChars: 2000,
		},
		Polling: PollingConfig{
			MaxAttempts:  30,
			InitialDelay: 1 * time.Second,
			Step:         1 * time.Second,
			MaxDelay:     5 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 100,
			TTL:        6 * time.Hour,
			Dir:        cacheDir,
			DiskTTL:    24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			BurstSize:         5,
		},
		HTTP: HTTPConfig{
			Timeout:       20 * time.Second,
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			ValidationWorkers: 10,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"who.int",
				"cdc.gov",
				"nasa.gov",
				"nih.gov",
				"europa.eu",
				"un.org",
				"doi.org",
				"pubmed.ncbi.nlm.nih.gov",
				"nature.com",
				"science.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org",
				"britannica.com",
				"reuters.com",
				"apnews.com",
				"bbc.co.uk",
				"bbc.com",
				"snopes.com",
				"politifact.com",
				"factcheck.org",
				"fullfact.org",
				"scientificamerican.com",
			},
		},
		LLM: LLMConfig{
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      600,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
