package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobagg/internal/model"
)

const slackWebhookPrefix = "https://hooks.slack.com/"

// Config is the root configuration for jobagg.
type Config struct {
	Database     DatabaseConfig
	Log          LogConfig
	Server       ServerConfig
	HTTP         HTTPConfig
	Scrape       ScrapeConfig
	RateLimit    RateLimitConfig
	Retry        RetryConfig
	Detail       DetailConfig
	Schedule     ScheduleConfig
	Sources      SourcesConfig
	Filters      FilterConfig
	Notification NotificationConfig
}

type DatabaseConfig struct {
	Path string `validate:"required"`
}

type LogConfig struct {
	Format string `validate:"oneof=text json"`
	Level  string `validate:"oneof=debug info warn error"`
}

type ServerConfig struct {
	Addr         string        `validate:"required"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
}

type HTTPConfig struct {
	Timeout time.Duration `validate:"gt=0"` // per-request timeout for source calls
}

type ScrapeConfig struct {
	Workers       int           `validate:"min=1,max=64"`
	MaxPages      int           `validate:"min=1,max=100"`
	SourceTimeout time.Duration `validate:"gt=0"`
	AutoImport    bool          // import into the projection store after every run
}

// RateLimitPolicy bounds calls to one source. Zero fields disable that check.
type RateLimitPolicy struct {
	MaxCalls int           `validate:"min=0"`
	Interval time.Duration `validate:"min=0"`
	MinDelay time.Duration `validate:"min=0"`
}

// RateLimitConfig holds the default policy and per-source overrides.
type RateLimitConfig struct {
	Default RateLimitPolicy
	Sources map[string]RateLimitPolicy `validate:"dive"`
}

// PolicyFor returns the configured policy for the given source, falling back to Default.
func (r RateLimitConfig) PolicyFor(source string) RateLimitPolicy {
	if p, ok := r.Sources[source]; ok {
		return p
	}
	return r.Default
}

type RetryConfig struct {
	MaxRetries int           `validate:"min=0,max=10"`
	BaseDelay  time.Duration `validate:"gt=0"`
	MaxDelay   time.Duration `validate:"gtefield=BaseDelay"`
}

type DetailConfig struct {
	Timeout    time.Duration `validate:"gt=0"`
	Rate       float64       `validate:"gte=0"` // fetches per second, 0 = unlimited
	Burst      int           `validate:"min=1"`
	FailureTTL time.Duration `validate:"gt=0"`
}

// SearchConfig is a saved query run on every scheduled cycle.
type SearchConfig struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords string   `yaml:"keywords"`
	Location string   `yaml:"location"`
	Sources  []string `yaml:"sources"`
	MaxPages int      `yaml:"max_pages" validate:"min=0,max=100"`
}

type ScheduleConfig struct {
	Spec         string         `validate:"required"` // cron spec, e.g. "@every 6h"
	Searches     []SearchConfig `validate:"dive"`
	CleanupAfter time.Duration  `validate:"min=0"` // retention window, 0 keeps everything
	CleanupSpec  string
}

// BoardConfig is one company career board.
type BoardConfig struct {
	Token   string `yaml:"token" validate:"required"`
	Company string `yaml:"company" validate:"required"`
}

type AdzunaConfig struct {
	Enabled bool
	AppID   string
	AppKey  string
	Country string `validate:"len=2"`
}

type WeWorkRemotelyConfig struct {
	Enabled    bool
	Categories []string
}

type BoardSourceConfig struct {
	Enabled bool
	Boards  []BoardConfig `validate:"dive"`
}

type SourcesConfig struct {
	RemoteOK       bool
	Remotive       bool
	AuthenticJobs  bool
	Adzuna         AdzunaConfig
	WeWorkRemotely WeWorkRemotelyConfig
	Greenhouse     BoardSourceConfig
	Lever          BoardSourceConfig
	Ashby          BoardSourceConfig
	Gem            BoardSourceConfig
}

// FilterConfig holds keyword and location filter settings.
type FilterConfig struct {
	TitleKeywords        []string
	TitleExcludeKeywords []string
	Locations            []string
	ExcludeLocations     []string
	USOnly               bool // keep only postings located in the US or remote without a foreign region
}

// NotificationConfig controls which run reporter is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type" validate:"oneof=log slack"`
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Database     DatabaseConfig     `yaml:"database"`
	Log          rawLogConfig       `yaml:"log"`
	Server       rawServerConfig    `yaml:"server"`
	HTTP         rawHTTPConfig      `yaml:"http"`
	Scrape       rawScrapeConfig    `yaml:"scrape"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Retry        rawRetryConfig     `yaml:"retry"`
	Detail       rawDetailConfig    `yaml:"detail"`
	Schedule     rawScheduleConfig  `yaml:"schedule"`
	Sources      rawSourcesConfig   `yaml:"sources"`
	Filters      rawFilterConfig    `yaml:"filters"`
	Notification NotificationConfig `yaml:"notification"`
}

type rawLogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type rawServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
}

type rawHTTPConfig struct {
	Timeout string `yaml:"timeout"`
}

type rawScrapeConfig struct {
	Workers       int    `yaml:"workers"`
	MaxPages      int    `yaml:"max_pages"`
	SourceTimeout string `yaml:"source_timeout"`
	AutoImport    *bool  `yaml:"auto_import"`
}

type rawPolicy struct {
	MaxCalls int    `yaml:"max_calls"`
	Interval string `yaml:"interval"`
	MinDelay string `yaml:"min_delay"`
}

type rawRateLimitConfig struct {
	Default *rawPolicy           `yaml:"default"`
	Sources map[string]rawPolicy `yaml:"sources"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
	MaxDelay   string `yaml:"max_delay"`
}

type rawDetailConfig struct {
	Timeout    string   `yaml:"timeout"`
	Rate       *float64 `yaml:"rate"`
	Burst      int      `yaml:"burst"`
	FailureTTL string   `yaml:"failure_ttl"`
}

type rawScheduleConfig struct {
	Spec         string         `yaml:"spec"`
	Searches     []SearchConfig `yaml:"searches"`
	CleanupAfter string         `yaml:"cleanup_after"`
	CleanupSpec  string         `yaml:"cleanup_spec"`
}

type rawToggle struct {
	Enabled *bool `yaml:"enabled"`
}

type rawAdzunaConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppID   string `yaml:"app_id"`
	AppKey  string `yaml:"app_key"`
	Country string `yaml:"country"`
}

type rawWeWorkRemotelyConfig struct {
	Enabled    *bool    `yaml:"enabled"`
	Categories []string `yaml:"categories"`
}

type rawBoardSourceConfig struct {
	Enabled *bool         `yaml:"enabled"`
	Boards  []BoardConfig `yaml:"boards"`
}

type rawSourcesConfig struct {
	RemoteOK       rawToggle               `yaml:"remoteok"`
	Remotive       rawToggle               `yaml:"remotive"`
	AuthenticJobs  rawToggle               `yaml:"authenticjobs"`
	Adzuna         rawAdzunaConfig         `yaml:"adzuna"`
	WeWorkRemotely rawWeWorkRemotelyConfig `yaml:"weworkremotely"`
	Greenhouse     rawBoardSourceConfig    `yaml:"greenhouse"`
	Lever          rawBoardSourceConfig    `yaml:"lever"`
	Ashby          rawBoardSourceConfig    `yaml:"ashby"`
	Gem            rawBoardSourceConfig    `yaml:"gem"`
}

type rawFilterConfig struct {
	TitleKeywords        []string `yaml:"title_keywords"`
	TitleExcludeKeywords []string `yaml:"title_exclude_keywords"`
	Locations            []string `yaml:"locations"`
	ExcludeLocations     []string `yaml:"exclude_locations"`
	USOnly               bool     `yaml:"us_only"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. Every failure is a *model.ConfigurationError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigurationError{Err: fmt.Errorf("read config: %w", err)}
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, &model.ConfigurationError{Err: fmt.Errorf("parse config: %w", err)}
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// durations parses named duration strings, keeping the first error.
type durations struct {
	err error
}

func (d *durations) parse(field, value string, def time.Duration) time.Duration {
	if value == "" || d.err != nil {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil {
		d.err = &model.ConfigurationError{Field: field, Err: fmt.Errorf("parse %q: %w", value, err)}
		return def
	}
	return v
}

func fromRaw(raw rawConfig) (*Config, error) {
	var d durations

	cfg := &Config{
		Database: DatabaseConfig{Path: or(raw.Database.Path, "jobagg.db")},
		Log: LogConfig{
			Format: or(raw.Log.Format, "text"),
			Level:  or(raw.Log.Level, "info"),
		},
		Server: ServerConfig{
			Addr:         or(raw.Server.Addr, ":8080"),
			ReadTimeout:  d.parse("server.read_timeout", raw.Server.ReadTimeout, 10*time.Second),
			WriteTimeout: d.parse("server.write_timeout", raw.Server.WriteTimeout, 5*time.Minute),
		},
		HTTP: HTTPConfig{
			Timeout: d.parse("http.timeout", raw.HTTP.Timeout, 30*time.Second),
		},
		Scrape: ScrapeConfig{
			Workers:       orInt(raw.Scrape.Workers, 4),
			MaxPages:      orInt(raw.Scrape.MaxPages, 5),
			SourceTimeout: d.parse("scrape.source_timeout", raw.Scrape.SourceTimeout, 5*time.Minute),
			AutoImport:    orBool(raw.Scrape.AutoImport, true),
		},
		Retry: RetryConfig{
			MaxRetries: 2,
			BaseDelay:  d.parse("retry.base_delay", raw.Retry.BaseDelay, 5*time.Second),
			MaxDelay:   d.parse("retry.max_delay", raw.Retry.MaxDelay, 2*time.Minute),
		},
		Detail: DetailConfig{
			Timeout:    d.parse("detail.timeout", raw.Detail.Timeout, 10*time.Second),
			Rate:       1,
			Burst:      orInt(raw.Detail.Burst, 2),
			FailureTTL: d.parse("detail.failure_ttl", raw.Detail.FailureTTL, 10*time.Minute),
		},
		Schedule: ScheduleConfig{
			Spec:         or(raw.Schedule.Spec, "@every 6h"),
			Searches:     raw.Schedule.Searches,
			CleanupAfter: d.parse("schedule.cleanup_after", raw.Schedule.CleanupAfter, 30*24*time.Hour),
			CleanupSpec:  or(raw.Schedule.CleanupSpec, "@daily"),
		},
		Sources: SourcesConfig{
			RemoteOK:      orBool(raw.Sources.RemoteOK.Enabled, true),
			Remotive:      orBool(raw.Sources.Remotive.Enabled, true),
			AuthenticJobs: orBool(raw.Sources.AuthenticJobs.Enabled, true),
			Adzuna: AdzunaConfig{
				Enabled: raw.Sources.Adzuna.Enabled,
				AppID:   raw.Sources.Adzuna.AppID,
				AppKey:  raw.Sources.Adzuna.AppKey,
				Country: strings.ToLower(or(raw.Sources.Adzuna.Country, "us")),
			},
			WeWorkRemotely: WeWorkRemotelyConfig{
				Enabled:    orBool(raw.Sources.WeWorkRemotely.Enabled, true),
				Categories: raw.Sources.WeWorkRemotely.Categories,
			},
			Greenhouse: boardSource(raw.Sources.Greenhouse),
			Lever:      boardSource(raw.Sources.Lever),
			Ashby:      boardSource(raw.Sources.Ashby),
			Gem:        boardSource(raw.Sources.Gem),
		},
		Filters: FilterConfig{
			TitleKeywords:        raw.Filters.TitleKeywords,
			TitleExcludeKeywords: raw.Filters.TitleExcludeKeywords,
			Locations:            raw.Filters.Locations,
			ExcludeLocations:     raw.Filters.ExcludeLocations,
			USOnly:               raw.Filters.USOnly,
		},
		Notification: NotificationConfig{
			Type:       or(raw.Notification.Type, "log"),
			WebhookURL: raw.Notification.WebhookURL,
		},
	}
	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}
	if raw.Detail.Rate != nil {
		cfg.Detail.Rate = *raw.Detail.Rate
	}

	// default: 60 calls a minute, 1s apart
	cfg.RateLimit.Default = RateLimitPolicy{MaxCalls: 60, Interval: time.Minute, MinDelay: time.Second}
	if raw.RateLimit.Default != nil {
		cfg.RateLimit.Default = policy(&d, "rate_limit.default", *raw.RateLimit.Default)
	}
	if len(raw.RateLimit.Sources) > 0 {
		cfg.RateLimit.Sources = make(map[string]RateLimitPolicy, len(raw.RateLimit.Sources))
		for name, p := range raw.RateLimit.Sources {
			cfg.RateLimit.Sources[name] = policy(&d, "rate_limit.sources."+name, p)
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	return cfg, nil
}

func policy(d *durations, field string, raw rawPolicy) RateLimitPolicy {
	return RateLimitPolicy{
		MaxCalls: raw.MaxCalls,
		Interval: d.parse(field+".interval", raw.Interval, 0),
		MinDelay: d.parse(field+".min_delay", raw.MinDelay, 0),
	}
}

// Board sources are on when they list at least one board, unless disabled.
func boardSource(raw rawBoardSourceConfig) BoardSourceConfig {
	return BoardSourceConfig{
		Enabled: orBool(raw.Enabled, len(raw.Boards) > 0),
		Boards:  raw.Boards,
	}
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orBool(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

var validate = func() func(cfg *Config) error {
	v := validator.New()
	return func(cfg *Config) error {
		if err := v.Struct(cfg); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				fe := verrs[0]
				field := strings.TrimPrefix(fe.Namespace(), "Config.")
				rule := fe.Tag()
				if fe.Param() != "" {
					rule += "=" + fe.Param()
				}
				return &model.ConfigurationError{Field: field, Err: fmt.Errorf("value %v fails %s", fe.Value(), rule)}
			}
			return &model.ConfigurationError{Err: err}
		}
		return crossCheck(cfg)
	}
}()

// crossCheck covers rules that span fields.
func crossCheck(cfg *Config) error {
	s := cfg.Sources
	if s.Adzuna.Enabled && (s.Adzuna.AppID == "" || s.Adzuna.AppKey == "") {
		return &model.ConfigurationError{Field: "sources.adzuna", Err: errors.New("app_id and app_key are required when enabled")}
	}
	for name, b := range map[string]BoardSourceConfig{"greenhouse": s.Greenhouse, "lever": s.Lever, "ashby": s.Ashby, "gem": s.Gem} {
		if b.Enabled && len(b.Boards) == 0 {
			return &model.ConfigurationError{Field: "sources." + name, Err: errors.New("at least one board is required when enabled")}
		}
	}
	if !s.RemoteOK && !s.Remotive && !s.AuthenticJobs && !s.Adzuna.Enabled && !s.WeWorkRemotely.Enabled &&
		!s.Greenhouse.Enabled && !s.Lever.Enabled && !s.Ashby.Enabled && !s.Gem.Enabled {
		return &model.ConfigurationError{Field: "sources", Err: errors.New("at least one source must be enabled")}
	}

	for name, p := range cfg.RateLimit.Sources {
		if p.MaxCalls > 0 && p.Interval == 0 {
			return &model.ConfigurationError{Field: "rate_limit.sources." + name, Err: errors.New("interval is required with max_calls")}
		}
	}
	if d := cfg.RateLimit.Default; d.MaxCalls > 0 && d.Interval == 0 {
		return &model.ConfigurationError{Field: "rate_limit.default", Err: errors.New("interval is required with max_calls")}
	}

	if cfg.Notification.Type == "slack" {
		if cfg.Notification.WebhookURL == "" {
			return &model.ConfigurationError{Field: "notification.webhook_url", Err: errors.New(`required when type is "slack"`)}
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return &model.ConfigurationError{Field: "notification.webhook_url", Err: fmt.Errorf("must start with %s", slackWebhookPrefix)}
		}
	}
	return nil
}
