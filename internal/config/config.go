package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all settings for one run. It is built once in the command
// layer and passed by reference into every component constructor; nothing
// reads the environment after startup.
type Config struct {
	// LLM provider settings
	LLMProvider      string `mapstructure:"llm_provider"`
	AnthropicAPIKey  string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	Model            string `mapstructure:"claude_model"`
	SummaryMaxTokens int    `mapstructure:"summary_max_tokens"`

	// arXiv fetch settings
	Categories   []string
	FetchLimit   int    `mapstructure:"arxiv_daily_fetch_limit"`
	DisplayLimit int    `mapstructure:"arxiv_display_limit"`
	SearchQuery  string `mapstructure:"arxiv_search_query"`

	// Interest keywords driving digest ranking
	Keywords []string

	// Email delivery
	SMTPHost      string `mapstructure:"smtp_host"`
	SMTPPort      int    `mapstructure:"smtp_port"`
	SMTPUsername  string `mapstructure:"smtp_username"`
	SMTPPassword  string `mapstructure:"smtp_password"`
	EmailFrom     string `mapstructure:"email_from"`
	EmailTo       []string
	SubjectPrefix string `mapstructure:"email_subject_prefix"`

	// Admin notifications (errors + success summaries)
	NotificationEmailTo string `mapstructure:"notification_email_to"`
	NotificationPrefix  string `mapstructure:"notification_email_prefix"`
	NotificationsOn     bool   `mapstructure:"notifications_enabled"`

	DataDir string `mapstructure:"data_dir"`
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Load reads configuration from environment variables, applies defaults,
// and validates required fields. Missing required variables are reported
// together in a single error so the operator can fix them in one pass.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("llm_provider", "anthropic")
	v.SetDefault("claude_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("summary_max_tokens", 150)
	v.SetDefault("arxiv_categories", "cs.AI,cs.CL,cs.LG")
	v.SetDefault("arxiv_daily_fetch_limit", 15)
	v.SetDefault("arxiv_display_limit", 15)
	v.SetDefault("smtp_port", 587)
	v.SetDefault("email_subject_prefix", "[arXiv Digest]")
	v.SetDefault("notification_email_prefix", "[arXiv Bot]")
	v.SetDefault("notifications_enabled", true)
	v.SetDefault("data_dir", "/app/data")

	v.AutomaticEnv()
	for key, env := range map[string]string{
		"llm_provider":              "LLM_PROVIDER",
		"anthropic_api_key":         "ANTHROPIC_API_KEY",
		"openai_api_key":            "OPENAI_API_KEY",
		"claude_model":              "CLAUDE_MODEL",
		"summary_max_tokens":        "SUMMARY_MAX_TOKENS",
		"arxiv_categories":          "ARXIV_CATEGORIES",
		"arxiv_daily_fetch_limit":   "ARXIV_DAILY_FETCH_LIMIT",
		"arxiv_display_limit":       "ARXIV_DISPLAY_LIMIT",
		"arxiv_search_query":        "ARXIV_SEARCH_QUERY",
		"interest_keywords":         "INTEREST_KEYWORDS",
		"smtp_host":                 "SMTP_HOST",
		"smtp_port":                 "SMTP_PORT",
		"smtp_username":             "SMTP_USERNAME",
		"smtp_password":             "SMTP_PASSWORD",
		"email_from":                "EMAIL_FROM",
		"email_to":                  "EMAIL_TO",
		"email_subject_prefix":      "EMAIL_SUBJECT_PREFIX",
		"notification_email_to":     "NOTIFICATION_EMAIL_TO",
		"notification_email_prefix": "NOTIFICATION_EMAIL_PREFIX",
		"notifications_enabled":     "NOTIFICATIONS_ENABLED",
		"data_dir":                  "DATA_DIR",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var missing []string
	for env, val := range map[string]string{
		"SMTP_HOST":     cfg.SMTPHost,
		"SMTP_USERNAME": cfg.SMTPUsername,
		"SMTP_PASSWORD": cfg.SMTPPassword,
		"EMAIL_FROM":    cfg.EmailFrom,
		"EMAIL_TO":      v.GetString("email_to"),
	} {
		if val == "" {
			missing = append(missing, env)
		}
	}
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		if cfg.AnthropicAPIKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	cfg.Categories = splitList(v.GetString("arxiv_categories"))
	cfg.Keywords = splitList(v.GetString("interest_keywords"))
	cfg.EmailTo = splitList(v.GetString("email_to"))

	if len(cfg.EmailTo) == 0 {
		return nil, fmt.Errorf("EMAIL_TO is empty after parsing")
	}
	for _, addr := range cfg.EmailTo {
		if !emailPattern.MatchString(addr) {
			return nil, fmt.Errorf("invalid digest recipient: %s", addr)
		}
	}

	if cfg.NotificationEmailTo == "" {
		cfg.NotificationEmailTo = cfg.EmailTo[0]
	} else if !emailPattern.MatchString(cfg.NotificationEmailTo) {
		return nil, fmt.Errorf("invalid notification recipient: %s", cfg.NotificationEmailTo)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &cfg, nil
}

// DBPath returns the sqlite database location under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "digest.db")
}

// LogDir returns where run logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
