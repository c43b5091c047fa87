package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

// Retention is the process-wide retention policy. It is parsed once at
// startup and handed to components by value.
type Retention struct {
	MaxMessagesPerChannel   int `env:"MAX_MESSAGES_PER_CHANNEL" envDefault:"1000"`
	MaxActiveConversations  int `env:"MAX_ACTIVE_CONVERSATIONS" envDefault:"100"`
	MaxContextMessagesForAI int `env:"MAX_CONTEXT_MESSAGES_FOR_AI" envDefault:"100"`
}

// DefaultRetention returns the policy used when nothing is configured.
func DefaultRetention() Retention {
	return Retention{
		MaxMessagesPerChannel:   1000,
		MaxActiveConversations:  100,
		MaxContextMessagesForAI: 100,
	}
}

func (r Retention) Validate() error {
	if r.MaxMessagesPerChannel <= 0 {
		return fmt.Errorf("MAX_MESSAGES_PER_CHANNEL must be positive, got %d", r.MaxMessagesPerChannel)
	}
	if r.MaxActiveConversations <= 0 {
		return fmt.Errorf("MAX_ACTIVE_CONVERSATIONS must be positive, got %d", r.MaxActiveConversations)
	}
	if r.MaxContextMessagesForAI <= 0 {
		return fmt.Errorf("MAX_CONTEXT_MESSAGES_FOR_AI must be positive, got %d", r.MaxContextMessagesForAI)
	}
	return nil
}

// Storage holds everything the binaries that only touch the database need.
type Storage struct {
	DatabasePath      string `env:"DATABASE_PATH" envDefault:"data/conversations.db"`
	OperatorsFilePath string `env:"OPERATORS_FILE_PATH" envDefault:"data/operators.json"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string `env:"LOG_FORMAT" envDefault:"console"`

	Retention Retention
}

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	AdminUserID      string `env:"ADMIN_USER"`

	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	AITimeout        time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Prompts
	SystemPromptPath  string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`
	SummaryPromptPath string `env:"SUMMARY_PROMPT_PATH" envDefault:"prompts/summary_prompt.txt"`
	RoastPromptPath   string `env:"ROAST_PROMPT_PATH" envDefault:"prompts/roast_prompt.txt"`
	ReplyPromptPath   string `env:"RANDOM_REPLY_PROMPT_PATH" envDefault:"prompts/random_reply.txt"`

	// Maintenance
	ReconcileSchedule      string `env:"RECONCILE_SCHEDULE" envDefault:"0 4 * * *"`
	ActivityReportSchedule string `env:"ACTIVITY_REPORT_SCHEDULE" envDefault:"0 21 * * *"`

	// Random replies, off unless a schedule is set
	RandomReplySchedule string        `env:"RANDOM_REPLY_SCHEDULE"`
	RandomReplyLookback time.Duration `env:"RANDOM_REPLY_LOOKBACK" envDefault:"168h"`
	RandomReplyExclude  []string      `env:"RANDOM_REPLY_EXCLUDE" envSeparator:","`

	MetricsAddr string `env:"METRICS_ADDR"`

	// Formatting
	MessageParseMode string `env:"MESSAGE_PARSE_MODE"`

	Storage Storage
}

// New parses the full bot configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Storage.Retention.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewStorage parses only the storage related part of the configuration.
func NewStorage() (*Storage, error) {
	cfg := &Storage{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	if err := cfg.Retention.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
