package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the complete ticketgate configuration. It is built once at
// startup and handed to each component by value.
type Config struct {
	GitHub  GitHub  `yaml:"github"`
	Tracker Tracker `yaml:"tracker"`
	Model   Model   `yaml:"model"`
	Retry   Retry   `yaml:"retry"`
	Gate    Gate    `yaml:"gate"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

// GitHub holds source-control host settings. Either Token or the App fields
// must be set.
type GitHub struct {
	Token          string        `yaml:"token,omitempty" env:"GITHUB_TOKEN,overwrite"`
	APIURL         string        `yaml:"apiURL,omitempty" env:"GITHUB_API_URL,overwrite"`
	AppID          int64         `yaml:"appID,omitempty" env:"GITHUB_APP_ID,overwrite"`
	InstallationID int64         `yaml:"installationID,omitempty" env:"GITHUB_APP_INSTALLATION_ID,overwrite"`
	PrivateKeyPath string        `yaml:"privateKeyPath,omitempty" env:"GITHUB_APP_PRIVATE_KEY_PATH,overwrite"`
	Timeout        time.Duration `yaml:"timeout" env:"GITHUB_TIMEOUT,overwrite"`
}

// UsesApp reports whether GitHub App installation auth is configured.
func (g GitHub) UsesApp() bool {
	return g.AppID != 0 && g.PrivateKeyPath != ""
}

// Tracker holds issue tracker settings. URL takes precedence over Host.
type Tracker struct {
	URL     string        `yaml:"url,omitempty" env:"JIRA_API_URL,overwrite"`
	Host    string        `yaml:"host,omitempty" env:"JIRA_HOST,overwrite"`
	Email   string        `yaml:"email,omitempty" env:"JIRA_USER_EMAIL,overwrite"`
	Token   string        `yaml:"token,omitempty" env:"JIRA_API_TOKEN,overwrite"`
	Timeout time.Duration `yaml:"timeout" env:"JIRA_TIMEOUT,overwrite"`
}

// BaseURL returns the tracker root without a trailing slash.
func (t Tracker) BaseURL() string {
	if t.URL != "" {
		return strings.TrimRight(t.URL, "/")
	}
	if t.Host != "" {
		host := strings.TrimRight(t.Host, "/")
		if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
			return host
		}
		return "https://" + host
	}
	return ""
}

// Model holds completion provider settings.
type Model struct {
	Provider    string        `yaml:"provider" env:"TICKETGATE_PROVIDER,overwrite"`
	Name        string        `yaml:"name,omitempty" env:"TICKETGATE_MODEL,overwrite"`
	BaseURL     string        `yaml:"baseURL,omitempty" env:"TICKETGATE_MODEL_BASE_URL,overwrite"`
	MaxTokens   int           `yaml:"maxTokens" env:"TICKETGATE_MAX_TOKENS,overwrite"`
	Temperature float64       `yaml:"temperature" env:"TICKETGATE_TEMPERATURE,overwrite"`
	Timeout     time.Duration `yaml:"timeout" env:"TICKETGATE_MODEL_TIMEOUT,overwrite"`

	AnthropicKey string `yaml:"anthropicKey,omitempty" env:"ANTHROPIC_API_KEY,overwrite"`
	OpenAIKey    string `yaml:"openaiKey,omitempty" env:"OPENAI_API_KEY,overwrite"`
	MistralKey   string `yaml:"mistralKey,omitempty" env:"MISTRAL_API_KEY,overwrite"`
	GeminiKey    string `yaml:"geminiKey,omitempty" env:"GEMINI_API_KEY,overwrite"`
	OllamaHost   string `yaml:"ollamaHost,omitempty" env:"OLLAMA_HOST,overwrite"`
	OllamaKey    string `yaml:"ollamaKey,omitempty" env:"TICKETGATE_OLLAMA_API_KEY,overwrite"`
	Azure        Azure  `yaml:"azure"`
}

// Azure holds Azure OpenAI deployment settings.
type Azure struct {
	Key        string `yaml:"key,omitempty" env:"AZURE_API_KEY,overwrite"`
	Endpoint   string `yaml:"endpoint,omitempty" env:"AZURE_API_BASE,overwrite"`
	APIVersion string `yaml:"apiVersion,omitempty" env:"AZURE_API_VERSION,overwrite"`
	Deployment string `yaml:"deployment,omitempty" env:"AZURE_DEPLOYMENT_MODEL,overwrite"`
}

// Retry configures the completion retry policy. Only rate-limited calls are
// retried; the delay before retry i is BaseDelay * 2^i.
type Retry struct {
	MaxAttempts int           `yaml:"maxAttempts" env:"TICKETGATE_MAX_ATTEMPTS,overwrite"`
	BaseDelay   time.Duration `yaml:"baseDelay" env:"TICKETGATE_BASE_DELAY,overwrite"`
}

// Gate holds decision and prompt-shaping settings.
type Gate struct {
	Threshold     int      `yaml:"threshold" env:"TICKETGATE_THRESHOLD,overwrite"`
	Review        bool     `yaml:"review" env:"TICKETGATE_REVIEW,overwrite"`
	MatchMode     string   `yaml:"matchMode" env:"TICKETGATE_MATCH_MODE,overwrite"`
	MaxDiffBytes  int      `yaml:"maxDiffBytes" env:"TICKETGATE_MAX_DIFF_BYTES,overwrite"`
	RedactSecrets bool     `yaml:"redactSecrets" env:"TICKETGATE_REDACT_SECRETS,overwrite"`
	RedactPaths   []string `yaml:"redactPaths,omitempty" env:"TICKETGATE_REDACT_PATHS,overwrite"`
	Exclude       []string `yaml:"exclude,omitempty" env:"TICKETGATE_EXCLUDE,overwrite"`
	DryRun        bool     `yaml:"dryRun" env:"TICKETGATE_DRY_RUN,overwrite"`
}

// Server holds webhook server settings.
type Server struct {
	Port          int           `yaml:"port" env:"PORT,overwrite"`
	WebhookSecret string        `yaml:"webhookSecret,omitempty" env:"GITHUB_WEBHOOK_SECRET,overwrite"`
	RunTimeout    time.Duration `yaml:"runTimeout" env:"TICKETGATE_RUN_TIMEOUT,overwrite"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level" env:"TICKETGATE_LOG_LEVEL,overwrite"`
	Format string `yaml:"format" env:"TICKETGATE_LOG_FORMAT,overwrite"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		GitHub: GitHub{
			Timeout: 60 * time.Second,
		},
		Tracker: Tracker{
			Timeout: 10 * time.Second,
		},
		Model: Model{
			Provider:    "azure",
			MaxTokens:   3200,
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		Retry: Retry{
			MaxAttempts: 5,
			BaseDelay:   2 * time.Second,
		},
		Gate: Gate{
			Threshold:     80,
			Review:        true,
			MatchMode:     "url",
			MaxDiffBytes:  200000,
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
			Exclude:       []string{"vendor/**", "**/*.gen.go", "**/dist/**"},
		},
		Server: Server{
			Port:       8080,
			RunTimeout: 10 * time.Minute,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective config by merging: defaults <- file <- env.
// An empty path skips the file layer. A nil lookuper reads the process
// environment.
func Load(ctx context.Context, path string, l envconfig.Lookuper) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}

	// The manual variant of the original tooling named the token JIRA_API_KEY.
	if cfg.Tracker.Token == "" {
		if v, ok := l.Lookup("JIRA_API_KEY"); ok {
			cfg.Tracker.Token = v
		}
	}

	return cfg, nil
}

// LoadFile decodes a YAML config file on top of cfg. Keys absent from the
// file leave the existing values untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ApplyOverrides applies CLI flag values. Only non-empty values are applied.
func ApplyOverrides(cfg *Config, overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Model.Provider = value
	case "model":
		cfg.Model.Name = value
	case "threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("threshold must be an integer: %w", err)
		}
		cfg.Gate.Threshold = n
	case "matchMode":
		cfg.Gate.MatchMode = value
	case "review":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("review must be a boolean: %w", err)
		}
		cfg.Gate.Review = b
	case "dryRun":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("dryRun must be a boolean: %w", err)
		}
		cfg.Gate.DryRun = b
	case "maxDiffBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxDiffBytes must be an integer: %w", err)
		}
		cfg.Gate.MaxDiffBytes = n
	case "maxAttempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxAttempts must be an integer: %w", err)
		}
		cfg.Retry.MaxAttempts = n
	case "logLevel":
		cfg.Log.Level = value
	case "logFormat":
		cfg.Log.Format = value
	case "port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("port must be an integer: %w", err)
		}
		cfg.Server.Port = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Validate reports every problem that would make a run fail before any
// network call is made.
func (c Config) Validate() error {
	var errs []error

	if c.Gate.Threshold < 0 || c.Gate.Threshold > 100 {
		errs = append(errs, fmt.Errorf("threshold %d is outside 0-100", c.Gate.Threshold))
	}
	switch c.Gate.MatchMode {
	case "url", "loose":
	default:
		errs = append(errs, fmt.Errorf("unknown match mode %q (want url or loose)", c.Gate.MatchMode))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay cannot be negative"))
	}

	if c.GitHub.Token == "" && !c.GitHub.UsesApp() {
		errs = append(errs, errors.New("GITHUB_TOKEN or GitHub App credentials are required"))
	}

	if c.Tracker.BaseURL() == "" {
		errs = append(errs, errors.New("JIRA_API_URL or JIRA_HOST is required"))
	}
	if c.Tracker.Email == "" || c.Tracker.Token == "" {
		errs = append(errs, errors.New("JIRA_USER_EMAIL and JIRA_API_TOKEN are required"))
	}

	if err := c.Model.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (m Model) validate() error {
	switch m.Provider {
	case "anthropic":
		if m.AnthropicKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required for provider anthropic")
		}
	case "openai":
		if m.OpenAIKey == "" {
			return errors.New("OPENAI_API_KEY is required for provider openai")
		}
	case "azure":
		if m.Azure.Key == "" || m.Azure.Endpoint == "" || (m.Azure.Deployment == "" && m.Name == "") {
			return errors.New("AZURE_API_KEY, AZURE_API_BASE and AZURE_DEPLOYMENT_MODEL are required for provider azure")
		}
	case "mistral":
		if m.MistralKey == "" {
			return errors.New("MISTRAL_API_KEY is required for provider mistral")
		}
	case "gemini", "google":
		if m.GeminiKey == "" {
			return errors.New("GEMINI_API_KEY is required for provider gemini")
		}
	case "ollama", "lmstudio":
	default:
		return fmt.Errorf("unknown provider: %s", m.Provider)
	}
	return nil
}

const mask = "********"

// Redacted returns a copy with every credential masked, for display.
func (c Config) Redacted() Config {
	r := c
	for _, s := range []*string{
		&r.GitHub.Token,
		&r.Tracker.Token,
		&r.Model.AnthropicKey,
		&r.Model.OpenAIKey,
		&r.Model.MistralKey,
		&r.Model.GeminiKey,
		&r.Model.OllamaKey,
		&r.Model.Azure.Key,
		&r.Server.WebhookSecret,
	} {
		if *s != "" {
			*s = mask
		}
	}
	return r
}
