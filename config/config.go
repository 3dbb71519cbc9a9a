package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const EnvPathVar = "OCRQCM_ENV"

type LoadOptions struct {
	// EnvFileOverride points at an explicit .env file and takes precedence
	// over the executable-directory lookup and OCRQCM_ENV.
	EnvFileOverride string
}

type Config struct {
	Capture struct {
		Left   int `env:"CAP_LEFT" envDefault:"40"`
		Top    int `env:"CAP_TOP" envDefault:"40"`
		Width  int `env:"CAP_WIDTH" envDefault:"1200"`
		Height int `env:"CAP_HEIGHT" envDefault:"700"`
	}

	OCR struct {
		Language    string `env:"OCR_LANG" envDefault:"fra"`
		EngineMode  string `env:"OCR_OEM" envDefault:"3"`
		PageSegMode string `env:"OCR_PSM" envDefault:"6"`
		TessdataDir string `env:"TESSDATA_DIR"`
	}

	LLM struct {
		Provider    string  `env:"PROVIDER" envDefault:"OpenAI"`
		Model       string  `env:"MODEL" envDefault:"gpt-4o-mini"`
		Prompt      string  `env:"PROMPT" envDefault:"Default (Raisonnement Général)"`
		Temperature float64 `env:"LLM_TEMP" envDefault:"0.0"`
		MaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"800"`
	}

	Keys struct {
		OpenAI    string `env:"OPENAI_API_KEY"`
		Anthropic string `env:"ANTHROPIC_API_KEY"`
		Gemini    string `env:"GEMINI_API_KEY"`
	}

	Outputs struct {
		CopyClipboard bool   `env:"COPY_CLIPBOARD" envDefault:"true"`
		AutoSave      bool   `env:"AUTO_SAVE" envDefault:"true"`
		SendDiscord   bool   `env:"SEND_DISCORD"`
		SendTelegram  bool   `env:"SEND_TELEGRAM"`
		WebhookURL    string `env:"DISCORD_WEBHOOK"`
		TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
		TelegramChat  string `env:"TELEGRAM_CHAT_ID"`
		LogDir        string `env:"LOG_DIR" envDefault:"logs"`
	}

	PromptsFile       string `env:"PROMPTS_FILE" envDefault:"prompts.json"`
	Hotkey            string `env:"HOTKEY" envDefault:"F2"`
	EnableFileLogging bool   `env:"ENABLE_FILE_LOGGING"`
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	if envPath := resolveEnvPath(opts); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// SEND_DISCORD unset: enabled exactly when a webhook URL is configured.
	if os.Getenv("SEND_DISCORD") == "" {
		cfg.Outputs.SendDiscord = strings.TrimSpace(cfg.Outputs.WebhookURL) != ""
	}

	return cfg, nil
}

// APIKey returns the configured key for a provider name, "" when unknown or unset.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "OpenAI":
		return strings.TrimSpace(c.Keys.OpenAI)
	case "Anthropic":
		return strings.TrimSpace(c.Keys.Anthropic)
	case "Gemini":
		return strings.TrimSpace(c.Keys.Gemini)
	default:
		return ""
	}
}

// resolveEnvPath looks for a .env file in priority order:
// explicit override, the executable's directory, then OCRQCM_ENV.
func resolveEnvPath(opts LoadOptions) string {
	if override := strings.TrimSpace(opts.EnvFileOverride); override != "" {
		return override
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvPathVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}
