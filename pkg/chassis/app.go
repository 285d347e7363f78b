package chassis

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/llm/gemini"
	"github.com/KodaTao/DayPlanner/pkg/llm/ollama"
	"github.com/KodaTao/DayPlanner/pkg/llm/openai"
	"github.com/KodaTao/DayPlanner/pkg/observability"
	"github.com/KodaTao/DayPlanner/pkg/planner"
	"github.com/KodaTao/DayPlanner/pkg/prompt"
	"github.com/KodaTao/DayPlanner/pkg/schedule"
	"github.com/KodaTao/DayPlanner/pkg/telegram"
)

// App DayPlanner 应用实例
// 所有配置在启动时构建一次，之后只读
type App struct {
	config      *Config
	provider    llm.Provider
	planner     *planner.Planner
	telegramBot *telegram.Bot
}

// New 创建新的 App 实例
func New(opts ...Option) *App {
	// 应用默认配置
	config := DefaultConfig()

	// 应用选项
	for _, opt := range opts {
		opt(config)
	}

	return &App{
		config: config,
	}
}

// UseProvider 指定上游 Provider，需在 Initialize 之前调用
// 不调用时按配置创建
func (a *App) UseProvider(p llm.Provider) {
	a.provider = p
}

// Initialize 初始化应用
// 包括：日志、凭证、上游 Provider、Planner、Telegram
func (a *App) Initialize() error {
	// 1. 初始化日志
	if err := observability.InitLogger(observability.LogConfig{
		Level:      a.config.Log.Level,
		Format:     a.config.Log.Format,
		Output:     a.config.Log.Output,
		FilePath:   a.config.Log.FilePath,
		MaxSizeMB:  a.config.Log.MaxSizeMB,
		MaxBackups: a.config.Log.MaxBackups,
		MaxAgeDays: a.config.Log.MaxAgeDays,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.Info("Initializing DayPlanner",
		"server_port", a.config.Server.Port,
		"llm_provider", a.config.LLM.Provider,
		"llm_model", a.config.LLM.Model,
		"prompt_schema", a.config.Prompt.Schema,
	)

	// 2. 初始化上游 Provider
	if a.provider == nil {
		if err := a.config.LLM.Validate(); err != nil {
			return fmt.Errorf("invalid llm config: %w", err)
		}
		a.loadCredential()

		provider, err := NewProvider(a.config.LLM)
		if err != nil {
			return err
		}
		a.provider = provider
	}

	observability.Info("LLM Provider initialized",
		"provider", a.provider.Name(),
		"model", a.config.LLM.Model,
	)

	// 3. 系统指令与输出校验
	generator, err := prompt.NewGenerator(a.config.Prompt)
	if err != nil {
		return fmt.Errorf("failed to initialize prompt: %w", err)
	}

	var validator *schedule.Validator
	if a.config.Validation.Enabled {
		validator, err = schedule.NewValidator(generator.Schema())
		if err != nil {
			return fmt.Errorf("failed to initialize validator: %w", err)
		}
	}

	// 4. 创建 Planner
	a.planner = planner.New(a.provider, generator, validator, a.config.LLM.Model)

	observability.Info("DayPlanner initialized",
		"schema", generator.Schema(),
		"validation", validator != nil,
	)

	// 5. 初始化 Telegram Bot（可选）
	if a.config.Telegram.Enabled {
		if err := a.initTelegramBot(); err != nil {
			return fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
	}

	return nil
}

// loadCredential 启动时读取一次凭证
// 读取失败只记录日志，请求时再返回 credential_unavailable
func (a *App) loadCredential() {
	if !a.config.LLM.RequiresCredential() {
		return
	}

	apiKey, err := llm.LoadCredential(a.config.LLM.Credential, a.config.LLM.APIKey)
	if err != nil {
		var cfgErr *llm.ConfigError
		if errors.As(err, &cfgErr) {
			observability.Error("Invalid credential config", "error", err)
		} else {
			observability.Warn("Upstream credential not available, requests will fail until it is configured",
				"source", a.config.LLM.Credential.Source,
				"error", err,
			)
		}
		a.config.LLM.APIKey = ""
		return
	}

	a.config.LLM.APIKey = apiKey
	observability.Info("Upstream credential loaded",
		"source", a.config.LLM.Credential.Source,
		"api_key", llm.MaskAPIKey(apiKey),
	)
}

// NewProvider 根据 provider 类型创建实例
func NewProvider(cfg llm.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai", "azure", "custom":
		return openai.NewProviderFromLLMConfig(cfg), nil
	case "ollama":
		return ollama.NewProviderFromLLMConfig(cfg)
	case "gemini":
		return gemini.NewProviderFromLLMConfig(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// initTelegramBot 初始化 Telegram Bot
func (a *App) initTelegramBot() error {
	bot, err := telegram.NewBot(a.config.Telegram, a.planner, slog.Default())
	if err != nil {
		return err
	}

	a.telegramBot = bot
	bot.Start()

	observability.Info("Telegram Bot started")
	return nil
}

// GetPlanner 获取 Planner 实例
func (a *App) GetPlanner() *planner.Planner {
	return a.planner
}

// GetConfig 获取配置
func (a *App) GetConfig() *Config {
	return a.config
}

// GetProvider 获取上游 Provider
func (a *App) GetProvider() llm.Provider {
	return a.provider
}

// GetTelegramBot 获取 Telegram Bot 实例
func (a *App) GetTelegramBot() *telegram.Bot {
	return a.telegramBot
}

// Shutdown 关闭应用
func (a *App) Shutdown() error {
	observability.Info("Shutting down DayPlanner")

	if a.telegramBot != nil {
		a.telegramBot.Stop()
		observability.Info("Telegram Bot stopped")
	}

	observability.Info("DayPlanner shutdown complete")
	return nil
}
