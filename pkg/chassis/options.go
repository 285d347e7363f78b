// Package chassis 负责组装 DayPlanner 应用
package chassis

import (
	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/prompt"
	"github.com/KodaTao/DayPlanner/pkg/telegram"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LLM        llm.Config       `mapstructure:"llm"`
	Prompt     prompt.Config    `mapstructure:"prompt"`
	Validation ValidationConfig `mapstructure:"validation"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Telegram   telegram.Config  `mapstructure:"telegram"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// Host 监听地址
	Host string `mapstructure:"host"`

	// Port 监听端口
	Port int `mapstructure:"port"`

	// Mode 运行模式：debug, release, test
	Mode string `mapstructure:"mode"`

	// CORSOrigins 允许的跨域来源，为空时允许所有来源
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ValidationConfig 模型输出校验配置
type ValidationConfig struct {
	// Enabled 是否校验模型输出，默认关闭，原样透传
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别：debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format 日志格式：text, json
	Format string `mapstructure:"format"`

	// Output 输出目标：stdout, file
	Output string `mapstructure:"output"`

	// FilePath 日志文件路径（当 Output 为 file 时生效）
	FilePath string `mapstructure:"file_path"`

	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用
	Enabled bool `mapstructure:"enabled"`

	// Path 指标暴露路径
	Path string `mapstructure:"path"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Mode: "release",
		},
		LLM: llm.DefaultConfig(),
		Prompt: prompt.Config{
			Schema: "datetime",
			Year:   prompt.DefaultYear,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Telegram: *telegram.DefaultConfig(),
	}
}

// Option 配置选项函数
type Option func(*Config)

// WithConfig 整体替换配置
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithServerHost 设置监听地址
func WithServerHost(host string) Option {
	return func(c *Config) {
		c.Server.Host = host
	}
}

// WithServerPort 设置服务器端口
func WithServerPort(port int) Option {
	return func(c *Config) {
		c.Server.Port = port
	}
}

// WithServerMode 设置运行模式
func WithServerMode(mode string) Option {
	return func(c *Config) {
		c.Server.Mode = mode
	}
}

// WithLLMConfig 设置上游配置
func WithLLMConfig(cfg llm.Config) Option {
	return func(c *Config) {
		c.LLM = cfg
	}
}

// WithPromptConfig 设置系统指令配置
func WithPromptConfig(cfg prompt.Config) Option {
	return func(c *Config) {
		c.Prompt = cfg
	}
}

// WithValidation 开启或关闭输出校验
func WithValidation(enabled bool) Option {
	return func(c *Config) {
		c.Validation.Enabled = enabled
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(c *Config) {
		c.Log.Level = level
	}
}

// WithTelegram 设置 Telegram 配置
func WithTelegram(t telegram.Config) Option {
	return func(c *Config) {
		c.Telegram = t
	}
}
