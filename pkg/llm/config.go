package llm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// 凭证来源
const (
	CredentialSourceEnv  = "env"
	CredentialSourceFile = "file"
)

// 默认值
const (
	DefaultProvider      = "openai"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultModel         = "gpt-3.5-turbo"
	DefaultTimeout       = 60
	DefaultCredentialEnv = "OPENAI_API_KEY"
	DefaultSecretFile    = "openaiapikey.txt"
)

// Config 上游补全服务通用配置
type Config struct {
	// Provider 提供商类型：openai, azure, custom, ollama, gemini
	Provider string `mapstructure:"provider"`

	// APIKey API 密钥，启动时由 Credential 解析得到，也可以直接配置
	APIKey string `mapstructure:"api_key"`

	// Credential 凭证来源
	Credential CredentialConfig `mapstructure:"credential"`

	// BaseURL API 基础 URL（用于自定义 endpoint）
	BaseURL string `mapstructure:"base_url"`

	// Model 模型名称
	Model string `mapstructure:"model"`

	// Timeout 请求超时时间（秒）
	Timeout int `mapstructure:"timeout"`

	// MaxTokens 最大 Token 数，0 表示由上游决定
	MaxTokens int `mapstructure:"max_tokens"`

	// Temperature 温度参数（0-2），0 表示由上游决定
	Temperature float64 `mapstructure:"temperature"`
}

// CredentialConfig 凭证配置
type CredentialConfig struct {
	// Source 凭证来源：env, file
	Source string `mapstructure:"source"`

	// Env 环境变量名
	Env string `mapstructure:"env"`

	// File 密钥文件路径
	File string `mapstructure:"file"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Provider: DefaultProvider,
		BaseURL:  DefaultBaseURL,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
		Credential: CredentialConfig{
			Source: CredentialSourceEnv,
			Env:    DefaultCredentialEnv,
			File:   DefaultSecretFile,
		},
	}
}

// LoadCredential 按配置的来源读取一次 API Key
// 已直接配置 APIKey 时优先使用（支持 ${ENV} 引用）
func LoadCredential(cfg CredentialConfig, direct string) (string, error) {
	if key := ResolveAPIKey(direct); key != "" {
		return key, nil
	}

	switch strings.ToLower(cfg.Source) {
	case "", CredentialSourceEnv:
		name := cfg.Env
		if name == "" {
			name = DefaultCredentialEnv
		}
		key := strings.TrimSpace(os.Getenv(name))
		if key == "" {
			return "", fmt.Errorf("%w: environment variable %s is empty", ErrCredentialUnavailable, name)
		}
		return key, nil
	case CredentialSourceFile:
		path := cfg.File
		if path == "" {
			path = DefaultSecretFile
		}
		data, err := os.ReadFile(expandPath(path))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("%w: secret file %s is empty", ErrCredentialUnavailable, path)
		}
		return key, nil
	default:
		return "", &ConfigError{Message: "unsupported credential source: " + cfg.Source}
	}
}

// ResolveAPIKey 解析 API Key（支持环境变量引用）
// 如果值以 ${} 包裹，则从环境变量读取
func ResolveAPIKey(key string) string {
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		envName := key[2 : len(key)-1]
		return os.Getenv(envName)
	}
	return key
}

// MaskAPIKey 脱敏 API Key，用于日志输出
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// RequiresCredential 该提供商是否需要 API Key
func (c *Config) RequiresCredential() bool {
	return c.Provider != "ollama"
}

// Validate 验证配置
// 缺少凭证不在这里报错，而是在请求时返回 ErrCredentialUnavailable
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrMissingModel
	}
	switch c.Provider {
	case "openai", "azure", "custom", "ollama", "gemini":
	default:
		return &ConfigError{Message: "unsupported provider: " + c.Provider}
	}
	switch strings.ToLower(c.Credential.Source) {
	case "", CredentialSourceEnv, CredentialSourceFile:
	default:
		return &ConfigError{Message: "unsupported credential source: " + c.Credential.Source}
	}
	return nil
}

// ConfigError 配置相关错误
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

var (
	ErrMissingModel = &ConfigError{Message: "model is required"}

	// ErrCredentialUnavailable 上游凭证不可用
	ErrCredentialUnavailable = errors.New("upstream credential unavailable")
)

// expandPath 展开路径中的 ~ 为用户主目录
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
