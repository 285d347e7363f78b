// Package telegram 提供 Telegram Bot 渠道：每条文本消息都作为一次日程生成请求
package telegram

import "time"

// Config Telegram Bot 配置
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`         // 是否启用 Telegram Bot
	Token          string        `mapstructure:"token"`           // Bot Token
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 单条消息的处理超时
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Token:          "",
		RequestTimeout: 2 * time.Minute,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Enabled && c.Token == "" {
		return ErrTokenRequired
	}
	return nil
}
