package telegram

import "errors"

// ErrTokenRequired Token 未配置
var ErrTokenRequired = errors.New("telegram bot token is required")
