// Package llm 提供上游补全服务的适配层接口和实现
package llm

import (
	"context"
)

// Provider 补全服务提供商接口
// OpenAI、Ollama、Gemini 等实现都需要实现此接口
type Provider interface {
	// Chat 发送对话请求
	// 返回第一个候选回复的原始文本
	Chat(ctx context.Context, messages []Message) (*Completion, error)

	// ChatStream 发送流式对话请求
	// 返回一个 channel，逐步返回回复的内容片段
	ChatStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// Name 返回提供商名称
	Name() string
}

// Message 对话消息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Completion 一次补全调用的结果
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Usage  `json:"usage"`
}

// StreamChunk 流式响应片段
type StreamChunk struct {
	// Content 内容片段
	Content string `json:"content"`

	// Done 是否完成
	Done bool `json:"done"`

	// Error 错误信息（如果有）
	Error error `json:"error,omitempty"`
}

// Usage Token 使用统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Map 转换为日志使用的 map
func (u Usage) Map() map[string]int {
	return map[string]int{
		"prompt":     u.PromptTokens,
		"completion": u.CompletionTokens,
		"total":      u.TotalTokens,
	}
}
