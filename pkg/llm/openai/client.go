// Package openai 提供 OpenAI 兼容 API 的 Provider 实现
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/observability"
)

// Provider OpenAI 提供商实现
type Provider struct {
	config *Config
	client *openaigo.Client
}

// Config OpenAI 配置
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	Azure       bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL: llm.DefaultBaseURL,
		Model:   llm.DefaultModel,
		Timeout: llm.DefaultTimeout * time.Second,
	}
}

// NewProvider 创建 OpenAI Provider
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = llm.DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = llm.DefaultTimeout * time.Second
	}

	var clientCfg openaigo.ClientConfig
	if cfg.Azure {
		clientCfg = openaigo.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	} else {
		clientCfg = openaigo.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	// 超时由请求 context 控制，流式响应需要长时间保持连接
	clientCfg.HTTPClient = &http.Client{}

	return &Provider{
		config: cfg,
		client: openaigo.NewClientWithConfig(clientCfg),
	}
}

// NewProviderFromLLMConfig 从通用配置创建 Provider
func NewProviderFromLLMConfig(cfg llm.Config) *Provider {
	return NewProvider(&Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Azure:       cfg.Provider == "azure",
	})
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "openai"
}

// Chat 发送对话请求
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	if p.config.APIKey == "" {
		return nil, llm.ErrCredentialUnavailable
	}

	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.config.Model, len(messages))

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, false))
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewBadResponseError(p.Name(), llm.ErrEmptyResponse)
	}

	usage := llm.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())

	return &llm.Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage:   usage,
	}, nil
}

// estimateUsage 流式响应没有 usage，结束后估算，仅用于日志
var estimateUsage = llm.EstimateUsage

// ChatStream 发送流式对话请求
// 整个流受 Timeout 限制，超时以 KindTimeout 错误片段结束
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	if p.config.APIKey == "" {
		return nil, llm.ErrCredentialUnavailable
	}

	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.config.Model, len(messages))

	streamCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	stream, err := p.client.CreateChatCompletionStream(streamCtx, p.buildRequest(messages, true))
	if err != nil {
		cancel()
		return nil, p.streamError(ctx, streamCtx, err)
	}

	ch := make(chan llm.StreamChunk, 100)
	estimate := estimateUsage

	go func() {
		defer cancel()

		reply, ok := p.relay(ctx, streamCtx, stream, ch)
		stream.Close()
		close(ch)
		if !ok {
			return
		}

		// Done 已发出，估算不影响调用方
		usage := estimate(p.config.Model, messages, reply)
		observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())
	}()

	return ch, nil
}

// relay 转发流式片段，正常结束时发送 Done 并返回完整回复
func (p *Provider) relay(ctx, streamCtx context.Context, stream *openaigo.ChatCompletionStream, ch chan<- llm.StreamChunk) (string, bool) {
	var reply strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return reply.String(), llm.SendChunk(ctx, ch, llm.StreamChunk{Done: true})
		}
		if err != nil {
			llm.SendChunk(ctx, ch, llm.StreamChunk{Error: p.streamError(ctx, streamCtx, err), Done: true})
			return "", false
		}

		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			reply.WriteString(resp.Choices[0].Delta.Content)
			if !llm.SendChunk(ctx, ch, llm.StreamChunk{Content: resp.Choices[0].Delta.Content}) {
				return "", false
			}
		}
	}
}

// streamError 超时优先于底层读取错误
func (p *Provider) streamError(ctx, streamCtx context.Context, err error) error {
	if tErr := llm.StreamDeadlineError(p.Name(), ctx, streamCtx); tErr != nil {
		return tErr
	}
	return p.wrapError(err)
}

func (p *Provider) buildRequest(messages []llm.Message, stream bool) openaigo.ChatCompletionRequest {
	return openaigo.ChatCompletionRequest{
		Model:       p.config.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   p.config.MaxTokens,
		Temperature: float32(p.config.Temperature),
		Stream:      stream,
	}
}

// wrapError 将 go-openai 的错误转换为 UpstreamError
func (p *Provider) wrapError(err error) error {
	var apiErr *openaigo.APIError
	if errors.As(err, &apiErr) {
		return llm.NewUpstreamError(p.Name(), apiErr.HTTPStatusCode, fmt.Errorf("API error: %s", apiErr.Message))
	}
	var reqErr *openaigo.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewUpstreamError(p.Name(), reqErr.HTTPStatusCode, err)
	}
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) {
		return llm.NewBadResponseError(p.Name(), err)
	}
	return llm.NewUpstreamError(p.Name(), 0, err)
}

// convertMessages 转换消息格式
func convertMessages(messages []llm.Message) []openaigo.ChatCompletionMessage {
	result := make([]openaigo.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		result[i] = openaigo.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return result
}
