// Package ollama 提供本地 Ollama 服务的 Provider 实现
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/observability"
)

// DefaultBaseURL Ollama 默认地址
const DefaultBaseURL = "http://localhost:11434"

// Provider Ollama 提供商实现
type Provider struct {
	client      *api.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// NewProviderFromLLMConfig 从通用配置创建 Provider
// api.NewClient 需要不带 /v1 后缀的地址
func NewProviderFromLLMConfig(cfg llm.Config) (*Provider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" || baseURL == llm.DefaultBaseURL {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1")

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", baseURL, err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = llm.DefaultTimeout * time.Second
	}

	return &Provider{
		client:      api.NewClient(parsed, &http.Client{}),
		model:       cfg.Model,
		timeout:     timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "ollama"
}

// Chat 发送对话请求
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.model, len(messages))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var last api.ChatResponse
	err := p.client.Chat(ctx, p.buildRequest(messages, false), func(r api.ChatResponse) error {
		last = r
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}

	if last.Message.Content == "" {
		return nil, llm.NewBadResponseError(p.Name(), llm.ErrEmptyResponse)
	}

	usage := llm.Usage{
		PromptTokens:     last.PromptEvalCount,
		CompletionTokens: last.EvalCount,
		TotalTokens:      last.PromptEvalCount + last.EvalCount,
	}
	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())

	return &llm.Completion{
		Content: last.Message.Content,
		Model:   last.Model,
		Usage:   usage,
	}, nil
}

// ChatStream 发送流式对话请求
// 整个流受 timeout 限制，超时以 KindTimeout 错误片段结束
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.model, len(messages))

	ch := make(chan llm.StreamChunk, 100)

	go func() {
		defer close(ch)

		streamCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		var usage llm.Usage
		err := p.client.Chat(streamCtx, p.buildRequest(messages, true), func(r api.ChatResponse) error {
			if r.Done {
				usage = llm.Usage{
					PromptTokens:     r.PromptEvalCount,
					CompletionTokens: r.EvalCount,
					TotalTokens:      r.PromptEvalCount + r.EvalCount,
				}
			}
			if r.Message.Content != "" && !llm.SendChunk(ctx, ch, llm.StreamChunk{Content: r.Message.Content}) {
				return ctx.Err()
			}
			return nil
		})

		// 读取中断时 SDK 可能不返回错误
		if tErr := llm.StreamDeadlineError(p.Name(), ctx, streamCtx); tErr != nil {
			err = tErr
		} else if err != nil {
			err = wrapError(err)
		}
		if err != nil {
			llm.SendChunk(ctx, ch, llm.StreamChunk{Error: err, Done: true})
			return
		}

		llm.SendChunk(ctx, ch, llm.StreamChunk{Done: true})
		observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())
	}()

	return ch, nil
}

func (p *Provider) buildRequest(messages []llm.Message, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}

	options := map[string]interface{}{}
	if p.temperature > 0 {
		options["temperature"] = p.temperature
	}
	if p.maxTokens > 0 {
		options["num_predict"] = p.maxTokens
	}

	return &api.ChatRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}
}

// wrapError 将 Ollama 的错误转换为 UpstreamError
func wrapError(err error) error {
	if statusErr, ok := err.(api.StatusError); ok {
		return llm.NewUpstreamError("ollama", statusErr.StatusCode, err)
	}
	return llm.NewUpstreamError("ollama", 0, err)
}
