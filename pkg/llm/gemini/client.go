// Package gemini 提供 Google Gemini 的 Provider 实现
package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/observability"
)

// Provider Gemini 提供商实现
// 客户端在第一次调用时创建，缺少凭证时不影响启动
type Provider struct {
	config llm.Config

	mu     sync.Mutex
	client *genai.Client
}

// NewProviderFromLLMConfig 从通用配置创建 Provider
func NewProviderFromLLMConfig(cfg llm.Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	return &Provider{config: cfg}
}

// Name 返回提供商名称
func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.config.APIKey == "" {
		return nil, llm.ErrCredentialUnavailable
	}

	cc := &genai.ClientConfig{
		APIKey:  p.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	// 默认地址是 OpenAI 的，不能传给 genai
	if p.config.BaseURL != "" && p.config.BaseURL != llm.DefaultBaseURL {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, llm.NewUpstreamError(p.Name(), 0, err)
	}
	p.client = client
	return client, nil
}

// Chat 发送对话请求
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.config.Model, len(messages))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Timeout)*time.Second)
	defer cancel()

	contents, cfg := p.buildRequest(messages)
	result, err := client.Models.GenerateContent(ctx, p.config.Model, contents, cfg)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(result.Candidates) == 0 {
		return nil, llm.NewBadResponseError(p.Name(), llm.ErrEmptyResponse)
	}

	var usage llm.Usage
	if result.UsageMetadata != nil {
		usage = llm.Usage{
			PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(result.UsageMetadata.TotalTokenCount),
		}
	}
	observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())

	return &llm.Completion{
		Content: result.Text(),
		Model:   p.config.Model,
		Usage:   usage,
	}, nil
}

// ChatStream 发送流式对话请求
// 整个流受 timeout 限制，超时以 KindTimeout 错误片段结束
func (p *Provider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.LLMRequestLog(ctx, p.Name(), p.config.Model, len(messages))
	contents, cfg := p.buildRequest(messages)

	ch := make(chan llm.StreamChunk, 100)

	go func() {
		defer close(ch)

		streamCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Timeout)*time.Second)
		defer cancel()

		var usage llm.Usage
		for resp, err := range client.Models.GenerateContentStream(streamCtx, p.config.Model, contents, cfg) {
			if err != nil {
				if tErr := llm.StreamDeadlineError(p.Name(), ctx, streamCtx); tErr != nil {
					err = tErr
				} else {
					err = wrapError(err)
				}
				llm.SendChunk(ctx, ch, llm.StreamChunk{Error: err, Done: true})
				return
			}
			if resp.UsageMetadata != nil {
				usage = llm.Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			if text := resp.Text(); text != "" {
				if !llm.SendChunk(ctx, ch, llm.StreamChunk{Content: text}) {
					return
				}
			}
		}

		// genai 在读取中断时只记录日志并结束迭代
		if tErr := llm.StreamDeadlineError(p.Name(), ctx, streamCtx); tErr != nil {
			llm.SendChunk(ctx, ch, llm.StreamChunk{Error: tErr, Done: true})
			return
		}

		llm.SendChunk(ctx, ch, llm.StreamChunk{Done: true})
		observability.LLMResponseLog(ctx, p.Name(), time.Since(start).Milliseconds(), usage.Map())
	}()

	return ch, nil
}

// buildRequest 系统消息作为 SystemInstruction，其余作为对话内容
func (p *Provider) buildRequest(messages []llm.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	if p.config.Temperature > 0 {
		t := float32(p.config.Temperature)
		cfg.Temperature = &t
	}
	if p.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.config.MaxTokens)
	}

	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

// wrapError 将 genai 的错误转换为 UpstreamError
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewUpstreamError("gemini", apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.NewUpstreamError("gemini", apiErrPtr.Code, err)
	}
	return llm.NewUpstreamError("gemini", 0, err)
}
