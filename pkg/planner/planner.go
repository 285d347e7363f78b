// Package planner 实现日程生成：构建对话、调用上游并封装结果
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/observability"
	"github.com/KodaTao/DayPlanner/pkg/prompt"
	"github.com/KodaTao/DayPlanner/pkg/schedule"
	"github.com/KodaTao/DayPlanner/pkg/types"
)

// Planner 日程生成器
// 无状态，可被多个请求并发使用
type Planner struct {
	provider  llm.Provider
	generator *prompt.Generator
	validator *schedule.Validator // 为 nil 时原样透传模型输出
	model     string
}

// New 创建 Planner
// validator 为 nil 表示不校验模型输出
func New(provider llm.Provider, generator *prompt.Generator, validator *schedule.Validator, model string) *Planner {
	return &Planner{
		provider:  provider,
		generator: generator,
		validator: validator,
		model:     model,
	}
}

// Generate 处理一次日程生成请求
// 向上游发送系统指令和原样的用户输入（包括空字符串），返回去除首尾空白的第一个候选回复
func (p *Planner) Generate(ctx context.Context, userPrompt string) (*types.ScheduleResponse, error) {
	start := time.Now()
	completion, err := p.provider.Chat(ctx, p.generator.Conversation(userPrompt))
	p.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("completion call failed: %w", err)
	}
	observability.ObserveTokens(p.provider.Name(), p.model, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	return p.finish(ctx, completion.Content)
}

// GenerateStream 流式生成，逐步转发上游片段，最后一个事件带完整的日程
func (p *Planner) GenerateStream(ctx context.Context, userPrompt string) (<-chan types.StreamEvent, error) {
	start := time.Now()
	chunks, err := p.provider.ChatStream(ctx, p.generator.Conversation(userPrompt))
	if err != nil {
		p.observe(start, err)
		return nil, fmt.Errorf("completion call failed: %w", err)
	}

	ch := make(chan types.StreamEvent, 100)

	go func() {
		defer close(ch)

		var reply strings.Builder
		for chunk := range chunks {
			if chunk.Error != nil {
				p.observe(start, chunk.Error)
				send(ctx, ch, types.StreamEvent{Err: fmt.Errorf("completion stream failed: %w", chunk.Error)})
				return
			}
			if chunk.Content != "" {
				reply.WriteString(chunk.Content)
				if !send(ctx, ch, types.StreamEvent{Content: chunk.Content}) {
					return
				}
			}
			if chunk.Done {
				break
			}
		}
		p.observe(start, nil)

		resp, err := p.finish(ctx, reply.String())
		if err != nil {
			send(ctx, ch, types.StreamEvent{Err: err})
			return
		}
		send(ctx, ch, types.StreamEvent{Schedule: resp})
	}()

	return ch, nil
}

// send 在客户端断开后停止发送
func send(ctx context.Context, ch chan<- types.StreamEvent, ev types.StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish 去除首尾空白，按需校验后封装为响应
func (p *Planner) finish(ctx context.Context, content string) (*types.ScheduleResponse, error) {
	text := strings.TrimSpace(content)

	if p.validator == nil {
		return &types.ScheduleResponse{Schedule: text}, nil
	}

	result, err := p.validator.Validate(text)
	observability.ObserveValidation(string(p.validator.Schema()), err == nil)
	if err != nil {
		observability.WarnContext(ctx, "Model output failed validation", "error", err)
		return nil, err
	}
	if result.Repaired {
		observability.InfoContext(ctx, "Model output repaired", "events", result.Events)
	}
	return &types.ScheduleResponse{Schedule: result.Normalized}, nil
}

func (p *Planner) observe(start time.Time, err error) {
	outcome := "success"
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrCredentialUnavailable):
			outcome = "credential_unavailable"
		case llm.KindOf(err) != "":
			outcome = string(llm.KindOf(err))
		default:
			outcome = "error"
		}
	}
	observability.ObserveUpstreamCall(p.provider.Name(), p.model, outcome, time.Since(start).Seconds())
}
