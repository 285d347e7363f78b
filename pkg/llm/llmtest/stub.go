// Package llmtest 提供测试用的 Provider 桩实现
package llmtest

import (
	"context"
	"sync"

	"github.com/KodaTao/DayPlanner/pkg/llm"
)

// StubProvider 返回固定回复的 Provider，并记录收到的对话
type StubProvider struct {
	// Reply 固定回复
	Reply string
	// Chunks 流式回复的片段，为空时整段 Reply 作为一个片段
	Chunks []string
	// Err Chat/ChatStream 直接返回的错误
	Err error
	// StreamErr 流式过程中返回的错误
	StreamErr error
	// Panic 为 true 时 Chat 直接 panic
	Panic bool

	mu    sync.Mutex
	calls [][]llm.Message
}

// Name 返回提供商名称
func (s *StubProvider) Name() string {
	return "stub"
}

// Chat 记录对话并返回固定回复
func (s *StubProvider) Chat(ctx context.Context, messages []llm.Message) (*llm.Completion, error) {
	s.record(messages)
	if s.Panic {
		panic("stub provider panic")
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &llm.Completion{
		Content: s.Reply,
		Model:   "stub-model",
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// ChatStream 记录对话并按片段返回固定回复
func (s *StubProvider) ChatStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	s.record(messages)
	if s.Err != nil {
		return nil, s.Err
	}

	chunks := s.Chunks
	if len(chunks) == 0 {
		chunks = []string{s.Reply}
	}

	ch := make(chan llm.StreamChunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- llm.StreamChunk{Content: c}
	}
	if s.StreamErr != nil {
		ch <- llm.StreamChunk{Error: s.StreamErr, Done: true}
	} else {
		ch <- llm.StreamChunk{Done: true}
	}
	close(ch)
	return ch, nil
}

// Calls 返回收到的所有对话
func (s *StubProvider) Calls() [][]llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]llm.Message(nil), s.calls...)
}

func (s *StubProvider) record(messages []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]llm.Message(nil), messages...))
}
