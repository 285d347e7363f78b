package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodaTao/DayPlanner/pkg/llm"
)

func newTestProvider(t *testing.T, baseURL string) *Provider {
	cfg := llm.DefaultConfig()
	cfg.Provider = "ollama"
	cfg.Model = "llama3"
	cfg.BaseURL = baseURL
	cfg.Timeout = 5

	p, err := NewProviderFromLLMConfig(cfg)
	require.NoError(t, err)
	return p
}

func TestProvider_Chat(t *testing.T) {
	var captured api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":" [] "},"done":true,"prompt_eval_count":12,"eval_count":7}` + "\n"))
	}))
	t.Cleanup(srv.Close)

	p := newTestProvider(t, srv.URL+"/v1")
	completion, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert scheduler."},
		{Role: llm.RoleUser, Content: "plan my day"},
	})
	require.NoError(t, err)

	assert.Equal(t, " [] ", completion.Content)
	assert.Equal(t, 12, completion.Usage.PromptTokens)
	assert.Equal(t, 7, completion.Usage.CompletionTokens)
	assert.Equal(t, 19, completion.Usage.TotalTokens)

	assert.Equal(t, "llama3", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "plan my day", captured.Messages[1].Content)
	require.NotNil(t, captured.Stream)
	assert.False(t, *captured.Stream)
}

func TestProvider_Chat_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newTestProvider(t, url)
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "plan"}})

	require.Error(t, err)
	assert.Equal(t, llm.KindUnavailable, llm.KindOf(err))
}

func TestNewProviderFromLLMConfig_DefaultURL(t *testing.T) {
	cfg := llm.DefaultConfig()
	cfg.Provider = "ollama"

	p, err := NewProviderFromLLMConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestWrapError(t *testing.T) {
	err := wrapError(api.StatusError{StatusCode: http.StatusUnauthorized, ErrorMessage: "unauthorized"})
	assert.Equal(t, llm.KindAuth, llm.KindOf(err))

	err = wrapError(api.StatusError{StatusCode: http.StatusServiceUnavailable})
	assert.Equal(t, llm.KindUnavailable, llm.KindOf(err))

	err = wrapError(errors.New("unexpected"))
	assert.Equal(t, llm.KindUpstreamOther, llm.KindOf(err))
}

// newStreamUpstream 启动一个返回 NDJSON 的 /api/chat 服务
// hold 不为 nil 时，发送完 lines 后保持连接直到 hold 关闭或客户端断开
func newStreamUpstream(t *testing.T, lines []string, hold chan struct{}) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(t *testing.T, ch <-chan llm.StreamChunk, limit time.Duration) []llm.StreamChunk {
	t.Helper()
	var chunks []llm.StreamChunk
	timeout := time.After(limit)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatalf("stream not closed after %s, got %d chunks", limit, len(chunks))
		}
	}
}

func TestProvider_ChatStream(t *testing.T) {
	srv := newStreamUpstream(t, []string{
		`{"model":"llama3","message":{"role":"assistant","content":"[{\"title\":"},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":"\"gym\"}]"},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":12,"eval_count":7}`,
	}, nil)

	p := newTestProvider(t, srv.URL)
	ch, err := p.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "gym at 7am"}})
	require.NoError(t, err)

	chunks := drain(t, ch, 5*time.Second)
	require.Len(t, chunks, 3)
	assert.Equal(t, `[{"title":`, chunks[0].Content)
	assert.Equal(t, `"gym"}]`, chunks[1].Content)
	assert.True(t, chunks[2].Done)
	assert.NoError(t, chunks[2].Error)
}

func TestProvider_ChatStream_Timeout(t *testing.T) {
	hold := make(chan struct{})
	srv := newStreamUpstream(t, []string{
		`{"model":"llama3","message":{"role":"assistant","content":"[{"},"done":false}`,
	}, hold)
	t.Cleanup(func() { close(hold) })

	// newTestProvider 的 timeout 是 5 秒，这里用最小的 1 秒
	cfg := llm.DefaultConfig()
	cfg.Provider = "ollama"
	cfg.Model = "llama3"
	cfg.BaseURL = srv.URL
	cfg.Timeout = 1
	p, err := NewProviderFromLLMConfig(cfg)
	require.NoError(t, err)

	ch, err := p.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "plan"}})
	require.NoError(t, err)

	chunks := drain(t, ch, 4*time.Second)
	require.Len(t, chunks, 2)
	assert.Equal(t, "[{", chunks[0].Content)
	assert.True(t, chunks[1].Done)
	assert.Equal(t, llm.KindTimeout, llm.KindOf(chunks[1].Error))
}

func TestProvider_ChatStream_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newTestProvider(t, url)
	ch, err := p.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "plan"}})
	require.NoError(t, err)

	chunks := drain(t, ch, 5*time.Second)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].Done)
	assert.Equal(t, llm.KindUnavailable, llm.KindOf(chunks[0].Error))
}
