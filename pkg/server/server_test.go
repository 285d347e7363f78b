package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodaTao/DayPlanner/pkg/llm"
	"github.com/KodaTao/DayPlanner/pkg/llm/llmtest"
	"github.com/KodaTao/DayPlanner/pkg/planner"
	"github.com/KodaTao/DayPlanner/pkg/prompt"
	"github.com/KodaTao/DayPlanner/pkg/schedule"
	"github.com/KodaTao/DayPlanner/pkg/types"
)

const gymSchedule = `[{"start":"2024-01-02T07:00:00","end":"2024-01-02T08:00:00","title":"gym"}]`

func newTestServer(t *testing.T, stub *llmtest.StubProvider, validate bool) *Server {
	gen, err := prompt.NewGenerator(prompt.Config{})
	require.NoError(t, err)

	var v *schedule.Validator
	if validate {
		v, err = schedule.NewValidator(gen.Schema())
		require.NoError(t, err)
	}

	p := planner.New(stub, gen, v, "gpt-3.5-turbo")
	return NewServer(p, &ServerConfig{
		Host:           "127.0.0.1",
		Port:           5000,
		Mode:           "test",
		MetricsEnabled: true,
	})
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.GetEngine().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGenerateSchedule(t *testing.T) {
	stub := &llmtest.StubProvider{Reply: gymSchedule + "\n"}
	s := newTestServer(t, stub, false)

	w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"Plan my Tuesday: gym at 7am, meeting at noon"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]string{"schedule": gymSchedule}, resp)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, llm.RoleSystem, calls[0][0].Role)
	assert.Equal(t, "Plan my Tuesday: gym at 7am, meeting at noon", calls[0][1].Content)
}

func TestGenerateSchedule_EmptyPromptForwarded(t *testing.T) {
	for _, userPrompt := range []string{"", "   "} {
		t.Run(strconv.Quote(userPrompt), func(t *testing.T) {
			stub := &llmtest.StubProvider{Reply: gymSchedule}
			s := newTestServer(t, stub, false)

			body, err := json.Marshal(map[string]string{"prompt": userPrompt})
			require.NoError(t, err)
			w := do(s, http.MethodPost, "/generate-schedule", string(body))

			require.Equal(t, http.StatusOK, w.Code)
			calls := stub.Calls()
			require.Len(t, calls, 1)
			require.Len(t, calls[0], 2)
			assert.Equal(t, llm.RoleUser, calls[0][1].Role)
			assert.Equal(t, userPrompt, calls[0][1].Content)
		})
	}
}

func TestGenerateSchedule_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing prompt", `{}`, CodeMissingPrompt},
		{"null prompt", `{"prompt":null}`, CodeMissingPrompt},
		{"empty body", ``, CodeMissingPrompt},
		{"not json", `plan my day`, CodeInvalidRequest},
		{"wrong type", `{"prompt":42}`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &llmtest.StubProvider{Reply: gymSchedule}
			s := newTestServer(t, stub, false)

			w := do(s, http.MethodPost, "/generate-schedule", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
			assert.Empty(t, stub.Calls())
		})
	}
}

func TestGenerateSchedule_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"auth", llm.NewUpstreamError("stub", 401, errors.New("invalid api key")), http.StatusBadGateway, string(llm.KindAuth)},
		{"rate limited", llm.NewUpstreamError("stub", 429, errors.New("slow down")), http.StatusBadGateway, string(llm.KindRateLimited)},
		{"unavailable", llm.NewUpstreamError("stub", 503, errors.New("overloaded")), http.StatusBadGateway, string(llm.KindUnavailable)},
		{"bad response", llm.NewBadResponseError("stub", llm.ErrEmptyResponse), http.StatusBadGateway, string(llm.KindBadResponse)},
		{"timeout", &llm.UpstreamError{Provider: "stub", Kind: llm.KindTimeout, Err: errors.New("deadline")}, http.StatusGatewayTimeout, CodeTimeout},
		{"credential", fmt.Errorf("openai: %w", llm.ErrCredentialUnavailable), http.StatusServiceUnavailable, CodeCredentialUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &llmtest.StubProvider{Err: tt.err}, false)

			w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Error, "invalid api key")
		})
	}
}

func TestGenerateSchedule_KeepsServingAfterAuthError(t *testing.T) {
	stub := &llmtest.StubProvider{Err: llm.NewUpstreamError("stub", 401, errors.New("invalid api key"))}
	s := newTestServer(t, stub, false)

	w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan again"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, stub.Calls(), 2)
}

func TestGenerateSchedule_Panic(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{Panic: true}, false)

	w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, CodeInternal, decodeError(t, w).Code)

	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateSchedule_Validation(t *testing.T) {
	t.Run("invalid output", func(t *testing.T) {
		s := newTestServer(t, &llmtest.StubProvider{Reply: "I cannot help with that."}, true)

		w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, CodeInvalidSchedule, decodeError(t, w).Code)
	})

	t.Run("passthrough when disabled", func(t *testing.T) {
		s := newTestServer(t, &llmtest.StubProvider{Reply: "I cannot help with that."}, false)

		w := do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"schedule":"I cannot help with that."}`, w.Body.String())
	})
}

func TestGenerateScheduleStream(t *testing.T) {
	stub := &llmtest.StubProvider{Chunks: []string{`[{"start":"2024-01-02T07:00:00",`, `"end":"2024-01-02T08:00:00","title":"gym"}]`}}
	s := newTestServer(t, stub, false)

	w := do(s, http.MethodPost, "/generate-schedule/stream", `{"prompt":"plan"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event:chunk"))
	assert.Contains(t, body, "event:schedule")
	assert.NotContains(t, body, "event:error")
}

func TestGenerateScheduleStream_Error(t *testing.T) {
	stub := &llmtest.StubProvider{Chunks: []string{"[{"}, StreamErr: llm.NewUpstreamError("stub", 500, errors.New("boom"))}
	s := newTestServer(t, stub, false)

	w := do(s, http.MethodPost, "/generate-schedule/stream", `{"prompt":"plan"}`)

	body := w.Body.String()
	assert.Contains(t, body, "event:chunk")
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, string(llm.KindUnavailable))
	assert.NotContains(t, body, "event:schedule")
}

func TestGenerateScheduleStream_BadRequest(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{Reply: gymSchedule}, false)

	w := do(s, http.MethodPost, "/generate-schedule/stream", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{}, false)

	w := do(s, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="scheduleForm"`)
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{}, false)

	w := do(s, http.MethodGet, "/static/js/script.js", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/generate-schedule")

	w = do(s, http.MethodGet, "/static/missing.js", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{}, false)

	w := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	s.GetEngine().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, &llmtest.StubProvider{Reply: gymSchedule}, false)

	do(s, http.MethodPost, "/generate-schedule", `{"prompt":"plan"}`)
	w := do(s, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dayplanner_http_requests_total")
	assert.Contains(t, w.Body.String(), "dayplanner_upstream_requests_total")
}

func TestServer_Addr(t *testing.T) {
	s := NewServer(nil, &ServerConfig{Host: "127.0.0.1", Port: 3001, Mode: "test"})
	assert.Equal(t, "127.0.0.1:3001", s.Addr())
}
