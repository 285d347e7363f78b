package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KodaTao/DayPlanner/pkg/llm/llmtest"
	"github.com/KodaTao/DayPlanner/pkg/planner"
	"github.com/KodaTao/DayPlanner/pkg/prompt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot(t *testing.T, stub *llmtest.StubProvider) *Bot {
	gen, err := prompt.NewGenerator(prompt.Config{})
	require.NoError(t, err)
	return &Bot{
		config:  *DefaultConfig(),
		planner: planner.New(stub, gen, nil, "gpt-3.5-turbo"),
		logger:  testLogger(),
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.ErrorIs(t, Config{Enabled: true}.Validate(), ErrTokenRequired)
	assert.NoError(t, Config{Enabled: true, Token: "123:abc"}.Validate())
}

func TestExtractPrompt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"gym at 7am", "gym at 7am"},
		{"/plan gym at 7am", "gym at 7am"},
		{"/plan@planner_bot gym at 7am", "gym at 7am"},
		{"@planner_bot  gym at 7am ", "gym at 7am"},
		{"/start", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractPrompt(tt.in, "planner_bot"), tt.in)
	}
}

func TestBot_ReplyFor(t *testing.T) {
	stub := &llmtest.StubProvider{Reply: " [{\"title\":\"gym\"}] "}
	b := newTestBot(t, stub)

	reply := b.replyFor(context.Background(), 42, "/plan gym at 7am", "planner_bot")
	assert.Equal(t, `[{"title":"gym"}]`, reply)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gym at 7am", calls[0][1].Content)
}

func TestBot_ReplyFor_Errors(t *testing.T) {
	stub := &llmtest.StubProvider{Err: errors.New("upstream down")}
	b := newTestBot(t, stub)

	assert.Equal(t, replyEmptyPrompt, b.replyFor(context.Background(), 42, "/start", "planner_bot"))
	assert.Empty(t, stub.Calls())
	assert.Equal(t, replyFailed, b.replyFor(context.Background(), 42, "gym at 7am", "planner_bot"))
}

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestSender_SendReply(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, testLogger())

	id, err := s.SendReply(1, 7, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.Len(t, api.sent, 1)
	assert.Equal(t, 7, api.sent[0].ReplyToMessageID)
	assert.Equal(t, "hello", api.sent[0].Text)
	assert.Empty(t, api.sent[0].ParseMode)
}

func TestSender_SendReply_Split(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, testLogger())

	_, err := s.SendReply(1, 7, strings.Repeat("a", maxMessageLength+10))
	require.NoError(t, err)
	require.Len(t, api.sent, 2)
	assert.Len(t, api.sent[1].Text, 10)
}

func TestSender_SendReply_Error(t *testing.T) {
	s := NewSender(&fakeAPI{err: errors.New("forbidden")}, testLogger())

	_, err := s.SendReply(1, 7, "hello")
	assert.Error(t, err)
}
