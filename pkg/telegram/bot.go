package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/KodaTao/DayPlanner/pkg/types"
)

// 回复给用户的提示
const (
	replyEmptyPrompt = "Send me a description of your day, e.g. \"gym at 7am, meeting at noon\"."
	replyFailed      = "Sorry, I could not generate a schedule right now. Please try again later."
)

// Bot Telegram Bot 封装
type Bot struct {
	api     *tgbotapi.BotAPI
	config  Config
	sender  *Sender
	planner types.Planner
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot 创建 Telegram Bot
func NewBot(config Config, p types.Planner, logger *slog.Logger) (*Bot, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}

	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	bot := &Bot{
		api:     api,
		config:  config,
		sender:  NewSender(api, logger),
		planner: p,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	logger.Info("telegram bot created",
		"username", api.Self.UserName,
	)

	return bot, nil
}

// Start 启动 Bot，开始接收消息
func (b *Bot) Start() {
	b.logger.Info("starting telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-b.ctx.Done():
				b.logger.Info("telegram bot stopped")
				return
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				if update.Message.Chat.IsGroup() || update.Message.Chat.IsChannel() || update.Message.Chat.IsSuperGroup() {
					// 群聊必须@才生效
					if !strings.Contains(update.Message.Text, "@"+b.api.Self.UserName) {
						continue
					}
				}
				go b.handleMessage(update.Message)
			}
		}
	}()
}

// Stop 停止 Bot
func (b *Bot) Stop() {
	b.logger.Info("stopping telegram bot")
	b.cancel()
	b.api.StopReceivingUpdates()
}

// handleMessage 处理收到的消息
func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.Text == "" {
		return
	}

	chatID := msg.Chat.ID
	b.logger.Info("received message",
		"chat_id", chatID,
		"message_id", msg.MessageID,
		"text", truncateText(msg.Text, 50),
	)

	ctx, cancel := context.WithTimeout(b.ctx, b.config.RequestTimeout)
	defer cancel()

	reply := b.replyFor(ctx, chatID, msg.Text, b.api.Self.UserName)
	if _, err := b.sender.SendReply(chatID, msg.MessageID, reply); err != nil {
		return
	}

	b.logger.Info("message handled",
		"chat_id", chatID,
		"message_id", msg.MessageID,
	)
}

// replyFor 生成回复文本
func (b *Bot) replyFor(ctx context.Context, chatID int64, text, username string) string {
	userPrompt := extractPrompt(text, username)
	// 单独的 /plan 命令没有内容，提示用法而不是调用上游
	if userPrompt == "" {
		return replyEmptyPrompt
	}

	resp, err := b.planner.Generate(ctx, userPrompt)
	if err != nil {
		b.logger.Error("schedule generation failed",
			"chat_id", chatID,
			"error", err,
		)
		return replyFailed
	}
	return resp.Schedule
}

// extractPrompt 去掉 /plan 命令和 @bot 提及
func extractPrompt(text, username string) string {
	text = strings.TrimSpace(text)
	if username != "" {
		text = strings.ReplaceAll(text, "@"+username, "")
	}
	for _, cmd := range []string{"/plan", "/start"} {
		if strings.HasPrefix(text, cmd) {
			text = strings.TrimPrefix(text, cmd)
			break
		}
	}
	return strings.TrimSpace(text)
}

// truncateText 截断文本（用于日志）
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
