package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLength Telegram 单条消息的最大字符数
const maxMessageLength = 4096

// messageSender 发送消息的最小接口，便于测试
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender 消息发送器
// 日程是 JSON 文本，统一以纯文本发送，避免 Markdown 转义问题
type Sender struct {
	bot    messageSender
	logger *slog.Logger
}

// NewSender 创建消息发送器
func NewSender(bot messageSender, logger *slog.Logger) *Sender {
	return &Sender{
		bot:    bot,
		logger: logger,
	}
}

// SendReply 发送回复消息（reply 指定的消息），超长文本按长度拆分
// 返回最后一条消息的 ID
func (s *Sender) SendReply(chatID int64, replyToMsgID int, text string) (int, error) {
	var lastID int
	for _, part := range splitText(text, maxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ReplyToMessageID = replyToMsgID

		sent, err := s.bot.Send(msg)
		if err != nil {
			s.logger.Error("failed to send message",
				"chat_id", chatID,
				"error", err,
			)
			return 0, fmt.Errorf("failed to send message: %w", err)
		}
		lastID = sent.MessageID
	}

	s.logger.Debug("message sent",
		"chat_id", chatID,
		"message_id", lastID,
		"reply_to", replyToMsgID,
	)

	return lastID, nil
}

// splitText 按字符数拆分文本
func splitText(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var parts []string
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}
