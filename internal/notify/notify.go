package notify

import (
	"context"
	"fmt"

	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/report"
	"github.com/fachebot/holehe-bot/internal/router"
	"github.com/fachebot/holehe-bot/internal/tgtext"
	"github.com/zelenin/go-tdlib/client"
)

// Notifier 将路由器产生的回复发送到 Telegram 聊天
type Notifier struct {
	tdClient *client.Client
}

func NewNotifier(tdClient *client.Client) *Notifier {
	return &Notifier{
		tdClient: tdClient,
	}
}

// Send 发送一条回复，优先以 HTML 格式发送，解析失败时回退为纯文本
func (n *Notifier) Send(ctx context.Context, msg *router.Message) error {
	if msg == nil || (msg.Plain == "" && msg.HTML == "") {
		return nil
	}

	texts, ok := n.formatHTML(msg.HTML)
	if !ok {
		plain := msg.Plain
		if plain == "" {
			plain = report.StripTags(msg.HTML)
		}
		texts = n.formatPlain(plain)
	}

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := &client.SendMessageRequest{
			ChatId: msg.RoomID,
			InputMessageContent: &client.InputMessageText{
				Text: text,
			},
		}
		// 只有第一条回复引用原消息
		if i == 0 && msg.ReplyTo != 0 {
			req.ReplyTo = &client.InputMessageReplyToMessage{MessageId: msg.ReplyTo}
		}

		_, err := n.tdClient.SendMessage(req)
		if err != nil {
			return fmt.Errorf("发送消息到聊天 %d 失败: %w", msg.RoomID, err)
		}
	}

	logger.Infof("[Notify] 已发送回复到聊天 %d, 共 %d 条", msg.RoomID, len(texts))
	return nil
}

// formatHTML 转换为 Telegram 支持的 HTML 子集并拆分，任意一段解析失败则返回 false
func (n *Notifier) formatHTML(html string) ([]*client.FormattedText, bool) {
	if html == "" {
		return nil, false
	}

	chunks := tgtext.SplitMessage(tgtext.ToTelegramHTML(html), tgtext.MaxMessageLength)
	texts := make([]*client.FormattedText, 0, len(chunks))
	for _, chunk := range chunks {
		formatted, err := client.ParseTextEntities(&client.ParseTextEntitiesRequest{
			Text:      chunk,
			ParseMode: &client.TextParseModeHTML{},
		})
		if err != nil {
			logger.Warnf("[Notify] 解析 HTML 文本失败，回退为纯文本发送: %v", err)
			return nil, false
		}
		texts = append(texts, formatted)
	}
	return texts, true
}

func (n *Notifier) formatPlain(plain string) []*client.FormattedText {
	chunks := tgtext.SplitMessage(plain, tgtext.MaxMessageLength)
	texts := make([]*client.FormattedText, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, &client.FormattedText{Text: chunk})
	}
	return texts
}
