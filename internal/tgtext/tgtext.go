package tgtext

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageLength Telegram 单条消息的最大长度（按字符计，留出余量）
const MaxMessageLength = 4000

// Telegram 的 HTML 解析只支持 b/i/u/s/a/code/pre 等少数标签，列表需要转换为普通文本
var listReplacer = strings.NewReplacer(
	"<ul>\n", "",
	"\n</ul>", "",
	"<ul>", "",
	"</ul>", "",
	"<li>", "• ",
	"</li>", "",
)

// ToTelegramHTML 将通用 HTML 转换为 Telegram 支持的子集
func ToTelegramHTML(html string) string {
	return strings.TrimSpace(listReplacer.Replace(html))
}

// SplitMessage 将消息按长度拆分为多条，优先在段落处断开，其次在换行处断开。
// 单行超长时按字符硬切，调用方需保证每行内的标签是闭合的
func SplitMessage(content string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	if utf8.RuneCountInString(content) <= limit {
		return []string{content}
	}

	messages := make([]string, 0)
	current := ""
	flush := func() {
		if strings.TrimSpace(current) != "" {
			messages = append(messages, strings.TrimRight(current, "\n"))
		}
		current = ""
	}

	for _, para := range strings.Split(content, "\n\n") {
		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if utf8.RuneCountInString(candidate) <= limit {
			current = candidate
			continue
		}

		// 当前消息已满，保存并开始新消息
		flush()
		if utf8.RuneCountInString(para) <= limit {
			current = para
			continue
		}

		// 单个段落超长，按行拆分
		for _, line := range strings.Split(para, "\n") {
			for _, piece := range hardSplit(line, limit) {
				candidate := piece
				if current != "" {
					candidate = current + "\n" + piece
				}
				if utf8.RuneCountInString(candidate) <= limit {
					current = candidate
					continue
				}
				flush()
				current = piece
			}
		}
	}
	flush()

	return messages
}

func hardSplit(line string, limit int) []string {
	if utf8.RuneCountInString(line) <= limit {
		return []string{line}
	}
	runes := []rune(line)
	pieces := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		pieces = append(pieces, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
