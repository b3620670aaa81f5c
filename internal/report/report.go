package report

import (
	"fmt"
	"strings"

	"github.com/fachebot/holehe-bot/internal/transcript"
	"golang.org/x/net/html"
)

// Rendered 同一份结果的 HTML 与纯文本两种形式
type Rendered struct {
	Plain string
	HTML  string
}

// NoResults 没有任何命中时的固定回复
func NoResults(email string) string {
	return fmt.Sprintf("No results found for %s.", email)
}

// Format 将解析结果渲染为 HTML 与纯文本。相同输入总是得到相同输出
func Format(r *transcript.Report, email string) Rendered {
	if r.Empty() {
		return Rendered{
			Plain: NoResults(email),
			HTML:  NoResults(EscapeHTML(email)),
		}
	}

	sections := make([]string, 0, 2)
	if len(r.Extras) > 0 {
		var sb strings.Builder
		sb.WriteString("<b>Information</b>\n<ul>\n")
		for _, extra := range r.Extras {
			sb.WriteString(fmt.Sprintf("<li>%s: %s</li>\n", EscapeHTML(extra.Title), anchor(extra.Link, extra.Link)))
		}
		sb.WriteString("</ul>")
		sections = append(sections, sb.String())
	}

	if len(r.Sites) > 0 {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("<b>The email %s is registered at the following sites:</b>\n<ul>\n", EscapeHTML(email)))
		for _, site := range r.Sites {
			sb.WriteString(fmt.Sprintf("<li>%s</li>\n", anchor(site.URL, site.Name)))
		}
		sb.WriteString("</ul>")
		sections = append(sections, sb.String())
	}

	htmlText := strings.Join(sections, "\n\n")
	return Rendered{
		Plain: StripTags(htmlText),
		HTML:  htmlText,
	}
}

// AppendSection 在已渲染的结果末尾追加一个带标题的文本段落
func AppendSection(r Rendered, title, body string) Rendered {
	body = strings.TrimSpace(body)
	if body == "" {
		return r
	}
	section := fmt.Sprintf("<b>%s</b>\n%s", EscapeHTML(title), EscapeHTML(body))
	htmlText := r.HTML + "\n\n" + section
	return Rendered{
		Plain: r.Plain + "\n\n" + StripTags(section),
		HTML:  htmlText,
	}
}

// StripTags 提取 HTML 中的文本并还原实体。按原有换行分行，仅由标签或注释构成的行被丢弃，原本的空行保留
func StripTags(htmlText string) string {
	z := html.NewTokenizer(strings.NewReader(htmlText))

	out := make([]string, 0, strings.Count(htmlText, "\n")+1)
	var line strings.Builder
	markup := false
	endLine := func() {
		text := strings.TrimSpace(line.String())
		if text != "" || !markup {
			out = append(out, text)
		}
		line.Reset()
		markup = false
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			endLine()
			return strings.Join(out, "\n")
		case html.TextToken:
			for i, part := range strings.Split(string(z.Text()), "\n") {
				if i > 0 {
					endLine()
				}
				line.WriteString(part)
			}
		default:
			markup = true
		}
	}
}

// anchor 仅对 http(s) 链接生成 <a>，其它内容按普通文本输出
func anchor(href, text string) string {
	lower := strings.ToLower(href)
	if !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "http://") {
		return EscapeHTML(text)
	}
	return fmt.Sprintf("<a href=\"%s\">%s</a>", EscapeHTML(href), EscapeHTML(text))
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
)

// EscapeHTML 转义：& < > "
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}
