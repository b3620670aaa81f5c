package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/report"
)

const (
	HelpCommand = "!help"

	// ApologyText 处理过程中出现意外错误时的统一回复
	ApologyText = "An error occurred while checking the email. Please try again later."
)

// Router 将消息分发到命令处理器。命令表在 New 之后只读，可并发访问
type Router struct {
	self     int64
	sender   Sender
	commands map[string]Command
	wg       sync.WaitGroup
}

// New 创建路由器。self 为机器人自身的用户ID，其发出的消息一律忽略；!help 自动注册
func New(self int64, sender Sender, commands ...Command) *Router {
	r := &Router{
		self:     self,
		sender:   sender,
		commands: make(map[string]Command, len(commands)+1),
	}
	for _, cmd := range commands {
		name := strings.ToLower(cmd.Name)
		if _, exists := r.commands[name]; exists {
			logger.Warnf("[Router] 重复注册命令 %s，后者覆盖前者", name)
		}
		cmd.Name = name
		r.commands[name] = cmd
	}
	if _, ok := r.commands[HelpCommand]; !ok {
		r.commands[HelpCommand] = Command{
			Name:        HelpCommand,
			Usage:       HelpCommand,
			Description: "Show this help",
			Handler:     HandlerFunc(r.help),
		}
	}
	return r
}

// Commands 按名称排序返回已注册的命令
func (r *Router) Commands() []Command {
	list := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Handle 在独立 goroutine 中分发并发送回复，不阻塞调用方的事件循环
func (r *Router) Handle(ctx context.Context, in *Incoming) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		msg := r.Dispatch(ctx, in)
		if msg == nil {
			return
		}
		if err := r.sender.Send(ctx, msg); err != nil {
			logger.Errorf("[Router] 发送回复失败, room: %d, %v", msg.RoomID, err)
		}
	}()
}

// Wait 等待所有进行中的处理结束
func (r *Router) Wait() {
	r.wg.Wait()
}

// Dispatch 识别命令并调用处理器。处理器返回的错误和 panic 都在这里转换为道歉消息，
// 不会向上传播；无需回复时返回 nil
func (r *Router) Dispatch(ctx context.Context, in *Incoming) (msg *Message) {
	if in == nil || in.SenderID == r.self {
		return nil
	}

	name, arg := ParseCommand(in.Body)
	cmd, ok := r.commands[name]
	if !ok {
		return nil
	}

	req := &Request{Incoming: in, Name: name, Argument: arg}
	logger.Infof("[Router] 收到命令 %s, room: %d, sender: %d", name, in.RoomID, in.SenderID)

	defer func() {
		if v := recover(); v != nil {
			logger.Errorf("[Router] 处理命令 %s 发生 panic: %v\n%s", name, v, debug.Stack())
			msg = r.reply(in, &Message{Plain: ApologyText})
		}
	}()

	out, err := cmd.Handler.Handle(ctx, req)
	if err != nil {
		logger.Errorf("[Router] 处理命令 %s 失败, room: %d, %v", name, in.RoomID, err)
		return r.reply(in, &Message{Plain: ApologyText})
	}
	if out == nil {
		return nil
	}
	return r.reply(in, out)
}

func (r *Router) reply(in *Incoming, msg *Message) *Message {
	if msg.RoomID == 0 {
		msg.RoomID = in.RoomID
	}
	if msg.ReplyTo == 0 {
		msg.ReplyTo = in.MessageID
	}
	return msg
}

func (r *Router) help(ctx context.Context, req *Request) (*Message, error) {
	var plain, html strings.Builder
	plain.WriteString("Available commands:")
	html.WriteString("<b>Available commands:</b>\n<ul>")
	for _, cmd := range r.Commands() {
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		plain.WriteString(fmt.Sprintf("\n%s - %s", usage, cmd.Description))
		html.WriteString(fmt.Sprintf("\n<li><code>%s</code> - %s</li>", report.EscapeHTML(usage), report.EscapeHTML(cmd.Description)))
	}
	html.WriteString("\n</ul>")
	return &Message{Plain: plain.String(), HTML: html.String()}, nil
}

// ParseCommand 按第一段空白切分出命令与参数，命令统一转为小写；不以 ! 开头的消息返回空命令
func ParseCommand(body string) (name, arg string) {
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "!") {
		return "", ""
	}
	i := strings.IndexFunc(body, unicode.IsSpace)
	if i < 0 {
		return strings.ToLower(body), ""
	}
	return strings.ToLower(body[:i]), strings.TrimSpace(body[i:])
}
