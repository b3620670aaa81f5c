package router

import "context"

// Incoming 网关投递的一条文本消息
type Incoming struct {
	SenderID  int64
	RoomID    int64
	MessageID int64
	Body      string
}

// Request 单条消息的处理上下文，处理结束即丢弃
type Request struct {
	*Incoming
	Name     string // 命令，如 !email
	Argument string // 命令之后的剩余文本
}

// Message 发回原会话的消息，HTML 为空时只发送纯文本
type Message struct {
	RoomID  int64
	ReplyTo int64
	Plain   string
	HTML    string
}

// Sender 聊天网关的发送端
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// Handler 处理一个已识别的命令
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Message, error)
}

// HandlerFunc 允许普通函数作为 Handler
type HandlerFunc func(ctx context.Context, req *Request) (*Message, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Message, error) {
	return f(ctx, req)
}

// Command 命令表中的一项
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     Handler
}
