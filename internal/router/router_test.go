package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const botID = 42

// mockSender 模拟聊天网关发送端
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg *Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// recordingSender 记录所有发出的消息
type recordingSender struct {
	mu   sync.Mutex
	sent []*Message
}

func (s *recordingSender) Send(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.sent...)
}

func echoCommand() Command {
	return Command{
		Name:        "!echo",
		Usage:       "!echo <text>",
		Description: "Echo the argument",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			return &Message{Plain: req.Argument}, nil
		}),
	}
}

func incoming(body string) *Incoming {
	return &Incoming{SenderID: 7, RoomID: 100, MessageID: 555, Body: body}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName string
		wantArg  string
	}{
		{"命令加参数", "!email john@example.com", "!email", "john@example.com"},
		{"多个空白", "!email    john@example.com  ", "!email", "john@example.com"},
		{"制表符与换行", "!email\tjohn@example.com\n", "!email", "john@example.com"},
		{"只有命令", "!help", "!help", ""},
		{"大写命令", "!EMAIL a@b.com", "!email", "a@b.com"},
		{"参数中的空白保留", "!echo a  b", "!echo", "a  b"},
		{"前导空白", "   !help", "!help", ""},
		{"普通消息", "hello world", "", ""},
		{"空消息", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, arg := ParseCommand(tt.body)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArg, arg)
		})
	}
}

func TestDispatch_RoutesToHandler(t *testing.T) {
	r := New(botID, &recordingSender{}, echoCommand())

	msg := r.Dispatch(context.Background(), incoming("!echo hello there"))
	require.NotNil(t, msg)
	assert.Equal(t, "hello there", msg.Plain)
	assert.Equal(t, int64(100), msg.RoomID)
	assert.Equal(t, int64(555), msg.ReplyTo)
}

func TestDispatch_IgnoresOwnMessages(t *testing.T) {
	called := false
	r := New(botID, &recordingSender{}, Command{
		Name: "!echo",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			called = true
			return &Message{Plain: "x"}, nil
		}),
	})

	in := incoming("!echo loop")
	in.SenderID = botID
	assert.Nil(t, r.Dispatch(context.Background(), in))
	assert.False(t, called)
}

func TestDispatch_UnknownCommandIgnored(t *testing.T) {
	r := New(botID, &recordingSender{}, echoCommand())

	assert.Nil(t, r.Dispatch(context.Background(), incoming("!unknown arg")))
	assert.Nil(t, r.Dispatch(context.Background(), incoming("just chatting")))
	assert.Nil(t, r.Dispatch(context.Background(), nil))
}

func TestDispatch_Help(t *testing.T) {
	r := New(botID, &recordingSender{}, echoCommand(), Command{
		Name:        "!email",
		Usage:       "!email <address>",
		Description: "Check where an email is registered",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			return nil, nil
		}),
	})

	msg := r.Dispatch(context.Background(), incoming("!help"))
	require.NotNil(t, msg)
	assert.Equal(t, "Available commands:\n"+
		"!echo <text> - Echo the argument\n"+
		"!email <address> - Check where an email is registered\n"+
		"!help - Show this help", msg.Plain)
	assert.Contains(t, msg.HTML, "<li><code>!email &lt;address&gt;</code> - Check where an email is registered</li>")
}

func TestDispatch_HelpEscapesQuotes(t *testing.T) {
	r := New(botID, &recordingSender{}, Command{
		Name:        "!say",
		Usage:       `!say "text"`,
		Description: "Repeat <text>",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			return nil, nil
		}),
	})

	msg := r.Dispatch(context.Background(), incoming("!help"))
	require.NotNil(t, msg)
	assert.Contains(t, msg.HTML, "<li><code>!say &quot;text&quot;</code> - Repeat &lt;text&gt;</li>")
}

func TestDispatch_HandlerErrorBecomesApology(t *testing.T) {
	r := New(botID, &recordingSender{}, Command{
		Name: "!fail",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			return nil, errors.New("unclassified failure")
		}),
	})

	msg := r.Dispatch(context.Background(), incoming("!fail"))
	require.NotNil(t, msg)
	assert.Equal(t, ApologyText, msg.Plain)
	assert.Empty(t, msg.HTML)
	assert.Equal(t, int64(100), msg.RoomID)
}

func TestDispatch_PanicBecomesApology(t *testing.T) {
	r := New(botID, &recordingSender{}, echoCommand(), Command{
		Name: "!panic",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			var m map[string]int
			m["boom"]++
			return nil, nil
		}),
	})

	msg := r.Dispatch(context.Background(), incoming("!panic"))
	require.NotNil(t, msg)
	assert.Equal(t, ApologyText, msg.Plain)

	// 之后的消息照常处理
	msg = r.Dispatch(context.Background(), incoming("!echo still alive"))
	require.NotNil(t, msg)
	assert.Equal(t, "still alive", msg.Plain)
}

func TestHandle_SendsExactlyOneApologyAndKeepsServing(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(m *Message) bool {
		return m.Plain == ApologyText
	})).Return(nil).Once()
	sender.On("Send", mock.Anything, mock.MatchedBy(func(m *Message) bool {
		return m.Plain == "next"
	})).Return(nil).Once()

	r := New(botID, sender, echoCommand(), Command{
		Name: "!email",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			panic("tool invoker exploded")
		}),
	})

	r.Handle(context.Background(), incoming("!email a@b.com"))
	r.Wait()
	r.Handle(context.Background(), incoming("!echo next"))
	r.Wait()

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestHandle_SendErrorIsLogged(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("network down"))

	r := New(botID, sender, echoCommand())
	r.Handle(context.Background(), incoming("!echo x"))
	r.Wait()

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestHandle_NoReplyNoSend(t *testing.T) {
	sender := new(mockSender)
	r := New(botID, sender, echoCommand())

	r.Handle(context.Background(), incoming("hello"))
	r.Wait()

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestHandle_SlowHandlerDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	sender := &recordingSender{}
	r := New(botID, sender, echoCommand(), Command{
		Name: "!slow",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			<-release
			return &Message{Plain: "slow done"}, nil
		}),
	})

	r.Handle(context.Background(), incoming("!slow"))
	r.Handle(context.Background(), incoming("!echo fast"))

	assert.Eventually(t, func() bool {
		msgs := sender.messages()
		return len(msgs) == 1 && msgs[0].Plain == "fast"
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	r.Wait()
	assert.Len(t, sender.messages(), 2)
}

func TestNew_DuplicateCommandLastWins(t *testing.T) {
	first := echoCommand()
	second := Command{
		Name: "!ECHO",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			return &Message{Plain: "second"}, nil
		}),
	}
	r := New(botID, &recordingSender{}, first, second)

	msg := r.Dispatch(context.Background(), incoming("!echo x"))
	require.NotNil(t, msg)
	assert.Equal(t, "second", msg.Plain)
	assert.Len(t, r.Commands(), 2)
}

func TestWait_DeliversInFlightRepliesAfterListenerStops(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sender := &recordingSender{}
	r := New(botID, sender, Command{
		Name: "!slow",
		Handler: HandlerFunc(func(ctx context.Context, req *Request) (*Message, error) {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &Message{Plain: "slow done"}, nil
		}),
	})

	listenerCtx, stopListener := context.WithCancel(context.Background())
	r.Handle(context.WithoutCancel(listenerCtx), incoming("!slow"))
	<-started

	// 停止接收更新后，已分发的请求仍然完成并回复
	stopListener()
	close(release)
	r.Wait()

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "slow done", msgs[0].Plain)
}
