package teleapp

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/router"

	"github.com/zelenin/go-tdlib/client"
)

// dispatcher 接收聊天消息并异步处理
type dispatcher interface {
	Handle(ctx context.Context, in *router.Incoming)
}

type TeleApp struct {
	user       *client.User
	tdClient   *client.Client
	listener   *client.Listener
	parameters *client.SetTdlibParametersRequest
	chatsMu    sync.RWMutex
	chatsCache map[int64]*client.Chat
	ctx        context.Context
	cancel     context.CancelFunc
	ctxMu      sync.Mutex
	loopDone   chan struct{}
	stopOnce   sync.Once
	loggedInAt time.Time
}

func NewApp(apiId int32, apiHash, dataDir string) *TeleApp {
	_, err := client.SetLogVerbosityLevel(&client.SetLogVerbosityLevelRequest{
		NewVerbosityLevel: 1,
	})
	if err != nil {
		logger.Fatalf("[TeleApp] 设置日志级别错误, %s", err)
	}

	parameters := &client.SetTdlibParametersRequest{
		UseTestDc:           false,
		DatabaseDirectory:   filepath.Join(dataDir, ".tdlib", "database"),
		FilesDirectory:      filepath.Join(dataDir, ".tdlib", "files"),
		UseFileDatabase:     true,
		UseChatInfoDatabase: true,
		UseMessageDatabase:  true,
		UseSecretChats:      false,
		ApiId:               apiId,
		ApiHash:             apiHash,
		SystemLanguageCode:  "en",
		DeviceModel:         "Server",
		SystemVersion:       "1.0.0",
		ApplicationVersion:  "1.0.0",
	}

	app := &TeleApp{
		parameters: parameters,
		chatsCache: make(map[int64]*client.Chat),
	}
	return app
}

func (app *TeleApp) Login(options ...client.Option) (*client.User, error) {
	if app.user != nil {
		return app.user, nil
	}

	authorizer := client.ClientAuthorizer(app.parameters)
	go client.CliInteractor(authorizer)

	tdlibClient, err := client.NewClient(authorizer, options...)
	if err != nil {
		return nil, err
	}

	me, err := tdlibClient.GetMe()
	if err != nil {
		return nil, err
	}

	app.user = me
	app.tdClient = tdlibClient
	app.loggedInAt = time.Now()

	chats, err := app.tdClient.GetChats(&client.GetChatsRequest{Limit: 100})
	if err != nil {
		logger.Warnf("[TeleApp] 获取聊天列表失败: %v", err)
	} else {
		for _, chatId := range chats.ChatIds {
			chat, err := app.getChat(chatId)
			if err != nil {
				logger.Warnf("[TeleApp] 获取聊天信息失败, id: %d, %v", chatId, err)
				continue
			}
			logger.Infof("[TeleApp] 聊天列表: %s[%d]", chat.Title, chat.Id)
		}
	}

	return me, nil
}

// Serve 开始接收新消息并交给 d 处理，需在 Login 之后调用
func (app *TeleApp) Serve(d dispatcher) {
	if app.tdClient == nil {
		logger.Fatalf("[TeleApp] 尚未登录，无法接收消息")
	}

	listener := app.tdClient.GetListener()
	app.listener = listener

	app.ctxMu.Lock()
	app.ctx, app.cancel = context.WithCancel(context.Background())
	app.loopDone = make(chan struct{})
	app.ctxMu.Unlock()

	go app.getUpdates(listener, d)
}

// StopUpdates 停止接收新消息并等待更新循环退出，已分发的消息不受影响
func (app *TeleApp) StopUpdates() {
	app.stopOnce.Do(func() {
		app.ctxMu.Lock()
		cancel, done := app.cancel, app.loopDone
		app.ctxMu.Unlock()

		if cancel != nil {
			cancel()
		}
		if app.listener != nil {
			app.listener.Close()
		}
		if done != nil {
			<-done
		}
	})
}

func (app *TeleApp) Client() *client.Client {
	return app.tdClient
}

func (app *TeleApp) Close() error {
	if app.tdClient == nil {
		return nil
	}

	app.StopUpdates()

	_, err := app.tdClient.Close()
	return err
}

func (app *TeleApp) getChat(chatId int64) (*client.Chat, error) {
	// 先尝试读锁读取缓存
	app.chatsMu.RLock()
	chat, ok := app.chatsCache[chatId]
	app.chatsMu.RUnlock()
	if ok {
		return chat, nil
	}

	// 缓存未命中，获取数据
	chat, err := app.tdClient.GetChat(&client.GetChatRequest{ChatId: chatId})
	if err != nil {
		return nil, err
	}

	// 写锁更新缓存
	app.chatsMu.Lock()
	app.chatsCache[chatId] = chat
	app.chatsMu.Unlock()
	return chat, nil
}

func (app *TeleApp) getUpdates(listener *client.Listener, d dispatcher) {
	app.ctxMu.Lock()
	ctx, done := app.ctx, app.loopDone
	app.ctxMu.Unlock()
	defer close(done)

	// 停止接收更新时不中断已分发的检查
	handleCtx := context.WithoutCancel(ctx)

	for listener.IsActive() {
		select {
		case <-ctx.Done():
			logger.Infof("[TeleApp] 更新循环已取消，退出")
			return
		case update, ok := <-listener.Updates:
			if !ok {
				return
			}
			if update.GetType() != "updateNewMessage" {
				continue
			}

			updateNewMessage := update.(*client.UpdateNewMessage)
			in := toIncoming(updateNewMessage.Message)
			if in == nil {
				continue
			}

			// 登录前积压的消息不再处理
			if int64(updateNewMessage.Message.Date) < app.loggedInAt.Unix() {
				logger.Debugf("[TeleApp] 忽略历史消息, chat: %d, message: %d", in.RoomID, in.MessageID)
				continue
			}

			if chat, err := app.getChat(in.RoomID); err == nil {
				logger.Debugf("[TeleApp] 接收消息: %s[%d] -> %s", chat.Title, chat.Id, in.Body)
			}

			d.Handle(handleCtx, in)
		}
	}
}

// toIncoming 提取文本消息，非文本消息返回 nil
func toIncoming(message *client.Message) *router.Incoming {
	if message == nil || message.Content == nil {
		return nil
	}
	if message.Content.MessageContentType() != client.TypeMessageText {
		return nil
	}

	text := message.Content.(*client.MessageText)
	if text.Text == nil || text.Text.Text == "" {
		return nil
	}

	senderID := int64(0)
	switch sender := message.SenderId.(type) {
	case *client.MessageSenderUser:
		senderID = sender.UserId
	case *client.MessageSenderChat:
		senderID = sender.ChatId
	}

	return &router.Incoming{
		SenderID:  senderID,
		RoomID:    message.ChatId,
		MessageID: message.Id,
		Body:      text.Text.Text,
	}
}
