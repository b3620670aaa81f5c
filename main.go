//go:build linux
// +build linux

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/notify"
	"github.com/fachebot/holehe-bot/internal/router"
	"github.com/fachebot/holehe-bot/internal/scheduler"
	"github.com/fachebot/holehe-bot/internal/svc"
	"github.com/fachebot/holehe-bot/internal/teleapp"

	"github.com/zelenin/go-tdlib/client"
)

var configFile = flag.String("f", "etc/config.yaml", "the config file")

func main() {
	flag.Parse()

	// 读取配置文件
	c, err := config.LoadFromFile(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}
	if err := logger.SetLevel(c.Log.Level); err != nil {
		logger.Fatalf("设置日志级别失败, %s", err)
	}

	// 创建数据目录
	if _, err := os.Stat(c.TelegramApp.DataDir); os.IsNotExist(err) {
		err := os.MkdirAll(c.TelegramApp.DataDir, 0755)
		if err != nil {
			logger.Fatalf("创建数据目录失败, %s", err)
		}
	}

	// 创建服务上下文
	svcCtx := svc.NewServiceContext(c)

	// 运行Telegram App
	options := make([]client.Option, 0)
	if c.Sock5Proxy.Enable {
		options = append(options, client.WithProxy(&client.AddProxyRequest{
			Server: c.Sock5Proxy.Host,
			Port:   c.Sock5Proxy.Port,
			Enable: c.Sock5Proxy.Enable,
			Type:   &client.ProxyTypeSocks5{},
		}))
	}

	// 创建TeleApp
	app := teleapp.NewApp(c.TelegramApp.ApiId, c.TelegramApp.ApiHash, c.TelegramApp.DataDir)
	user, err := app.Login(options...)
	if err != nil {
		logger.Fatalf("[TeleApp] 用户登录失败, %s", err)
	}
	logger.Infof("[TeleApp] 用户 <%s %s>(%d) 登录成功", user.FirstName, user.LastName, user.Id)

	// 创建通知器和命令路由
	notifierInstance := notify.NewNotifier(app.Client())
	routerInstance := router.New(user.Id, notifierInstance, svcCtx.Lookup.Command())
	app.Serve(routerInstance)

	// 创建并启动健康检查
	schedulerInstance := scheduler.NewScheduler(svcCtx.Invoker.Path(), svcCtx.Metrics, &c.Health)
	if err := schedulerInstance.Start(); err != nil {
		logger.Fatalf("[Scheduler] 启动调度器失败: %s", err)
	}

	if svcCtx.MetricsServer != nil {
		svcCtx.MetricsServer.Start()
	}

	// 等待程序退出
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	// 优雅关闭
	logger.Infof("正在关闭服务...")
	schedulerInstance.Stop()
	app.StopUpdates()
	routerInstance.Wait()
	err = app.Close()
	if err != nil {
		logger.Infof("[TeleApp] 关闭失败, %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svcCtx.Close(ctx)
	logger.Infof("服务已停止")
}
