package svc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/fachebot/holehe-bot/internal/holehe"
	"github.com/fachebot/holehe-bot/internal/llm"
	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/fachebot/holehe-bot/internal/lookup"
	"github.com/fachebot/holehe-bot/internal/metrics"

	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	TransportProxy *http.Transport
	Metrics        *metrics.Metrics
	MetricsServer  *metrics.Server
	Invoker        *holehe.Invoker
	LLMClient      *llm.Client
	Lookup         *lookup.Lookup
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	m := metrics.New()
	invoker := holehe.NewInvoker(&c.Holehe)

	// 风险评估为可选功能
	var llmClient *llm.Client
	if c.LLM.Enable {
		llmClient = llm.NewClient(&c.LLM, transportProxy)
	}

	var metricsServer *metrics.Server
	if c.Metrics.ListenAddr != "" {
		metricsServer = metrics.NewServer(c.Metrics.ListenAddr, m)
	}

	svcCtx := &ServiceContext{
		Config:         c,
		TransportProxy: transportProxy,
		Metrics:        m,
		MetricsServer:  metricsServer,
		Invoker:        invoker,
		LLMClient:      llmClient,
		Lookup:         lookup.New(invoker, llmClient, m),
	}
	return svcCtx
}

func (svcCtx *ServiceContext) Close(ctx context.Context) {
	if svcCtx.MetricsServer == nil {
		return
	}
	if err := svcCtx.MetricsServer.Shutdown(ctx); err != nil {
		logger.Errorf("关闭指标服务失败, %v", err)
	}
}
