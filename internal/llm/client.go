package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/fachebot/holehe-bot/internal/logger"
	"github.com/sashabaranov/go-openai"
)

const (
	requestTimeout = 60 * time.Second
	maxPromptItems = 100
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Client struct {
	config       *config.LLM
	openaiClient openAIClientInterface
}

// NewClient 创建客户端。transport 非空时用于走 SOCKS5 代理
func NewClient(cfg *config.LLM, transport *http.Transport) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	return &Client{
		config:       cfg,
		openaiClient: openai.NewClientWithConfig(openaiConfig),
	}
}

// Exposure 一次查询中需要评估的命中内容
type Exposure struct {
	Email  string
	Sites  []string // 网站名
	Extras []string // "标题: 链接"
}

// MaskEmail 只保留本地部分首字母，避免把完整邮箱发给第三方模型
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// exposureToPromptText 将命中内容转为 prompt 文本，超出上限的条目被截断
func exposureToPromptText(e *Exposure) string {
	var sb strings.Builder
	sb.WriteString("Email: " + MaskEmail(e.Email) + "\n")

	sites := e.Sites
	if len(sites) > maxPromptItems {
		sites = sites[:maxPromptItems]
	}
	sb.WriteString(fmt.Sprintf("Registered sites (%d):\n", len(e.Sites)))
	for _, s := range sites {
		sb.WriteString("- " + s + "\n")
	}

	if len(e.Extras) > 0 {
		extras := e.Extras
		if len(extras) > maxPromptItems {
			extras = extras[:maxPromptItems]
		}
		sb.WriteString("Additional information:\n")
		for _, x := range extras {
			sb.WriteString("- " + x + "\n")
		}
	}
	return sb.String()
}

// AssessExposure 让模型根据命中的网站给出简短的暴露面评估，返回纯文本
func (c *Client) AssessExposure(ctx context.Context, e *Exposure) (string, error) {
	if e == nil || (len(e.Sites) == 0 && len(e.Extras) == 0) {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	systemPrompt := `You are an OSINT analyst. Given the list of websites where an email address is registered,
write a short exposure assessment in plain text (no markdown, no HTML), at most 5 sentences:
what the registrations reveal about the owner (interests, services used), and which accounts
are the most sensitive if the email were compromised.`

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: exposureToPromptText(e)},
		},
		Temperature: 0.3,
		MaxTokens:   c.config.MaxTokens,
	}

	logger.Debugf("[LLM] 请求暴露面评估, sites: %d, extras: %d", len(e.Sites), len(e.Extras))
	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("调用 LLM API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM API 返回空结果")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```text")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	return content, nil
}
