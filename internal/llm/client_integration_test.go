package llm

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationTestConfig 从环境变量构建测试配置，若 LLM_API_KEY 未设置则跳过
func integrationTestConfig(t *testing.T) *config.LLM {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" || apiKey == "your-api-key-here" {
		t.Skip("跳过集成测试：请设置 LLM_API_KEY 环境变量")
	}
	baseURL := os.Getenv("LLM_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &config.LLM{
		Enable:    true,
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     model,
		MaxTokens: config.DefaultAssessMaxTokens,
	}
}

func TestAssessExposure_Integration(t *testing.T) {
	cfg := integrationTestConfig(t)
	client := NewClient(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := client.AssessExposure(ctx, &Exposure{
		Email:  "someone@example.com",
		Sites:  []string{"Amazon", "Spotify", "Instagram", "Office365"},
		Extras: []string{"Github: https://github.com/someone"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result)

	t.Log("\n--- 暴露面评估 ---")
	t.Log(result)
}
