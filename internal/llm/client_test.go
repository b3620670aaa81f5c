package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fachebot/holehe-bot/internal/config"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// mockOpenAIClient 模拟 OpenAI 客户端
type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

// newTestClient 创建用于测试的客户端，注入 mock
func newTestClient(mockClient openAIClientInterface) *Client {
	return &Client{
		config:       &config.LLM{Model: "test", MaxTokens: 400},
		openaiClient: mockClient,
	}
}

func sampleExposure() *Exposure {
	return &Exposure{
		Email:  "john.doe@example.com",
		Sites:  []string{"Amazon", "Spotify"},
		Extras: []string{"JohnDoe: https://github.com/johndoe"},
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"john.doe@example.com", "j***@example.com"},
		{"a@b.com", "a***@b.com"},
		{"@b.com", "***"},
		{"plain", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmail(tt.email))
		})
	}
}

func TestExposureToPromptText(t *testing.T) {
	got := exposureToPromptText(sampleExposure())
	assert.Contains(t, got, "Email: j***@example.com")
	assert.NotContains(t, got, "john.doe")
	assert.Contains(t, got, "Registered sites (2):\n- Amazon\n- Spotify\n")
	assert.Contains(t, got, "Additional information:\n- JohnDoe: https://github.com/johndoe\n")
}

func TestExposureToPromptText_Truncates(t *testing.T) {
	e := &Exposure{Email: "a@b.com"}
	for i := 0; i < maxPromptItems+20; i++ {
		e.Sites = append(e.Sites, fmt.Sprintf("Site%d", i))
	}
	got := exposureToPromptText(e)
	assert.Contains(t, got, fmt.Sprintf("Registered sites (%d):", maxPromptItems+20))
	assert.Equal(t, maxPromptItems, strings.Count(got, "\n- Site"))
	assert.NotContains(t, got, "Additional information")
}

func TestAssessExposure_Empty(t *testing.T) {
	client := newTestClient(&mockOpenAIClient{})

	result, err := client.AssessExposure(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, result)

	result, err = client.AssessExposure(context.Background(), &Exposure{Email: "a@b.com"})
	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestAssessExposure_Success(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "test" &&
			req.MaxTokens == 400 &&
			len(req.Messages) == 2 &&
			strings.Contains(req.Messages[1].Content, "- Amazon")
	})).Return(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "  Shopping and music accounts.  "}},
		},
	}, nil)

	client := newTestClient(mockAPI)
	result, err := client.AssessExposure(context.Background(), sampleExposure())
	assert.NoError(t, err)
	assert.Equal(t, "Shopping and music accounts.", result)
	mockAPI.AssertExpectations(t)
}

func TestAssessExposure_APIError(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("api error"))

	client := newTestClient(mockAPI)
	_, err := client.AssessExposure(context.Background(), sampleExposure())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "调用 LLM API 失败")
}

func TestAssessExposure_EmptyResponse(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{Choices: nil}, nil)

	client := newTestClient(mockAPI)
	_, err := client.AssessExposure(context.Background(), sampleExposure())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "返回空结果")
}

func TestAssessExposure_TrimsCodeBlock(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "```text\nLow exposure.\n```"}},
			},
		}, nil)

	client := newTestClient(mockAPI)
	result, err := client.AssessExposure(context.Background(), sampleExposure())
	assert.NoError(t, err)
	assert.Equal(t, "Low exposure.", result)
}
