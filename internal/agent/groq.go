package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// Groq的OpenAI兼容chat completions端点
	defaultGroqAPIURL    = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModelName = "llama-3.1-8b-instant"
	defaultTemperature   = 0.3
)

// GroqChatModel 实现 model.ChatModel 接口，与Groq上的Llama模型交互
type GroqChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	httpClient  *http.Client
}

// GroqOption 构造选项
type GroqOption func(*GroqChatModel)

// WithTemperature 设置采样温度
func WithTemperature(temperature float64) GroqOption {
	return func(g *GroqChatModel) {
		g.temperature = temperature
	}
}

// WithRequestTimeout 设置单次请求超时
func WithRequestTimeout(timeout time.Duration) GroqOption {
	return func(g *GroqChatModel) {
		g.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithAPIURL 覆盖API地址（测试用）
func WithAPIURL(url string) GroqOption {
	return func(g *GroqChatModel) {
		g.apiURL = url
	}
}

// NewGroqChatModel 创建一个新的 GroqChatModel 实例
func NewGroqChatModel(apiKey string, modelName string, opts ...GroqOption) (*GroqChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultGroqModelName
	}

	g := &GroqChatModel{
		apiKey:      apiKey,
		modelName:   mn,
		apiURL:      defaultGroqAPIURL,
		temperature: defaultTemperature,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}

	log.Printf("使用Groq LLM客户端，API URL: %s, 模型: %s, 温度: %.2f", g.apiURL, g.modelName, g.temperature)
	return g, nil
}

// --- OpenAI兼容的请求/响应结构 ---

type groqChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
}

type groqChatChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Message      struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
}

type groqCompletionResponse struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Model   string           `json:"model"`
	Choices []groqChatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate 实现 model.ChatModel 接口
func (g *GroqChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	reqPayload := groqChatCompletionRequest{
		Model:       g.modelName,
		Messages:    messages,
		Temperature: g.temperature,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiResp groqCompletionResponse
		if json.Unmarshal(bodyBytes, &apiResp) == nil && apiResp.Error != nil {
			return nil, fmt.Errorf("API 请求失败，状态 %s, 类型: %s, 错误: %s", httpResp.Status, apiResp.Error.Type, apiResp.Error.Message)
		}
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var apiResp groqCompletionResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := apiResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.Assistant
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口 (未实现)
func (g *GroqChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GroqChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口，本模型不支持工具调用
func (g *GroqChatModel) BindTools(tools []*schema.ToolInfo) error {
	return fmt.Errorf("GroqChatModel 不支持工具调用")
}

// Chat 以系统提示词+用户提示词发起单轮对话，返回助手回复的文本内容
func (g *GroqChatModel) Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	messages = append(messages, schema.UserMessage(userPrompt))

	resp, err := g.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

var _ model.ChatModel = (*GroqChatModel)(nil)
