package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"resume-rag-go/internal/config"
)

// HuggingFaceEmbedder 实现 embedding.Embedder 接口
// 使用HuggingFace Inference Router的OpenAI兼容embedding端点
type HuggingFaceEmbedder struct {
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
}

// NewHuggingFaceEmbedder 创建新的HuggingFace Embedder (OpenAI兼容接口)
func NewHuggingFaceEmbedder(apiKey string, embeddingCfg config.EmbeddingConfig) (*HuggingFaceEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	model := embeddingCfg.Model
	if model == "" {
		model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	baseURL := embeddingCfg.BaseURL
	if baseURL == "" {
		baseURL = "https://router.huggingface.co/v1/embeddings"
	}
	timeout := 30 * time.Second
	if embeddingCfg.TimeoutSeconds > 0 {
		timeout = time.Duration(embeddingCfg.TimeoutSeconds) * time.Second
	}

	embedder := &HuggingFaceEmbedder{
		apiKey:     apiKey,
		model:      model,
		dimensions: embeddingCfg.Dimensions,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     log.New(os.Stderr, "[HFEmbedder] ", log.LstdFlags|log.Lshortfile),
	}

	return embedder, nil
}

// GetDimensions 返回嵌入器配置的维度
func (h *HuggingFaceEmbedder) GetDimensions() int {
	return h.dimensions
}

// openAIEmbeddingRequest OpenAI兼容的Embedding请求结构
type openAIEmbeddingRequest struct {
	Input          interface{} `json:"input"` // string 或 []string
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// openAIEmbeddingResponse OpenAI兼容的Embedding响应结构
type openAIEmbeddingResponse struct {
	Object string             `json:"object"`
	Data   []openAIDataEntry  `json:"data"`
	Model  string             `json:"model"`
	Usage  openAIUsage        `json:"usage"`
	Error  *openAIErrorDetail `json:"error,omitempty"`
}

type openAIDataEntry struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// openAIErrorDetail API级别的错误（可能随200 OK返回）
type openAIErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// EmbedStrings 将文本转换为向量, 实现 cloudwego/eino embedding.Embedder 接口
func (h *HuggingFaceEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	options := &embedding.Options{}
	embedding.GetCommonOptions(options, opts...)

	effectiveModel := h.model
	if options.Model != nil && *options.Model != "" {
		effectiveModel = *options.Model
	}

	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	var inputBody interface{}
	if len(texts) == 1 {
		inputBody = texts[0]
	} else {
		inputBody = texts
	}

	reqBody := openAIEmbeddingRequest{
		Input:          inputBody,
		Model:          effectiveModel,
		EncodingFormat: "float",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiError openAIErrorDetail
		if json.Unmarshal(body, &apiError) == nil && apiError.Message != "" {
			return nil, fmt.Errorf("API调用失败, 状态码: %d, 类型: %s, 错误: %s", resp.StatusCode, apiError.Type, apiError.Message)
		}
		return nil, fmt.Errorf("API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, truncateBody(body))
	}

	var parsedResp openAIEmbeddingResponse
	if err := json.Unmarshal(body, &parsedResp); err != nil {
		return nil, fmt.Errorf("解析响应JSON失败: %w. Body: %s", err, truncateBody(body))
	}

	if parsedResp.Error != nil && parsedResp.Error.Message != "" {
		return nil, fmt.Errorf("API返回错误: 类型=%s, 消息='%s'", parsedResp.Error.Type, parsedResp.Error.Message)
	}

	outputEmbeddings := make([][]float64, len(parsedResp.Data))
	for _, dataEntry := range parsedResp.Data {
		if dataEntry.Index < 0 || dataEntry.Index >= len(parsedResp.Data) {
			return nil, fmt.Errorf("响应中的向量索引越界: %d", dataEntry.Index)
		}
		outputEmbeddings[dataEntry.Index] = dataEntry.Embedding
	}

	// 校验返回的向量维度与配置一致
	if h.dimensions > 0 {
		for i, vec := range outputEmbeddings {
			if len(vec) != h.dimensions {
				return nil, fmt.Errorf("第%d个向量维度不匹配: 期望%d, 实际%d", i, h.dimensions, len(vec))
			}
		}
	}

	h.logger.Printf("成功嵌入 %d 条文本, 向量维度: %d, tokens: %d",
		len(texts), firstEmbeddingDim(outputEmbeddings), parsedResp.Usage.TotalTokens)

	return outputEmbeddings, nil
}

// EmbedQuery 嵌入单条查询文本
func (h *HuggingFaceEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := h.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("嵌入服务未返回任何向量")
	}
	return vectors[0], nil
}

func firstEmbeddingDim(embeddings [][]float64) int {
	if len(embeddings) > 0 {
		return len(embeddings[0])
	}
	return 0
}

func truncateBody(body []byte) string {
	const maxLen = 500
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return strings.TrimSpace(s)
}
