package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// Groq LLM配置
	Groq GroqConfig `yaml:"groq"`

	// Pinecone向量索引配置
	Pinecone PineconeConfig `yaml:"pinecone"`

	// Embedding配置
	Embedding EmbeddingConfig `yaml:"embedding"`

	// 分析流水线配置
	Analysis AnalysisConfig `yaml:"analysis"`

	// 服务器配置
	Server ServerConfig `yaml:"server"`

	// 日志配置
	Logger LoggerConfig `yaml:"logger"`

	// 链路追踪配置
	Tracing TracingConfig `yaml:"tracing"`
}

// GroqConfig Groq聊天模型配置 (OpenAI兼容端点)
type GroqConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	APIURL      string  `yaml:"api_url"`
	Temperature float64 `yaml:"temperature"`
	// 单次LLM调用超时，例如 "60s"
	RequestTimeout string `yaml:"request_timeout"`
}

// PineconeConfig Pinecone向量索引配置
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	IndexName string `yaml:"index_name"`
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"`
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
	// 冷启动优化: 跳过启动时的索引存在性检查, 信任索引已存在
	SkipIndexCheck bool `yaml:"skip_index_check"`
	// 控制面地址, 测试时可指向本地
	ControlPlaneURL string `yaml:"control_plane_url,omitempty"`
	// 数据面地址, 为空时通过describe接口解析
	IndexHost      string `yaml:"index_host,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EmbeddingConfig 句向量模型配置 (OpenAI兼容端点)
type EmbeddingConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AnalysisConfig 分析流水线配置
type AnalysisConfig struct {
	// 提取文本的最小长度, 低于此值在任何存储/LLM调用前拒绝请求
	MinResumeChars int `yaml:"min_resume_chars"`
	// JD检索返回的相似块数量
	TopK int `yaml:"top_k"`
	// 用作检索查询的JD前缀长度(字符)
	JDQueryChars int `yaml:"jd_query_chars"`
	// 分块大小(词数), 无重叠
	ChunkSize int `yaml:"chunk_size"`
	// 存储阶段超时, 例如 "30s"
	StoreTimeout string `yaml:"store_timeout"`
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address string `yaml:"address"` // 例如 ":8000" or "0.0.0.0:8000"
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// TracingConfig OpenTelemetry导出配置
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC端点, 例如 "localhost:4317"
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果未指定配置文件路径，则尝试在默认位置查找
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-rag", "config.yaml"),
		}

		// 获取当前可执行文件路径
		execPath, err := os.Executable()
		if err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
			searchPaths = append(searchPaths, filepath.Join(execDir, "..", "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 如果仍找不到配置文件: 测试环境返回默认配置, 其他情况使用默认路径
		if configPath == "" {
			if inTestEnv() {
				cfg := createDefaultConfig()
				applyEnvOverrides(cfg)
				return cfg, nil
			}
			configPath = "config.yaml"
		}
	}

	// 检查文件是否存在
	if _, err := os.Stat(configPath); err != nil {
		if inTestEnv() {
			cfg := createDefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	return &config, nil
}

// inTestEnv 检测是否在go test环境中运行
func inTestEnv() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// applyEnvOverrides 从环境变量覆盖配置（如果存在）
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		config.Groq.APIKey = v
	}
	if v := os.Getenv("GROQ_MODEL"); v != "" {
		config.Groq.Model = v
	}
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		config.Pinecone.APIKey = v
	}
	if v := os.Getenv("PINECONE_INDEX_NAME"); v != "" {
		config.Pinecone.IndexName = v
	}
	if v := os.Getenv("HUGGINGFACE_API_KEY"); v != "" {
		config.Embedding.APIKey = v
	}
	if v := os.Getenv("SKIP_INDEX_CHECK"); strings.EqualFold(v, "true") {
		config.Pinecone.SkipIndexCheck = true
	}
}

// applyDefaults 为未设置的配置项填充默认值
func applyDefaults(config *Config) {
	if config.Groq.Model == "" {
		config.Groq.Model = "llama-3.1-8b-instant"
	}
	if config.Groq.APIURL == "" {
		config.Groq.APIURL = "https://api.groq.com/openai/v1/chat/completions"
	}
	if config.Groq.Temperature == 0 {
		config.Groq.Temperature = 0.3
	}
	if config.Groq.RequestTimeout == "" {
		config.Groq.RequestTimeout = "60s"
	}

	if config.Pinecone.IndexName == "" {
		config.Pinecone.IndexName = "resume-rag"
	}
	if config.Pinecone.Dimension <= 0 {
		config.Pinecone.Dimension = 384 // all-MiniLM-L6-v2 = 384维
	}
	if config.Pinecone.Metric == "" {
		config.Pinecone.Metric = "cosine"
	}
	if config.Pinecone.Cloud == "" {
		config.Pinecone.Cloud = "aws"
	}
	if config.Pinecone.Region == "" {
		config.Pinecone.Region = "us-east-1"
	}
	if config.Pinecone.ControlPlaneURL == "" {
		config.Pinecone.ControlPlaneURL = "https://api.pinecone.io"
	}
	if config.Pinecone.TimeoutSeconds <= 0 {
		config.Pinecone.TimeoutSeconds = 30
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "https://router.huggingface.co/v1/embeddings"
	}
	if config.Embedding.Dimensions <= 0 {
		config.Embedding.Dimensions = 384
	}
	if config.Embedding.TimeoutSeconds <= 0 {
		config.Embedding.TimeoutSeconds = 30
	}

	if config.Analysis.MinResumeChars <= 0 {
		config.Analysis.MinResumeChars = 50
	}
	if config.Analysis.TopK <= 0 {
		config.Analysis.TopK = 3
	}
	if config.Analysis.JDQueryChars <= 0 {
		config.Analysis.JDQueryChars = 500
	}
	if config.Analysis.ChunkSize <= 0 {
		config.Analysis.ChunkSize = 200
	}
	if config.Analysis.StoreTimeout == "" {
		config.Analysis.StoreTimeout = "30s"
	}

	if config.Server.Address == "" {
		config.Server.Address = ":8000"
	}

	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Format == "" {
		config.Logger.Format = "json"
	}

	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "resume-rag-go"
	}
	if config.Tracing.SampleRatio <= 0 {
		config.Tracing.SampleRatio = 1.0
	}
}

// createDefaultConfig 创建带默认值的配置, 主要用于测试环境
func createDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// CreateSampleConfig 在指定路径生成一份示例配置文件
func CreateSampleConfig(filePath string) error {
	sample := createDefaultConfig()
	data, err := yaml.Marshal(sample)
	if err != nil {
		return fmt.Errorf("序列化示例配置失败: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置失败: %w", err)
	}
	return nil
}

// GetDuration 解析配置中的时长字符串, 解析失败时返回默认值
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
