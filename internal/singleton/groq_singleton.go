package singleton

import (
	"sync"

	"resume-rag-go/internal/agent"
	"resume-rag-go/internal/config"
)

var (
	groqInstance *agent.GroqChatModel
	groqOnce     sync.Once
	groqMutex    sync.Mutex
)

// GetGroqChatModel 获取GroqChatModel的单例实例
// 如果实例不存在则创建，存在则返回已有实例
func GetGroqChatModel(cfg *config.Config) (*agent.GroqChatModel, error) {
	if groqInstance != nil {
		return groqInstance, nil
	}

	groqMutex.Lock()
	defer groqMutex.Unlock()

	if groqInstance != nil {
		return groqInstance, nil
	}

	var err error
	groqOnce.Do(func() {
		opts := []agent.GroqOption{}
		if cfg.Groq.Temperature > 0 {
			opts = append(opts, agent.WithTemperature(cfg.Groq.Temperature))
		}
		if cfg.Groq.APIURL != "" {
			opts = append(opts, agent.WithAPIURL(cfg.Groq.APIURL))
		}
		if timeout := config.GetDuration(cfg.Groq.RequestTimeout, 0); timeout > 0 {
			opts = append(opts, agent.WithRequestTimeout(timeout))
		}
		groqInstance, err = agent.NewGroqChatModel(cfg.Groq.APIKey, cfg.Groq.Model, opts...)
	})
	if err != nil {
		// 初始化失败时复位Once，后续调用可重试
		groqInstance = nil
		groqOnce = sync.Once{}
	}

	return groqInstance, err
}

// ResetGroqChatModel 重置GroqChatModel单例（主要用于测试）
func ResetGroqChatModel() {
	groqMutex.Lock()
	defer groqMutex.Unlock()
	groqInstance = nil
	groqOnce = sync.Once{}
}
