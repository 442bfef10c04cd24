package singleton

import (
	"sync"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/embedding"
)

var (
	embedderInstance *embedding.HuggingFaceEmbedder
	embedderOnce     sync.Once
	embedderMutex    sync.Mutex
)

// GetEmbedder 获取HuggingFaceEmbedder的单例实例
// 如果实例不存在则创建，存在则返回已有实例
func GetEmbedder(cfg *config.Config) (*embedding.HuggingFaceEmbedder, error) {
	if embedderInstance != nil {
		return embedderInstance, nil
	}

	embedderMutex.Lock()
	defer embedderMutex.Unlock()

	if embedderInstance != nil {
		return embedderInstance, nil
	}

	var err error
	embedderOnce.Do(func() {
		embedderInstance, err = embedding.NewHuggingFaceEmbedder(cfg.Embedding.APIKey, cfg.Embedding)
	})
	if err != nil {
		// 初始化失败时复位Once，后续调用可重试
		embedderInstance = nil
		embedderOnce = sync.Once{}
	}

	return embedderInstance, err
}

// ResetEmbedder 重置Embedder单例（主要用于测试）
func ResetEmbedder() {
	embedderMutex.Lock()
	defer embedderMutex.Unlock()
	embedderInstance = nil
	embedderOnce = sync.Once{}
}
