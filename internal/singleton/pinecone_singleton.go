package singleton

import (
	"context"
	"sync"
	"time"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/storage"
)

var (
	pineconeInstance *storage.Pinecone
	pineconeOnce     sync.Once
	pineconeMutex    sync.Mutex
)

// GetPinecone 获取Pinecone客户端的单例实例
// 首次创建时会确保索引存在（除非配置跳过），可能耗时较长
func GetPinecone(ctx context.Context, cfg *config.Config) (*storage.Pinecone, error) {
	if pineconeInstance != nil {
		return pineconeInstance, nil
	}

	pineconeMutex.Lock()
	defer pineconeMutex.Unlock()

	if pineconeInstance != nil {
		return pineconeInstance, nil
	}

	var err error
	pineconeOnce.Do(func() {
		opts := []storage.PineconeOption{}
		if cfg.Pinecone.TimeoutSeconds > 0 {
			opts = append(opts, storage.WithHTTPTimeout(time.Duration(cfg.Pinecone.TimeoutSeconds)*time.Second))
		}
		if cfg.Pinecone.ControlPlaneURL != "" {
			opts = append(opts, storage.WithControlPlaneURL(cfg.Pinecone.ControlPlaneURL))
		}
		if cfg.Pinecone.IndexHost != "" {
			opts = append(opts, storage.WithIndexHost(cfg.Pinecone.IndexHost))
		}
		pineconeInstance, err = storage.NewPinecone(ctx, &cfg.Pinecone, opts...)
	})
	if err != nil {
		// 初始化失败时复位Once，后续调用可重试
		pineconeInstance = nil
		pineconeOnce = sync.Once{}
	}

	return pineconeInstance, err
}

// ResetPinecone 重置Pinecone单例（主要用于测试）
func ResetPinecone() {
	pineconeMutex.Lock()
	defer pineconeMutex.Unlock()
	pineconeInstance = nil
	pineconeOnce = sync.Once{}
}
