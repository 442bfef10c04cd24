package singleton

import (
	"context"
	"sync"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/embedding"
	"resume-rag-go/internal/storage"
)

var (
	vectorStoreInstance *storage.ResumeVectorStore
	vectorStoreOnce     sync.Once
	vectorStoreMutex    sync.Mutex
)

// GetResumeVectorStore 获取ResumeVectorStore的单例实例
// 依赖Pinecone客户端和Embedder单例，按需级联创建
func GetResumeVectorStore(ctx context.Context, cfg *config.Config) (*storage.ResumeVectorStore, error) {
	if vectorStoreInstance != nil {
		return vectorStoreInstance, nil
	}

	vectorStoreMutex.Lock()
	defer vectorStoreMutex.Unlock()

	if vectorStoreInstance != nil {
		return vectorStoreInstance, nil
	}

	var err error
	vectorStoreOnce.Do(func() {
		var index *storage.Pinecone
		index, err = GetPinecone(ctx, cfg)
		if err != nil {
			return
		}

		var embedder *embedding.HuggingFaceEmbedder
		embedder, err = GetEmbedder(cfg)
		if err != nil {
			return
		}

		opts := []storage.ResumeVectorStoreOption{}
		if cfg.Analysis.ChunkSize > 0 {
			opts = append(opts, storage.WithChunkSize(cfg.Analysis.ChunkSize))
		}
		vectorStoreInstance, err = storage.NewResumeVectorStore(index, embedder, opts...)
	})
	if err != nil {
		// 初始化失败时复位Once，后续调用可重试
		vectorStoreInstance = nil
		vectorStoreOnce = sync.Once{}
	}

	return vectorStoreInstance, err
}

// ResetResumeVectorStore 重置ResumeVectorStore单例（主要用于测试）
func ResetResumeVectorStore() {
	vectorStoreMutex.Lock()
	defer vectorStoreMutex.Unlock()
	vectorStoreInstance = nil
	vectorStoreOnce = sync.Once{}
}
