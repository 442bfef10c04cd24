package singleton

import (
	"context"
	"sync"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/processor"
)

var (
	analyzerInstance *processor.ResumeAnalyzer
	analyzerOnce     sync.Once
	analyzerMutex    sync.Mutex
)

// GetResumeAnalyzer 获取ResumeAnalyzer的单例实例
// 依赖向量存储和Groq模型单例，按需级联创建
func GetResumeAnalyzer(ctx context.Context, cfg *config.Config) (*processor.ResumeAnalyzer, error) {
	if analyzerInstance != nil {
		return analyzerInstance, nil
	}

	analyzerMutex.Lock()
	defer analyzerMutex.Unlock()

	if analyzerInstance != nil {
		return analyzerInstance, nil
	}

	var err error
	analyzerOnce.Do(func() {
		store, storeErr := GetResumeVectorStore(ctx, cfg)
		if storeErr != nil {
			err = storeErr
			return
		}

		chatModel, chatErr := GetGroqChatModel(cfg)
		if chatErr != nil {
			err = chatErr
			return
		}

		opts := []processor.AnalyzerOption{}
		if cfg.Analysis.MinResumeChars > 0 {
			opts = append(opts, processor.WithMinResumeChars(cfg.Analysis.MinResumeChars))
		}
		if cfg.Analysis.TopK > 0 {
			opts = append(opts, processor.WithTopK(cfg.Analysis.TopK))
		}
		if cfg.Analysis.JDQueryChars > 0 {
			opts = append(opts, processor.WithJDQueryChars(cfg.Analysis.JDQueryChars))
		}
		if timeout := config.GetDuration(cfg.Analysis.StoreTimeout, 0); timeout > 0 {
			opts = append(opts, processor.WithStoreTimeout(timeout))
		}
		analyzerInstance, err = processor.NewResumeAnalyzer(store, chatModel, opts...)
	})
	if err != nil {
		// 初始化失败时复位Once，后续调用可重试
		analyzerInstance = nil
		analyzerOnce = sync.Once{}
	}

	return analyzerInstance, err
}

// ResetResumeAnalyzer 重置ResumeAnalyzer单例（主要用于测试）
func ResetResumeAnalyzer() {
	analyzerMutex.Lock()
	defer analyzerMutex.Unlock()
	analyzerInstance = nil
	analyzerOnce = sync.Once{}
}

// ResetAll 重置全部单例（主要用于测试）
func ResetAll() {
	ResetResumeAnalyzer()
	ResetResumeVectorStore()
	ResetGroqChatModel()
	ResetPinecone()
	ResetEmbedder()
}
