package processor

import (
	"context"

	"resume-rag-go/internal/storage"
)

// ResumeStore 简历向量存取组件的最小接口
type ResumeStore interface {
	// UpsertResume 分块并写入一份简历的向量，返回写入的分块数
	UpsertResume(ctx context.Context, resumeText string, resumeID string) (int, error)

	// Search 在指定简历的分块内语义检索
	Search(ctx context.Context, query string, topK int, resumeID string) ([]storage.ChunkMatch, error)
}

// JSONChatModel 单轮对话LLM组件的最小接口
type JSONChatModel interface {
	Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}
