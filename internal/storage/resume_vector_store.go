package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"resume-rag-go/internal/tracing"
)

var vectorStoreTracer = otel.Tracer("resume-rag-go/storage/vectorstore")

// DefaultChunkSize 默认分块大小（按词数）
const DefaultChunkSize = 200

// QueryEmbedder 向量化组件接口，沿用eino的embedding.Embedder契约
type QueryEmbedder = embedding.Embedder

// VectorIndex 向量索引的最小接口
type VectorIndex interface {
	Upsert(ctx context.Context, points []VectorPoint) (int, error)
	Query(ctx context.Context, queryVector []float64, topK int, filter map[string]interface{}) ([]VectorMatch, error)
	Stats(ctx context.Context) (*IndexStats, error)
}

// ChunkMatch 一次语义检索命中的分块
type ChunkMatch struct {
	ID    string
	Text  string
	Score float64
}

// ResumeVectorStore 简历向量存取层
// 负责分块、向量化、写入与检索，分块ID格式为 {resumeID}_chunk_{索引}
type ResumeVectorStore struct {
	index     VectorIndex
	embedder  QueryEmbedder
	chunkSize int
	logger    *log.Logger
}

// ResumeVectorStoreOption 构造选项
type ResumeVectorStoreOption func(*ResumeVectorStore)

// WithChunkSize 设置分块大小（词数）
func WithChunkSize(size int) ResumeVectorStoreOption {
	return func(s *ResumeVectorStore) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// NewResumeVectorStore 创建简历向量存取层
func NewResumeVectorStore(index VectorIndex, embedder QueryEmbedder, opts ...ResumeVectorStoreOption) (*ResumeVectorStore, error) {
	if index == nil {
		return nil, fmt.Errorf("向量索引不能为空")
	}
	if embedder == nil {
		return nil, fmt.Errorf("向量化组件不能为空")
	}

	s := &ResumeVectorStore{
		index:     index,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		logger:    log.New(os.Stderr, "[向量存储] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ChunkText 按词数将文本切分成块，块之间不重叠
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+chunkSize-1)/chunkSize)
	for start := 0; start < len(words); start += chunkSize {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// UpsertResume 分块并写入一份简历的全部向量
// 返回写入的分块数
func (s *ResumeVectorStore) UpsertResume(ctx context.Context, resumeText string, resumeID string) (int, error) {
	ctx, span := vectorStoreTracer.Start(ctx, "ResumeVectorStore.UpsertResume")
	defer span.End()

	chunks := ChunkText(resumeText, s.chunkSize)
	if len(chunks) == 0 {
		err := fmt.Errorf("简历文本为空，无法分块")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.Int("resume.chunks", len(chunks)),
		attribute.String("resume.first_chunk", tracing.SafeChunkContent(chunks[0])),
	)

	vectors, err := s.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("向量化简历分块失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("向量数量(%d)与分块数量(%d)不匹配", len(vectors), len(chunks))
	}

	points := make([]VectorPoint, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, VectorPoint{
			ID:     fmt.Sprintf("%s_chunk_%d", resumeID, i),
			Values: vectors[i],
			Metadata: map[string]interface{}{
				"resume_id":   resumeID,
				"text":        chunk,
				"chunk_index": i,
			},
		})
	}

	count, err := s.index.Upsert(ctx, points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("写入简历向量失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")

	s.logger.Printf("简历 %s 已写入 %d 个分块向量", resumeID, count)
	return count, nil
}

// Search 语义检索与查询文本最相似的分块
// resumeID 非空时只在该简历的分块内检索
func (s *ResumeVectorStore) Search(ctx context.Context, query string, topK int, resumeID string) ([]ChunkMatch, error) {
	ctx, span := vectorStoreTracer.Start(ctx, "ResumeVectorStore.Search")
	defer span.End()

	span.SetAttributes(
		attribute.String("search.query", tracing.SafeAttributeValue("query", query, tracing.MaxJDLength)),
		attribute.Int("search.top_k", topK),
		attribute.String("resume.id", resumeID),
	)

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("向量化查询文本失败: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("向量化查询文本未返回结果")
	}

	var filter map[string]interface{}
	if resumeID != "" {
		filter = map[string]interface{}{
			"resume_id": map[string]interface{}{"$eq": resumeID},
		}
	}

	matches, err := s.index.Query(ctx, vectors[0], topK, filter)
	if err != nil {
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeVectorDB,
			attribute.String("resume.id", resumeID),
			attribute.Int("search.top_k", topK),
		)
		return nil, fmt.Errorf("检索简历向量失败: %w", err)
	}
	span.SetAttributes(attribute.Int("search.matches", len(matches)))
	span.SetStatus(codes.Ok, "")

	results := make([]ChunkMatch, 0, len(matches))
	for _, m := range matches {
		text, _ := m.Metadata["text"].(string)
		results = append(results, ChunkMatch{
			ID:    m.ID,
			Text:  text,
			Score: m.Score,
		})
	}
	return results, nil
}

// Stats 返回底层索引的统计信息
func (s *ResumeVectorStore) Stats(ctx context.Context) (*IndexStats, error) {
	return s.index.Stats(ctx)
}
