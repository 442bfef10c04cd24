package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-rag-go/internal/config"
)

// 定义Pinecone的专用tracer
var pineconeTracer = otel.Tracer("resume-rag-go/storage/pinecone")

// Pinecone API版本头
const pineconeAPIVersion = "2025-01"

// Pinecone 提供Serverless向量数据库功能
// 控制面负责索引的创建与查询，数据面负责向量的写入与检索
type Pinecone struct {
	apiKey          string
	indexName       string
	dimension       int
	metric          string
	cloud           string
	region          string
	controlPlaneURL string
	indexHost       string
	httpClient      *http.Client
}

// VectorPoint 待写入的向量点
type VectorPoint struct {
	ID       string                 `json:"id"`
	Values   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// VectorMatch 查询返回的匹配结果
type VectorMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IndexStats 索引统计信息
type IndexStats struct {
	Dimension        int     `json:"dimension"`
	TotalVectorCount int     `json:"totalVectorCount"`
	IndexFullness    float64 `json:"indexFullness"`
}

// PineconeOption 定义Pinecone构造函数选项
type PineconeOption func(*Pinecone)

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) PineconeOption {
	return func(p *Pinecone) {
		p.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithControlPlaneURL 覆盖控制面地址（测试用）
func WithControlPlaneURL(url string) PineconeOption {
	return func(p *Pinecone) {
		p.controlPlaneURL = url
	}
}

// WithIndexHost 直接指定数据面地址，跳过控制面解析
func WithIndexHost(host string) PineconeOption {
	return func(p *Pinecone) {
		p.indexHost = host
	}
}

// NewPinecone 创建Pinecone客户端
// 除非配置了SkipIndexCheck，否则会确保索引存在并解析数据面地址
func NewPinecone(ctx context.Context, cfg *config.PineconeConfig, opts ...PineconeOption) (*Pinecone, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pinecone配置不能为空")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone API密钥不能为空")
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "resume-rag"
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = 384
	}
	metric := cfg.Metric
	if metric == "" {
		metric = "cosine"
	}
	controlPlaneURL := cfg.ControlPlaneURL
	if controlPlaneURL == "" {
		controlPlaneURL = "https://api.pinecone.io"
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	p := &Pinecone{
		apiKey:          cfg.APIKey,
		indexName:       indexName,
		dimension:       dimension,
		metric:          metric,
		cloud:           cfg.Cloud,
		region:          cfg.Region,
		controlPlaneURL: controlPlaneURL,
		indexHost:       cfg.IndexHost,
		httpClient:      &http.Client{Timeout: timeout},
	}
	if p.cloud == "" {
		p.cloud = "aws"
	}
	if p.region == "" {
		p.region = "us-east-1"
	}

	for _, opt := range opts {
		opt(p)
	}

	if cfg.SkipIndexCheck {
		// 跳过索引创建检查，但仍需数据面地址才能读写
		if p.indexHost == "" {
			host, err := p.describeIndexHost(ctx)
			if err != nil {
				return nil, fmt.Errorf("解析索引 '%s' 的数据面地址失败: %w", indexName, err)
			}
			p.indexHost = host
		}
		log.Printf("已跳过Pinecone索引检查, 使用数据面地址: %s", p.indexHost)
		return p, nil
	}

	if err := p.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("确保索引 '%s' 存在失败: %w", indexName, err)
	}

	log.Printf("成功连接到Pinecone, 索引 '%s' 就绪, 数据面地址: %s", indexName, p.indexHost)
	return p, nil
}

// IndexName 返回索引名
func (p *Pinecone) IndexName() string {
	return p.indexName
}

func (p *Pinecone) setHeaders(req *http.Request) {
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)
}

// describeIndexResponse 控制面describe/create响应
type describeIndexResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex 确保Serverless索引存在并就绪
// 索引不存在则创建，创建后轮询等待status.ready
func (p *Pinecone) EnsureIndex(ctx context.Context) error {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.EnsureIndex",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "ensure_index"),
		attribute.String("db.index", p.indexName),
		attribute.Int("db.vector_size", p.dimension),
		attribute.String("db.vector.distance", p.metric),
	)

	names, err := p.listIndexes(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	exists := false
	for _, name := range names {
		if name == p.indexName {
			exists = true
			break
		}
	}

	if !exists {
		span.AddEvent("index_not_found", trace.WithAttributes(
			attribute.String("action", "create_index"),
		))
		log.Printf("索引 '%s' 不存在，将创建Serverless索引", p.indexName)
		if err := p.createIndex(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	// 轮询等待索引就绪，同时拿到数据面地址
	deadline := time.Now().Add(60 * time.Second)
	for {
		info, err := p.describeIndex(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		if info.Dimension != 0 && info.Dimension != p.dimension {
			err := fmt.Errorf("现有索引维度(%d)与配置维度(%d)不匹配", info.Dimension, p.dimension)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		if info.Status.Ready {
			if info.Host != "" {
				p.indexHost = normalizeHost(info.Host)
			}
			break
		}
		if time.Now().After(deadline) {
			err := fmt.Errorf("等待索引 '%s' 就绪超时, 当前状态: %s", p.indexName, info.Status.State)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	if p.indexHost == "" {
		err := fmt.Errorf("索引 '%s' 就绪但未返回数据面地址", p.indexName)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// listIndexes 列出当前项目下的全部索引名
func (p *Pinecone) listIndexes(ctx context.Context) ([]string, error) {
	url := p.controlPlaneURL + "/indexes"
	body, err := p.doRequest(ctx, http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("列出索引失败: %w", err)
	}

	var listResp struct {
		Indexes []struct {
			Name string `json:"name"`
		} `json:"indexes"`
	}
	if err := json.Unmarshal(body, &listResp); err != nil {
		return nil, fmt.Errorf("解析索引列表失败: %w", err)
	}

	names := make([]string, 0, len(listResp.Indexes))
	for _, idx := range listResp.Indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

// createIndex 创建Serverless索引
func (p *Pinecone) createIndex(ctx context.Context) error {
	createReq := map[string]interface{}{
		"name":      p.indexName,
		"dimension": p.dimension,
		"metric":    p.metric,
		"spec": map[string]interface{}{
			"serverless": map[string]interface{}{
				"cloud":  p.cloud,
				"region": p.region,
			},
		},
	}

	jsonData, err := json.Marshal(createReq)
	if err != nil {
		return fmt.Errorf("序列化创建索引请求失败: %w", err)
	}

	url := p.controlPlaneURL + "/indexes"
	if _, err := p.doRequest(ctx, http.MethodPost, url, jsonData, http.StatusCreated); err != nil {
		return fmt.Errorf("创建索引失败: %w", err)
	}

	log.Printf("已提交创建Pinecone索引: %s, 维度: %d, 度量: %s", p.indexName, p.dimension, p.metric)
	return nil
}

// describeIndex 查询索引详情
func (p *Pinecone) describeIndex(ctx context.Context) (*describeIndexResponse, error) {
	url := fmt.Sprintf("%s/indexes/%s", p.controlPlaneURL, p.indexName)
	body, err := p.doRequest(ctx, http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("查询索引详情失败: %w", err)
	}

	var info describeIndexResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("解析索引详情失败: %w", err)
	}
	return &info, nil
}

// describeIndexHost 只解析数据面地址
func (p *Pinecone) describeIndexHost(ctx context.Context) (string, error) {
	info, err := p.describeIndex(ctx)
	if err != nil {
		return "", err
	}
	if info.Host == "" {
		return "", fmt.Errorf("索引 '%s' 未返回数据面地址", p.indexName)
	}
	return normalizeHost(info.Host), nil
}

// Upsert 批量写入向量点
func (p *Pinecone) Upsert(ctx context.Context, points []VectorPoint) (int, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Upsert",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "upsert_vectors"),
		attribute.String("db.index", p.indexName),
		attribute.Int("vectors.count", len(points)),
	)

	if len(points) == 0 {
		span.SetStatus(codes.Ok, "no vectors to upsert")
		return 0, nil
	}

	for i, point := range points {
		if len(point.Values) != p.dimension {
			err := fmt.Errorf("第%d个向量维度(%d)与配置维度(%d)不匹配", i, len(point.Values), p.dimension)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	reqBody := map[string]interface{}{
		"vectors": points,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("序列化upsert请求失败: %w", err)
	}

	url := p.indexHost + "/vectors/upsert"
	body, err := p.doRequest(ctx, http.MethodPost, url, jsonData, http.StatusOK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("写入向量失败: %w", err)
	}

	var upsertResp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := json.Unmarshal(body, &upsertResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("解析upsert响应失败: %w", err)
	}

	span.SetAttributes(attribute.Int("vectors.upserted_count", upsertResp.UpsertedCount))
	span.SetStatus(codes.Ok, "")
	return upsertResp.UpsertedCount, nil
}

// Query 查询与给定向量最相似的topK个点
// filter 为Pinecone元数据过滤表达式, 可为nil
func (p *Pinecone) Query(ctx context.Context, queryVector []float64, topK int, filter map[string]interface{}) ([]VectorMatch, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Query",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "query_vectors"),
		attribute.String("db.index", p.indexName),
		attribute.Int("search.top_k", topK),
		attribute.Int("query_vector.size", len(queryVector)),
	)

	if len(queryVector) != p.dimension {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(queryVector), p.dimension)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if topK <= 0 {
		topK = 3
	}

	queryReq := map[string]interface{}{
		"vector":          queryVector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if len(filter) > 0 {
		queryReq["filter"] = filter
		span.SetAttributes(attribute.String("search.filter", fmt.Sprintf("%v", filter)))
	}

	jsonData, err := json.Marshal(queryReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("序列化查询请求失败: %w", err)
	}

	url := p.indexHost + "/query"
	body, err := p.doRequest(ctx, http.MethodPost, url, jsonData, http.StatusOK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询向量失败: %w", err)
	}

	var queryResp struct {
		Matches []VectorMatch `json:"matches"`
	}
	if err := json.Unmarshal(body, &queryResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("解析查询响应失败: %w", err)
	}

	span.SetAttributes(attribute.Int("search.match_count", len(queryResp.Matches)))
	span.SetStatus(codes.Ok, "")
	return queryResp.Matches, nil
}

// Stats 查询索引统计信息
func (p *Pinecone) Stats(ctx context.Context) (*IndexStats, error) {
	ctx, span := pineconeTracer.Start(ctx, "Pinecone.Stats",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "pinecone"),
		attribute.String("db.operation", "describe_index_stats"),
		attribute.String("db.index", p.indexName),
	)

	url := p.indexHost + "/describe_index_stats"
	body, err := p.doRequest(ctx, http.MethodPost, url, []byte("{}"), http.StatusOK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询索引统计失败: %w", err)
	}

	var stats IndexStats
	if err := json.Unmarshal(body, &stats); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("解析索引统计失败: %w", err)
	}

	span.SetAttributes(attribute.Int("index.total_vector_count", stats.TotalVectorCount))
	span.SetStatus(codes.Ok, "")
	return &stats, nil
}

// doRequest 发送HTTP请求并校验状态码
func (p *Pinecone) doRequest(ctx context.Context, method, url string, payload []byte, wantStatus int) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	p.setHeaders(req)

	// 注入OpenTelemetry追踪上下文到HTTP请求
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	// 创建索引时索引已存在视为成功
	if resp.StatusCode == http.StatusConflict && wantStatus == http.StatusCreated {
		return body, nil
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("API调用失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// normalizeHost 补全数据面地址的协议前缀
func normalizeHost(host string) string {
	if len(host) >= 4 && host[:4] == "http" {
		return host
	}
	return "https://" + host
}
