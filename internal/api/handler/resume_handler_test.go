package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/api/handler"
	"resume-rag-go/internal/api/router"
	"resume-rag-go/internal/config"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// mockAnalyzer 记录调用的假分析器
type mockAnalyzer struct {
	result       *types.AnalysisResult
	err          error
	analyzeCalls int
	gotResume    string
	gotJD        string
	info         *types.ExtractedInfo
}

func (m *mockAnalyzer) Analyze(ctx context.Context, resumeText string, jdText string, filename string) (*types.AnalysisResult, error) {
	m.analyzeCalls++
	m.gotResume = resumeText
	m.gotJD = jdText
	return m.result, m.err
}

func (m *mockAnalyzer) ExtractResumeInfo(ctx context.Context, resumeText string) *types.ExtractedInfo {
	if m.info != nil {
		return m.info
	}
	return &types.ExtractedInfo{Skills: []string{}}
}

// mockExtractor 将上传内容原样作为文本返回
type mockExtractor struct {
	err error
}

func (m *mockExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return string(data), nil
}

// mockStats 返回固定统计信息
type mockStats struct {
	stats *storage.IndexStats
	err   error
}

func (m *mockStats) Stats(ctx context.Context) (*storage.IndexStats, error) {
	return m.stats, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Groq:      config.GroqConfig{APIKey: "key", Model: "llama-3.1-8b-instant"},
		Pinecone:  config.PineconeConfig{IndexName: "resume-rag", Dimension: 384},
		Embedding: config.EmbeddingConfig{Model: "sentence-transformers/all-MiniLM-L6-v2"},
		Analysis:  config.AnalysisConfig{MinResumeChars: 50},
	}
}

func newTestEngine(analyzer *mockAnalyzer, extractor *mockExtractor, stats *mockStats) *server.Hertz {
	h := server.New()
	rh := handler.NewResumeHandler(testConfig(), analyzer, extractor, stats)
	router.RegisterRoutes(h, rh)
	return h
}

// buildMultipart 构造带简历文件和可选表单字段的multipart请求体
func buildMultipart(t *testing.T, fileField, fileName string, fileContent []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	if fileName != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(fileContent))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

var longResume = []byte(strings.Repeat("experienced golang engineer ", 10))

func qualityResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		Type: types.AnalysisTypeQuality,
		Quality: &types.ResumeQualityResponse{
			QualityScore: 82,
			Feedback:     "solid",
			Timestamp:    time.Now(),
		},
	}
}

func atsResult() *types.AnalysisResult {
	return &types.AnalysisResult{
		Type: types.AnalysisTypeATS,
		ATS: &types.ATSScoreResponse{
			ATSScore: 75.5,
			ScoreBreakdown: types.ScoreBreakdown{
				SkillsScore: 30, ExperienceScore: 22.5, EducationScore: 12, QualityScore: 11, TotalScore: 75.5,
			},
			Timestamp: time.Now(),
		},
	}
}

func TestAnalyzeQualityResponse(t *testing.T) {
	analyzer := &mockAnalyzer{result: qualityResult()}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.pdf", longResume, nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	assert.Equal(t, true, parsed["success"])
	assert.Equal(t, "quality_score", parsed["analysis_type"])
	result := parsed["result"].(map[string]interface{})
	assert.Equal(t, 82.0, result["quality_score"])

	assert.Equal(t, 1, analyzer.analyzeCalls)
	assert.Equal(t, string(longResume), analyzer.gotResume)
	assert.Empty(t, analyzer.gotJD)
}

func TestAnalyzeWithJDText(t *testing.T) {
	analyzer := &mockAnalyzer{result: atsResult()}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.docx", longResume, map[string]string{
		"jd_text": "Looking for a Go engineer",
	})
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	assert.Equal(t, "ats_score", parsed["analysis_type"])

	assert.Equal(t, "Looking for a Go engineer", analyzer.gotJD)
}

func TestAnalyzeMissingFile(t *testing.T) {
	analyzer := &mockAnalyzer{result: qualityResult()}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "", nil, map[string]string{"jd_text": "jd"})
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, analyzer.analyzeCalls)
}

func TestAnalyzeUnsupportedExtension(t *testing.T) {
	analyzer := &mockAnalyzer{result: qualityResult()}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.txt", longResume, nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// 格式校验在任何提取或分析调用之前完成
	assert.Zero(t, analyzer.analyzeCalls)
}

func TestAnalyzeShortResumeRejected(t *testing.T) {
	analyzer := &mockAnalyzer{err: processor.ErrResumeTooShort}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.pdf", []byte("tiny"), nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAnalyzePipelineFailure(t *testing.T) {
	analyzer := &mockAnalyzer{err: processor.NewStoreError("abc123", "pinecone unavailable")}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.pdf", longResume, nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestExtractEndpoint(t *testing.T) {
	analyzer := &mockAnalyzer{info: &types.ExtractedInfo{
		Name:   "Jane Doe",
		Skills: []string{"Go"},
	}}
	h := newTestEngine(analyzer, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.pdf", longResume, nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/extract",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	assert.Equal(t, "resume.pdf", parsed["filename"])
	assert.Equal(t, float64(len(longResume)), parsed["text_length"])
	info := parsed["extracted_info"].(map[string]interface{})
	assert.Equal(t, "Jane Doe", info["name"])
}

func TestExtractShortText(t *testing.T) {
	h := newTestEngine(&mockAnalyzer{}, &mockExtractor{}, &mockStats{})

	body, contentType := buildMultipart(t, "resume", "resume.pdf", []byte("tiny"), nil)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/extract",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestEngine(&mockAnalyzer{}, &mockExtractor{}, &mockStats{
		stats: &storage.IndexStats{TotalVectorCount: 10},
	})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	assert.Equal(t, "healthy", parsed["status"])
	services := parsed["services"].(map[string]interface{})
	assert.Equal(t, "connected", services["pinecone"])
	assert.Equal(t, "configured", services["groq"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	h := newTestEngine(&mockAnalyzer{}, &mockExtractor{}, &mockStats{
		err: errors.New("index unreachable"),
	})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	services := parsed["services"].(map[string]interface{})
	assert.Contains(t, services["pinecone"], "error")
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestEngine(&mockAnalyzer{}, &mockExtractor{}, &mockStats{
		stats: &storage.IndexStats{Dimension: 384, TotalVectorCount: 7},
	})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &parsed))
	assert.Equal(t, "resume-rag", parsed["index_name"])
	stats := parsed["stats"].(map[string]interface{})
	assert.Equal(t, float64(7), stats["totalVectorCount"])
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestEngine(&mockAnalyzer{}, &mockExtractor{}, &mockStats{stats: &storage.IndexStats{}})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/health", nil)
	assert.NotEmpty(t, resp.Header().Get(router.RequestIDHeader))

	respWithID := ut.PerformRequest(h.Engine, "GET", "/api/health", nil,
		ut.Header{Key: router.RequestIDHeader, Value: "fixed-id-123"},
	)
	assert.Equal(t, "fixed-id-123", respWithID.Header().Get(router.RequestIDHeader))
}
