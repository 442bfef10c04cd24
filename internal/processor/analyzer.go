package processor

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"resume-rag-go/internal/agent"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/tracing"
	"resume-rag-go/internal/types"
)

// 定义分析器的专用tracer
var analyzerTracer = otel.Tracer("resume-rag-go/processor/analyzer")

// AnalysisState 单次分析的状态
type AnalysisState string

const (
	StateInit      AnalysisState = "INIT"
	StateStoring   AnalysisState = "STORING"
	StateAnalyzing AnalysisState = "ANALYZING"
	StateSucceeded AnalysisState = "SUCCEEDED"
	StateFailed    AnalysisState = "FAILED"
)

// transition 将状态变更记录为span事件
func transition(span trace.Span, state AnalysisState) {
	span.AddEvent("state_transition", trace.WithAttributes(attribute.String("state", string(state))))
}

const (
	// DefaultMinResumeChars 简历文本的最小有效长度
	DefaultMinResumeChars = 50
	// DefaultTopK 检索相关分块的默认数量
	DefaultTopK = 3
	// DefaultJDQueryChars 用于检索的职位描述截断长度
	DefaultJDQueryChars = 500
	// DefaultStoreTimeout 向量写入阶段的默认超时
	DefaultStoreTimeout = 60 * time.Second
)

// ResumeAnalyzer 简历分析编排器
// 流程: 校验 -> 存储向量(STORING) -> LLM分析(ANALYZING) -> 校验结果
type ResumeAnalyzer struct {
	store          ResumeStore
	chatModel      JSONChatModel
	minResumeChars int
	topK           int
	jdQueryChars   int
	storeTimeout   time.Duration
	now            func() time.Time
}

// AnalyzerOption 构造选项
type AnalyzerOption func(*ResumeAnalyzer)

// WithMinResumeChars 设置简历文本的最小有效长度
func WithMinResumeChars(n int) AnalyzerOption {
	return func(a *ResumeAnalyzer) {
		if n > 0 {
			a.minResumeChars = n
		}
	}
}

// WithTopK 设置检索相关分块的数量
func WithTopK(k int) AnalyzerOption {
	return func(a *ResumeAnalyzer) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithJDQueryChars 设置用于检索的职位描述截断长度
func WithJDQueryChars(n int) AnalyzerOption {
	return func(a *ResumeAnalyzer) {
		if n > 0 {
			a.jdQueryChars = n
		}
	}
}

// WithStoreTimeout 设置向量写入阶段的超时
func WithStoreTimeout(d time.Duration) AnalyzerOption {
	return func(a *ResumeAnalyzer) {
		if d > 0 {
			a.storeTimeout = d
		}
	}
}

// withClock 固定时钟（测试用）
func withClock(now func() time.Time) AnalyzerOption {
	return func(a *ResumeAnalyzer) {
		a.now = now
	}
}

// NewResumeAnalyzer 创建简历分析编排器
func NewResumeAnalyzer(store ResumeStore, chatModel JSONChatModel, opts ...AnalyzerOption) (*ResumeAnalyzer, error) {
	if store == nil {
		return nil, fmt.Errorf("向量存取组件不能为空")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("LLM组件不能为空")
	}

	a := &ResumeAnalyzer{
		store:          store,
		chatModel:      chatModel,
		minResumeChars: DefaultMinResumeChars,
		topK:           DefaultTopK,
		jdQueryChars:   DefaultJDQueryChars,
		storeTimeout:   DefaultStoreTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// truncateRunes 按字符数截断，避免拆散多字节字符
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// GenerateResumeID 生成简历ID
// 取简历前100字符与当前时间拼接后做md5，保留前16位十六进制
func GenerateResumeID(resumeText string, now time.Time) string {
	source := truncateRunes(resumeText, 100) + now.Format("2006-01-02T15:04:05.999999")
	sum := md5.Sum([]byte(source))
	return fmt.Sprintf("%x", sum)[:16]
}

// Analyze 执行一次完整的简历分析
// jdText为空时走质量评估路径，非空时走ATS评分路径
func (a *ResumeAnalyzer) Analyze(ctx context.Context, resumeText string, jdText string, filename string) (*types.AnalysisResult, error) {
	ctx, span := analyzerTracer.Start(ctx, "ResumeAnalyzer.Analyze")
	defer span.End()

	hasJD := strings.TrimSpace(jdText) != ""
	span.SetAttributes(
		attribute.String("resume.filename", filename),
		attribute.Int("resume.text_length", len(resumeText)),
		attribute.Bool("analysis.has_jd", hasJD),
		attribute.String("resume.preview", tracing.SafeResumeContent(resumeText)),
	)
	transition(span, StateInit)

	if len(strings.TrimSpace(resumeText)) < a.minResumeChars {
		err := fmt.Errorf("%w: 有效字符数不足%d", ErrResumeTooShort, a.minResumeChars)
		transition(span, StateFailed)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	// STORING: 分块并写入向量索引
	transition(span, StateStoring)

	resumeID := GenerateResumeID(resumeText, a.now())
	span.SetAttributes(attribute.String("resume.id", resumeID))

	storeCtx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	chunkCount, err := a.store.UpsertResume(storeCtx, resumeText, resumeID)
	cancel()
	if err != nil {
		transition(span, StateFailed)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, NewStoreError(resumeID, err.Error())
	}
	logger.Info().Str("resume_id", resumeID).Int("chunks", chunkCount).Msg("简历向量已写入")

	// ANALYZING: 单次LLM调用完成全部分析
	transition(span, StateAnalyzing)

	var systemPrompt, userPrompt string
	if hasJD {
		ragContext, err := a.buildRAGContext(ctx, jdText, resumeID)
		if err != nil {
			transition(span, StateFailed)
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return nil, NewAnalysisError(resumeID, err.Error())
		}
		systemPrompt = atsSystemPrompt
		userPrompt = buildATSUserPrompt(resumeText, jdText, ragContext)
	} else {
		systemPrompt = qualitySystemPrompt
		userPrompt = buildQualityUserPrompt(resumeText)
	}

	raw, err := agent.ExtractJSON(ctx, a.chatModel, systemPrompt, userPrompt)
	if err != nil {
		transition(span, StateFailed)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, NewAnalysisError(resumeID, err.Error())
	}

	result, err := a.buildResult(raw, hasJD, resumeID)
	if err != nil {
		transition(span, StateFailed)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	transition(span, StateSucceeded)
	span.SetStatus(codes.Ok, "")
	logger.Info().Str("resume_id", resumeID).Str("analysis_type", string(result.Type)).Msg("简历分析完成")
	return result, nil
}

// buildRAGContext 检索与职位描述相关的简历片段，拼成提示词上下文
func (a *ResumeAnalyzer) buildRAGContext(ctx context.Context, jdText string, resumeID string) (string, error) {
	query := truncateRunes(jdText, a.jdQueryChars)

	matches, err := a.store.Search(ctx, query, a.topK, resumeID)
	if err != nil {
		return "", fmt.Errorf("检索相关简历片段失败: %w", err)
	}

	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, "- "+truncateRunes(m.Text, 200))
	}
	return strings.Join(lines, "\n"), nil
}

// buildResult 将LLM返回的宽松JSON对象转为严格类型并校验
// 数值超出允许区间视为分析失败
func (a *ResumeAnalyzer) buildResult(raw map[string]interface{}, hasJD bool, resumeID string) (*types.AnalysisResult, error) {
	blob, err := json.Marshal(raw)
	if err != nil {
		return nil, NewInvalidResultError(resumeID, err.Error())
	}

	timestamp := a.now()

	if hasJD {
		var payload struct {
			ATSScore       *float64             `json:"ats_score"`
			ScoreBreakdown types.ScoreBreakdown `json:"score_breakdown"`
			MatchedSkills  []string             `json:"matched_skills"`
			MissingSkills  []string             `json:"missing_skills"`
			Strengths      []string             `json:"strengths"`
			Suggestions    []string             `json:"suggestions"`
			Feedback       string               `json:"overall_feedback"`
			ExtractedInfo  types.ExtractedInfo  `json:"extracted_info"`
		}
		if err := json.Unmarshal(blob, &payload); err != nil {
			return nil, NewInvalidResultError(resumeID, err.Error())
		}

		// 总分以各维度之和为准，不信任模型给出的值
		breakdown := payload.ScoreBreakdown
		breakdown.TotalScore = breakdown.ComputedTotal()

		atsScore := breakdown.TotalScore
		if payload.ATSScore != nil {
			atsScore = *payload.ATSScore
		}

		resp := &types.ATSScoreResponse{
			ATSScore:        atsScore,
			ScoreBreakdown:  breakdown,
			MatchedSkills:   emptyIfNil(payload.MatchedSkills),
			MissingSkills:   emptyIfNil(payload.MissingSkills),
			Strengths:       emptyIfNil(payload.Strengths),
			Suggestions:     emptyIfNil(payload.Suggestions),
			OverallFeedback: payload.Feedback,
			ExtractedInfo:   payload.ExtractedInfo,
			Timestamp:       timestamp,
		}
		if err := resp.Validate(); err != nil {
			return nil, NewInvalidResultError(resumeID, err.Error())
		}
		return &types.AnalysisResult{Type: types.AnalysisTypeATS, ATS: resp}, nil
	}

	var payload struct {
		QualityScore  float64             `json:"quality_score"`
		ExtractedInfo types.ExtractedInfo `json:"extracted_info"`
		Strengths     []string            `json:"strengths"`
		Suggestions   []string            `json:"suggestions"`
		Feedback      string              `json:"feedback"`
	}
	if err := json.Unmarshal(blob, &payload); err != nil {
		return nil, NewInvalidResultError(resumeID, err.Error())
	}

	resp := &types.ResumeQualityResponse{
		QualityScore:  payload.QualityScore,
		ExtractedInfo: payload.ExtractedInfo,
		Strengths:     emptyIfNil(payload.Strengths),
		Suggestions:   emptyIfNil(payload.Suggestions),
		Feedback:      payload.Feedback,
		Timestamp:     timestamp,
	}
	if err := resp.Validate(); err != nil {
		return nil, NewInvalidResultError(resumeID, err.Error())
	}
	return &types.AnalysisResult{Type: types.AnalysisTypeQuality, Quality: resp}, nil
}

// ExtractResumeInfo 从简历文本抽取结构化信息
// LLM失败时返回兜底结构而非错误
func (a *ResumeAnalyzer) ExtractResumeInfo(ctx context.Context, resumeText string) *types.ExtractedInfo {
	ctx, span := analyzerTracer.Start(ctx, "ResumeAnalyzer.ExtractResumeInfo")
	defer span.End()

	raw, err := agent.ExtractJSON(ctx, a.chatModel, "", buildExtractInfoPrompt(resumeText))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return fallbackExtractedInfo()
	}

	blob, err := json.Marshal(raw)
	if err != nil {
		return fallbackExtractedInfo()
	}
	var info types.ExtractedInfo
	if err := json.Unmarshal(blob, &info); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return fallbackExtractedInfo()
	}

	span.SetStatus(codes.Ok, "")
	return &info
}

// ExtractJDRequirements 从职位描述抽取岗位要求
// LLM失败时返回空要求而非错误
func (a *ResumeAnalyzer) ExtractJDRequirements(ctx context.Context, jdText string) *types.JDRequirements {
	ctx, span := analyzerTracer.Start(ctx, "ResumeAnalyzer.ExtractJDRequirements")
	defer span.End()

	raw, err := agent.ExtractJSON(ctx, a.chatModel, "", buildExtractJDPrompt(jdText))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return &types.JDRequirements{RequiredSkills: []string{}}
	}

	blob, err := json.Marshal(raw)
	if err != nil {
		return &types.JDRequirements{RequiredSkills: []string{}}
	}
	var reqs types.JDRequirements
	if err := json.Unmarshal(blob, &reqs); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return &types.JDRequirements{RequiredSkills: []string{}}
	}

	span.SetStatus(codes.Ok, "")
	return &reqs
}

func fallbackExtractedInfo() *types.ExtractedInfo {
	return &types.ExtractedInfo{
		Skills:  []string{},
		Summary: "Could not parse resume",
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
