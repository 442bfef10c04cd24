package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-rag-go/internal/config"
	"resume-rag-go/internal/logger"
	"resume-rag-go/internal/parser"
	"resume-rag-go/internal/processor"
	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// Analyzer 简历分析组件的最小接口
type Analyzer interface {
	Analyze(ctx context.Context, resumeText string, jdText string, filename string) (*types.AnalysisResult, error)
	ExtractResumeInfo(ctx context.Context, resumeText string) *types.ExtractedInfo
}

// TextExtractor 文本提取组件的最小接口
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

// StatsProvider 向量索引统计组件的最小接口
type StatsProvider interface {
	Stats(ctx context.Context) (*storage.IndexStats, error)
}

// ResumeHandler 简历分析API处理器
type ResumeHandler struct {
	cfg       *config.Config
	analyzer  Analyzer
	extractor TextExtractor
	stats     StatsProvider
}

// NewResumeHandler 创建简历分析API处理器
func NewResumeHandler(cfg *config.Config, analyzer Analyzer, extractor TextExtractor, stats StatsProvider) *ResumeHandler {
	return &ResumeHandler{
		cfg:       cfg,
		analyzer:  analyzer,
		extractor: extractor,
		stats:     stats,
	}
}

// readUpload 读取multipart文件内容
func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

// HandleAnalyze 处理 POST /api/analyze
// 表单字段: resume(必填文件), jd(可选文件), jd_text(可选文本)
func (h *ResumeHandler) HandleAnalyze(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("resume")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "简历文件未找到"})
		return
	}

	if !parser.IsSupportedFilename(fileHeader.Filename) {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "不支持的简历格式，仅支持 .pdf 和 .docx"})
		return
	}

	resumeBytes, err := readUpload(fileHeader)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取简历文件失败"})
		return
	}

	resumeText, err := h.extractor.Extract(c, resumeBytes, fileHeader.Filename)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "不支持的简历格式，仅支持 .pdf 和 .docx"})
			return
		}
		logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("简历文本提取失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "简历文本提取失败"})
		return
	}

	// 职位描述: 优先取jd文件，其次取jd_text表单字段
	jdText := ""
	if jdHeader, err := ctx.FormFile("jd"); err == nil {
		jdBytes, err := readUpload(jdHeader)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取职位描述文件失败"})
			return
		}
		jdText, err = h.extractor.Extract(c, jdBytes, jdHeader.Filename)
		if err != nil {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "职位描述文本提取失败"})
			return
		}
	} else if formJD := ctx.PostForm("jd_text"); formJD != "" {
		jdText = formJD
	}

	result, err := h.analyzer.Analyze(c, resumeText, jdText, fileHeader.Filename)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrResumeTooShort):
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "简历文本提取失败或内容过短"})
		default:
			logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("简历分析失败")
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": fmt.Sprintf("分析失败: %s", err.Error())})
		}
		return
	}

	var payload interface{}
	if result.ATS != nil {
		payload = result.ATS
	} else {
		payload = result.Quality
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"success":       true,
		"analysis_type": result.Type,
		"result":        payload,
	})
}

// HandleExtract 处理 POST /api/extract
// 只做文本提取和结构化信息抽取，不写入向量索引
func (h *ResumeHandler) HandleExtract(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("resume")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "简历文件未找到"})
		return
	}

	if !parser.IsSupportedFilename(fileHeader.Filename) {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "不支持的简历格式，仅支持 .pdf 和 .docx"})
		return
	}

	resumeBytes, err := readUpload(fileHeader)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取简历文件失败"})
		return
	}

	resumeText, err := h.extractor.Extract(c, resumeBytes, fileHeader.Filename)
	if err != nil {
		logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("简历文本提取失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "简历文本提取失败"})
		return
	}

	minChars := h.cfg.Analysis.MinResumeChars
	if len(resumeText) < minChars {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "简历文本提取失败或内容过短"})
		return
	}

	info := h.analyzer.ExtractResumeInfo(c, resumeText)

	preview := resumeText
	if len(preview) > 500 {
		preview = preview[:500] + "..."
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"success":        true,
		"filename":       fileHeader.Filename,
		"extracted_info": info,
		"text_length":    len(resumeText),
		"preview":        preview,
	})
}

// HandleHealth 处理 GET /api/health
func (h *ResumeHandler) HandleHealth(c context.Context, ctx *app.RequestContext) {
	pineconeStatus := "connected"
	statsCtx, cancel := context.WithTimeout(c, 5*time.Second)
	defer cancel()
	if _, err := h.stats.Stats(statsCtx); err != nil {
		pineconeStatus = fmt.Sprintf("error: %s", err.Error())
	}

	groqStatus := "configured"
	if h.cfg.Groq.APIKey == "" {
		groqStatus = "missing"
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"status": "healthy",
		"services": utils.H{
			"pinecone":        pineconeStatus,
			"groq":            groqStatus,
			"embedding_model": h.cfg.Embedding.Model,
		},
		"config": utils.H{
			"model":         h.cfg.Groq.Model,
			"index":         h.cfg.Pinecone.IndexName,
			"embedding_dim": h.cfg.Pinecone.Dimension,
		},
	})
}

// HandleStats 处理 GET /api/stats
func (h *ResumeHandler) HandleStats(c context.Context, ctx *app.RequestContext) {
	stats, err := h.stats.Stats(c)
	if err != nil {
		logger.Error().Err(err).Msg("查询向量索引统计失败")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"index_name": h.cfg.Pinecone.IndexName,
		"stats":      stats,
	})
}
