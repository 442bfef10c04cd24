package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrResumeTooShort      = errors.New("简历文本提取失败或内容过短")
	ErrStoreVectorsFailed  = errors.New("存储简历向量失败")
	ErrLLMAnalysisFailed   = errors.New("LLM分析失败")
	ErrInvalidAnalysisData = errors.New("LLM分析结果不合法")
)

// AnalysisError 包含详细错误信息的自定义错误
type AnalysisError struct {
	ResumeID string
	Stage    string
	BaseErr  error
	Detail   string
}

func (e *AnalysisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (阶段:%s, 简历:%s): %s", e.BaseErr, e.Stage, e.ResumeID, e.Detail)
	}
	return fmt.Sprintf("%s (阶段:%s, 简历:%s)", e.BaseErr, e.Stage, e.ResumeID)
}

func (e *AnalysisError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *AnalysisError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewStoreError(resumeID, detail string) error {
	return &AnalysisError{
		ResumeID: resumeID,
		Stage:    "storing",
		BaseErr:  ErrStoreVectorsFailed,
		Detail:   detail,
	}
}

func NewAnalysisError(resumeID, detail string) error {
	return &AnalysisError{
		ResumeID: resumeID,
		Stage:    "analyzing",
		BaseErr:  ErrLLMAnalysisFailed,
		Detail:   detail,
	}
}

func NewInvalidResultError(resumeID, detail string) error {
	return &AnalysisError{
		ResumeID: resumeID,
		Stage:    "analyzing",
		BaseErr:  ErrInvalidAnalysisData,
		Detail:   detail,
	}
}
