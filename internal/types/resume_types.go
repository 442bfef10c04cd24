package types

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 各维度分数上限
const (
	MaxSkillsScore     = 40.0
	MaxExperienceScore = 30.0
	MaxEducationScore  = 15.0
	MaxQualityScore    = 15.0
	MaxTotalScore      = 100.0
)

var digitRunPattern = regexp.MustCompile(`\d+`)

// FlexibleYears 工作年限字段
// LLM输出可能是数字、带文字的字符串("5 years")或null，统一解析为整数
type FlexibleYears int

// UnmarshalJSON 宽容解析：字符串取第一段连续数字，null归零
func (f *FlexibleYears) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		m := digitRunPattern.FindString(str)
		if m == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexibleYears(n)
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("无法解析工作年限: %w", err)
	}
	*f = FlexibleYears(int(num))
	return nil
}

// ExtractedInfo 从简历文本中抽取的结构化信息
type ExtractedInfo struct {
	Name              string        `json:"name,omitempty"`
	Email             string        `json:"email,omitempty"`
	Phone             string        `json:"phone,omitempty"`
	Skills            []string      `json:"skills"`
	Experience        []string      `json:"experience"`
	Education         []string      `json:"education"`
	Summary           string        `json:"summary,omitempty"`
	YearsOfExperience FlexibleYears `json:"years_of_experience,omitempty"`
}

// JDRequirements 从职位描述中抽取的岗位要求
type JDRequirements struct {
	RequiredSkills     []string `json:"required_skills"`
	PreferredSkills    []string `json:"preferred_skills"`
	ExperienceRequired string   `json:"experience_required,omitempty"`
	EducationRequired  string   `json:"education_required,omitempty"`
	Responsibilities   []string `json:"responsibilities"`
}

// ScoreBreakdown 各维度评分明细
type ScoreBreakdown struct {
	SkillsScore     float64 `json:"skills_score"`     // 技能匹配分 (满分40)
	ExperienceScore float64 `json:"experience_score"` // 经验相关性分 (满分30)
	EducationScore  float64 `json:"education_score"`  // 学历匹配分 (满分15)
	QualityScore    float64 `json:"quality_score"`    // 简历质量分 (满分15)
	TotalScore      float64 `json:"total_score"`      // 总分 (0-100)
}

// Validate 校验各维度分数是否落在允许区间内
func (b *ScoreBreakdown) Validate() error {
	checks := []struct {
		name  string
		value float64
		max   float64
	}{
		{"skills_score", b.SkillsScore, MaxSkillsScore},
		{"experience_score", b.ExperienceScore, MaxExperienceScore},
		{"education_score", b.EducationScore, MaxEducationScore},
		{"quality_score", b.QualityScore, MaxQualityScore},
		{"total_score", b.TotalScore, MaxTotalScore},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > c.max {
			return fmt.Errorf("字段 %s 超出范围 [0, %.0f]: %.2f", c.name, c.max, c.value)
		}
	}
	return nil
}

// ComputedTotal 按四个维度重新计算总分，保留两位小数
func (b *ScoreBreakdown) ComputedTotal() float64 {
	sum := b.SkillsScore + b.ExperienceScore + b.EducationScore + b.QualityScore
	return math.Round(sum*100) / 100
}

// ATSScoreResponse 针对职位描述的ATS评分结果
type ATSScoreResponse struct {
	ATSScore        float64        `json:"ats_score"`
	ScoreBreakdown  ScoreBreakdown `json:"score_breakdown"`
	MatchedSkills   []string       `json:"matched_skills"`
	MissingSkills   []string       `json:"missing_skills"`
	Strengths       []string       `json:"strengths"`
	Suggestions     []string       `json:"suggestions"`
	OverallFeedback string         `json:"overall_feedback"`
	ExtractedInfo   ExtractedInfo  `json:"extracted_info"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Validate 校验评分结果的数值合法性
func (r *ATSScoreResponse) Validate() error {
	if r.ATSScore < 0 || r.ATSScore > MaxTotalScore {
		return fmt.Errorf("字段 ats_score 超出范围 [0, 100]: %.2f", r.ATSScore)
	}
	return r.ScoreBreakdown.Validate()
}

// ResumeQualityResponse 无职位描述时的简历质量评估结果
type ResumeQualityResponse struct {
	QualityScore  float64       `json:"quality_score"`
	ExtractedInfo ExtractedInfo `json:"extracted_info"`
	Strengths     []string      `json:"strengths"`
	Suggestions   []string      `json:"suggestions"`
	Feedback      string        `json:"feedback"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Validate 校验质量分数值合法性
func (r *ResumeQualityResponse) Validate() error {
	if r.QualityScore < 0 || r.QualityScore > MaxTotalScore {
		return fmt.Errorf("字段 quality_score 超出范围 [0, 100]: %.2f", r.QualityScore)
	}
	return nil
}

// AnalysisType 分析类型
type AnalysisType string

const (
	// AnalysisTypeATS 带职位描述的ATS评分
	AnalysisTypeATS AnalysisType = "ats_score"
	// AnalysisTypeQuality 仅简历的质量评估
	AnalysisTypeQuality AnalysisType = "quality_score"
)

// AnalysisResult 单次分析的结果，两种变体恰好有一个非空
type AnalysisResult struct {
	Type    AnalysisType           `json:"analysis_type"`
	ATS     *ATSScoreResponse      `json:"ats,omitempty"`
	Quality *ResumeQualityResponse `json:"quality,omitempty"`
}
