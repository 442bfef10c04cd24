package scoring

import (
	"context"
	"math"
	"sort"
	"strings"

	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// 经验分的兜底值
const (
	// NoMatchExperienceScore 检索无结果时的经验分
	NoMatchExperienceScore = 15.0
	// FallbackExperienceScore 检索失败时的经验分
	FallbackExperienceScore = 20.0
	// NoRequirementSkillsScore 职位未列出必备技能时的技能分
	NoRequirementSkillsScore = 35.0
	// NoRequirementEducationScore 职位未提出学历要求时的学历分
	NoRequirementEducationScore = 12.0
)

// ChunkSearcher 语义检索组件的最小接口
type ChunkSearcher interface {
	Search(ctx context.Context, query string, topK int, resumeID string) ([]storage.ChunkMatch, error)
}

var _ ChunkSearcher = (*storage.ResumeVectorStore)(nil)

// CalculateSkillsScore 计算技能匹配分（满分40）
// 按小写归一化后求必备技能的命中比例；无必备技能时给固定35分
// 返回: 分数, 命中技能列表, 缺失技能列表（均为Title Case且有序）
func CalculateSkillsScore(resumeInfo *types.ExtractedInfo, jdRequirements *types.JDRequirements) (float64, []string, []string) {
	resumeSkills := make(map[string]bool, len(resumeInfo.Skills))
	for _, s := range resumeInfo.Skills {
		resumeSkills[strings.ToLower(s)] = true
	}

	requiredSkills := make(map[string]bool, len(jdRequirements.RequiredSkills))
	for _, s := range jdRequirements.RequiredSkills {
		requiredSkills[strings.ToLower(s)] = true
	}

	if len(requiredSkills) == 0 {
		return NoRequirementSkillsScore, []string{}, []string{}
	}

	var matched, missing []string
	for skill := range requiredSkills {
		if resumeSkills[skill] {
			matched = append(matched, titleCase(skill))
		} else {
			missing = append(missing, titleCase(skill))
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)

	score := 40 * float64(len(matched)) / float64(len(requiredSkills))
	return round2(score), matched, missing
}

// CalculateExperienceScore 计算经验相关性分（满分30）
// 用职位描述前500字符在该简历的分块中检索top 3，取平均相似度乘30
// 检索失败返回兜底20分，无命中返回15分
func CalculateExperienceScore(ctx context.Context, searcher ChunkSearcher, jdText string, resumeID string) float64 {
	query := jdText
	if len(query) > 500 {
		query = query[:500]
	}

	results, err := searcher.Search(ctx, query, 3, resumeID)
	if err != nil {
		return FallbackExperienceScore
	}
	if len(results) == 0 {
		return NoMatchExperienceScore
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float64(len(results))

	score := math.Min(30, math.Max(0, avg*30))
	return round2(score)
}

// CalculateEducationScore 计算学历匹配分（满分15）
func CalculateEducationScore(resumeInfo *types.ExtractedInfo, jdRequirements *types.JDRequirements) float64 {
	required := strings.ToLower(jdRequirements.EducationRequired)
	if required == "" {
		return NoRequirementEducationScore
	}

	educationText := strings.ToLower(strings.Join(resumeInfo.Education, " "))

	switch {
	case strings.Contains(required, "master") && strings.Contains(educationText, "master"):
		return 15.0
	case strings.Contains(required, "bachelor") &&
		(strings.Contains(educationText, "bachelor") || strings.Contains(educationText, "master")):
		return 15.0
	case educationText != "":
		return 10.0
	default:
		return 5.0
	}
}

// CalculateATSScore 汇总四个维度得到ATS评分明细
// 质量分按quality_score的15%折算；总分为四个维度之和
func CalculateATSScore(ctx context.Context, searcher ChunkSearcher, resumeInfo *types.ExtractedInfo, jdRequirements *types.JDRequirements, jdText string, resumeID string, qualityScore float64) (*types.ScoreBreakdown, []string, []string) {
	skillsScore, matched, missing := CalculateSkillsScore(resumeInfo, jdRequirements)
	experienceScore := CalculateExperienceScore(ctx, searcher, jdText, resumeID)
	educationScore := CalculateEducationScore(resumeInfo, jdRequirements)
	qualityComponent := round2(qualityScore / 100 * 15)

	breakdown := &types.ScoreBreakdown{
		SkillsScore:     skillsScore,
		ExperienceScore: experienceScore,
		EducationScore:  educationScore,
		QualityScore:    qualityComponent,
	}
	breakdown.TotalScore = breakdown.ComputedTotal()

	return breakdown, matched, missing
}

// titleCase 将技能名转为首字母大写形式
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		upper := strings.ToUpper(string(runes[0]))
		if len(runes) > 1 {
			words[i] = upper + string(runes[1:])
		} else {
			words[i] = upper
		}
	}
	return strings.Join(words, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
