package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-rag-go/internal/storage"
	"resume-rag-go/internal/types"
)

// stubSearcher 返回预设检索结果
type stubSearcher struct {
	results  []storage.ChunkMatch
	err      error
	gotQuery string
	gotTopK  int
	gotID    string
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int, resumeID string) ([]storage.ChunkMatch, error) {
	s.gotQuery = query
	s.gotTopK = topK
	s.gotID = resumeID
	return s.results, s.err
}

func TestCalculateSkillsScorePartialMatch(t *testing.T) {
	info := &types.ExtractedInfo{Skills: []string{"Python", "docker", "SQL"}}
	jd := &types.JDRequirements{RequiredSkills: []string{"python", "Docker", "Kubernetes", "Go"}}

	score, matched, missing := CalculateSkillsScore(info, jd)

	// 命中2/4，40 * 0.5 = 20
	assert.Equal(t, 20.0, score)
	assert.Equal(t, []string{"Docker", "Python"}, matched)
	assert.Equal(t, []string{"Go", "Kubernetes"}, missing)
}

func TestCalculateSkillsScoreNoRequirements(t *testing.T) {
	info := &types.ExtractedInfo{Skills: []string{"Go"}}
	jd := &types.JDRequirements{}

	score, matched, missing := CalculateSkillsScore(info, jd)
	assert.Equal(t, 35.0, score)
	assert.Empty(t, matched)
	assert.Empty(t, missing)
}

func TestCalculateSkillsScoreFullAndZeroMatch(t *testing.T) {
	jd := &types.JDRequirements{RequiredSkills: []string{"go", "rust"}}

	full, _, _ := CalculateSkillsScore(&types.ExtractedInfo{Skills: []string{"GO", "Rust"}}, jd)
	assert.Equal(t, 40.0, full)

	zero, matched, missing := CalculateSkillsScore(&types.ExtractedInfo{Skills: []string{"java"}}, jd)
	assert.Equal(t, 0.0, zero)
	assert.Empty(t, matched)
	assert.Len(t, missing, 2)
}

func TestCalculateSkillsScoreMonotonic(t *testing.T) {
	jd := &types.JDRequirements{RequiredSkills: []string{"go", "rust", "docker", "sql"}}

	prev := -1.0
	skills := []string{}
	for _, s := range []string{"go", "rust", "docker", "sql"} {
		skills = append(skills, s)
		score, _, _ := CalculateSkillsScore(&types.ExtractedInfo{Skills: skills}, jd)
		assert.Greater(t, score, prev)
		prev = score
	}
	assert.Equal(t, 40.0, prev)
}

func TestCalculateExperienceScoreAverage(t *testing.T) {
	searcher := &stubSearcher{results: []storage.ChunkMatch{
		{Score: 0.9}, {Score: 0.8}, {Score: 0.7},
	}}

	score := CalculateExperienceScore(context.Background(), searcher, "backend engineer role", "abc123")

	// 平均0.8 * 30 = 24
	assert.Equal(t, 24.0, score)
	assert.Equal(t, 3, searcher.gotTopK)
	assert.Equal(t, "abc123", searcher.gotID)
}

func TestCalculateExperienceScoreTruncatesQuery(t *testing.T) {
	searcher := &stubSearcher{results: []storage.ChunkMatch{{Score: 0.5}}}

	longJD := make([]byte, 800)
	for i := range longJD {
		longJD[i] = 'x'
	}
	CalculateExperienceScore(context.Background(), searcher, string(longJD), "abc123")

	assert.Len(t, searcher.gotQuery, 500)
}

func TestCalculateExperienceScoreFallbacks(t *testing.T) {
	t.Run("无命中", func(t *testing.T) {
		searcher := &stubSearcher{}
		assert.Equal(t, 15.0, CalculateExperienceScore(context.Background(), searcher, "jd", "id"))
	})

	t.Run("检索失败", func(t *testing.T) {
		searcher := &stubSearcher{err: errors.New("index unavailable")}
		assert.Equal(t, 20.0, CalculateExperienceScore(context.Background(), searcher, "jd", "id"))
	})
}

func TestCalculateExperienceScoreClamped(t *testing.T) {
	searcher := &stubSearcher{results: []storage.ChunkMatch{{Score: 1.5}}}
	assert.Equal(t, 30.0, CalculateExperienceScore(context.Background(), searcher, "jd", "id"))
}

func TestCalculateEducationScore(t *testing.T) {
	cases := []struct {
		name      string
		education []string
		required  string
		expected  float64
	}{
		{"无要求", []string{"B.S. Computer Science"}, "", 12.0},
		{"硕士要求且有硕士", []string{"Master of Science"}, "Master's degree", 15.0},
		{"本科要求且有本科", []string{"Bachelor of Engineering"}, "Bachelor's degree", 15.0},
		{"本科要求且有硕士", []string{"Master of Science"}, "Bachelor's degree", 15.0},
		{"有学历但不匹配", []string{"High school diploma"}, "Master's degree", 10.0},
		{"无学历信息", nil, "Bachelor's degree", 5.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := &types.ExtractedInfo{Education: tc.education}
			jd := &types.JDRequirements{EducationRequired: tc.required}
			assert.Equal(t, tc.expected, CalculateEducationScore(info, jd))
		})
	}
}

func TestCalculateATSScoreBreakdown(t *testing.T) {
	searcher := &stubSearcher{results: []storage.ChunkMatch{{Score: 0.8}, {Score: 0.6}}}

	info := &types.ExtractedInfo{
		Skills:    []string{"go", "docker"},
		Education: []string{"Bachelor of Science"},
	}
	jd := &types.JDRequirements{
		RequiredSkills:    []string{"go", "docker"},
		EducationRequired: "Bachelor's degree",
	}

	breakdown, matched, missing := CalculateATSScore(context.Background(), searcher, info, jd, "backend role", "abc123", 80)

	require.NotNil(t, breakdown)
	assert.Equal(t, 40.0, breakdown.SkillsScore)
	assert.Equal(t, 21.0, breakdown.ExperienceScore) // 平均0.7 * 30
	assert.Equal(t, 15.0, breakdown.EducationScore)
	assert.Equal(t, 12.0, breakdown.QualityScore) // 80/100 * 15
	assert.Equal(t, 88.0, breakdown.TotalScore)
	assert.NoError(t, breakdown.Validate())

	assert.Equal(t, []string{"Docker", "Go"}, matched)
	assert.Empty(t, missing)
}
