package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleYearsUnmarshal(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		expected int
	}{
		{"整数", `{"years_of_experience": 5}`, 5},
		{"浮点数截断", `{"years_of_experience": 3.7}`, 3},
		{"带文字的字符串", `{"years_of_experience": "5+ years"}`, 5},
		{"纯数字字符串", `{"years_of_experience": "12"}`, 12},
		{"无数字的字符串", `{"years_of_experience": "senior"}`, 0},
		{"null", `{"years_of_experience": null}`, 0},
		{"缺失字段", `{}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var info ExtractedInfo
			require.NoError(t, json.Unmarshal([]byte(tc.payload), &info))
			assert.Equal(t, tc.expected, int(info.YearsOfExperience))
		})
	}
}

func TestScoreBreakdownValidate(t *testing.T) {
	valid := ScoreBreakdown{
		SkillsScore:     35,
		ExperienceScore: 25,
		EducationScore:  12,
		QualityScore:    10,
		TotalScore:      82,
	}
	assert.NoError(t, valid.Validate())

	overCap := valid
	overCap.SkillsScore = 45
	err := overCap.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skills_score")

	negative := valid
	negative.ExperienceScore = -1
	assert.Error(t, negative.Validate())
}

func TestScoreBreakdownComputedTotal(t *testing.T) {
	b := ScoreBreakdown{
		SkillsScore:     33.335,
		ExperienceScore: 21.2,
		EducationScore:  15,
		QualityScore:    12,
		TotalScore:      99, // 与各维度之和不一致，应以重新计算为准
	}
	assert.InDelta(t, 81.54, b.ComputedTotal(), 0.001)
}

func TestATSScoreResponseValidate(t *testing.T) {
	resp := ATSScoreResponse{
		ATSScore: 85,
		ScoreBreakdown: ScoreBreakdown{
			SkillsScore:     36,
			ExperienceScore: 24,
			EducationScore:  15,
			QualityScore:    10,
			TotalScore:      85,
		},
	}
	assert.NoError(t, resp.Validate())

	resp.ATSScore = 101
	assert.Error(t, resp.Validate())

	resp.ATSScore = 85
	resp.ScoreBreakdown.EducationScore = 16
	assert.Error(t, resp.Validate())
}

func TestResumeQualityResponseValidate(t *testing.T) {
	resp := ResumeQualityResponse{QualityScore: 72}
	assert.NoError(t, resp.Validate())

	resp.QualityScore = -3
	assert.Error(t, resp.Validate())
}
