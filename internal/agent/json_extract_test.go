package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChat 返回预设回复并记录收到的提示词
type scriptedChat struct {
	response    string
	err         error
	gotSystem   string
	gotUser     string
	invocations int
}

func (s *scriptedChat) Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	s.invocations++
	s.gotSystem = systemPrompt
	s.gotUser = userPrompt
	return s.response, s.err
}

func TestExtractJSONPlainObject(t *testing.T) {
	chat := &scriptedChat{response: `{"skills": ["Go", "Python"], "years_of_experience": 5}`}

	result, err := ExtractJSON(context.Background(), chat, "", "extract info")
	require.NoError(t, err)
	assert.Equal(t, float64(5), result["years_of_experience"])
	assert.Equal(t, 1, chat.invocations)
	// 未提供系统提示词时使用默认的JSON-only提示
	assert.Equal(t, jsonOnlySystemPrompt, chat.gotSystem)
}

func TestExtractJSONAppendsSuffixToSystemPrompt(t *testing.T) {
	chat := &scriptedChat{response: `{}`}

	_, err := ExtractJSON(context.Background(), chat, "You are an ATS scorer.", "score this")
	require.NoError(t, err)
	assert.Contains(t, chat.gotSystem, "You are an ATS scorer.")
	assert.Contains(t, chat.gotSystem, "Respond with valid JSON only")
}

func TestExtractJSONStripsCodeFence(t *testing.T) {
	chat := &scriptedChat{response: "```json\n{\"ats_score\": 85.5}\n```"}

	result, err := ExtractJSON(context.Background(), chat, "", "score")
	require.NoError(t, err)
	assert.Equal(t, 85.5, result["ats_score"])
}

func TestExtractJSONStripsBareFenceAndBOM(t *testing.T) {
	chat := &scriptedChat{response: "\uFEFF```\n{\"quality_score\": 70}\n```"}

	result, err := ExtractJSON(context.Background(), chat, "", "score")
	require.NoError(t, err)
	assert.Equal(t, float64(70), result["quality_score"])
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	chat := &scriptedChat{response: `Here is the assessment you asked for: {"ats_score": 62, "strengths": ["clear layout"]} Hope this helps!`}

	result, err := ExtractJSON(context.Background(), chat, "", "score")
	require.NoError(t, err)
	assert.Equal(t, float64(62), result["ats_score"])
}

func TestExtractJSONNestedBracesInStrings(t *testing.T) {
	chat := &scriptedChat{response: `noise {"feedback": "uses {braces} and \"quotes\"", "score": 1} trailing`}

	result, err := ExtractJSON(context.Background(), chat, "", "score")
	require.NoError(t, err)
	assert.Equal(t, `uses {braces} and "quotes"`, result["feedback"])
}

func TestExtractJSONMalformedOutput(t *testing.T) {
	chat := &scriptedChat{response: "I cannot produce JSON for this input."}

	_, err := ExtractJSON(context.Background(), chat, "", "score")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedModelOutput)
}

func TestExtractJSONChatError(t *testing.T) {
	chat := &scriptedChat{err: assert.AnError}

	_, err := ExtractJSON(context.Background(), chat, "", "score")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedModelOutput)
}

func TestSanitizeJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, SanitizeJSONResponse("  ```json\n{\"a\":1}\n```  "))
	assert.Equal(t, `{"a":1}`, SanitizeJSONResponse("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, SanitizeJSONResponse(`{"a":1}`))
}
