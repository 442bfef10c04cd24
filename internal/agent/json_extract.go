package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedModelOutput 模型输出无法解析为JSON
var ErrMalformedModelOutput = errors.New("model output is not valid JSON")

const (
	jsonOnlySystemPrompt = "You are a helpful assistant. Respond with valid JSON only."
	jsonOnlySuffix       = "\n\nIMPORTANT: Respond with valid JSON only, no extra text."
)

// JSONChat 单轮对话组件的最小接口
type JSONChat interface {
	Chat(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// ExtractJSON 发起单轮对话并将模型回复解析为JSON对象
// 系统提示词会被追加"仅返回JSON"的约束；回复中的markdown代码围栏会被剥离
func ExtractJSON(ctx context.Context, chat JSONChat, systemPrompt string, userPrompt string) (map[string]interface{}, error) {
	system := jsonOnlySystemPrompt
	if systemPrompt != "" {
		system = systemPrompt + jsonOnlySuffix
	}

	response, err := chat.Chat(ctx, system, userPrompt)
	if err != nil {
		return nil, err
	}

	cleaned := SanitizeJSONResponse(response)

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		// 回复中可能混有解释性文字，再尝试提取首个完整的JSON对象
		if extracted, ok := extractFirstJSONObject(cleaned); ok {
			if err2 := json.Unmarshal([]byte(extracted), &result); err2 == nil {
				return result, nil
			}
		}
		return nil, fmt.Errorf("%w: %v, 原始回复: %.200s", ErrMalformedModelOutput, err, response)
	}
	return result, nil
}

// SanitizeJSONResponse 清理模型回复中的BOM和markdown代码围栏
func SanitizeJSONResponse(response string) string {
	s := strings.TrimSpace(response)
	s = strings.TrimPrefix(s, "\uFEFF")
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	}
	if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-3]
	}
	return strings.TrimSpace(s)
}

// extractFirstJSONObject 从文本中提取首个大括号配对完整的JSON对象
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
