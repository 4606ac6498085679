package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkTagPattern  = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)
	codeFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\\s*```")
)

// ExtractJSON pulls the first JSON object or array out of a model response.
// Leading <think> blocks and markdown code fences are tolerated.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if m := codeFencePattern.FindStringSubmatch(cleaned); m != nil {
		if inner := strings.TrimSpace(m[1]); json.Valid([]byte(inner)) {
			return inner, nil
		}
	}

	trimmed := strings.TrimSpace(cleaned)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return trimmed, nil
	}

	start := strings.IndexAny(cleaned, "{[")
	for start >= 0 {
		if candidate, ok := balanced(cleaned[start:]); ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexAny(cleaned[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// balanced returns the bracketed prefix of s that closes s[0].
func balanced(s string) (string, bool) {
	open := s[0]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return result, nil
}
