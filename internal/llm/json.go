package llm

import "strings"

// StripCodeFences removes a surrounding markdown code fence from an LLM
// response, tolerating a language tag after the opening fence. Models asked
// for strict JSON still wrap it in fences often enough that every JSON
// consumer goes through this.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	body := parts[1]
	body = strings.TrimPrefix(body, "json")
	body = strings.TrimPrefix(body, "JSON")
	return strings.TrimSpace(body)
}

// ExtractJSON returns the substring from the first '{' to the last '}',
// or "" when no JSON object is present.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
