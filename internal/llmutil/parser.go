// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Backticks are written as \x60 since Go raw strings cannot contain them.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")
	jsonArrayRegex  = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
)

// ParseJSONResponse parses a model response into T. It tolerates the usual
// formatting noise: markdown code fences and conversational text around the
// JSON payload. When T is a slice, array boundaries are preferred.
func ParseJSONResponse[T any](response string) (*T, error) {
	payload := ExtractJSON(response, wantsArray[T]())

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// ExtractJSON isolates the JSON document inside a model response.
func ExtractJSON(response string, preferArray bool) string {
	response = strings.TrimSpace(response)
	hasObject := strings.Contains(response, "{")
	hasArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		regexes := []*regexp.Regexp{jsonObjectRegex, jsonArrayRegex}
		if preferArray {
			regexes = []*regexp.Regexp{jsonArrayRegex, jsonObjectRegex}
		}
		for _, re := range regexes {
			if m := re.FindStringSubmatch(response); len(m) > 1 {
				return m[1]
			}
		}
		return response
	}

	if strings.HasPrefix(response, "{") || strings.HasPrefix(response, "[") {
		return response
	}

	bounds := [][2]string{{"{", "}"}, {"[", "]"}}
	if preferArray {
		bounds = [][2]string{{"[", "]"}, {"{", "}"}}
	}
	for _, b := range bounds {
		if (b[0] == "{" && !hasObject) || (b[0] == "[" && !hasArray) {
			continue
		}
		first := strings.Index(response, b[0])
		last := strings.LastIndex(response, b[1])
		if first != -1 && last > first {
			return response[first : last+1]
		}
	}
	return response
}

// wantsArray reports whether T decodes from a JSON array.
func wantsArray[T any]() bool {
	var zero T
	raw, err := json.Marshal(zero)
	if err != nil {
		return false
	}
	// A nil slice marshals to null, so check the type's kind by decoding "[]".
	if string(raw) == "null" {
		var probe T
		return json.Unmarshal([]byte("[]"), &probe) == nil
	}
	return strings.HasPrefix(string(raw), "[")
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
