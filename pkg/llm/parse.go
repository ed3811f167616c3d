package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedOutput is returned when a model reply holds no usable JSON object.
var ErrMalformedOutput = errors.New("malformed model output")

// decodeObject finds the first JSON object in text that decodes into v.
// Surrounding prose and markdown code fences are ignored.
func decodeObject(text string, v any) error {
	text = strings.TrimSpace(text)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&raw); err != nil {
			continue
		}
		if err := json.Unmarshal(raw, v); err == nil {
			return nil
		}
	}
	return ErrMalformedOutput
}

// normalizeSources trims, lowercases and deduplicates names, keeping order.
func normalizeSources(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
