package nlp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/dealgraph/dealgraph/pkg/types"
)

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// RemoveThinkTags strips reasoning-model think blocks from a response body.
func RemoveThinkTags(s string) string {
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(s, ""))
}

// DecodeStructured parses a model response into T, repairing malformed JSON
// first. Models routinely emit trailing commas, unquoted keys, or markdown
// fences; jsonrepair recovers all of those.
func DecodeStructured[T any](resp *types.Response) (T, error) {
	var out T
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return out, NewEmptyResponseError("empty structured response")
	}

	content := RemoveThinkTags(resp.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return out, fmt.Errorf("failed to repair structured response: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, fmt.Errorf("failed to decode structured response: %w", err)
	}
	return out, nil
}
