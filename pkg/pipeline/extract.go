package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON locates the first object-shaped substring in a model response
// and unmarshals it into out. Models routinely wrap their JSON in prose or
// markdown fences, so we cut from the first '{' to the last '}' rather than
// requiring a clean document.
func ExtractJSON(response string, out interface{}) error {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	startIdx := strings.Index(cleaned, "{")
	endIdx := strings.LastIndex(cleaned, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(cleaned[startIdx:endIdx+1]), out); err != nil {
		return fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	return nil
}
