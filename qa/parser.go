package qa

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sweetpotato0/askdata/pkg/logging"
)

var (
	intRun   = regexp.MustCompile(`\d+`)
	floatRun = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseAnswer converts the raw synthesis text into a value matching the
// requested shape. Parsing never aborts a run: malformed input degrades to
// the shape's documented fallback, and any unexpected panic is recovered by
// returning the raw text unchanged.
func ParseAnswer(raw string, shape ShapeSpec) (answer any) {
	defer func() {
		if r := recover(); r != nil {
			logging.WithComponent("qa.parser").Warn("answer parsing panicked, returning raw text",
				"panic", fmt.Sprint(r))
			answer = raw
		}
	}()

	switch shape.Kind {
	case ShapeInt:
		return parseInt(raw)
	case ShapeFloat:
		return parseFloat(raw)
	case ShapeRecord:
		return parseStructured(raw, "{", "}")
	case ShapeList:
		return parseStructured(raw, "[", "]")
	default:
		return strings.TrimSpace(raw)
	}
}

// parseInt takes the first contiguous digit run; no digits means 0.
func parseInt(raw string) int {
	match := intRun.FindString(raw)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// parseFloat takes the first digits[.digits] pattern rounded to two decimal
// places; no match means 0.0.
func parseFloat(raw string) float64 {
	match := floatRun.FindString(raw)
	if match == "" {
		return 0.0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.0
	}
	return math.Round(v*100) / 100
}

// parseStructured tries, in order: the full string after stripping a code
// fence, then the first open-to-last-close delimited substring. Total failure
// yields an empty record.
func parseStructured(raw, open, closing string) any {
	clean := stripFence(raw)

	var value any
	if err := json.Unmarshal([]byte(clean), &value); err == nil {
		return value
	}

	start := strings.Index(clean, open)
	end := strings.LastIndex(clean, closing)
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(clean[start:end+1]), &value); err == nil {
			return value
		}
	}

	return map[string]any{}
}

func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = trimmed[3:]
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
