package generate

import (
	"strings"

	"loopai/internal/model"
)

// branchKeywords approximate decision points across the small set of
// runtimes we generate for. Counting keyword occurrences over-estimates on
// strings containing them, which is acceptable for a heuristic.
var branchKeywords = []string{"if ", "elif ", "else if ", "for ", "while ", " and ", " or ", "&&", "||", "case "}

// EstimateComplexity computes fallback complexity metrics for source the
// collaborator returned without metrics. Lines of code exclude blanks and
// comment-only lines; cyclomatic complexity is 1 plus counted branch
// keywords; token count is the usual len/4 approximation.
func EstimateComplexity(source string) model.ComplexityMetrics {
	loc := 0
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		loc++
	}

	cyclomatic := 1
	for _, kw := range branchKeywords {
		cyclomatic += strings.Count(source, kw)
	}

	return model.ComplexityMetrics{
		LinesOfCode:          loc,
		CyclomaticComplexity: cyclomatic,
		EstimatedTokens:      len(source) / 4,
	}
}
