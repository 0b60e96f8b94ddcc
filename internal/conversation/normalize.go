package conversation

import (
	"regexp"
	"strings"
)

// Assistant replies carry file-search citation artifacts that mean nothing
// outside the provider UI. Both the CJK-bracket form and the
// [source:N] bracket form are removed before the reply leaves the engine.
var (
	cjkCitationPattern     = regexp.MustCompile(`【[^】]*】`)
	bracketCitationPattern = regexp.MustCompile(`\[[^\[\]]*:\d+[^\[\]]*\]`)
	spaceRunPattern        = regexp.MustCompile(`[ \t]{2,}`)
)

// CleanResponse strips citation markers from an assistant reply and
// re-collapses the whitespace the removal leaves behind.
func CleanResponse(text string) string {
	text = cjkCitationPattern.ReplaceAllString(text, "")
	text = bracketCitationPattern.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Report trigger words; an exact or substring match switches the turn into
// summary generation.
var reportTriggers = []string{"report", "reporte", "resumen", "summary", "informe"}

// IsReportTrigger reports whether the message asks for a conversation summary.
func IsReportTrigger(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if normalized == "" {
		return false
	}
	for _, trigger := range reportTriggers {
		if normalized == trigger || strings.Contains(normalized, trigger) {
			return true
		}
	}
	return false
}
