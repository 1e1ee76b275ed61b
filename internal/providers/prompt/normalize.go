package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var colorLabelExpr = regexp.MustCompile(`(?i)^\s*(hair\s+color|color)\s*:\s*`)

// NormalizeService disambiguates service names that collide with photo
// editing vocabulary. "Fade" alone reads as a fade-to-black effect, so it is
// qualified as a haircut unless the name already mentions hair.
func NormalizeService(service string) string {
	service = strings.TrimSpace(service)
	// Casers carry state, so each call gets its own.
	folded := cases.Fold().String(service)
	if strings.Contains(folded, "fade") && !strings.Contains(folded, "hair") {
		return service + " haircut"
	}
	return service
}

// FallbackInstruction is the deterministic last-resort instruction.
func FallbackInstruction(service string) string {
	label := coalesce(colorLabelExpr.ReplaceAllString(service, ""), service, "look refreshed")
	return fmt.Sprintf("Make me %s", label)
}

// CleanInstruction reduces a model reply to a single instruction line.
func CleanInstruction(raw string) string {
	text := trimCodeFence(raw)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "Output:")
		line = strings.TrimPrefix(line, "Instruction:")
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
