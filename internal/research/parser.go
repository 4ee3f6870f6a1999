package research

import (
	"regexp"
	"strings"

	"github.com/insightai/insight/internal/domain"
)

// PlaceholderSummary is returned when the output held nothing usable.
const PlaceholderSummary = "Research completed successfully."

var (
	bulletMarker   = regexp.MustCompile(`^(?:[-•]|\d+\.)\s*`)
	numberedBullet = regexp.MustCompile(`^\d+\.`)
	sentenceBreak  = regexp.MustCompile(`[.!?]+`)
)

// Parse splits free-text model output into a summary and bullet points.
// Lines starting with "-", "•" or "N." are bullets; the first other line is
// the summary. Output without bullets is split into sentences instead.
// Parse never fails.
func Parse(raw string) domain.Parsed {
	var (
		summary string
		bullets = []string{}
	)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isBullet(trimmed) {
			bullets = append(bullets, bulletMarker.ReplaceAllString(trimmed, ""))
			continue
		}
		if summary == "" {
			summary = trimmed
		}
	}

	if len(bullets) == 0 && summary != "" {
		if sentences := splitSentences(summary); len(sentences) > 0 {
			return domain.Parsed{
				Summary:      sentences[0] + ".",
				BulletPoints: sentences[1:],
			}
		}
	}

	if summary == "" {
		summary = PlaceholderSummary
	}
	return domain.Parsed{Summary: summary, BulletPoints: bullets}
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") ||
		strings.HasPrefix(line, "•") ||
		numberedBullet.MatchString(line)
}

// splitSentences returns the trimmed, non-empty sentences of s.
func splitSentences(s string) []string {
	parts := sentenceBreak.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
