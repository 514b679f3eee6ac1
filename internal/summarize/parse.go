package summarize

import (
	"regexp"
	"strings"

	"tldr-buffer/internal/model"
)

var (
	keyPointsMarker = regexp.MustCompile(`(?im)^[ \t#>*_]*key[ \t]+points[ \t*_]*:?[ \t*_]*`)
	tldrMarker      = regexp.MustCompile(`(?im)^[ \t#>*_]*tl;?[ \t]*dr[ \t*_]*:?[ \t*_]*`)
	itemPrefix      = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+`)
)

// ParseSummary splits model output into key points and a TL;DR. Output
// without markers is not an error: the whole text becomes the TL;DR.
func ParseSummary(text string) model.SummarizationResult {
	text = strings.TrimSpace(text)
	res := model.SummarizationResult{KeyPoints: []string{}, TLDR: text}

	kp := keyPointsMarker.FindStringIndex(text)
	tl := tldrMarker.FindStringIndex(text)

	if kp != nil {
		end := len(text)
		if tl != nil && tl[0] > kp[1] {
			end = tl[0]
		}
		res.KeyPoints = items(text[kp[1]:end])
	}
	if tl != nil {
		end := len(text)
		if kp != nil && kp[0] > tl[1] {
			end = kp[0]
		}
		if tldr := joinLines(text[tl[1]:end]); tldr != "" {
			res.TLDR = tldr
		}
	}
	return res
}

func items(section string) []string {
	out := []string{}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		line = itemPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(strings.Trim(line, "*_"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func joinLines(section string) string {
	var parts []string
	for _, line := range strings.Split(section, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
