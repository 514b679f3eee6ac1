package summarize

import (
	"fmt"
	"strings"

	"tldr-buffer/internal/model"
)

// systemPrompt asks for a "Key Points" section followed by a "TL;DR" section,
// sized by length and formatted by style.
func systemPrompt(p model.SummarizationParams) string {
	points, sentences := "5 to 7", "2 to 3 sentences"
	if p.Length == model.LengthBrief {
		points, sentences = "3", "1 sentence"
	}
	item := `Start each key point with "- ".`
	if p.Style == model.StylePlain {
		item = "Write each key point as one plain sentence on its own line, without bullets or numbering."
	}

	var b strings.Builder
	b.WriteString("You summarize web articles for a busy reader. ")
	b.WriteString("Use only information present in the article. Do not add opinions or outside facts.\n\n")
	fmt.Fprintf(&b, "Write exactly %s key points. %s\n", points, item)
	fmt.Fprintf(&b, "Then write a TL;DR of %s.\n\n", sentences)
	b.WriteString("Use this format and nothing else:\n\n")
	b.WriteString("Key Points:\n")
	if p.Style == model.StylePlain {
		b.WriteString("First point.\nSecond point.\n\n")
	} else {
		b.WriteString("- First point\n- Second point\n\n")
	}
	b.WriteString("TL;DR: Short summary.")
	return b.String()
}
