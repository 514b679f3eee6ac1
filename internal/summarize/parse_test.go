package summarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSummary(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		points []string
		tldr   string
	}{
		{
			name:   "both markers",
			in:     "Key Points:\n- Rates rose\n- Inflation eased\n\nTL;DR: The bank raised rates as inflation cooled.",
			points: []string{"Rates rose", "Inflation eased"},
			tldr:   "The bank raised rates as inflation cooled.",
		},
		{
			name:   "markdown headings and numbering",
			in:     "## **Key Points:**\n1. First thing\n2) Second thing\n\n**TL;DR:** Two things happened.\nBoth mattered.",
			points: []string{"First thing", "Second thing"},
			tldr:   "Two things happened. Both mattered.",
		},
		{
			name:   "plain style",
			in:     "Key Points\nThe launch slipped a week.\nCosts stayed flat.\nTLDR\nA short delay at no cost.",
			points: []string{"The launch slipped a week.", "Costs stayed flat."},
			tldr:   "A short delay at no cost.",
		},
		{
			name:   "no markers",
			in:     "  Just a paragraph of summary text.  ",
			points: []string{},
			tldr:   "Just a paragraph of summary text.",
		},
		{
			name:   "tldr only",
			in:     "TL;DR: Nothing else to say.",
			points: []string{},
			tldr:   "Nothing else to say.",
		},
		{
			name:   "key points only",
			in:     "Key Points:\n- One\n- Two",
			points: []string{"One", "Two"},
			tldr:   "Key Points:\n- One\n- Two",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseSummary(tc.in)
			assert.Equal(t, tc.points, got.KeyPoints)
			assert.Equal(t, tc.tldr, got.TLDR)
			assert.Nil(t, got.TokensUsed)
		})
	}
}
