package model

import "fmt"

type SummaryLength string

const (
	LengthBrief  SummaryLength = "brief"
	LengthMedium SummaryLength = "medium"
)

type SummaryStyle string

const (
	StyleBullets SummaryStyle = "bullets"
	StylePlain   SummaryStyle = "plain"
)

// SummarizationParams are the user-chosen knobs of a summary request.
type SummarizationParams struct {
	Length SummaryLength `json:"length" yaml:"length"`
	Style  SummaryStyle  `json:"style" yaml:"style"`
}

// DefaultParams is what the settings screen starts with.
func DefaultParams() SummarizationParams {
	return SummarizationParams{Length: LengthBrief, Style: StyleBullets}
}

// Validate rejects anything outside the two closed value sets.
func (p SummarizationParams) Validate() error {
	switch p.Length {
	case LengthBrief, LengthMedium:
	default:
		return &Error{Kind: KindInvalidParameter, Op: "validate", Reason: fmt.Sprintf("unknown length %q", p.Length)}
	}
	switch p.Style {
	case StyleBullets, StylePlain:
	default:
		return &Error{Kind: KindInvalidParameter, Op: "validate", Reason: fmt.Sprintf("unknown style %q", p.Style)}
	}
	return nil
}

// SummarizationResult is the parsed provider output.
type SummarizationResult struct {
	KeyPoints  []string `json:"key_points"`
	TLDR       string   `json:"tldr"`
	TokensUsed *int     `json:"tokens_used,omitempty"`
}
