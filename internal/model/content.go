package model

import (
	"time"
	"unicode/utf8"
)

// Method names the strategy that produced an extraction.
type Method string

const (
	MethodReadability  Method = "readability"
	MethodHeuristic    Method = "heuristic"
	MethodSiteSpecific Method = "site-specific"
	MethodManual       Method = "manual"
)

// Valid reports whether m is one of the known strategies.
func (m Method) Valid() bool {
	switch m {
	case MethodReadability, MethodHeuristic, MethodSiteSpecific, MethodManual:
		return true
	}
	return false
}

// ContentMetadata describes where extracted text came from.
type ContentMetadata struct {
	Title         string    `json:"title,omitempty"`
	URL           string    `json:"url,omitempty"`
	ExtractedAt   time.Time `json:"extracted_at"`
	Author        string    `json:"author,omitempty"`
	PublishedDate string    `json:"published_date,omitempty"`
	WordCount     int       `json:"word_count,omitempty"`
	SiteName      string    `json:"site_name,omitempty"`
	// Source tags the extractor that ran ("github", "reddit", "manual", ...).
	Source string `json:"source,omitempty"`
}

// ExtractedContent is the result of one extraction attempt. A terminal value
// has either non-empty Text or a non-empty Error, never both.
type ExtractedContent struct {
	Text      string          `json:"text,omitempty"`
	CharCount int             `json:"char_count"`
	Metadata  ContentMetadata `json:"metadata"`
	Error     string          `json:"error,omitempty"`
}

// NewContent builds a successful extraction with CharCount derived from text.
func NewContent(text string, meta ContentMetadata) ExtractedContent {
	return ExtractedContent{
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
		Metadata:  meta,
	}
}

// FailedContent builds a failed extraction carrying only the reason.
func FailedContent(reason string, meta ContentMetadata) ExtractedContent {
	return ExtractedContent{Metadata: meta, Error: reason}
}

// OK reports whether the extraction produced text.
func (c ExtractedContent) OK() bool {
	return c.Error == "" && c.Text != ""
}

// ExtractionMetrics is always populated on an ExtractionResult.
type ExtractionMetrics struct {
	ExtractionTimeMs int64  `json:"extraction_time_ms"`
	MethodUsed       Method `json:"method_used"`
	Attempts         int    `json:"attempts"`
}

// ExtractionResult wraps the outcome of a full pipeline run.
type ExtractionResult struct {
	Content                 ExtractedContent  `json:"content"`
	Metrics                 ExtractionMetrics `json:"metrics"`
	RequiresManualSelection bool              `json:"requires_manual_selection"`
	FailureKind             ErrorKind         `json:"failure_kind,omitempty"`
	Suggestion              string            `json:"suggestion,omitempty"`
}
