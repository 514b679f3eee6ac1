package model

import (
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WordsPerMinute is the reading speed used for ReadingTime.
const WordsPerMinute = 200

// Summary is the persisted form of a SummarizationResult.
type Summary struct {
	KeyPoints   []string            `json:"key_points"`
	TLDR        string              `json:"tldr"`
	GeneratedAt time.Time           `json:"generated_at"`
	Params      SummarizationParams `json:"params"`
}

type DocumentMetadata struct {
	WordCount     int    `json:"word_count"`
	Author        string `json:"author,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	// ReadingTime is in whole minutes.
	ReadingTime int `json:"reading_time,omitempty"`
}

// Document is the unit owned by the document store.
type Document struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Title        string           `json:"title"`
	Domain       string           `json:"domain"`
	RawText      string           `json:"raw_text"`
	Summary      *Summary         `json:"summary,omitempty"`
	Metadata     DocumentMetadata `json:"metadata"`
	CreatedAt    time.Time        `json:"created_at"`
	SummarizedAt *time.Time       `json:"summarized_at,omitempty"`
	SummaryError string           `json:"summary_error,omitempty"`
}

// NewDocumentID returns a time-ordered identifier.
func NewDocumentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// NewDocument projects a successful extraction into a fresh Document.
func NewDocument(c ExtractedContent) Document {
	words := c.Metadata.WordCount
	if words == 0 {
		words = len(strings.Fields(c.Text))
	}
	return Document{
		ID:      NewDocumentID(),
		URL:     c.Metadata.URL,
		Title:   c.Metadata.Title,
		Domain:  DomainOf(c.Metadata.URL),
		RawText: c.Text,
		Metadata: DocumentMetadata{
			WordCount:     words,
			Author:        c.Metadata.Author,
			PublishedDate: c.Metadata.PublishedDate,
			ReadingTime:   ReadingTime(words),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// ApplySummary merges a finished summary into the document.
func (d *Document) ApplySummary(r SummarizationResult, p SummarizationParams, at time.Time) {
	d.Summary = &Summary{
		KeyPoints:   r.KeyPoints,
		TLDR:        r.TLDR,
		GeneratedAt: at,
		Params:      p,
	}
	d.SummarizedAt = &at
	d.SummaryError = ""
}

// DomainOf returns the host of rawURL without a leading "www.".
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// ReadingTime converts a word count to minutes, rounding up.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}
