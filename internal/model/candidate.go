package model

import "time"

// SourceLink is a citable reference attached to a candidate.
type SourceLink struct {
	URL     string `json:"url"`
	Label   string `json:"label,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// TimelineEvent marks a notable moment in a cluster's lifetime.
type TimelineEvent struct {
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url,omitempty"`
}

// Draft is the pre-written publication material for a candidate.
type Draft struct {
	Headline string   `json:"headline"`
	Lede     string   `json:"lede"`
	Bullets  []string `json:"bullets"`
	Citation string   `json:"citation,omitempty"`
}

// Candidate is one detected, scored, citable event. Once returned by the
// analyzer it is owned by the caller and never mutated by the pipeline.
type Candidate struct {
	Headline   string          `json:"headline"`
	Hotness    float64         `json:"hotness"`
	WhyNow     string          `json:"why_now"`
	Entities   []string        `json:"entities"`
	Sources    []SourceLink    `json:"sources"`
	Timeline   []TimelineEvent `json:"timeline"`
	Draft      Draft           `json:"draft"`
	DedupGroup string          `json:"dedup_group"`
}
