// Package scoring aggregates per-cluster signals and computes the bounded
// hotness score used to rank event clusters.
package scoring

import (
	"errors"
	"sort"
	"strings"

	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/textutil"
)

// ErrEmptyCluster is returned when metrics are requested for a cluster
// without members. This is a programmer error, not a runtime condition.
var ErrEmptyCluster = errors.New("cluster has no messages")

// DefaultChannelQuality is the trust weight assumed for channels missing
// from the supplied quality map.
const DefaultChannelQuality = 0.5

// Keyword token sets matched case-insensitively as substrings of the full
// message text.
var (
	alertTokens   = []string{"⚡", "срочно", "breaking", "urgent", "немедленно", "молния"}
	updateTokens  = []string{"update", "обновление", "уточнение"}
	confirmTokens = []string{"подтверд", "confirm"}
)

// Metrics is a read-only snapshot of a cluster's aggregate signals,
// computed once per cluster.
type Metrics struct {
	MessageCount     int
	UniqueChannels   int
	UniqueEntities   []string
	UniqueLinks      []string
	MaxViews         int64
	AvgViews         float64
	MaxForwards      int64
	AlertHits        int
	UpdateHits       int
	ConfirmationHits int
	SpanMinutes      float64
	ChannelScores    []float64
	FirstMessage     *model.Message
	PeakMessage      *model.Message
	LastMessage      *model.Message
}

// ComputeMetrics derives the metrics snapshot for a cluster's messages.
// channelQuality maps channel name to a trust weight in [0,1]; unlisted
// channels default to DefaultChannelQuality. Negative view and forward
// counts from a malformed source are clamped to zero.
func ComputeMetrics(messages []*model.Message, channelQuality map[string]float64) (*Metrics, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyCluster
	}

	ordered := make([]*model.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})
	first := ordered[0]
	last := ordered[len(ordered)-1]

	peak := ordered[0]
	for _, m := range ordered[1:] {
		if viewsOf(m) > viewsOf(peak) ||
			(viewsOf(m) == viewsOf(peak) && forwardsOf(m) > forwardsOf(peak)) ||
			(viewsOf(m) == viewsOf(peak) && forwardsOf(m) == forwardsOf(peak) && m.Date.After(peak.Date)) {
			peak = m
		}
	}

	channels := make(map[string]struct{})
	links := make(map[string]struct{})
	entitySets := make([][]string, 0, 2*len(messages))

	var totalViews, maxViews, maxForwards int64
	viewedCount := 0
	alertHits, updateHits, confirmHits := 0, 0, 0

	for _, m := range messages {
		channels[m.Channel] = struct{}{}
		entitySets = append(entitySets, m.Entities, textutil.ExtractEntities(m.Text))
		for _, link := range m.ExternalLinks() {
			links[link] = struct{}{}
		}

		if v := viewsOf(m); v > 0 {
			totalViews += v
			viewedCount++
			if v > maxViews {
				maxViews = v
			}
		}
		if f := forwardsOf(m); f > maxForwards {
			maxForwards = f
		}

		lowered := strings.ToLower(m.Text)
		if containsAny(lowered, alertTokens) {
			alertHits++
		}
		if containsAny(lowered, updateTokens) {
			updateHits++
		}
		if containsAny(lowered, confirmTokens) {
			confirmHits++
		}
	}

	avgViews := 0.0
	if viewedCount > 0 {
		avgViews = float64(totalViews) / float64(viewedCount)
	}

	spanMinutes := 0.0
	if len(ordered) > 1 {
		spanMinutes = last.Date.Sub(first.Date).Minutes()
	}

	scores := make([]float64, 0, len(messages))
	for _, m := range messages {
		if q, ok := channelQuality[m.Channel]; ok {
			scores = append(scores, q)
		} else {
			scores = append(scores, DefaultChannelQuality)
		}
	}

	uniqueLinks := make([]string, 0, len(links))
	for link := range links {
		uniqueLinks = append(uniqueLinks, link)
	}
	sort.Strings(uniqueLinks)

	return &Metrics{
		MessageCount:     len(messages),
		UniqueChannels:   len(channels),
		UniqueEntities:   textutil.MergeEntities(entitySets...),
		UniqueLinks:      uniqueLinks,
		MaxViews:         maxViews,
		AvgViews:         avgViews,
		MaxForwards:      maxForwards,
		AlertHits:        alertHits,
		UpdateHits:       updateHits,
		ConfirmationHits: confirmHits,
		SpanMinutes:      spanMinutes,
		ChannelScores:    scores,
		FirstMessage:     first,
		PeakMessage:      peak,
		LastMessage:      last,
	}, nil
}

func viewsOf(m *model.Message) int64 {
	if m.Views < 0 {
		return 0
	}
	return m.Views
}

func forwardsOf(m *model.Message) int64 {
	if m.Forwards < 0 {
		return 0
	}
	return m.Forwards
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
