// Package cluster groups messages into event clusters using forward
// provenance and lexical similarity. Clustering is deterministic for a
// fixed message set: messages are processed in ascending timestamp order
// and ties between equally similar clusters resolve to the earliest
// created cluster.
package cluster

import (
	"fmt"
	"sort"

	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/textutil"
)

// DefaultThreshold is the similarity a message must exceed (strictly) to
// join an existing cluster.
const DefaultThreshold = 0.78

// keyPrefix marks cluster keys derived from canonical text hashes.
const keyPrefix = "cl-"

// canonicalLen caps the normalized text span hashed into the cluster key.
const canonicalLen = 200

// recentWindow is how many of a cluster's latest members are compared
// against an incoming message.
const recentWindow = 3

// Cluster accumulates the messages believed to describe one event.
// Members are kept in insertion order, which equals arrival order.
type Cluster struct {
	Key           string
	Messages      []*model.Message
	CanonicalText string
}

// DedupGroup returns the stable key identifying this cluster.
func (c *Cluster) DedupGroup() string {
	return c.Key
}

// Clusterer implements the dedup scan. The zero value is not usable;
// construct with New.
type Clusterer struct {
	threshold float64
}

// New creates a clusterer with the given similarity threshold. A
// non-positive threshold falls back to DefaultThreshold.
func New(threshold float64) *Clusterer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Clusterer{threshold: threshold}
}

// Cluster groups the messages into event clusters. The input slice is not
// modified; messages are scanned earliest-first regardless of input order.
//
// The scan is O(messages x clusters). That is acceptable for single-run
// batches bounded by a short lookback window; it must not be replaced by
// hashing shortcuts because those would change which cluster wins ties.
func (c *Clusterer) Cluster(messages []*model.Message) []*Cluster {
	ordered := make([]*model.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	arena := make([]*Cluster, 0, len(ordered))
	byForward := make(map[string]int) // forward key -> arena index

	for _, msg := range ordered {
		forwardKey := forwardKey(msg)

		// Forward provenance is authoritative: a repost of a known origin
		// joins its cluster without any text comparison.
		if forwardKey != "" {
			if idx, ok := byForward[forwardKey]; ok {
				arena[idx].Messages = append(arena[idx].Messages, msg)
				continue
			}
		}

		if idx, ok := c.bestMatch(arena, msg); ok {
			arena[idx].Messages = append(arena[idx].Messages, msg)
			continue
		}

		canonical := textutil.Normalize(msg.Text)
		if runes := []rune(canonical); len(runes) > canonicalLen {
			canonical = string(runes[:canonicalLen])
		}
		fresh := &Cluster{
			Key:           keyPrefix + textutil.HashKey(canonical),
			Messages:      []*model.Message{msg},
			CanonicalText: canonical,
		}
		arena = append(arena, fresh)
		if forwardKey != "" {
			byForward[forwardKey] = len(arena) - 1
		}
	}

	return arena
}

// bestMatch scans all open clusters and returns the index of the best one
// strictly above the threshold. The ratio pass over recent members runs
// first; the shingle fallback against canonical texts is only consulted
// when no cluster matched by ratio.
func (c *Clusterer) bestMatch(arena []*Cluster, msg *model.Message) (int, bool) {
	text := textutil.Normalize(msg.Text)

	bestIdx, bestScore := -1, c.threshold
	for i, cl := range arena {
		if score := ratioToRecent(text, cl); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		return bestIdx, true
	}

	bestIdx, bestScore = -1, c.threshold
	for i, cl := range arena {
		if score := textutil.ShingleOverlap(msg.Text, cl.CanonicalText); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 {
		return bestIdx, true
	}
	return 0, false
}

// ratioToRecent returns the best token-set ratio between the message text
// and the cluster's most recently added members.
func ratioToRecent(text string, cl *Cluster) float64 {
	start := len(cl.Messages) - recentWindow
	if start < 0 {
		start = 0
	}
	best := 0.0
	for _, member := range cl.Messages[start:] {
		if score := textutil.TokenSetRatio(text, textutil.Normalize(member.Text)); score > best {
			best = score
		}
	}
	return best
}

// forwardKey derives the provenance key of a forwarded message, or ""
// when the message carries no usable forward metadata.
func forwardKey(msg *model.Message) string {
	if !msg.IsForward() {
		return ""
	}
	fwd := msg.Forward
	if fwd.ChannelID != 0 && fwd.MessageID != 0 {
		return fmt.Sprintf("fwd-%d-%d", fwd.ChannelID, fwd.MessageID)
	}
	if fwd.Channel != "" {
		id := fwd.MessageID
		if id == 0 {
			id = msg.ID
		}
		return fmt.Sprintf("fwd-%s-%d", fwd.Channel, id)
	}
	return ""
}
