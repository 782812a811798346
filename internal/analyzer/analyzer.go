// Package analyzer runs the full detection pipeline over one batch of
// messages: dedup clustering, metrics, scoring, and candidate synthesis.
// The pipeline keeps no state between runs.
package analyzer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/edgard/newsradar/internal/candidate"
	"github.com/edgard/newsradar/internal/cluster"
	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/scoring"
)

// Config holds the analyzer knobs. All fields are optional; zero values
// fall back to the stated defaults.
type Config struct {
	WindowHours    int                // lookback window, default 24
	DedupThreshold float64            // similarity threshold, default 0.78
	MinHotness     float64            // surfacing floor, default 0.45
	ChannelQuality map[string]float64 // channel name -> trust weight
}

// Default values applied by New for unset Config fields.
const (
	DefaultWindowHours = 24
	DefaultMinHotness  = 0.45
)

// Analyzer detects hot event candidates in message batches.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an analyzer, applying defaults for unset config fields.
func New(cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = DefaultWindowHours
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = cluster.DefaultThreshold
	}
	if cfg.MinHotness <= 0 {
		cfg.MinHotness = DefaultMinHotness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg, logger: logger.With("component", "analyzer")}
}

// Analyze runs the pipeline over the batch and returns the surfaced
// candidates sorted by hotness descending. Equal scores keep cluster
// creation order. now anchors the recency component; pass it explicitly
// for reproducible output (the current UTC time is used when zero).
func (a *Analyzer) Analyze(messages []*model.Message, now time.Time) ([]model.Candidate, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	clusters := cluster.New(a.cfg.DedupThreshold).Cluster(messages)
	a.logger.Debug("Clustered message batch", "messages", len(messages), "clusters", len(clusters))

	candidates := make([]model.Candidate, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.Messages) == 0 {
			continue
		}
		metrics, err := scoring.ComputeMetrics(cl.Messages, a.cfg.ChannelQuality)
		if err != nil {
			return nil, fmt.Errorf("computing metrics for cluster %s: %w", cl.Key, err)
		}
		hotness := scoring.Score(metrics, now, a.cfg.WindowHours)
		if hotness < a.cfg.MinHotness {
			a.logger.Debug("Dropping cold cluster", "key", cl.Key, "hotness", hotness)
			continue
		}
		candidates = append(candidates, candidate.Build(metrics, hotness, cl.DedupGroup()))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Hotness > candidates[j].Hotness
	})

	a.logger.Info("Analysis complete",
		"messages", len(messages),
		"clusters", len(clusters),
		"candidates", len(candidates))
	return candidates, nil
}
