// Package radar wires the sources, analyzer, and delivery stages into a
// runnable pipeline.
package radar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/newsradar/internal/analyzer"
	"github.com/edgard/newsradar/internal/archive"
	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/publish"
	"github.com/edgard/newsradar/internal/source"
	"github.com/edgard/newsradar/internal/validate"
)

// MessageLoader produces a message batch without the network, used for
// replaying recorded dumps.
type MessageLoader func() ([]*model.Message, error)

// Pipeline holds one run's worth of wiring. Fetcher and Loader are
// mutually exclusive; Validator, Store, and Publisher are optional and
// skipped when nil.
type Pipeline struct {
	Fetcher    source.Fetcher
	Channels   []string
	SourceOpts source.Options
	Loader     MessageLoader

	Analyzer  *analyzer.Analyzer
	Validator *validate.Validator
	Store     archive.Store
	Publisher *publish.Publisher

	Logger *slog.Logger
}

// Result is the outcome of one detection run.
type Result struct {
	Candidates []*model.Candidate
	Failures   []source.ChannelError
	Messages   int
}

// RunOnce executes one full detection pass: fetch (or load), analyze,
// validate, archive, publish. Partial source failures are reported in
// the result, not treated as errors.
func (p *Pipeline) RunOnce(ctx context.Context, now time.Time) (*Result, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := &Result{}

	var messages []*model.Message
	switch {
	case p.Loader != nil:
		loaded, err := p.Loader()
		if err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		messages = loaded
	case p.Fetcher != nil:
		report, err := source.FetchAll(ctx, p.Fetcher, p.Channels, p.SourceOpts, log)
		if err != nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
		messages = report.Messages
		result.Failures = report.Failures
		for _, failure := range result.Failures {
			log.Warn("Channel fetch failed", "channel", failure.Channel, "error", failure.Err)
		}
	default:
		return nil, fmt.Errorf("pipeline has neither a fetcher nor a loader")
	}
	result.Messages = len(messages)

	candidates, err := p.Analyzer.Analyze(messages, now)
	if err != nil {
		return nil, fmt.Errorf("analyze messages: %w", err)
	}

	picked := make([]*model.Candidate, len(candidates))
	for i := range candidates {
		picked[i] = &candidates[i]
	}

	if p.Validator != nil {
		before := len(picked)
		picked = p.Validator.Filter(ctx, picked)
		log.Info("Validation pass finished", "before", before, "after", len(picked))
	}

	if p.Store != nil && len(picked) > 0 {
		if err := p.Store.SaveCandidates(ctx, picked, now); err != nil {
			// Archiving is best effort, the run's output still stands.
			log.Error("Failed to archive candidates", "error", err)
		}
	}

	if p.Publisher != nil && len(picked) > 0 {
		if err := p.Publisher.Publish(ctx, picked); err != nil {
			log.Error("Failed to publish candidates", "error", err)
		}
	}

	result.Candidates = picked
	log.Info("Detection run complete",
		"messages", result.Messages,
		"candidates", len(picked),
		"failed_channels", len(result.Failures))
	return result, nil
}
