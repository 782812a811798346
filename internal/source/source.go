// Package source defines the message retrieval contract and the
// concurrent fan-out that drives it. Each channel is fetched by its own
// task; a failing channel never poisons the rest of the batch.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/newsradar/internal/model"
)

// ErrRateLimited marks transport errors caused by rate limiting. Only
// these errors are retried; everything else fails the channel at once.
var ErrRateLimited = errors.New("rate limited by transport")

// Fetcher retrieves the messages of a single channel published at or
// after the cutoff. Implementations must drop textless and service posts
// before returning.
type Fetcher interface {
	Name() string
	FetchChannel(ctx context.Context, channel string, cutoff time.Time) ([]*model.Message, error)
}

// ChannelError records the terminal failure of one channel's fetch task.
type ChannelError struct {
	Channel string `json:"channel"`
	Err     error  `json:"-"`
}

func (e ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Channel, e.Err)
}

func (e ChannelError) Unwrap() error { return e.Err }

// Report is the outcome of one fan-out: the merged messages of every
// successful channel plus the structured list of failures.
type Report struct {
	Messages []*model.Message
	Failures []ChannelError
}

// Options tunes the fan-out and the backoff applied to rate-limited
// channels. Zero fields fall back to the defaults below.
type Options struct {
	WindowHours int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Default retry policy for rate-limited requests.
const (
	DefaultWindowHours = 24
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second

	retryMultiplier = 2
)

func (o Options) withDefaults() Options {
	if o.WindowHours <= 0 {
		o.WindowHours = DefaultWindowHours
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// FetchAll fans out one task per channel, joins them, and merges the
// successful results sorted by timestamp descending. Channel failures
// are captured in the report instead of aborting the batch; the returned
// error is only non-nil when the context is cancelled.
func FetchAll(ctx context.Context, fetcher Fetcher, channels []string, opts Options, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "source", "fetcher", fetcher.Name())
	opts = opts.withDefaults()

	cutoff := time.Now().UTC().Add(-time.Duration(opts.WindowHours) * time.Hour)

	results := make([][]*model.Message, len(channels))
	failures := make([]error, len(channels))

	g, gCtx := errgroup.WithContext(ctx)
	for i, channel := range channels {
		g.Go(func() error {
			messages, err := fetchWithRetry(gCtx, fetcher, channel, cutoff, opts, log)
			if err != nil {
				// Stored, not returned: sibling channels keep running.
				failures[i] = err
				return nil
			}
			results[i] = messages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, channel := range channels {
		if failures[i] != nil {
			log.Warn("Channel fetch failed", "channel", channel, "error", failures[i])
			report.Failures = append(report.Failures, ChannelError{Channel: channel, Err: failures[i]})
			continue
		}
		report.Messages = append(report.Messages, results[i]...)
	}
	sort.SliceStable(report.Messages, func(i, j int) bool {
		return report.Messages[i].Date.After(report.Messages[j].Date)
	})

	log.Info("Fetch fan-out complete",
		"channels", len(channels),
		"failed", len(report.Failures),
		"messages", len(report.Messages))
	return report, nil
}

// fetchWithRetry retries a channel fetch with exponential backoff while
// the transport reports rate limiting. Other errors surface immediately.
func fetchWithRetry(ctx context.Context, fetcher Fetcher, channel string, cutoff time.Time, opts Options, log *slog.Logger) ([]*model.Message, error) {
	delay := opts.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		messages, err := fetcher.FetchChannel(ctx, channel, cutoff)
		if err == nil {
			return messages, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err

		if attempt == opts.MaxAttempts {
			break
		}
		log.Debug("Rate limited, backing off",
			"channel", channel,
			"attempt", attempt,
			"delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= retryMultiplier
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return nil, fmt.Errorf("retries exhausted after %d attempts: %w", opts.MaxAttempts, lastErr)
}
