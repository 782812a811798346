// Package publish delivers detected candidates to an operator chat
// through the Telegram Bot API.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-telegram/bot"

	"github.com/edgard/newsradar/internal/model"
)

// maxBulletLines keeps operator messages readable on a phone screen.
const maxBulletLines = 5

// Publisher formats candidates and sends them to a fixed chat.
type Publisher struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// New creates a publisher for the operator chat.
func New(token string, chatID int64, logger *slog.Logger, opts ...bot.Option) (*Publisher, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Publisher{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "publisher"),
	}, nil
}

// Publish sends each candidate as its own message, hottest first as
// provided. A failed send is logged and does not block the rest.
func (p *Publisher) Publish(ctx context.Context, candidates []*model.Candidate) error {
	var failed int
	for _, cand := range candidates {
		_, err := p.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: p.chatID,
			Text:   Format(cand),
		})
		if err != nil {
			failed++
			p.logger.ErrorContext(ctx, "Failed to publish candidate", "dedup_group", cand.DedupGroup, "error", err)
			continue
		}
		p.logger.DebugContext(ctx, "Candidate published", "dedup_group", cand.DedupGroup, "hotness", cand.Hotness)
	}

	if failed > 0 {
		return fmt.Errorf("failed to publish %d of %d candidates", failed, len(candidates))
	}
	return nil
}

// Format renders one candidate as a plain-text operator message.
func Format(cand *model.Candidate) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🔥 %.3f · %s\n", cand.Hotness, cand.Headline)
	if cand.WhyNow != "" {
		sb.WriteString(cand.WhyNow + "\n")
	}

	bullets := cand.Draft.Bullets
	if len(bullets) > maxBulletLines {
		bullets = bullets[:maxBulletLines]
	}
	for _, bullet := range bullets {
		sb.WriteString("• " + bullet + "\n")
	}

	if len(cand.Entities) > 0 {
		sb.WriteString("Сущности: " + strings.Join(cand.Entities, ", ") + "\n")
	}
	for _, src := range cand.Sources {
		label := src.Label
		if label == "" {
			label = src.Channel
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, src.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatDigest renders a short multi-candidate summary line, used when a
// run produces more candidates than are worth sending individually.
func FormatDigest(candidates []*model.Candidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Обнаружено кандидатов: %s\n", humanize.Comma(int64(len(candidates))))
	for i, cand := range candidates {
		fmt.Fprintf(&sb, "%d. %.3f %s\n", i+1, cand.Hotness, cand.Headline)
	}
	return strings.TrimRight(sb.String(), "\n")
}
