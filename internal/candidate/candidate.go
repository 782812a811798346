// Package candidate synthesizes the publishable record for a scored
// cluster: headline, rationale, source links, timeline, and draft copy.
// All output is deterministic for a fixed metrics snapshot.
package candidate

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/scoring"
)

const (
	headlineLimit = 140
	maxSources    = 5
)

// Build assembles the candidate for a cluster from its metrics snapshot,
// hotness score, and dedup group key.
func Build(m *scoring.Metrics, hotness float64, dedupGroup string) model.Candidate {
	headline := makeHeadline(m)
	sources := collectSources(m)
	return model.Candidate{
		Headline:   headline,
		Hotness:    hotness,
		WhyNow:     makeWhyNow(m, hotness),
		Entities:   m.UniqueEntities,
		Sources:    sources,
		Timeline:   buildTimeline(m),
		Draft:      buildDraft(headline, m, sources),
		DedupGroup: dedupGroup,
	}
}

// makeHeadline takes the peak message's text, collapses newlines, and
// truncates to 140 characters with an ellipsis marker.
func makeHeadline(m *scoring.Metrics) string {
	text := strings.TrimSpace(m.PeakMessage.Text)
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= headlineLimit {
		return text
	}
	return string(runes[:headlineLimit-3]) + "..."
}

// makeWhyNow builds the rationale from ordered clauses, each included
// only when its trigger condition holds.
func makeWhyNow(m *scoring.Metrics, hotness float64) string {
	var parts []string
	if m.UniqueChannels > 1 {
		if m.UniqueChannels > 3 {
			parts = append(parts, fmt.Sprintf("%d каналов пересылают", m.UniqueChannels))
		} else {
			parts = append(parts, "Несколько каналов подтверждают")
		}
	}
	if m.MaxViews > 0 {
		parts = append(parts, "пик просмотров "+groupDigits(m.MaxViews))
	}
	if len(m.UniqueLinks) > 0 {
		parts = append(parts, fmt.Sprintf("есть %d внешних подтверждений", len(m.UniqueLinks)))
	}
	switch {
	case hotness > 0.8:
		parts = append(parts, "⚠️ высокая вероятность влияния на рынок")
	case hotness > 0.6:
		parts = append(parts, "может двинуть цену в ближайшие часы")
	}
	if len(parts) == 0 {
		parts = append(parts, "событие свежее и требует проверки")
	}
	return strings.Join(parts, "; ")
}

// collectSources picks up to five citable links: the first message, the
// peak message when distinct, then external links from the metrics.
func collectSources(m *scoring.Metrics) []model.SourceLink {
	sources := []model.SourceLink{{
		URL:     m.FirstMessage.URL,
		Label:   "Оригинал",
		Channel: m.FirstMessage.Channel,
	}}
	if m.PeakMessage.URL != m.FirstMessage.URL {
		sources = append(sources, model.SourceLink{
			URL:     m.PeakMessage.URL,
			Label:   "Макс. охват",
			Channel: m.PeakMessage.Channel,
		})
	}
	for _, link := range m.UniqueLinks {
		if len(sources) >= maxSources {
			break
		}
		sources = append(sources, model.SourceLink{URL: link, Label: "Внешний источник"})
	}
	return sources
}

// buildTimeline records the first message always, the peak message when
// its link differs from the first, and the last message only when the
// cluster spans more than a single moment.
func buildTimeline(m *scoring.Metrics) []model.TimelineEvent {
	timeline := []model.TimelineEvent{{
		Label:     "Первое сообщение",
		Timestamp: m.FirstMessage.Date,
		URL:       m.FirstMessage.URL,
	}}
	if m.PeakMessage.URL != m.FirstMessage.URL {
		timeline = append(timeline, model.TimelineEvent{
			Label:     "Макс. охват",
			Timestamp: m.PeakMessage.Date,
			URL:       m.PeakMessage.URL,
		})
	}
	if m.SpanMinutes > 0 {
		timeline = append(timeline, model.TimelineEvent{
			Label:     "Последний апдейт",
			Timestamp: m.LastMessage.Date,
			URL:       m.LastMessage.URL,
		})
	}
	return timeline
}

func buildDraft(headline string, m *scoring.Metrics, sources []model.SourceLink) model.Draft {
	var ledeParts []string
	if m.UniqueChannels > 1 {
		ledeParts = append(ledeParts, fmt.Sprintf("Новость циркулирует в %d каналах", m.UniqueChannels))
	}
	if m.MaxViews > 0 {
		ledeParts = append(ledeParts, "пик просмотров "+groupDigits(m.MaxViews))
	}
	if m.MaxForwards > 0 {
		ledeParts = append(ledeParts, "репостов: "+groupDigits(m.MaxForwards))
	}
	lede := strings.Join(ledeParts, "; ")
	if lede == "" {
		lede = "Мониторинг Telegram фиксирует потенциально горячую тему."
	}

	var bullets []string
	if len(m.UniqueEntities) > 0 {
		bullets = append(bullets, "В фокусе: "+strings.Join(head(m.UniqueEntities, 6), ", "))
	}
	if len(m.UniqueLinks) > 0 {
		bullets = append(bullets, "Подтверждения: "+strings.Join(head(m.UniqueLinks, 3), ", "))
	}
	if m.AlertHits > 0 {
		bullets = append(bullets, "Jump term: сигнал ⚡️ в оригинале")
	} else {
		span := int(m.SpanMinutes + 0.5)
		if span < 1 {
			span = 1
		}
		bullets = append(bullets, fmt.Sprintf("Распространение: %d сообщений за %d минут", m.MessageCount, span))
	}

	citation := ""
	if len(sources) > 0 {
		citation = sources[0].URL
	}
	return model.Draft{
		Headline: headline,
		Lede:     lede,
		Bullets:  bullets,
		Citation: citation,
	}
}

// groupDigits renders a count with space-separated thousands groups.
func groupDigits(n int64) string {
	return strings.ReplaceAll(humanize.Comma(n), ",", " ")
}

func head(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
