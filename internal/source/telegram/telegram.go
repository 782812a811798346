// Package telegram fetches channel messages from the public Telegram web
// preview (t.me/s/<channel>). The preview exposes post text, timestamps,
// view counters, and forward attribution without requiring an API
// session, which is all the radar needs from a channel.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/edgard/newsradar/internal/model"
	"github.com/edgard/newsradar/internal/source"
)

const (
	defaultBaseURL  = "https://t.me"
	defaultMaxPages = 10
	userAgent       = "newsradar/1.0"
)

// Client scrapes channel previews. Construct with New.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxPages   int
	logger     *slog.Logger
}

// New wires an HTTP client; a nil client gets a 20s timeout default.
func New(httpClient *http.Client, logger *slog.Logger) *Client {
	return NewWithBaseURL(httpClient, logger, defaultBaseURL, defaultMaxPages)
}

// NewWithBaseURL is New with the preview host and page limit overridable.
func NewWithBaseURL(httpClient *http.Client, logger *slog.Logger, baseURL string, maxPages int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxPages < 1 {
		maxPages = defaultMaxPages
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxPages:   maxPages,
		logger:     logger.With("component", "telegram_source"),
	}
}

// Name identifies the fetcher in logs and reports.
func (c *Client) Name() string { return "telegram" }

// FetchChannel pages backwards through the channel preview until it
// passes the cutoff or runs out of pages. Posts without text (media-only
// and service entries) are dropped.
func (c *Client) FetchChannel(ctx context.Context, channel string, cutoff time.Time) ([]*model.Message, error) {
	var collected []*model.Message
	before := int64(0)

	for page := 0; page < c.maxPages; page++ {
		doc, err := c.fetchPage(ctx, channel, before)
		if err != nil {
			return nil, err
		}

		messages, oldest := c.parsePage(doc, channel)
		if len(messages) == 0 {
			break
		}

		reachedCutoff := false
		for _, msg := range messages {
			if msg.Date.Before(cutoff) {
				reachedCutoff = true
				continue
			}
			collected = append(collected, msg)
		}
		if reachedCutoff || oldest <= 1 {
			break
		}
		before = oldest
	}

	c.logger.Debug("Channel scraped", "channel", channel, "messages", len(collected))
	return collected, nil
}

func (c *Client) fetchPage(ctx context.Context, channel string, before int64) (*goquery.Document, error) {
	pageURL := fmt.Sprintf("%s/s/%s", c.baseURL, url.PathEscape(channel))
	if before > 0 {
		pageURL += "?before=" + strconv.FormatInt(before, 10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request preview page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("channel %s: %w", channel, source.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preview returned %s for %s", resp.Status, channel)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse preview page: %w", err)
	}
	return doc, nil
}

// parsePage extracts the posts of one preview page in document order and
// returns them with the smallest post id seen, used for paging backwards.
func (c *Client) parsePage(doc *goquery.Document, channel string) ([]*model.Message, int64) {
	var messages []*model.Message
	oldest := int64(0)

	doc.Find("div.tgme_widget_message").Each(func(_ int, sel *goquery.Selection) {
		post, ok := sel.Attr("data-post")
		if !ok {
			return
		}
		id := postID(post)
		if id == 0 {
			return
		}
		if oldest == 0 || id < oldest {
			oldest = id
		}

		text := strings.TrimSpace(sel.Find(".tgme_widget_message_text").First().Text())
		if text == "" {
			return // media-only or service post
		}

		date := parseDate(sel)
		if date.IsZero() {
			return
		}

		msg := &model.Message{
			ID:        id,
			Channel:   channel,
			Text:      text,
			URL:       fmt.Sprintf("%s/%s/%d", c.baseURL, channel, id),
			Date:      date,
			Views:     parseCount(sel.Find(".tgme_widget_message_views").First().Text()),
			Forward:   parseForward(sel),
			MediaURLs: parseLinks(sel),
		}
		messages = append(messages, msg)
	})

	return messages, oldest
}

// postID extracts the numeric id from a "channel/123" data-post value.
func postID(post string) int64 {
	idx := strings.LastIndex(post, "/")
	if idx < 0 {
		return 0
	}
	id, err := strconv.ParseInt(post[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseDate(sel *goquery.Selection) time.Time {
	raw, ok := sel.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// parseCount reads preview counters like "1234", "12.3K", or "1.2M".
func parseCount(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	multiplier := float64(1)
	switch {
	case strings.HasSuffix(raw, "K"):
		multiplier = 1_000
		raw = strings.TrimSuffix(raw, "K")
	case strings.HasSuffix(raw, "M"):
		multiplier = 1_000_000
		raw = strings.TrimSuffix(raw, "M")
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int64(value * multiplier)
}

// parseForward reads the "Forwarded from" attribution when present. The
// preview links the origin post as https://t.me/<channel>/<id>.
func parseForward(sel *goquery.Selection) *model.Forward {
	link := sel.Find(".tgme_widget_message_forwarded_from_name").First()
	if link.Length() == 0 {
		return nil
	}

	fwd := &model.Forward{Channel: strings.TrimSpace(link.Text())}
	if href, ok := link.Attr("href"); ok {
		if u, err := url.Parse(href); err == nil {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) == 2 {
				fwd.Channel = parts[0]
				if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
					fwd.MessageID = id
				}
			}
		}
	}
	return fwd
}

// parseLinks collects external links embedded in the post body.
func parseLinks(sel *goquery.Selection) []string {
	var links []string
	sel.Find(".tgme_widget_message_text a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "http") && !strings.HasPrefix(href, "https://t.me/") {
			links = append(links, href)
		}
	})
	return links
}
