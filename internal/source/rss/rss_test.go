package rss_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgard/newsradar/internal/source"
	"github.com/edgard/newsradar/internal/source/rss"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>markets</title>
  <item>
    <title>Срочно: ЦБ поднял ставку</title>
    <description>Срочно: ЦБ поднял ставку до 18%</description>
    <link>https://t.me/markets/201</link>
    <guid>https://t.me/markets/201</guid>
    <pubDate>Sun, 01 Mar 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Старая новость</title>
    <link>https://t.me/markets/150</link>
    <guid>https://t.me/markets/150</guid>
    <pubDate>Sun, 01 Feb 2026 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestFetchChannelParsesFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	client := rss.New(srv.URL+"/%s", nil)
	cutoff := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	messages, err := client.FetchChannel(context.Background(), "markets", cutoff)
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message within the window, got %d", len(messages))
	}

	msg := messages[0]
	if msg.ID != 201 {
		t.Errorf("expected id 201 from the post link, got %d", msg.ID)
	}
	if msg.Channel != "markets" {
		t.Errorf("unexpected channel %s", msg.Channel)
	}
	if msg.Text != "Срочно: ЦБ поднял ставку до 18%" {
		t.Errorf("unexpected text %q", msg.Text)
	}
	if !msg.Date.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", msg.Date)
	}
}

func TestFetchChannelRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := rss.New(srv.URL+"/%s", nil)

	_, err := client.FetchChannel(context.Background(), "markets", time.Time{})
	if !errors.Is(err, source.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchChannelBadFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not a feed")
	}))
	defer srv.Close()

	client := rss.New(srv.URL+"/%s", nil)

	_, err := client.FetchChannel(context.Background(), "markets", time.Time{})
	if err == nil {
		t.Fatal("expected parse error for malformed feed")
	}
}
