package telegram_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgard/newsradar/internal/source"
	"github.com/edgard/newsradar/internal/source/telegram"
)

func previewPage(posts ...string) string {
	page := `<html><body><section class="tgme_channel_history">`
	for _, p := range posts {
		page += p
	}
	return page + `</section></body></html>`
}

func previewPost(channel string, id int64, text, datetime, views string) string {
	return fmt.Sprintf(`
<div class="tgme_widget_message" data-post="%s/%d">
  <div class="tgme_widget_message_text">%s</div>
  <span class="tgme_widget_message_views">%s</span>
  <a class="tgme_widget_message_date" href="https://t.me/%s/%d"><time datetime="%s"></time></a>
</div>`, channel, id, text, views, channel, id, datetime)
}

func TestFetchChannelParsesPosts(t *testing.T) {
	t.Parallel()

	page := previewPage(
		previewPost("markets", 101, "Банк поднял ставку", "2026-03-01T10:00:00+00:00", "12.3K"),
		`
<div class="tgme_widget_message" data-post="markets/102">
  <div class="tgme_widget_message_text">Срочно: байбек <a href="https://example.com/report">отчёт</a></div>
  <div class="tgme_widget_message_forwarded_from">
    Forwarded from <a class="tgme_widget_message_forwarded_from_name" href="https://t.me/origin_channel/55">Origin</a>
  </div>
  <span class="tgme_widget_message_views">1.2M</span>
  <a class="tgme_widget_message_date" href="https://t.me/markets/102"><time datetime="2026-03-01T11:00:00+00:00"></time></a>
</div>`,
		// media-only post with no text body is skipped
		`<div class="tgme_widget_message" data-post="markets/103"><a class="tgme_widget_message_date" href="https://t.me/markets/103"><time datetime="2026-03-01T12:00:00+00:00"></time></a></div>`,
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/s/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	client := telegram.NewWithBaseURL(nil, nil, srv.URL, 1)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	messages, err := client.FetchChannel(context.Background(), "markets", cutoff)
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}

	first := messages[0]
	if first.ID != 101 || first.Channel != "markets" {
		t.Errorf("unexpected identity: id=%d channel=%s", first.ID, first.Channel)
	}
	if first.Views != 12300 {
		t.Errorf("expected 12300 views, got %d", first.Views)
	}
	if !first.Date.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected date %v", first.Date)
	}

	second := messages[1]
	if second.Views != 1_200_000 {
		t.Errorf("expected 1200000 views, got %d", second.Views)
	}
	if second.Forward == nil {
		t.Fatal("expected forward provenance")
	}
	if second.Forward.Channel != "origin_channel" || second.Forward.MessageID != 55 {
		t.Errorf("unexpected forward %+v", second.Forward)
	}
	if len(second.MediaURLs) != 1 || second.MediaURLs[0] != "https://example.com/report" {
		t.Errorf("unexpected links %v", second.MediaURLs)
	}
}

func TestFetchChannelCutoffStopsPaging(t *testing.T) {
	t.Parallel()

	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		fmt.Fprint(w, previewPage(
			previewPost("markets", 50, "свежий пост", "2026-03-01T10:00:00+00:00", "100"),
			previewPost("markets", 49, "старый пост", "2026-02-01T10:00:00+00:00", "100"),
		))
	}))
	defer srv.Close()

	client := telegram.NewWithBaseURL(nil, nil, srv.URL, 5)
	cutoff := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	messages, err := client.FetchChannel(context.Background(), "markets", cutoff)
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message within the window, got %d", len(messages))
	}
	if pages != 1 {
		t.Errorf("expected paging to stop at the cutoff, got %d requests", pages)
	}
}

func TestFetchChannelPagesBackwards(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("before") == "" {
			fmt.Fprint(w, previewPage(
				previewPost("markets", 20, "второй", "2026-03-01T11:00:00+00:00", "10"),
			))
			return
		}
		if before := r.URL.Query().Get("before"); before != "20" {
			t.Errorf("expected before=20, got %s", before)
		}
		fmt.Fprint(w, previewPage(
			previewPost("markets", 10, "первый", "2026-03-01T10:00:00+00:00", "10"),
		))
	}))
	defer srv.Close()

	client := telegram.NewWithBaseURL(nil, nil, srv.URL, 2)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	messages, err := client.FetchChannel(context.Background(), "markets", cutoff)
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages across pages, got %d", len(messages))
	}
}

func TestFetchChannelRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := telegram.NewWithBaseURL(nil, nil, srv.URL, 1)

	_, err := client.FetchChannel(context.Background(), "markets", time.Time{})
	if !errors.Is(err, source.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchChannelServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := telegram.NewWithBaseURL(nil, nil, srv.URL, 1)

	_, err := client.FetchChannel(context.Background(), "markets", time.Time{})
	if err == nil {
		t.Fatal("expected error for server failure")
	}
	if errors.Is(err, source.ErrRateLimited) {
		t.Fatal("server errors must not look rate limited")
	}
}
