package cluster_test

import (
	"strings"
	"testing"
	"time"

	"github.com/edgard/newsradar/internal/cluster"
	"github.com/edgard/newsradar/internal/model"
)

var base = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func msg(id int64, channel, text string, offset time.Duration) *model.Message {
	return &model.Message{
		ID:      id,
		Channel: channel,
		Text:    text,
		URL:     "https://t.me/" + channel + "/1",
		Date:    base.Add(offset),
	}
}

func fwdMsg(id int64, channel, text string, offset time.Duration, fwd *model.Forward) *model.Message {
	m := msg(id, channel, text, offset)
	m.Forward = fwd
	return m
}

func TestClusterForwardProvenance(t *testing.T) {
	t.Parallel()

	origin := &model.Forward{ChannelID: 777, MessageID: 42}
	messages := []*model.Message{
		fwdMsg(1, "alpha", "company X announces a massive buyback program", 0, origin),
		fwdMsg(2, "beta", "totally unrelated text about the weather in Lisbon", time.Minute, origin),
		fwdMsg(3, "gamma", "yet another completely different wording here", 2*time.Minute, origin),
	}

	clusters := cluster.New(cluster.DefaultThreshold).Cluster(messages)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster for shared forward origin, got %d", len(clusters))
	}
	if got := len(clusters[0].Messages); got != 3 {
		t.Errorf("expected 3 members, got %d", got)
	}
}

func TestClusterThresholdBoundary(t *testing.T) {
	t.Parallel()

	// TokenSetRatio("a b c d", "a b x y") is exactly 0.5.
	a := msg(1, "alpha", "a b c d", 0)
	b := msg(2, "beta", "a b x y", time.Minute)

	t.Run("similarity equal to threshold does not merge", func(t *testing.T) {
		t.Parallel()
		clusters := cluster.New(0.5).Cluster([]*model.Message{a, b})
		if len(clusters) != 2 {
			t.Errorf("expected 2 clusters at exact threshold, got %d", len(clusters))
		}
	})

	t.Run("similarity above threshold merges", func(t *testing.T) {
		t.Parallel()
		clusters := cluster.New(0.49).Cluster([]*model.Message{a, b})
		if len(clusters) != 1 {
			t.Errorf("expected 1 cluster above threshold, got %d", len(clusters))
		}
	})
}

func TestClusterReorderedTokensMerge(t *testing.T) {
	t.Parallel()

	messages := []*model.Message{
		msg(1, "alpha", "company X announces record buyback for shareholders", 0),
		msg(2, "beta", "record buyback for shareholders: company X announces", 5*time.Minute),
	}

	clusters := cluster.New(cluster.DefaultThreshold).Cluster(messages)
	if len(clusters) != 1 {
		t.Fatalf("expected reordered near-duplicates to merge, got %d clusters", len(clusters))
	}
}

func TestClusterDisjointMessagesStaySeparate(t *testing.T) {
	t.Parallel()

	messages := []*model.Message{
		msg(1, "alpha", "oil prices spike after supply disruption in the gulf", 0),
		msg(2, "beta", "new smartphone model breaks preorder records worldwide", 10*time.Hour),
	}

	clusters := cluster.New(cluster.DefaultThreshold).Cluster(messages)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters for disjoint events, got %d", len(clusters))
	}
}

func TestClusterKeyFormat(t *testing.T) {
	t.Parallel()

	clusters := cluster.New(cluster.DefaultThreshold).Cluster([]*model.Message{
		msg(1, "alpha", "company X announces a massive buyback program", 0),
	})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	key := clusters[0].Key
	if !strings.HasPrefix(key, "cl-") {
		t.Errorf("expected cl- prefix, got %q", key)
	}
	if len(key) != len("cl-")+16 {
		t.Errorf("expected 16-hex-char digest, got %q", key)
	}
	if key != clusters[0].DedupGroup() {
		t.Error("DedupGroup must equal the cluster key")
	}
}

func TestClusterShingleFallback(t *testing.T) {
	t.Parallel()

	// The first member fixes the canonical text; the next three join by
	// forward provenance with unrelated wording, pushing the canonical
	// text out of the recent-member window. A later near-identical
	// message must still merge through the canonical shingle overlap.
	origin := &model.Forward{ChannelID: 9, MessageID: 1}
	canonical := "regulator approves the merger of the two largest energy companies"
	messages := []*model.Message{
		fwdMsg(1, "alpha", canonical, 0, origin),
		fwdMsg(2, "beta", "completely different words one", time.Minute, origin),
		fwdMsg(3, "gamma", "completely different words two", 2*time.Minute, origin),
		fwdMsg(4, "delta", "completely different words three", 3*time.Minute, origin),
		msg(5, "echo", canonical, 4*time.Minute),
	}

	clusters := cluster.New(cluster.DefaultThreshold).Cluster(messages)
	if len(clusters) != 1 {
		t.Fatalf("expected fallback merge into 1 cluster, got %d", len(clusters))
	}
	if got := len(clusters[0].Messages); got != 5 {
		t.Errorf("expected 5 members, got %d", got)
	}
}

func TestClusterDeterminism(t *testing.T) {
	t.Parallel()

	build := func() []*model.Message {
		return []*model.Message{
			msg(3, "gamma", "central bank raises rates by 50 basis points", 2*time.Hour),
			msg(1, "alpha", "company X announces a massive buyback program", 0),
			msg(2, "beta", "company X announces a massive buyback program today", time.Hour),
		}
	}

	c := cluster.New(cluster.DefaultThreshold)
	first := c.Cluster(build())
	second := c.Cluster(build())

	if len(first) != len(second) {
		t.Fatalf("cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Errorf("cluster %d key differs: %q vs %q", i, first[i].Key, second[i].Key)
		}
		if len(first[i].Messages) != len(second[i].Messages) {
			t.Errorf("cluster %d size differs", i)
		}
	}
}
