package scoring

import (
	"math"
	"time"
)

// Normalization anchors for the saturating score components.
const (
	spreadFull     = 6     // channels for full spread credit
	velocityFull   = 10    // messages for full velocity credit
	engagementBase = 80000 // views for full engagement credit
	forwardingBase = 5000  // forwards for full forwarding credit
	entityFull     = 8     // entities for full diversity credit
	linkFull       = 5     // links for full support credit
	alertFull      = 2     // alert hits for full alert credit
	confirmFull    = 3     // confirmation hits for the full bonus
)

// Score computes the hotness of a cluster in [0,1], rounded to three
// decimals. now anchors the recency component; callers must pass it
// explicitly for deterministic results (time.Now in UTC is used when
// zero). All components saturate via min/max, so no input can push the
// result out of range.
func Score(m *Metrics, now time.Time, windowHours int) float64 {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if windowHours < 1 {
		windowHours = 1
	}

	recencyHours := now.Sub(m.FirstMessage.Date).Hours()
	recency := math.Max(0, 1-recencyHours/float64(windowHours))

	spread := saturate(float64(m.UniqueChannels) / spreadFull)
	velocity := saturate(float64(m.MessageCount) / velocityFull)
	engagement := saturate(math.Log1p(float64(m.MaxViews)) / math.Log1p(engagementBase))
	forwarding := saturate(math.Log1p(float64(m.MaxForwards)) / math.Log1p(forwardingBase))
	entityDiv := saturate(float64(len(m.UniqueEntities)) / entityFull)
	linkSupport := saturate(float64(len(m.UniqueLinks)) / linkFull)
	credibility := saturate(mean(m.ChannelScores))
	alert := saturate(float64(m.AlertHits) / alertFull)
	confirmation := saturate(float64(m.ConfirmationHits) / confirmFull)

	raw := 0.22*recency +
		0.18*spread +
		0.15*velocity +
		0.12*engagement +
		0.07*forwarding +
		0.08*entityDiv +
		0.08*linkSupport +
		0.07*credibility +
		0.03*alert

	// The confirmation bonus is additive headroom above the unit-sum
	// weights, capped by the final saturation.
	score := math.Min(1, raw+0.04*confirmation)
	return math.Round(score*1000) / 1000
}

func saturate(v float64) float64 {
	return math.Min(1, v)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
