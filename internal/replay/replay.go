// Package replay loads recorded message dumps and operator-maintained
// input files, letting the pipeline run without touching the network.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/edgard/newsradar/internal/model"
)

// LoadMessages reads a JSON array of messages from a recorded dump.
// Entries missing an id, channel, text, or date are rejected rather than
// silently dropped so a broken dump is noticed immediately.
func LoadMessages(path string) ([]*model.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message dump: %w", err)
	}

	var messages []*model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("decode message dump %s: %w", path, err)
	}

	for i, msg := range messages {
		if msg == nil {
			return nil, fmt.Errorf("message dump %s: entry %d is null", path, i)
		}
		if msg.ID == 0 || msg.Channel == "" || msg.Text == "" || msg.Date.IsZero() {
			return nil, fmt.Errorf("message dump %s: entry %d is missing required fields", path, i)
		}
	}
	return messages, nil
}

// LoadChannels reads channel names from a file, one per line. Blank
// lines and lines starting with '#' are skipped; duplicates keep their
// first position.
func LoadChannels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	var channels []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		channel := strings.TrimSpace(line)
		if channel == "" || strings.HasPrefix(channel, "#") {
			continue
		}
		if !seen[channel] {
			channels = append(channels, channel)
			seen[channel] = true
		}
	}
	return channels, nil
}

// LoadChannelQuality reads a JSON object mapping channel names to
// credibility weights in [0,1].
func LoadChannelQuality(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel quality file: %w", err)
	}

	var quality map[string]float64
	if err := json.Unmarshal(data, &quality); err != nil {
		return nil, fmt.Errorf("decode channel quality %s: %w", path, err)
	}
	for channel, score := range quality {
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("channel quality %s: %s is outside [0,1]", path, channel)
		}
	}
	return quality, nil
}
