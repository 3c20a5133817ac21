package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// CommandFunc handles one inbound command and returns the reply text.
// Implementations must be safe for concurrent use.
type CommandFunc func(ctx context.Context, text string) (string, error)

// Reply is the payload published to the reply topic.
type Reply struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

// commandTimeout bounds a single inbound command, including every
// provider attempt the router makes.
const commandTimeout = 3 * time.Minute

// parseCommand extracts the command text from a message payload. The
// payload may be plain text or a JSON object with a "text" field.
func parseCommand(payload []byte) string {
	raw := strings.TrimSpace(string(payload))
	if strings.HasPrefix(raw, "{") {
		var msg struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(raw), &msg); err == nil {
			return strings.TrimSpace(msg.Text)
		}
	}
	return raw
}

// receive is the OnPublishReceived hook. Messages outside the command
// topic, empty commands, and messages over the rate limit are dropped.
// Accepted commands are handled off the client goroutine.
func (p *Publisher) receive(ctx context.Context, topic string, payload []byte) {
	if topic != p.CommandTopic() {
		p.logger.Debug("mqtt message ignored", "topic", topic, "payload_size", len(payload))
		return
	}
	text := parseCommand(payload)
	if text == "" {
		p.logger.Debug("mqtt empty command ignored", "topic", topic)
		return
	}
	if p.limiter != nil && !p.limiter.allow() {
		return
	}
	go p.runCommand(ctx, text)
}

func (p *Publisher) runCommand(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	response, err := p.commands(ctx, text)
	if err != nil {
		p.logger.Error("mqtt command failed", "command", text, "error", err)
		if response == "" {
			return
		}
	}

	body, err := json.Marshal(Reply{Command: text, Response: response})
	if err != nil {
		p.logger.Error("mqtt marshal reply", "error", err)
		return
	}
	if err := p.publish(ctx, p.ReplyTopic(), body, false); err != nil {
		p.logger.Warn("mqtt reply publish failed", "error", err)
	}
}

// messageRateLimiter tracks inbound message rates and drops messages
// when the rate exceeds the configured threshold. It uses atomic
// counters for lock-free operation on the hot path.
type messageRateLimiter struct {
	count    atomic.Int64
	dropped  atomic.Int64
	limit    int64
	interval time.Duration
	logger   *slog.Logger
}

func newMessageRateLimiter(limit int64, interval time.Duration, logger *slog.Logger) *messageRateLimiter {
	return &messageRateLimiter{
		limit:    limit,
		interval: interval,
		logger:   logger,
	}
}

// start resets the counter at each interval boundary until ctx is
// cancelled, warning when messages were dropped.
func (r *messageRateLimiter) start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := r.count.Swap(0)
			dropped := r.dropped.Swap(0)
			if dropped > 0 {
				r.logger.Warn("mqtt commands dropped due to rate limit",
					"received", count,
					"dropped", dropped,
					"interval", r.interval.String(),
					"limit", r.limit,
				)
			}
		}
	}
}

func (r *messageRateLimiter) allow() bool {
	n := r.count.Add(1)
	if n > r.limit {
		r.dropped.Add(1)
		return false
	}
	return true
}
