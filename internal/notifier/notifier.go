// Package notifier delivers fire-and-forget outbound alerts to a chat
// messenger HTTP API (§4.6, §6). It never blocks a caller: every event is
// handed to a background goroutine and the call returns immediately.
package notifier

import (
	"context"
	"fmt"
	"time"

	"bitunix-position-manager/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// maxMessageLength is the transport's practical text-size limit; longer
// payloads are truncated before sending (§4.6).
const maxMessageLength = 4096

const maxAttempts = 3

// Notifier formats structured events into text and delivers them
// asynchronously. A Notifier with an empty token is a no-op.
type Notifier struct {
	rest    *resty.Client
	host    string
	token   string
	chatID  string
	metrics *metrics.Metrics
}

// New builds a Notifier targeting the standard chat messenger host. token
// or chatID empty disables delivery; Notify then silently drops events.
func New(token, chatID string, m *metrics.Metrics) *Notifier {
	return &Notifier{
		rest:    resty.New().SetTimeout(10 * time.Second),
		host:    "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		metrics: m,
	}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.token != "" && n.chatID != ""
}

// Notify formats and delivers msg in the background. It never blocks the
// caller and never returns an error — failures are logged and counted.
func (n *Notifier) Notify(msg string) {
	if !n.enabled() {
		return
	}
	if len(msg) > maxMessageLength {
		msg = msg[:maxMessageLength]
	}

	go n.deliver(msg)
}

func (n *Notifier) deliver(msg string) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.host, n.token)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		resp, err := n.rest.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"chat_id":    n.chatID,
				"text":       msg,
				"parse_mode": "HTML",
			}).
			Post(url)
		cancel()

		if err == nil && resp != nil && resp.StatusCode() < 300 {
			return
		}

		lastErr = err
		if resp != nil {
			lastErr = fmt.Errorf("notifier http %d", resp.StatusCode())
		}

		time.Sleep(backoff(attempt))
	}

	log.Warn().Err(lastErr).Msg("notifier delivery dropped after retries")
	if n.metrics != nil {
		n.metrics.NotifierFailuresTotal.Inc()
	}
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 200 * time.Millisecond
}

// PositionOpened formats the position-opened event (§6).
func PositionOpened(symbol, side string, quantity, entryPrice float64) string {
	return fmt.Sprintf("Position opened: %s %s qty=%.6f entry=%.4f", symbol, side, quantity, entryPrice)
}

// ActionExecuted formats an executed risk action.
func ActionExecuted(symbol, kind string, quantity, price float64) string {
	return fmt.Sprintf("Action executed: %s %s qty=%.6f price=%.4f", symbol, kind, quantity, price)
}

// MarginWarn formats a margin-threshold warning.
func MarginWarn(ratio, threshold float64) string {
	return fmt.Sprintf("Margin warning: ratio=%.4f threshold=%.4f", ratio, threshold)
}

// Report formats a periodic performance-stats summary.
func Report(totalManaged, winning, losing, totalTP, totalSL, totalPartial int, totalPnL float64) string {
	return fmt.Sprintf(
		"Performance report: managed=%d winning=%d losing=%d tp=%d sl=%d partial=%d pnl=%.4f",
		totalManaged, winning, losing, totalTP, totalSL, totalPartial, totalPnL,
	)
}
