package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier dispatches a run summary to an external channel.
type Notifier interface {
	Notify(ctx context.Context, summary Summary) error
}

// TelegramNotifier pushes run summaries through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram summary notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "report_telegram").Logger(),
	}
}

// Notify sends the rendered summary via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, summary Summary) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(summary),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int64("txns_valid", summary.TxnsValid).
		Int64("fact_rows", summary.FactRowsUpserted).
		Msg("run summary sent (Telegram)")
	return nil
}

func renderMessage(s Summary) string {
	b := strings.Builder{}
	b.WriteString("[Merchant Metrics ETL]\n")
	b.WriteString(fmt.Sprintf("Finished: %s UTC (took %s)\n",
		s.Finished.UTC().Format(time.RFC3339), s.Finished.Sub(s.Started).Round(time.Millisecond)))
	b.WriteString(RenderText(s))
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
