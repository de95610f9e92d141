package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/logging"
	"github.com/example/karatcart/internal/pricing"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	httpClient  *http.Client
	log         *zap.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *zap.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPIBase,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         logging.OrNop(log).Named("telegram"),
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		s.log.Debug("bot token not configured, skipping message")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn("failed to send message", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("unexpected status", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		s.log.Debug("admin chat ID not configured, skipping message")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// SubmissionNotification describes an order handed to a jeweler for approval.
type SubmissionNotification struct {
	OrderID    string
	ShopID     string
	CustomerID string
	Lines      int
	Total      float64
	Timeout    time.Duration
}

// NotifyOrderSubmitted announces a submission awaiting jeweler approval.
func (s *TelegramService) NotifyOrderSubmitted(ctx context.Context, n SubmissionNotification) error {
	message := fmt.Sprintf(`<b>🛎 NEW ORDER AWAITING APPROVAL</b>
<b>📋 Order:</b> %s
<b>🏪 Shop:</b> %s
<b>👤 Customer:</b> %s
<b>📦 Lines:</b> %d
<b>💰 Total:</b> %s
<b>⏳ Respond within:</b> %s
━━━━━━━━━━━━━━━━━━`,
		html.EscapeString(n.OrderID),
		html.EscapeString(n.ShopID),
		html.EscapeString(n.CustomerID),
		n.Lines,
		pricing.FormatMoney(n.Total, "USD"),
		n.Timeout.Round(time.Second),
	)
	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// NotifyApprovalTimedOut reports that a jeweler did not answer in time and
// the order went back to pending.
func (s *TelegramService) NotifyApprovalTimedOut(ctx context.Context, orderID, shopID string) error {
	message := fmt.Sprintf(`<b>⌛ APPROVAL TIMED OUT</b>
<b>📋 Order:</b> %s
<b>🏪 Shop:</b> %s
<i>Order returned to pending.</i>`,
		html.EscapeString(orderID),
		html.EscapeString(shopID),
	)
	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
