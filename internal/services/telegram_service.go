package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// TelegramService sends best-effort notifications to the admin channel.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	return nil
}

// NotifyPaymentSuccess reports a confirmed order to the admin channel.
func (s *TelegramService) NotifyPaymentSuccess(orderRef string, amount int64, tickets int) error {
	if s.adminChatID == "" {
		return nil
	}
	text := fmt.Sprintf(
		"✅ <b>Payment confirmed</b>\nOrder: <code>%s</code>\nAmount: %d.%02d\nTickets allocated: %d",
		orderRef, amount/100, amount%100, tickets,
	)
	return s.SendMessage(s.adminChatID, text)
}

// NotifyDrawResult reports a completed draw to the admin channel.
func (s *TelegramService) NotifyDrawResult(competitionRef string, winningNumber int) error {
	if s.adminChatID == "" {
		return nil
	}
	text := fmt.Sprintf(
		"🎉 <b>Draw complete</b>\nCompetition: <code>%s</code>\nWinning ticket: #%d",
		competitionRef, winningNumber,
	)
	return s.SendMessage(s.adminChatID, text)
}
