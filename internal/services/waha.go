package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bizrent_ledger/internal/config"
)

// WahaService sends WhatsApp messages through a WAHA gateway
type WahaService struct {
	baseURL     string
	apiKey      string
	session     string
	countryCode string
	client      *http.Client
	pause       func(time.Duration)
}

func NewWahaService(cfg *config.Config) *WahaService {
	return &WahaService{
		baseURL:     strings.TrimRight(cfg.WahaBaseURL, "/"),
		apiKey:      cfg.WahaAPIKey,
		session:     cfg.WahaSession,
		countryCode: cfg.WahaCountryCode,
		client:      &http.Client{Timeout: 15 * time.Second},
		pause:       time.Sleep,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *WahaService) chatAction(ctx context.Context, endpoint, chatID string) error {
	return s.makeRequest(ctx, http.MethodPost, endpoint, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

// NormalizeChatID adds the WhatsApp suffix and replaces a leading trunk 0 with the country code
func NormalizeChatID(chatID, countryCode string) string {
	chatID = strings.TrimSpace(chatID)

	// If it's already a group ID, it's correct
	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.TrimPrefix(chatID, "+")
	chatID = strings.NewReplacer(" ", "", "-", "").Replace(chatID)

	if countryCode != "" && strings.HasPrefix(chatID, "0") {
		chatID = countryCode + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage sends a message with authentic behavior (seen -> typing -> stop typing -> send)
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID, s.countryCode)

	if err := s.chatAction(ctx, "/api/sendSeen", chatID); err != nil {
		return fmt.Errorf("failed to send seen: %w", err)
	}
	s.pause(100 * time.Millisecond)

	if err := s.chatAction(ctx, "/api/startTyping", chatID); err != nil {
		return fmt.Errorf("failed to start typing: %w", err)
	}
	s.pause(150 * time.Millisecond)

	if err := s.chatAction(ctx, "/api/stopTyping", chatID); err != nil {
		return fmt.Errorf("failed to stop typing: %w", err)
	}
	s.pause(50 * time.Millisecond)

	err := s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}

	return nil
}
