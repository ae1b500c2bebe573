package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizrent_ledger/internal/config"
)

func TestNormalizeChatID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "phone number without country code",
			input:    "081246361829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "phone number with country code",
			input:    "6281246361829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "international format with spaces",
			input:    "+62 812-4636-1829",
			expected: "6281246361829@c.us",
		},
		{
			name:     "group id",
			input:    "120363407813232111@g.us",
			expected: "120363407813232111@g.us",
		},
		{
			name:     "phone number without country code, with suffix",
			input:    "081246361829@c.us",
			expected: "6281246361829@c.us",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeChatID(tt.input, "62"))
		})
	}
}

func TestWahaSendMessage(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	var text map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/sendText" {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&text))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewWahaService(&config.Config{WahaBaseURL: srv.URL + "/", WahaAPIKey: "secret", WahaSession: "ledger", WahaCountryCode: "62"})
	svc.pause = func(time.Duration) {}

	require.NoError(t, svc.SendMessage(context.Background(), "0812", "Invoice due"))
	assert.Equal(t, []string{"/api/sendSeen", "/api/startTyping", "/api/stopTyping", "/api/sendText"}, paths)
	assert.Equal(t, "62812@c.us", text["chatId"])
	assert.Equal(t, "Invoice due", text["text"])
	assert.Equal(t, "ledger", text["session"])
}

func TestWahaSendMessageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not started", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewWahaService(&config.Config{WahaBaseURL: srv.URL, WahaSession: "default"})
	svc.pause = func(time.Duration) {}

	err := svc.SendMessage(context.Background(), "62812", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send seen")
	assert.Contains(t, err.Error(), "422")
}
