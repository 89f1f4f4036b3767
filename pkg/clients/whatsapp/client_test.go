package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/storefront/internal/config"
)

func TestSendText(t *testing.T) {
	var got map[string]any
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{BaseURL: srv.URL + "/", APIVersion: "v20.0", AccessToken: "tok", PhoneNumberID: "123"})
	require.NoError(t, client.SendText(context.Background(), "+91 98765-43210", "TOTAL 10.00\n"))

	assert.Equal(t, "/v20.0/123/messages", path)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "919876543210", got["to"])
	text, ok := got["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "```\nTOTAL 10.00\n```", text["body"])
}

func TestSendTextMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient","code":131030}}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{BaseURL: srv.URL, APIVersion: "v20.0", PhoneNumberID: "123"})
	_, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "15550001", Body: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131030")
	assert.Contains(t, err.Error(), "invalid recipient")

	_, err = client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "n/a", Body: "hi"})
	assert.Error(t, err)
}
