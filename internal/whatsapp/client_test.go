package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendText(t *testing.T) {
	var gotPath, gotKey string
	var got sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"key":{"id":"X"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret", InstanceName: "viva"})
	require.NoError(t, c.SendText(context.Background(), "5511987654321", "Olá!"))

	assert.Equal(t, "/message/sendText/viva", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, sendTextRequest{Number: "5511987654321", Text: "Olá!"}, got)
}

func TestClient_SetPresence_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/sendPresence/viva", r.URL.Path)
		var body presenceRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, PresenceComposing, body.Presence)
		http.Error(w, "instance not connected", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, InstanceName: "viva"})
	err := c.SetPresence(context.Background(), "5511987654321", PresenceComposing)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "want *APIError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "instance not connected", apiErr.Body)
	assert.Contains(t, apiErr.Error(), "400")
}

func TestClient_ConnectionState(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    string
		healthy bool
	}{
		{"flat", `{"state":"open"}`, "open", true},
		{"nested", `{"instance":{"instanceName":"viva","state":"open"}}`, "open", true},
		{"closed", `{"instance":{"state":"close"}}`, "close", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/instance/connectionState/viva", r.URL.Path)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, InstanceName: "viva"})
			state, err := c.ConnectionState(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, state)
			if tc.healthy {
				assert.NoError(t, c.Healthy(context.Background()))
			} else {
				assert.Error(t, c.Healthy(context.Background()))
			}
		})
	}
}

func TestClient_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, InstanceName: "viva", Timeout: 20 * time.Millisecond})
	assert.Error(t, c.SendText(context.Background(), "1", "x"))

	bad := NewClient(Config{BaseURL: srv.URL, InstanceName: "viva"})
	srvJSON := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srvJSON.Close()
	bad.baseURL = srvJSON.URL
	_, err := bad.ConnectionState(context.Background())
	assert.Error(t, err)
}
