package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierSend(t *testing.T) {
	var received AssignmentNotice
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second)
	err := notifier.Send(context.Background(), AssignmentNotice{
		TouristID: "tourist-1",
		GuideID:   "guide-1",
		TourName:  "Desert Sunrise",
		StartDate: "2026-03-01",
		EndDate:   "2026-03-08",
	})
	require.NoError(t, err)
	require.Equal(t, "tourist-1", received.TouristID)
	require.Equal(t, "guide-1", received.GuideID)
	require.Equal(t, "Desert Sunrise", received.TourName)
}

func TestWebhookNotifierRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second)
	err := notifier.Send(context.Background(), AssignmentNotice{TouristID: "tourist-1"})
	require.Error(t, err)
}

func TestWebhookNotifierMissingEndpoint(t *testing.T) {
	notifier := NewWebhookNotifier("", time.Second)
	err := notifier.Send(context.Background(), AssignmentNotice{TouristID: "tourist-1"})
	require.Error(t, err)
}
