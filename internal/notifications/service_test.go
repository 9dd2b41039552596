package notifications

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamedock/internal/config"
)

func newTestService(t *testing.T, handler http.HandlerFunc, mutate func(*config.Notifications)) Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	if mutate != nil {
		mutate(&cfg.Notifications)
	}
	return NewService(&cfg)
}

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	cfg := config.Default()
	svc := NewService(&cfg)
	if err := svc.NotifyDownloadCompleted(context.Background(), "Game"); err != nil {
		t.Fatalf("noop service returned error: %v", err)
	}
	if err := NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config service returned error: %v", err)
	}
}

func TestNotifyDownloadCompletedSendsRequest(t *testing.T) {
	var gotTitle string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}, nil)

	if err := svc.NotifyDownloadCompleted(context.Background(), "Stardock Saga"); err != nil {
		t.Fatalf("NotifyDownloadCompleted: %v", err)
	}
	if gotTitle != "Gamedock - Installed" {
		t.Fatalf("title header = %q", gotTitle)
	}
}

func TestCategoryTogglesSuppressSends(t *testing.T) {
	var calls int
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}, func(n *config.Notifications) {
		n.Downloads = false
		n.Sessions = false
	})

	if err := svc.NotifyDownloadCompleted(context.Background(), "x"); err != nil {
		t.Fatalf("suppressed notify errored: %v", err)
	}
	if err := svc.NotifyGameSessionEnded(context.Background(), "x", time.Minute); err != nil {
		t.Fatalf("suppressed notify errored: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no requests, got %d", calls)
	}
}

func TestRejectedNotificationSurfacesError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, nil)

	err := svc.NotifyError(context.Background(), errors.New("boom"), "extract")
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
