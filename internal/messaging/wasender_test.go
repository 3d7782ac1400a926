package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendMessage(t *testing.T) {
	var got sendRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/send-message" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewWaSenderService("secret", WithBaseURL(server.URL))
	if err := svc.SendMessage(context.Background(), "966500000000", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.To != "966500000000" || got.Text != "hello" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSendMessageGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewWaSenderService("secret", WithBaseURL(server.URL))
	err := svc.SendMessage(context.Background(), "966500000000", "hello")
	if err == nil {
		t.Fatal("expected error for non-2xx gateway response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should name the status code: %v", err)
	}
}

func TestSendMessageMissingAPIKey(t *testing.T) {
	svc := NewWaSenderService("")
	if err := svc.SendMessage(context.Background(), "966500000000", "hello"); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("expected ErrAPIKeyMissing, got %v", err)
	}
}

func TestSendMessageEmptyBody(t *testing.T) {
	svc := NewWaSenderService("secret")
	if err := svc.SendMessage(context.Background(), "966500000000", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSendMessageTruncatesLongBody(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewWaSenderService("secret", WithBaseURL(server.URL))
	long := strings.Repeat("م", MaxMessageLength+500)
	if err := svc.SendMessage(context.Background(), "966500000000", long); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runes := []rune(got.Text)
	if len(runes) > MaxMessageLength {
		t.Errorf("sent %d runes, want at most %d", len(runes), MaxMessageLength)
	}
	if !strings.HasSuffix(got.Text, "...") {
		t.Error("truncated message should end with ellipsis")
	}
}

func TestSendMessageTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	svc := NewWaSenderService("secret", WithBaseURL(server.URL), WithSendTimeout(50*time.Millisecond))
	if err := svc.SendMessage(context.Background(), "966500000000", "hello"); err == nil {
		t.Fatal("expected timeout error")
	}
}
