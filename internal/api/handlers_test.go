package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/qurain/qurainbot/internal/catalog"
	"github.com/qurain/qurainbot/internal/flow"
	"github.com/qurain/qurainbot/internal/models"
	"github.com/qurain/qurainbot/internal/store"
)

const (
	testAdmin = "966500000000"
	testUser  = "966511111111@s.whatsapp.net"
)

type mockNotifier struct {
	mu   sync.Mutex
	sent map[string][]string // destination -> bodies
	fail bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{sent: make(map[string][]string)}
}

func (m *mockNotifier) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("gateway down")
	}
	m.sent[to] = append(m.sent[to], body)
	return nil
}

func (m *mockNotifier) sentTo(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent[to]...)
}

func newTestServer(t *testing.T) (*Server, *mockNotifier) {
	t.Helper()
	cat, err := catalog.New([]catalog.ServiceDefinition{
		{Code: "40", Name: "Producers", Steps: []string{"Name?", "City?"}, Fields: []string{"name", "city"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := store.NewInMemoryStore(cat)
	notifier := newMockNotifier()
	engine := flow.NewEngine(st, cat, notifier, testAdmin)
	return NewServer(st, engine), notifier
}

func webhookBody(userID, text string, fromMe bool) string {
	return fmt.Sprintf(`{"data":{"messages":{"key":{"remoteJid":%q,"fromMe":%t},"message":{"conversation":%q}}}}`, userID, fromMe, text)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeWebhook(t *testing.T, w *httptest.ResponseRecorder) webhookResponse {
	t.Helper()
	var resp webhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode webhook response: %v", err)
	}
	return resp
}

func TestIndex(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "active" || resp.Service == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestUnmatchedRouteReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(s, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != string(models.APIStatusError) || resp.Message == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	cases := []struct{ method, path string }{
		{http.MethodPost, "/"},
		{http.MethodGet, "/webhook"},
		{http.MethodPost, "/stats"},
		{http.MethodGet, "/admin/clear-states"},
	}
	for _, c := range cases {
		if w := doRequest(s, c.method, c.path, ""); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", c.method, c.path, w.Code)
		}
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)
	doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "40", false))

	w := doRequest(s, http.MethodGet, "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveUsers != 1 {
		t.Errorf("active_users = %d, want 1", resp.ActiveUsers)
	}
	if resp.Timestamp == 0 {
		t.Error("timestamp missing")
	}
}

func TestWebhookTestEvent(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/webhook", `{"event":"webhook.test"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp := decodeWebhook(t, w); resp.Status != models.StatusTestOK {
		t.Errorf("status tag = %s, want %s", resp.Status, models.StatusTestOK)
	}
}

func TestWebhookRejectsMalformedPayloads(t *testing.T) {
	s, _ := newTestServer(t)
	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"no messages", `{"data":{}}`},
		{"missing user", webhookBody("", "40", false)},
		{"missing text", webhookBody(testUser, "", false)},
		{"blank text", webhookBody(testUser, "   ", false)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := doRequest(s, http.MethodPost, "/webhook", c.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestWebhookIgnoresSelfSentMessages(t *testing.T) {
	s, notifier := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "40", true))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp := decodeWebhook(t, w); resp.Status != models.StatusIgnored {
		t.Errorf("status tag = %s, want %s", resp.Status, models.StatusIgnored)
	}
	if len(notifier.sentTo("966511111111")) != 0 {
		t.Error("self-sent message must not reach the engine")
	}
}

func TestWebhookEndToEndFlow(t *testing.T) {
	s, notifier := newTestServer(t)

	w := doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "40", false))
	if resp := decodeWebhook(t, w); resp.Status != models.StatusProcessed || resp.Outcome != flow.OutcomeStarted {
		t.Fatalf("start response = %+v", resp)
	}
	w = doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "Ali", false))
	if resp := decodeWebhook(t, w); resp.Outcome != flow.OutcomeAdvanced {
		t.Fatalf("advance response = %+v", resp)
	}
	w = doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "Riyadh", false))
	if resp := decodeWebhook(t, w); resp.Outcome != flow.OutcomeCompleted {
		t.Fatalf("complete response = %+v", resp)
	}

	user := notifier.sentTo("966511111111")
	if len(user) != 3 || user[0] != "Name?" || user[1] != "City?" {
		t.Errorf("user messages = %v", user)
	}
	admin := notifier.sentTo(testAdmin)
	if len(admin) != 1 {
		t.Fatalf("admin messages = %v", admin)
	}
	for _, want := range []string{"*name:* Ali", "*city:* Riyadh"} {
		if !strings.Contains(admin[0], want) {
			t.Errorf("admin summary missing %q", want)
		}
	}
	if s.store.ActiveCount() != 0 {
		t.Error("conversation must be ended after completion")
	}
}

func TestWebhookNormalizesArabicDigits(t *testing.T) {
	s, notifier := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "٤٠", false))
	if resp := decodeWebhook(t, w); resp.Outcome != flow.OutcomeStarted {
		t.Fatalf("response = %+v", resp)
	}
	if got := notifier.sentTo("966511111111"); len(got) != 1 || got[0] != "Name?" {
		t.Errorf("user messages = %v", got)
	}
}

func TestWebhookUnknownMessageIgnored(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "what is this", false))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp := decodeWebhook(t, w); resp.Status != models.StatusIgnored || resp.Outcome != flow.OutcomeIgnored {
		t.Errorf("response = %+v", resp)
	}
}

func TestWebhookSendFailureStillProcessed(t *testing.T) {
	s, notifier := newTestServer(t)
	notifier.fail = true
	w := doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "40", false))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (outbound delivery is best-effort)", w.Code)
	}
	if resp := decodeWebhook(t, w); resp.Status != models.StatusProcessed || resp.Outcome != flow.OutcomeStartFailed {
		t.Errorf("response = %+v", resp)
	}
}

func TestClearStates(t *testing.T) {
	s, _ := newTestServer(t)
	doRequest(s, http.MethodPost, "/webhook", webhookBody(testUser, "40", false))
	doRequest(s, http.MethodPost, "/webhook", webhookBody("966522222222@s.whatsapp.net", "40", false))

	w := doRequest(s, http.MethodPost, "/admin/clear-states", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["cleared"] != float64(2) {
		t.Errorf("result = %+v", resp.Result)
	}
	if s.store.ActiveCount() != 0 {
		t.Error("records remain after clear")
	}
}

func TestRecoverPanics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "Internal server error" {
		t.Errorf("internal detail must not leak: %+v", resp)
	}
}
