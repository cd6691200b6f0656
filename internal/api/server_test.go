package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pennykit/pennychat/internal/bot"
	"github.com/pennykit/pennychat/internal/dialogue"
	"github.com/pennykit/pennychat/internal/messages"
	"github.com/pennykit/pennychat/internal/models"
	"github.com/pennykit/pennychat/internal/nlu"
	"github.com/pennykit/pennychat/internal/store"
)

// fakeProvider returns a canned NLU response.
type fakeProvider struct {
	resp *nlu.Response
}

func (f *fakeProvider) Query(ctx context.Context, req nlu.Request) (*nlu.Response, error) {
	return f.resp, nil
}

// fakePusher records webhook-fed responses.
type fakePusher struct {
	pushed []models.Response
}

func (f *fakePusher) PushResponse(response models.Response) {
	f.pushed = append(f.pushed, response)
}

func newTestServer(t *testing.T, pusher ResponsePusher) (*Server, *store.InMemoryStore) {
	t.Helper()
	catalog, err := messages.Load()
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryStore()
	b := bot.New(st, &fakeProvider{resp: &nlu.Response{}}, dialogue.New(catalog, logger), catalog)
	return NewServer(b, pusher), st
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeAPIResponse(t, rec); resp.Status != string(models.APIStatusOK) {
		t.Errorf("unexpected status: %+v", resp)
	}
}

func TestTurnEndpoint(t *testing.T) {
	server, st := newTestServer(t, nil)

	body := strings.NewReader(`{"user_id":"u1","text":"hello"}`)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/turn", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) {
		t.Fatalf("unexpected status: %+v", resp)
	}

	// The turn result carries the messages and the settled context.
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("failed to re-marshal result: %v", err)
	}
	var result models.TurnResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("failed to decode turn result: %v", err)
	}
	if result.Context.State != models.StateMain || len(result.Messages) != 2 {
		t.Errorf("unexpected turn result: %+v", result)
	}

	if _, found, _ := st.LoadContext("u1"); !found {
		t.Error("expected the turn to persist a context")
	}
}

func TestTurnEndpointRejectsBadRequests(t *testing.T) {
	server, _ := newTestServer(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"user_id":`},
		{"missing user", `{"text":"hello"}`},
		{"missing input", `{"user_id":"u1"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/turn", strings.NewReader(c.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestContextEndpoint(t *testing.T) {
	server, st := newTestServer(t, nil)

	ctx := models.DefaultContext()
	ctx.State = models.StateMain
	ctx.UserName = "Ada"
	if err := st.SaveContext("u1", ctx); err != nil {
		t.Fatalf("SaveContext failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/context", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeAPIResponse(t, rec)
	payload, _ := json.Marshal(resp.Result)
	var got models.Context
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("failed to decode context: %v", err)
	}
	if got.UserName != "Ada" || got.State != models.StateMain {
		t.Errorf("unexpected context: %+v", got)
	}
}

func TestActionsEndpointEmptyIsAList(t *testing.T) {
	server, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/actions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"result":[]`) {
		t.Errorf("expected an empty list result, got %s", rec.Body.String())
	}
}

func TestActionsEndpointReturnsRecordedActions(t *testing.T) {
	server, st := newTestServer(t, nil)

	action := models.NewAddExpenseAction("coffee", 4.5, time.Date(2024, time.March, 13, 0, 0, 0, 0, time.UTC))
	if err := st.RecordAction("u1", action); err != nil {
		t.Fatalf("RecordAction failed: %v", err)
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/u1/actions", nil))

	resp := decodeAPIResponse(t, rec)
	payload, _ := json.Marshal(resp.Result)
	var actions []models.Action
	if err := json.Unmarshal(payload, &actions); err != nil {
		t.Fatalf("failed to decode actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Item != "coffee" {
		t.Errorf("unexpected actions: %+v", actions)
	}
}

func TestTwilioWebhook(t *testing.T) {
	pusher := &fakePusher{}
	server, _ := newTestServer(t, pusher)

	form := url.Values{}
	form.Set("From", "whatsapp:+15550100001")
	form.Set("Body", "hello penny")

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(pusher.pushed) != 1 {
		t.Fatalf("expected one pushed response, got %d", len(pusher.pushed))
	}
	if pusher.pushed[0].From != "+15550100001" || pusher.pushed[0].Body != "hello penny" {
		t.Errorf("unexpected pushed response: %+v", pusher.pushed[0])
	}
}

func TestTwilioWebhookRequiresSender(t *testing.T) {
	pusher := &fakePusher{}
	server, _ := newTestServer(t, pusher)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader("Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if len(pusher.pushed) != 0 {
		t.Errorf("expected nothing pushed, got %+v", pusher.pushed)
	}
}

func TestWebhookRouteAbsentWithoutPusher(t *testing.T) {
	server, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader("From=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected the route to be absent, got %d", rec.Code)
	}
}
