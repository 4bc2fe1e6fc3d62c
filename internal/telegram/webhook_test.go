package telegram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/soaringjerry/checkbot/internal/observability"
	"github.com/soaringjerry/checkbot/internal/services"
)

const textUpdate = `{"update_id":7,"message":{"message_id":1,"date":0,"from":{"id":42,"is_bot":false,"first_name":"A"},"chat":{"id":42,"type":"private"},"text":"Yes"}}`

func post(h http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWebhookHandler(t *testing.T) {
	h := &recordingHandler{got: make(chan services.Event, 4)}
	d := NewDispatcher(h, 1, 4)
	wh := WebhookHandler(d, "s3cret")

	if rr := post(wh, "wrong", textUpdate); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: %d", rr.Code)
	}
	if rr := post(wh, "", textUpdate); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: %d", rr.Code)
	}
	if rr := post(wh, "s3cret", "{not json"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rr.Code)
	}
	if rr := post(wh, "s3cret", `{"update_id":8}`); rr.Code != http.StatusOK {
		t.Fatalf("empty update: %d", rr.Code)
	}
	if rr := post(wh, "s3cret", textUpdate); rr.Code != http.StatusOK {
		t.Fatalf("valid update: %d", rr.Code)
	}

	rr := httptest.NewRecorder()
	wh.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/telegram/webhook", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: %d", rr.Code)
	}

	d.Close()
	if len(h.got) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(h.got))
	}
	ev := <-h.got
	if ev.UserID != 42 || ev.Text != "Yes" {
		t.Fatalf("event = %+v", ev)
	}

	if rr := post(wh, "s3cret", textUpdate); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("closed dispatcher: %d", rr.Code)
	}
}

func TestDispatcherKeepsPerUserOrder(t *testing.T) {
	h := &recordingHandler{}
	d := NewDispatcher(h, 3, 8)
	ctx := context.Background()
	for i, text := range []string{"a", "b", "c", "d", "e"} {
		for _, user := range []int64{1, 2, 3, 4} {
			ev := services.Event{Kind: services.EventText, UserID: user, Text: text}
			if err := d.Submit(ctx, i, ev); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
	}
	d.Close()

	perUser := map[string]string{}
	for _, rec := range h.order {
		user, text, _ := strings.Cut(rec, ":")
		perUser[user] += text
	}
	for _, user := range []string{"1", "2", "3", "4"} {
		if perUser[user] != "abcde" {
			t.Fatalf("user %s saw %q", user, perUser[user])
		}
	}
	if err := d.Submit(ctx, 99, services.Event{UserID: 1}); err != ErrDispatcherClosed {
		t.Fatalf("submit after close: %v", err)
	}
	d.Close()
}

func TestDispatcherSubmitHonoursContext(t *testing.T) {
	h := &blockingHandler{started: make(chan struct{}, 4), release: make(chan struct{})}
	d := NewDispatcher(h, 1, 1)
	defer d.Close()
	defer close(h.release)

	ctx := context.Background()
	_ = d.Submit(ctx, 1, services.Event{UserID: 1})
	<-h.started
	_ = d.Submit(ctx, 2, services.Event{UserID: 1}) // fills the queue

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := d.Submit(cctx, 3, services.Event{UserID: 1}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type blockingHandler struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingHandler) HandleEvent(ctx context.Context, ev services.Event) error {
	b.started <- struct{}{}
	<-b.release
	return nil
}

type failingHandler struct{}

func (failingHandler) HandleEvent(context.Context, services.Event) error {
	return errors.New("reply not delivered")
}

func TestDispatcherLogsHandlerErrors(t *testing.T) {
	var buf bytes.Buffer
	observability.Init(&buf, "info")
	t.Cleanup(func() { observability.Init(os.Stdout, "info") })

	d := NewDispatcher(failingHandler{}, 1, 1)
	if err := d.Submit(context.Background(), 9, services.Event{Kind: services.EventText, UserID: 5}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.Close()

	out := buf.String()
	for _, want := range []string{`"error":"reply not delivered"`, `"request_id":"upd-9"`, `"user_id":5`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}
