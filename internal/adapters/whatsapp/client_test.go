package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/chat"
)

type captured struct {
	mu       sync.Mutex
	requests []sendRequest
	headers  []http.Header
}

func (c *captured) add(r sendRequest, h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, r)
	c.headers = append(c.headers, h.Clone())
}

func newGateway(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()

	got := &captured{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /messages", func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.add(req, r.Header)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"session not ready"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, got
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	srv, got := newGateway(t, http.StatusOK)
	client, err := NewClient(Options{GatewayURL: srv.URL + "/", Token: "secret"}, nil)
	require.NoError(t, err)

	require.NoError(t, client.Send(context.Background(), "6281234567890@c.us", "Hai Budi"))
	require.NoError(t, client.Send(context.Background(), "6281234567890@c.us", "Hai lagi"))

	require.Len(t, got.requests, 2)
	assert.Equal(t, sendRequest{To: "6281234567890@c.us", Body: "Hai Budi"}, got.requests[0])
	assert.Equal(t, "Bearer secret", got.headers[0].Get("Authorization"))
	assert.NotEmpty(t, got.headers[0].Get("Idempotency-Key"))
	assert.NotEqual(t, got.headers[0].Get("Idempotency-Key"), got.headers[1].Get("Idempotency-Key"))
}

func TestClient_SendRetryReusesIdempotencyKey(t *testing.T) {
	t.Parallel()

	wib := time.FixedZone("WIB", 7*60*60)
	srv, got := newGateway(t, http.StatusOK)
	client, err := NewClient(Options{GatewayURL: srv.URL, Location: wib}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 10, 17, 7, 2, 0, 0, wib)
	client.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, client.Send(ctx, "6281234567890@c.us", "Hai Budi"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, client.Send(ctx, "6281234567890@c.us", "Hai Budi"))
	require.NoError(t, client.Send(ctx, "6281300001111@c.us", "Hai Budi"))
	now = now.AddDate(0, 0, 1)
	require.NoError(t, client.Send(ctx, "6281234567890@c.us", "Hai Budi"))

	require.Len(t, got.headers, 4)
	first := got.headers[0].Get("Idempotency-Key")
	_, err = uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, first, got.headers[1].Get("Idempotency-Key"), "identical retry on the same day")
	assert.NotEqual(t, first, got.headers[2].Get("Idempotency-Key"), "different recipient")
	assert.NotEqual(t, first, got.headers[3].Get("Idempotency-Key"), "next day")
}

func TestClient_ReplyKeyFollowsMessageID(t *testing.T) {
	t.Parallel()

	srv, got := newGateway(t, http.StatusOK)
	client, err := NewClient(Options{GatewayURL: srv.URL}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	msg := chat.InboundMessage{ID: "ABCD", From: "6281234567890@c.us", Body: "halo"}
	require.NoError(t, client.Reply(ctx, msg, "Halo Budi!"))
	require.NoError(t, client.Reply(ctx, msg, "Halo Budi!"))
	require.NoError(t, client.Reply(ctx, chat.InboundMessage{ID: "EFGH", From: msg.From}, "Halo Budi!"))

	require.Len(t, got.headers, 3)
	assert.Equal(t, got.headers[0].Get("Idempotency-Key"), got.headers[1].Get("Idempotency-Key"))
	assert.NotEqual(t, got.headers[0].Get("Idempotency-Key"), got.headers[2].Get("Idempotency-Key"))
}

func TestClient_ReplyQuotesMessage(t *testing.T) {
	t.Parallel()

	srv, got := newGateway(t, http.StatusAccepted)
	client, err := NewClient(Options{GatewayURL: srv.URL}, nil)
	require.NoError(t, err)

	msg := chat.InboundMessage{ID: "ABCD", From: "6281234567890@c.us", Body: "halo"}
	require.NoError(t, client.Reply(context.Background(), msg, "Halo Budi!"))

	require.Len(t, got.requests, 1)
	assert.Equal(t, "ABCD", got.requests[0].QuotedMessageID)
	assert.Empty(t, got.headers[0].Get("Authorization"))
}

func TestClient_SendRejected(t *testing.T) {
	t.Parallel()

	srv, _ := newGateway(t, http.StatusServiceUnavailable)
	client, err := NewClient(Options{GatewayURL: srv.URL}, nil)
	require.NoError(t, err)

	err = client.Send(context.Background(), "628@c.us", "x")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "session not ready")

	require.ErrorIs(t, client.Send(context.Background(), " ", "x"), ErrEmptyRecipient)
}

func TestClient_SendTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client, err := NewClient(Options{GatewayURL: srv.URL, SendTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	err = client.Send(context.Background(), "628@c.us", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Options{GatewayURL: "ws://localhost:3000"}, nil)
	require.Error(t, err)
}

func TestClient_EventsURL(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Options{GatewayURL: "https://gw.example.com/wa/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.example.com/wa/events", client.eventsURL())
}

type recordingHandler struct {
	mu   sync.Mutex
	msgs []chat.InboundMessage
	got  chan struct{}
}

func (h *recordingHandler) Handle(_ context.Context, msg chat.InboundMessage) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
	h.got <- struct{}{}
	return nil
}

func TestClient_ListenDispatchesAndReconnects(t *testing.T) {
	t.Parallel()

	var (
		connMu sync.Mutex
		conns  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		connMu.Lock()
		conns++
		n := conns
		connMu.Unlock()

		ctx := r.Context()
		_ = wsjson.Write(ctx, c, map[string]any{"type": "ready"})
		_ = wsjson.Write(ctx, c, map[string]any{"type": "message", "data": map[string]any{
			"id": "m" + string(rune('0'+n)), "from": "6281234567890@c.us", "body": "halo", "fromMe": false,
		}})
		if n == 1 {
			_ = c.Close(websocket.StatusGoingAway, "restart")
			return
		}
		<-ctx.Done()
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{GatewayURL: srv.URL, ReconnectDelay: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	var (
		stateMu sync.Mutex
		states  []State
	)
	onState := func(s State) {
		stateMu.Lock()
		defer stateMu.Unlock()
		states = append(states, s)
	}

	handler := &recordingHandler{got: make(chan struct{}, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Listen(ctx, handler, onState) }()

	for i := 0; i < 2; i++ {
		select {
		case <-handler.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Len(t, handler.msgs, 2)
	assert.ElementsMatch(t, []string{"m1", "m2"}, []string{handler.msgs[0].ID, handler.msgs[1].ID})

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Contains(t, states, StateReady)
	assert.Contains(t, states, StateDisconnected)
}
