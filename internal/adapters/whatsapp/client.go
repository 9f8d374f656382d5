package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/chat"
)

const (
	DefaultSendTimeout    = 15 * time.Second
	DefaultReconnectDelay = 5 * time.Second

	messagesPath = "/messages"
	eventsPath   = "/events"

	maxErrorBody = 512
)

// idempotencyNamespace は Idempotency-Key を導出する UUIDv5 の名前空間です。
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/YeQiu29/absensi-wa-bot/whatsapp/messages"))

var (
	// ErrEmptyRecipient は宛先が空の場合に返されます。
	ErrEmptyRecipient = errors.New("whatsapp: empty recipient")
	// ErrRejected はゲートウェイが送信を受け付けなかった場合に返されます。
	ErrRejected = errors.New("whatsapp: send rejected")
)

// Options はゲートウェイクライアントの設定です。
type Options struct {
	// GatewayURL は http(s) のベース URL です。イベント購読は同じホストの ws(s) を使います。
	GatewayURL     string
	Token          string
	SendTimeout    time.Duration
	ReconnectDelay time.Duration
	HTTPClient     *http.Client
	// Location は送信の Idempotency-Key を区切る暦日のタイムゾーンです。nil の場合は time.Local です。
	Location *time.Location
}

// Client は WhatsApp ゲートウェイとの送受信を担います。
type Client struct {
	base           *url.URL
	token          string
	http           *http.Client
	sendTimeout    time.Duration
	reconnectDelay time.Duration
	loc            *time.Location
	now            func() time.Time
	logger         *slog.Logger
}

// NewClient は Client を生成します。
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.GatewayURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: parse gateway url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("whatsapp: gateway url must be http(s), got %q", opts.GatewayURL)
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:           base,
		token:          opts.Token,
		http:           opts.HTTPClient,
		sendTimeout:    opts.SendTimeout,
		reconnectDelay: opts.ReconnectDelay,
		loc:            opts.Location,
		now:            time.Now,
		logger:         logger.With(slog.String("component", "whatsapp")),
	}, nil
}

type sendRequest struct {
	To              string `json:"to"`
	Body            string `json:"body"`
	QuotedMessageID string `json:"quotedMessageId,omitempty"`
}

// Send は to に body を送信します。ゲートウェイが 2xx を返した場合のみ成功です。
// 同じ暦日に同じ宛先・本文で再送した場合は同じ Idempotency-Key を付けます。
func (c *Client) Send(ctx context.Context, to, body string) error {
	day := c.now().In(c.loc).Format(time.DateOnly)
	return c.post(ctx, sendRequest{To: to, Body: body}, idempotencyKey("send", day, to, body))
}

// Reply は受信メッセージの送信元へ引用付きで返信します。
// Idempotency-Key は受信メッセージ ID から導出するため、同じメッセージへの返信は何度送っても同じキーです。
func (c *Client) Reply(ctx context.Context, msg chat.InboundMessage, text string) error {
	key := idempotencyKey("reply", msg.ID)
	if strings.TrimSpace(msg.ID) == "" {
		key = idempotencyKey("reply", c.now().In(c.loc).Format(time.DateOnly), msg.From, text)
	}
	return c.post(ctx, sendRequest{To: msg.From, Body: text, QuotedMessageID: msg.ID}, key)
}

func idempotencyKey(parts ...string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(strings.Join(parts, "\x00"))).String()
}

func (c *Client) post(ctx context.Context, req sendRequest, key string) error {
	if strings.TrimSpace(req.To) == "" {
		return ErrEmptyRecipient
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("whatsapp: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(messagesPath).String(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", key)
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("whatsapp: send to %s: %w", req.To, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) eventsURL() string {
	u := *c.base.JoinPath(eventsPath)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
