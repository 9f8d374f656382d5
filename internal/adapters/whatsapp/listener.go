package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/chat"
)

// DefaultHandlerConcurrency は同時に処理する受信メッセージ数の上限です。
const DefaultHandlerConcurrency = 8

// State はゲートウェイセッションの状態です。
type State string

const (
	StateQR            State = "qr"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateDisconnected  State = "disconnected"
)

const eventMessage = "message"

// envelope はイベントストリームの一件です。
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type inboundPayload struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Body    string `json:"body"`
	IsGroup bool   `json:"isGroup"`
	FromMe  bool   `json:"fromMe"`
}

type statePayload struct {
	Reason string `json:"reason"`
}

// MessageHandler は受信メッセージを処理します。
type MessageHandler interface {
	Handle(ctx context.Context, msg chat.InboundMessage) error
}

// StateFunc はセッション状態の変化を受け取ります。
type StateFunc func(State)

// Listen はイベントストリームを購読し、切断時は reconnectDelay 後に再接続します。ctx が終了するまで戻りません。
func (c *Client) Listen(ctx context.Context, handler MessageHandler, onState StateFunc) error {
	if handler == nil {
		return errors.New("whatsapp: message handler is required")
	}
	if onState == nil {
		onState = func(State) {}
	}

	for {
		err := c.listenOnce(ctx, handler, onState)
		onState(StateDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("event stream closed, reconnecting",
			slog.Any("error", err), slog.Duration("delay", c.reconnectDelay))

		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (c *Client) listenOnce(ctx context.Context, handler MessageHandler, onState StateFunc) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.Dial(ctx, c.eventsURL(), &websocket.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: header,
	})
	if err != nil {
		return fmt.Errorf("whatsapp: dial events: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	c.logger.Info("event stream connected")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultHandlerConcurrency)
	defer func() { _ = g.Wait() }()

	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("whatsapp: read event: %w", err)
		}

		switch env.Type {
		case eventMessage:
			var p inboundPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				c.logger.Warn("malformed message event", slog.Any("error", err))
				continue
			}
			msg := chat.InboundMessage{ID: p.ID, From: p.From, Body: p.Body, IsGroup: p.IsGroup, IsFromMe: p.FromMe}
			g.Go(func() error {
				if err := handler.Handle(gctx, msg); err != nil {
					c.logger.Error("message handling failed", slog.String("message_id", msg.ID), slog.Any("error", err))
				}
				return nil
			})
		case string(StateQR):
			c.logger.Info("QR code received, scan it with WhatsApp on the phone")
			onState(StateQR)
		case string(StateAuthenticated):
			c.logger.Info("WhatsApp authenticated")
			onState(StateAuthenticated)
		case string(StateReady):
			c.logger.Info("WhatsApp client is ready")
			onState(StateReady)
		case string(StateDisconnected):
			var p statePayload
			_ = json.Unmarshal(env.Data, &p)
			c.logger.Warn("WhatsApp client disconnected", slog.String("reason", p.Reason))
			onState(StateDisconnected)
		default:
			c.logger.Debug("ignoring event", slog.String("type", env.Type))
		}
	}
}
