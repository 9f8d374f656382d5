package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/phone"
)

// 固定の返信文です。
const (
	NotRegisteredText = "Nomor kamu belum terdaftar di sistem."
	ReportFailedText  = "Maaf, data tidak dapat diambil saat ini. Silakan coba lagi nanti."
)

// InboundMessage は transport から届いた受信メッセージです。
type InboundMessage struct {
	ID       string
	From     string
	Body     string
	IsGroup  bool
	IsFromMe bool
}

func (m InboundMessage) fromGroup() bool {
	return m.IsGroup || phone.IsGroupJID(m.From)
}

func (m InboundMessage) text() string {
	return strings.TrimSpace(m.Body)
}

// hasQuestion は本文が 1 文字より長いかを返します。
func (m InboundMessage) hasQuestion() bool {
	return utf8.RuneCountInString(m.text()) > 1
}

// Route はメッセージに対して選ばれた処理経路です。
type Route string

const (
	RouteDuplicate          Route = "duplicate"
	RouteGroup              Route = "group"
	RouteSelf               Route = "self"
	RouteUnregisteredAnswer Route = "unregistered_answer"
	RouteUnregistered       Route = "unregistered"
	RouteGreeting           Route = "greeting"
	RouteCommand            Route = "command"
	RouteAnswer             Route = "answer"
	RouteNotFound           Route = "not_found"
)

// Action は一件の受信メッセージに対する唯一の処理結果です。
type Action struct {
	Route Route
	Reply string
	// Command は RouteCommand の場合に実行したコマンドのトークンです。
	Command string
}

// Dropped は返信せずに破棄する経路かどうかを返します。
func (a Action) Dropped() bool {
	switch a.Route {
	case RouteDuplicate, RouteGroup, RouteSelf:
		return true
	default:
		return false
	}
}
