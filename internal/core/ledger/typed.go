package ledger

import (
	"log/slog"
	"strings"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
)

const repliedPartition = "replied"

// Notifications は NotificationKey 単位の通知済み台帳です。
type Notifications struct {
	l *Ledger
}

// OpenNotifications は勤怠通知用の台帳を開きます。
func OpenNotifications(store Store, logger *slog.Logger) *Notifications {
	partitions := make([]string, 0, len(attendance.Categories))
	for _, c := range attendance.Categories {
		partitions = append(partitions, string(c))
	}
	return &Notifications{l: Open("notifications", store, logger, partitions...)}
}

// HasFired は key の通知が送信済みかを返します。
func (n *Notifications) HasFired(key attendance.NotificationKey) bool {
	return n.l.Has(string(key.Category), key.String())
}

// MarkFired は key の通知を送信済みとして記録します。
func (n *Notifications) MarkFired(key attendance.NotificationKey) error {
	return n.l.Mark(string(key.Category), key.String())
}

// ResetAll は全種別の記録を消去します。
func (n *Notifications) ResetAll() error {
	return n.l.ResetAll()
}

// Close は台帳を閉じます。
func (n *Notifications) Close() error {
	return n.l.Close()
}

// Replies は受信メッセージ ID 単位の返信済み台帳です。
type Replies struct {
	l *Ledger
}

// OpenReplies は返信重複排除用の台帳を開きます。
func OpenReplies(store Store, logger *slog.Logger) *Replies {
	return &Replies{l: Open("replies", store, logger, repliedPartition)}
}

// Seen はメッセージ ID に対して返信判定済みかを返します。空 ID は常に未処理です。
func (r *Replies) Seen(messageID string) bool {
	id := strings.TrimSpace(messageID)
	if id == "" {
		return false
	}
	return r.l.Has(repliedPartition, id)
}

// Record はメッセージ ID を返信判定済みとして記録します。
func (r *Replies) Record(messageID string) error {
	id := strings.TrimSpace(messageID)
	if id == "" {
		return nil
	}
	return r.l.Mark(repliedPartition, id)
}

// Claim は未記録の場合に限りメッセージ ID を記録し、呼び出し元が返信権を得たかを返します。
// 空 ID は重複判定できないため常に true です。
func (r *Replies) Claim(messageID string) (bool, error) {
	id := strings.TrimSpace(messageID)
	if id == "" {
		return true, nil
	}
	return r.l.TryMark(repliedPartition, id)
}

// ResetAll は記録を消去します。
func (r *Replies) ResetAll() error {
	return r.l.ResetAll()
}

// Close は台帳を閉じます。
func (r *Replies) Close() error {
	return r.l.Close()
}
