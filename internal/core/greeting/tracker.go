package greeting

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
)

// ErrInvalidKey は空の識別キーが渡された場合に返されます。
var ErrInvalidKey = errors.New("greeting: invalid key")

// Store は「本日挨拶済み」記録の永続化先です。
// MarkGreeted は day の記録を書き込み、すでに同日の記録があった場合は true を返す check-and-set です。
type Store interface {
	MarkGreeted(ctx context.Context, key string, day time.Time) (alreadyGreeted bool, err error)
}

// Tracker は社員ごと・日ごとの挨拶済みフラグを管理します。
type Tracker struct {
	mu     sync.Mutex
	store  Store
	loc    *time.Location
	seen   map[string]struct{}
	logger *slog.Logger
}

// NewTracker は Tracker を生成します。store が nil の場合はプロセス内の記録のみを使います。
func NewTracker(store Store, loc *time.Location, logger *slog.Logger) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		loc:    loc,
		seen:   make(map[string]struct{}),
		logger: logger.With(slog.String("component", "greeting")),
	}
}

// CheckAndMarkGreeted は key が now の暦日にすでに挨拶済みかを返し、未挨拶なら同時に挨拶済みとして記録します。
// 読み取り専用の確認ではない点に注意してください。
func (t *Tracker) CheckAndMarkGreeted(ctx context.Context, key string, now time.Time) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ErrInvalidKey
	}

	day := attendance.Day(now.In(t.loc))
	cacheKey := day.Format(attendance.DateLayout) + "_" + key

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[cacheKey]; ok {
		return true, nil
	}

	already := false
	if t.store != nil {
		var err error
		already, err = t.store.MarkGreeted(ctx, key, day)
		if err != nil {
			return false, err
		}
	}

	t.seen[cacheKey] = struct{}{}
	if already {
		t.logger.Debug("already greeted today", slog.String("key", key))
	}
	return already, nil
}

// ResetAll はプロセス内の記録を消去します。永続側の記録は日付付きのため翌日には自然に無効になります。
func (t *Tracker) ResetAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[string]struct{})
	return nil
}
