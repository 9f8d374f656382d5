package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// ErrClosed は Close 後に書き込もうとした場合に返されます。
var ErrClosed = errors.New("ledger: closed")

type set map[string]struct{}

// Ledger は partition ごとに分かれた「処理済み」キーの永続集合です。
// 読み取りと書き込みは単一の排他ドメインで直列化され、ResetAll は集合全体を一度に差し替えます。
type Ledger struct {
	mu         sync.RWMutex
	name       string
	partitions []string
	sets       map[string]set
	store      Store
	logger     *slog.Logger
	closed     bool
}

// Open は store から台帳を復元します。読めない・壊れた状態は空として扱い、警告を出力します。
// partitions に指定した区分は保存時に空でも書き出されます。
func Open(name string, store Store, logger *slog.Logger, partitions ...string) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		name:       name,
		partitions: append([]string(nil), partitions...),
		store:      store,
		logger:     logger.With(slog.String("component", "ledger"), slog.String("ledger", name)),
	}
	l.sets = l.emptySets()

	if store == nil {
		return l
	}

	snapshot, err := store.Load()
	if err != nil {
		l.logger.Warn("ledger state unreadable, starting empty", slog.Any("error", err))
		return l
	}
	for partition, keys := range snapshot {
		s, ok := l.sets[partition]
		if !ok {
			s = make(set, len(keys))
			l.sets[partition] = s
		}
		for _, key := range keys {
			s[key] = struct{}{}
		}
	}
	l.logger.Info("ledger loaded", slog.Int("keys", l.sizeLocked()))
	return l
}

// Name は台帳名を返します。
func (l *Ledger) Name() string {
	return l.name
}

// Has は key が partition に記録済みかを返します。
func (l *Ledger) Has(partition, key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.sets[partition][key]
	return ok
}

// Mark は key を記録して永続化します。永続化に失敗してもメモリ上の記録は残ります。
func (l *Ledger) Mark(partition, key string) error {
	_, err := l.TryMark(partition, key)
	return err
}

// TryMark は未記録の場合に限り key を記録し、新たに記録したかどうかを返します。
func (l *Ledger) TryMark(partition, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrClosed
	}

	s, ok := l.sets[partition]
	if !ok {
		s = make(set)
		l.sets[partition] = s
	}
	if _, exists := s[key]; exists {
		return false, nil
	}
	s[key] = struct{}{}

	if err := l.saveLocked(); err != nil {
		return true, err
	}
	return true, nil
}

// ResetAll はすべての partition を空の集合に差し替えて永続化します。
func (l *Ledger) ResetAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	cleared := l.sizeLocked()
	l.sets = l.emptySets()
	if err := l.saveLocked(); err != nil {
		return err
	}
	l.logger.Info("ledger reset", slog.Int("cleared", cleared))
	return nil
}

// Len は記録済みキーの総数を返します。
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sizeLocked()
}

// Close は最終状態を保存し、以降の書き込みを拒否します。store が io.Closer の場合は併せて閉じます。
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	err := l.saveLocked()
	if c, ok := l.store.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (l *Ledger) emptySets() map[string]set {
	sets := make(map[string]set, len(l.partitions))
	for _, p := range l.partitions {
		sets[p] = make(set)
	}
	return sets
}

func (l *Ledger) sizeLocked() int {
	n := 0
	for _, s := range l.sets {
		n += len(s)
	}
	return n
}

func (l *Ledger) saveLocked() error {
	if l.store == nil {
		return nil
	}
	snapshot := make(map[string][]string, len(l.sets))
	for partition, s := range l.sets {
		keys := make([]string, 0, len(s))
		for key := range s {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		snapshot[partition] = keys
	}
	if err := l.store.Save(snapshot); err != nil {
		return fmt.Errorf("ledger %s: %w", l.name, err)
	}
	return nil
}
