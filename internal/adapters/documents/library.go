package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ledongthuc/pdf"
)

// DefaultDebounce はファイル変更の連続通知をまとめる待ち時間です。
const DefaultDebounce = 500 * time.Millisecond

const separator = "\n\n"

// Extractor は一つのファイルからテキストを取り出します。
type Extractor func(path string) (string, error)

// Library は参照文書フォルダのテキストを保持します。Text は並行に呼び出せます。
type Library struct {
	dir        string
	extractors map[string]Extractor
	debounce   time.Duration
	logger     *slog.Logger

	mu    sync.RWMutex
	text  string
	files []string
}

// NewLibrary は dir を対象とする Library を生成します。読み込みは Load で行います。
func NewLibrary(dir string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		dir: dir,
		extractors: map[string]Extractor{
			".pdf": extractPDF,
			".txt": readPlain,
			".md":  readPlain,
		},
		debounce: DefaultDebounce,
		logger:   logger.With(slog.String("component", "documents")),
	}
}

// Text は読み込み済みの全文書を連結したテキストを返します。
func (l *Library) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.text
}

// Files は最後の Load で読み込めたファイル名を返します。
func (l *Library) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.files...)
}

// Load はフォルダ内の対応ファイルを名前順に読み込み直します。
// 抽出に失敗したファイルは記録して読み飛ばします。フォルダ自体が無い場合は空になります。
func (l *Library) Load() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("documents: read dir %s: %w", l.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := l.extractors[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	loaded := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(l.dir, name)
		text, err := l.extractors[strings.ToLower(filepath.Ext(name))](path)
		if err != nil {
			l.logger.Warn("document extraction failed", slog.String("file", name), slog.Any("error", err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		loaded = append(loaded, name)
	}

	l.mu.Lock()
	l.text = strings.Join(parts, separator)
	l.files = loaded
	l.mu.Unlock()

	if len(loaded) == 0 {
		l.logger.Warn("no reference documents loaded", slog.String("dir", l.dir))
	} else {
		l.logger.Info("reference documents loaded", slog.Int("files", len(loaded)), slog.Int("chars", len(l.Text())))
	}
	return nil
}

// Watch はフォルダの変更を監視し、変更が落ち着いた時点で Load し直します。ctx が終了するまで戻りません。
func (l *Library) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("documents: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("documents: ensure dir %s: %w", l.dir, err)
	}
	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("documents: watch %s: %w", l.dir, err)
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !l.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			trigger = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watcher error", slog.Any("error", err))
		case <-trigger:
			trigger = nil
			if err := l.Load(); err != nil {
				l.logger.Error("reload failed", slog.Any("error", err))
			}
		}
	}
}

func (l *Library) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	_, ok := l.extractors[strings.ToLower(filepath.Ext(ev.Name))]
	return ok
}

func readPlain(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
