package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrLocked は台帳ファイルを別のプロセス (稼働中のボットなど) が使用中の場合に返されます。
var ErrLocked = errors.New("ledger: state file is in use by another process")

const lockSuffix = ".lock"

// Store は台帳の永続化先です。partition → key 配列の形で読み書きします。
type Store interface {
	Load() (map[string][]string, error)
	Save(snapshot map[string][]string) error
}

// FileStore は JSON ファイルに台帳を保存します。保存は一時ファイル経由で全体を置き換えます。
// 台帳はメモリ上の集合でファイル全体を上書きするため、開いている間は "<path>.lock" を排他ロックします。
type FileStore struct {
	path string
	lock *os.File
}

// OpenFileStore は path の排他ロックを取得した FileStore を返します。
// 他の FileStore がロックを保持している場合は ErrLocked を返します。ロックは Close で解放されます。
func OpenFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger: empty state file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path+lockSuffix, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open lock for %s: %w", path, err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("ledger: lock %s: %w", path, err)
	}
	return &FileStore{path: path, lock: f}, nil
}

// Close はロックを解放します。二度目以降の呼び出しは何もしません。
func (s *FileStore) Close() error {
	if s == nil || s.lock == nil {
		return nil
	}
	f := s.lock
	s.lock = nil
	return errors.Join(unlockFile(f), f.Close())
}

// Path は保存先のパスを返します。
func (s *FileStore) Path() string {
	return s.path
}

// Load はファイルを読み込みます。ファイルが存在しない場合は nil を返します。
func (s *FileStore) Load() (map[string][]string, error) {
	if s == nil || s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: read %s: %w", s.path, err)
	}
	var snapshot map[string][]string
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", s.path, err)
	}
	return snapshot, nil
}

// Save は snapshot 全体をアトミックに書き込みます。
func (s *FileStore) Save(snapshot map[string][]string) error {
	if s == nil || s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", s.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
