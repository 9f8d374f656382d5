package daily

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNoTargets はリセット対象が一つも登録されていない場合に返されます。
var ErrNoTargets = errors.New("daily: no reset targets")

// Resetter は日次で状態を消去する対象です。
type Resetter interface {
	ResetAll() error
}

// Target は名前付きのリセット対象です。
type Target struct {
	Name     string
	Resetter Resetter
}

// Coordinator は日付が変わった時点で全ての日次状態を消去します。
type Coordinator struct {
	targets []Target
	logger  *slog.Logger
}

// NewCoordinator は Coordinator を生成します。
func NewCoordinator(logger *slog.Logger, targets ...Target) (*Coordinator, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	for _, t := range targets {
		if strings.TrimSpace(t.Name) == "" || t.Resetter == nil {
			return nil, fmt.Errorf("daily: invalid target %q", t.Name)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		targets: append([]Target(nil), targets...),
		logger:  logger.With(slog.String("component", "daily_reset")),
	}, nil
}

// Reset は全対象を消去します。一つが失敗しても残りの対象は処理し、失敗をまとめて返します。
func (c *Coordinator) Reset(ctx context.Context) error {
	start := time.Now()
	var errs []error
	for _, t := range c.targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := t.Resetter.ResetAll(); err != nil {
			c.logger.Error("reset failed", slog.String("target", t.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("reset %s: %w", t.Name, err))
			continue
		}
		c.logger.Info("state cleared", slog.String("target", t.Name))
	}
	c.logger.Info("daily reset finished", slog.Duration("elapsed", time.Since(start)), slog.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Names は登録済み対象名を登録順で返します。
func (c *Coordinator) Names() []string {
	names := make([]string, 0, len(c.targets))
	for _, t := range c.targets {
		names = append(names, t.Name)
	}
	return names
}
