package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/adapters/documents"
	"github.com/YeQiu29/absensi-wa-bot/internal/app"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/answer"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/ledger"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/notify"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/config"
)

// DefaultDeps は設定ファイルから本番の構成を組み立てる Deps を返します。
func DefaultDeps() Deps {
	return Deps{
		OpenBot: func(ctx context.Context, configPath string, logger *slog.Logger) (Bot, error) {
			cfg, err := config.Load(config.ResolvePath(configPath))
			if err != nil {
				return nil, err
			}
			a, err := app.Build(ctx, cfg, logger)
			if errors.Is(err, ledger.ErrLocked) {
				return nil, fmt.Errorf("%w; stop the running bot first, jobs must not run from two processes", err)
			}
			if err != nil {
				return nil, err
			}
			return appBot{a: a}, nil
		},
		OpenAnswerer: func(ctx context.Context, configPath string, logger *slog.Logger) (answer.Answerer, error) {
			cfg, err := config.Load(config.ResolvePath(configPath))
			if err != nil {
				return nil, err
			}
			library := documents.NewLibrary(cfg.Assistant.DocumentsDir, logger)
			if err := library.Load(); err != nil {
				return nil, err
			}
			return app.NewAnswerer(ctx, cfg.Assistant, library, logger)
		},
		Now: time.Now,
	}
}

type appBot struct {
	a *app.App
}

func (b appBot) Poll(ctx context.Context, now time.Time) []notify.Summary {
	return b.a.Poller.Poll(ctx, now)
}

func (b appBot) RemindMorning(ctx context.Context, now time.Time) notify.Summary {
	return b.a.Poller.RemindMorning(ctx, now)
}

func (b appBot) RemindAfternoon(ctx context.Context, now time.Time) notify.Summary {
	return b.a.Poller.RemindAfternoon(ctx, now)
}

func (b appBot) ResetDaily(ctx context.Context) error {
	return b.a.Reset.Reset(ctx)
}

func (b appBot) Close() error {
	return b.a.Close()
}
