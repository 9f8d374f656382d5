package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/YeQiu29/absensi-wa-bot/internal/adapters/documents"
	"github.com/YeQiu29/absensi-wa-bot/internal/adapters/gemini"
	pgrepo "github.com/YeQiu29/absensi-wa-bot/internal/adapters/repository/postgres"
	"github.com/YeQiu29/absensi-wa-bot/internal/adapters/whatsapp"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/answer"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/chat"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/daily"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/greeting"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/ledger"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/notify"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/config"
	pgdb "github.com/YeQiu29/absensi-wa-bot/internal/platform/db/postgres"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/schedule"
	"github.com/YeQiu29/absensi-wa-bot/internal/platform/server"
)

// ジョブ名です。
const (
	JobPoll      = "poll"
	JobMorning   = "morning_reminder"
	JobAfternoon = "afternoon_reminder"
	JobReset     = "daily_reset"
)

const (
	reportStatementTimeout = 10 * time.Second
	shutdownTimeout        = 30 * time.Second
)

// Database は pgxpool.Pool 互換の接続です。
type Database interface {
	pgdb.Queryer
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// App はボットを構成する全コンポーネントを保持します。
type App struct {
	Config        *config.Config
	Attendance    *attendance.Service
	Notifications *ledger.Notifications
	Replies       *ledger.Replies
	Greetings     *greeting.Tracker
	Documents     *documents.Library
	Answerer      *answer.Service
	Gateway       *whatsapp.Client
	Poller        *notify.Poller
	Router        *chat.Router
	Reset         *daily.Coordinator
	Scheduler     *schedule.Scheduler
	Health        *server.Server

	clock  Clock
	logger *slog.Logger
	closer func()
}

// Build は DB 接続プールを開き、全コンポーネントを組み立てます。
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := pgdb.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a, err := Assemble(ctx, cfg, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.closer = pool.Close
	return a, nil
}

// Assemble は与えられた DB 接続で全コンポーネントを組み立てます。
// 台帳ファイルを別プロセスが使用中の場合は ledger.ErrLocked を返します。
func Assemble(ctx context.Context, cfg *config.Config, db Database, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location()

	repo := pgrepo.NewAttendanceRepository(db, loc)
	tx := pgdb.NewTransactionManager(db, pgdb.WithStatementTimeout(reportStatementTimeout))
	attendanceSvc := attendance.NewService(repo, tx, loc)

	notificationStore, err := ledger.OpenFileStore(cfg.Ledger.NotificationsPath())
	if err != nil {
		return nil, err
	}
	replyStore, err := ledger.OpenFileStore(cfg.Ledger.RepliesPath())
	if err != nil {
		_ = notificationStore.Close()
		return nil, err
	}
	notifications := ledger.OpenNotifications(notificationStore, logger)
	replies := ledger.OpenReplies(replyStore, logger)
	defer func() {
		if err != nil {
			_ = errors.Join(notifications.Close(), replies.Close())
		}
	}()
	greetings := greeting.NewTracker(pgrepo.NewGreetingRepository(db), loc, logger)

	library := documents.NewLibrary(cfg.Assistant.DocumentsDir, logger)
	if err := library.Load(); err != nil {
		return nil, err
	}

	answerer, err := NewAnswerer(ctx, cfg.Assistant, library, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := whatsapp.NewClient(whatsapp.Options{
		GatewayURL:     cfg.WhatsApp.GatewayURL,
		Token:          cfg.WhatsApp.Token,
		SendTimeout:    cfg.WhatsApp.SendTimeout,
		ReconnectDelay: cfg.WhatsApp.ReconnectDelay,
		Location:       loc,
	}, logger)
	if err != nil {
		return nil, err
	}

	poller, err := notify.NewPoller(attendanceSvc, notifications, gateway, notify.Options{
		Interval:    cfg.Poller.Interval,
		Lookback:    cfg.Poller.Lookback,
		Concurrency: cfg.Poller.Concurrency,
		SendTimeout: cfg.WhatsApp.SendTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	router := chat.NewRouter(chat.Deps{
		Directory: attendanceSvc,
		Greetings: greetings,
		Replies:   replies,
		Answerer:  answerer,
		Commands: chat.NewRegistry(
			chat.AttendanceReportCommand{Reports: attendanceSvc, LateAfter: cfg.Poller.LateAfter, Logger: logger},
			chat.LeaveReportCommand{Reports: attendanceSvc, Logger: logger},
		),
		Replier:  gateway,
		Location: loc,
		Logger:   logger,
	})

	reset, err := daily.NewCoordinator(logger,
		daily.Target{Name: "notifications", Resetter: notifications},
		daily.Target{Name: "replies", Resetter: replies},
		daily.Target{Name: "greetings", Resetter: greetings},
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:        cfg,
		Attendance:    attendanceSvc,
		Notifications: notifications,
		Replies:       replies,
		Greetings:     greetings,
		Documents:     library,
		Answerer:      answerer,
		Gateway:       gateway,
		Poller:        poller,
		Router:        router,
		Reset:         reset,
		Scheduler:     schedule.New(loc, logger),
		Health:        server.New(cfg.Server.ListenAddr, logger),
		clock:         realClock{},
		logger:        logger.With(slog.String("component", "app")),
	}

	if err := a.registerJobs(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewAnswerer は設定に応じた回答サービスを生成します。API キーが無い場合は未設定の文言を返すサービスになります。
func NewAnswerer(ctx context.Context, cfg config.AssistantConfig, corpus answer.Corpus, logger *slog.Logger) (*answer.Service, error) {
	var model answer.Model
	if cfg.Enabled() {
		m, err := gemini.New(ctx, gemini.Options{APIKey: cfg.APIKey, Model: cfg.Model, Endpoint: cfg.Endpoint})
		if err != nil {
			return nil, err
		}
		model = m
	}
	return answer.NewService(model, corpus, answer.Options{
		Organization: cfg.Organization,
		Timeout:      cfg.Timeout,
	}, logger), nil
}

func (a *App) registerJobs() error {
	jobs := []struct {
		name string
		spec string
		run  schedule.Handler
	}{
		{JobPoll, a.Config.Schedule.Poll, func(ctx context.Context) { a.Poller.Poll(ctx, a.clock.Now()) }},
		{JobMorning, a.Config.Schedule.Morning, func(ctx context.Context) { a.Poller.RemindMorning(ctx, a.clock.Now()) }},
		{JobAfternoon, a.Config.Schedule.Afternoon, func(ctx context.Context) { a.Poller.RemindAfternoon(ctx, a.clock.Now()) }},
		{JobReset, a.Config.Schedule.Reset, func(ctx context.Context) {
			if err := a.Reset.Reset(ctx); err != nil {
				a.logger.Error("daily reset incomplete", slog.Any("error", err))
			}
		}},
	}
	for _, j := range jobs {
		if err := a.Scheduler.Register(j.name, j.spec, j.run); err != nil {
			return err
		}
	}
	return nil
}

// Run はスケジューラ、文書監視、ゲートウェイ購読、ヘルスチェックを起動し、ctx が終了するまで待ちます。
func (a *App) Run(ctx context.Context) error {
	a.Scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Documents.Watch(gctx); err != nil {
			a.logger.Error("document watcher stopped", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		return a.Gateway.Listen(gctx, a.Router, a.onGatewayState)
	})
	g.Go(func() error {
		return a.Health.Run(gctx)
	})

	err := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if stopErr := a.Scheduler.Stop(stopCtx); stopErr != nil {
		err = errors.Join(err, fmt.Errorf("stop scheduler: %w", stopErr))
	}
	return err
}

func (a *App) onGatewayState(s whatsapp.State) {
	switch s {
	case whatsapp.StateReady:
		a.Health.SetConnected(true)
	case whatsapp.StateDisconnected, whatsapp.StateQR:
		a.Health.SetConnected(false)
	}
}

// Close は台帳を閉じ、DB 接続を解放します。
func (a *App) Close() error {
	err := errors.Join(a.Notifications.Close(), a.Replies.Close())
	if a.closer != nil {
		a.closer()
	}
	return err
}
