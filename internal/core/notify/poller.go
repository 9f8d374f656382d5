package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/phone"
)

const (
	DefaultInterval    = 2 * time.Minute
	DefaultLookback    = 10 * time.Minute
	DefaultConcurrency = 4
	DefaultSendTimeout = 15 * time.Second
)

// ErrWindowTooShort は遡り幅がポーリング間隔より短い場合に返されます。
var ErrWindowTooShort = errors.New("notify: lookback must be at least the poll interval")

// Source はポーリング対象の勤怠データです。
type Source interface {
	CheckIns(ctx context.Context, now time.Time, lookback time.Duration) ([]attendance.Event, error)
	CheckOuts(ctx context.Context, now time.Time, lookback time.Duration) ([]attendance.Event, error)
	MissingMorning(ctx context.Context, now time.Time) ([]attendance.Event, error)
	MissingAfternoon(ctx context.Context, now time.Time) ([]attendance.Event, error)
}

// Ledger は通知済みキーの台帳です。
type Ledger interface {
	HasFired(key attendance.NotificationKey) bool
	MarkFired(key attendance.NotificationKey) error
}

// Sender はメッセージ送信の外部協調者です。成功応答を得た場合のみ nil を返します。
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Options はポーラーの動作パラメータです。
type Options struct {
	Interval    time.Duration
	Lookback    time.Duration
	Concurrency int
	SendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Lookback <= 0 {
		o.Lookback = DefaultLookback
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	return o
}

// Summary は一回の実行結果です。
type Summary struct {
	Category attendance.Category
	Found    int
	Sent     int
	Skipped  int
	Failed   int
	Err      error
}

// Poller は定期的な勤怠スナップショットから新規イベントを検出し、キーごとに一度だけ通知します。
type Poller struct {
	src    Source
	ledger Ledger
	sender Sender
	opts   Options
	logger *slog.Logger

	// 同一種別の実行が重ならないようにします。
	running sync.Map
}

// NewPoller は Poller を生成します。遡り幅がポーリング間隔未満の場合はエラーです。
func NewPoller(src Source, ledger Ledger, sender Sender, opts Options, logger *slog.Logger) (*Poller, error) {
	opts = opts.withDefaults()
	if opts.Lookback < opts.Interval {
		return nil, fmt.Errorf("lookback %s < interval %s: %w", opts.Lookback, opts.Interval, ErrWindowTooShort)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:    src,
		ledger: ledger,
		sender: sender,
		opts:   opts,
		logger: logger.With(slog.String("component", "poller")),
	}, nil
}

// Poll は出勤・退勤の新規打刻をこの順で検出して通知します。
func (p *Poller) Poll(ctx context.Context, now time.Time) []Summary {
	return []Summary{
		p.run(ctx, attendance.CategoryCheckIn, func(ctx context.Context) ([]attendance.Event, error) {
			return p.src.CheckIns(ctx, now, p.opts.Lookback)
		}),
		p.run(ctx, attendance.CategoryCheckOut, func(ctx context.Context) ([]attendance.Event, error) {
			return p.src.CheckOuts(ctx, now, p.opts.Lookback)
		}),
	}
}

// RemindMorning は出勤打刻のない社員に朝のリマインダーを送ります。
func (p *Poller) RemindMorning(ctx context.Context, now time.Time) Summary {
	return p.run(ctx, attendance.CategoryMorningMissing, func(ctx context.Context) ([]attendance.Event, error) {
		return p.src.MissingMorning(ctx, now)
	})
}

// RemindAfternoon は退勤打刻のない社員に夕方のリマインダーを送ります。
func (p *Poller) RemindAfternoon(ctx context.Context, now time.Time) Summary {
	return p.run(ctx, attendance.CategoryAfternoonMissing, func(ctx context.Context) ([]attendance.Event, error) {
		return p.src.MissingAfternoon(ctx, now)
	})
}

func (p *Poller) run(ctx context.Context, category attendance.Category, query func(context.Context) ([]attendance.Event, error)) Summary {
	summary := Summary{Category: category}
	logger := p.logger.With(slog.String("category", string(category)))

	if _, busy := p.running.LoadOrStore(category, struct{}{}); busy {
		logger.Warn("previous run still in progress, skipping")
		return summary
	}
	defer p.running.Delete(category)

	events, err := query(ctx)
	if err != nil {
		logger.Error("query failed", slog.Any("error", err))
		summary.Err = err
		return summary
	}
	summary.Found = len(events)

	pending := p.pending(events, &summary)

	var (
		sent   atomic.Int64
		failed atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, e := range pending {
		g.Go(func() error {
			if p.dispatch(gctx, logger, e) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Sent = int(sent.Load())
	summary.Failed = int(failed.Load())
	logger.Info("run finished",
		slog.Int("found", summary.Found),
		slog.Int("sent", summary.Sent),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)
	return summary
}

// pending は台帳に未記録で送信先が確定できるイベントを、キーの重複を除いて返します。
func (p *Poller) pending(events []attendance.Event, summary *Summary) []attendance.Event {
	seen := make(map[attendance.NotificationKey]struct{}, len(events))
	out := make([]attendance.Event, 0, len(events))
	for _, e := range events {
		key := e.Key()
		if key.EmployeeID == "" {
			summary.Skipped++
			continue
		}
		if _, dup := seen[key]; dup {
			summary.Skipped++
			continue
		}
		seen[key] = struct{}{}
		if p.ledger.HasFired(key) {
			summary.Skipped++
			continue
		}
		out = append(out, e)
	}
	return out
}

func (p *Poller) dispatch(ctx context.Context, logger *slog.Logger, e attendance.Event) bool {
	key := e.Key()
	logger = logger.With(slog.String("key", key.String()))

	to := phone.Normalize(e.Employee.Phone)
	if to.Ambiguous {
		logger.Warn("unusable phone number, skipping", slog.String("phone", e.Employee.Phone))
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.opts.SendTimeout)
	defer cancel()

	start := time.Now()
	if err := p.sender.Send(sendCtx, to.JID(), FormatMessage(e)); err != nil {
		logger.Error("send failed, will retry next cycle", slog.Any("error", err))
		return false
	}

	if err := p.ledger.MarkFired(key); err != nil {
		logger.Error("ledger persist failed", slog.Any("error", err))
	}
	logger.Info("notification sent", slog.String("to", to.JID()), slog.Duration("elapsed", time.Since(start)))
	return true
}
