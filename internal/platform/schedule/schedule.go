package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrDuplicateJob は同名のジョブを二度登録した場合に返されます。
	ErrDuplicateJob = errors.New("schedule: job already registered")
	// ErrUnknownJob は未登録のジョブ名を指定した場合に返されます。
	ErrUnknownJob = errors.New("schedule: unknown job")
)

// Handler はトリガー時に実行される処理です。
type Handler func(ctx context.Context)

type job struct {
	name    string
	spec    string
	id      cron.EntryID
	handler Handler
}

// Scheduler は名前付きの cron ジョブを指定タイムゾーンで実行します。
// 同じジョブの実行が重なった場合、後の起動はスキップされます。
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]*job
	loc    *time.Location
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New は Scheduler を生成します。
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]*job),
		loc:    loc,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Register は 5 フィールドの cron 式 spec で handler を登録します。
func (s *Scheduler) Register(name, spec string, handler Handler) error {
	name = strings.TrimSpace(name)
	if name == "" || handler == nil {
		return fmt.Errorf("schedule: invalid job %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{name: name, spec: spec, handler: handler}
	id, err := s.cron.AddFunc(spec, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("schedule: parse %s %q: %w", name, spec, err)
	}
	j.id = id
	s.jobs[name] = j
	return nil
}

// Trigger は登録済みジョブを即時に同期実行します。
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.run(j)
	return nil
}

// Next は name の次回実行予定時刻を返します。Start 前でも計算できます。
func (s *Scheduler) Next(name string, after time.Time) (time.Time, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	sched, err := cron.ParseStandard(j.spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after.In(s.loc)), nil
}

// Jobs は登録済みジョブ名を名前順で返します。
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start はバックグラウンドでスケジューラを起動します。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.Jobs())), slog.String("timezone", s.loc.String()))
}

// Stop は新規起動を止め、実行中のジョブの完了を ctx の期限まで待ちます。
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(j *job) {
	start := time.Now()
	s.logger.Debug("job started", slog.String("job", j.name))
	j.handler(s.ctx)
	s.logger.Debug("job finished", slog.String("job", j.name), slog.Duration("elapsed", time.Since(start)))
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
