package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/phone"
)

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// UseCase は勤怠照会ユースケースの公開インターフェースです。
type UseCase interface {
	FindEmployeeByPhone(ctx context.Context, raw string) (*Employee, error)
	CheckIns(ctx context.Context, now time.Time, lookback time.Duration) ([]Event, error)
	CheckOuts(ctx context.Context, now time.Time, lookback time.Duration) ([]Event, error)
	MissingMorning(ctx context.Context, now time.Time) ([]Event, error)
	MissingAfternoon(ctx context.Context, now time.Time) ([]Event, error)
	MonthlyRecords(ctx context.Context, employeeID string, now time.Time) ([]Record, error)
	MonthlyLeaves(ctx context.Context, employeeID string, now time.Time) ([]Leave, error)
}

// Service は勤怠照会に関するユースケースをまとめます。
// 社員情報は外部で編集されるため呼び出しごとに再取得します。
type Service struct {
	repo Repository
	tx   TransactionManager
	loc  *time.Location
}

// NewService は Service を生成します。loc はすべての暦日計算に使うタイムゾーンです。
func NewService(repo Repository, tx TransactionManager, loc *time.Location) *Service {
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{repo: repo, tx: tx, loc: loc}
}

// FindEmployeeByPhone は送信者の電話番号から社員を検索します。
func (s *Service) FindEmployeeByPhone(ctx context.Context, raw string) (*Employee, error) {
	key := phone.Normalize(raw)
	if key.IsZero() {
		return nil, fmt.Errorf("phone %q: %w", raw, ErrInvalidPhone)
	}
	return s.repo.FindByPhone(ctx, key.Variants())
}

// CheckIns は lookback 以内に出勤打刻した社員を返します。
func (s *Service) CheckIns(ctx context.Context, now time.Time, lookback time.Duration) ([]Event, error) {
	filter, err := s.window(now, lookback)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCheckIns(ctx, filter)
}

// CheckOuts は lookback 以内に退勤打刻した社員を返します。
func (s *Service) CheckOuts(ctx context.Context, now time.Time, lookback time.Duration) ([]Event, error) {
	filter, err := s.window(now, lookback)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCheckOuts(ctx, filter)
}

// MissingMorning は当日まだ出勤打刻のない社員を返します。
func (s *Service) MissingMorning(ctx context.Context, now time.Time) ([]Event, error) {
	return s.repo.ListMissingCheckIn(ctx, Day(now.In(s.loc)))
}

// MissingAfternoon は当日まだ退勤打刻のない社員を返します。
func (s *Service) MissingAfternoon(ctx context.Context, now time.Time) ([]Event, error) {
	return s.repo.ListMissingCheckOut(ctx, Day(now.In(s.loc)))
}

// MonthlyRecords は社員本人の当月の勤怠記録を返します。
func (s *Service) MonthlyRecords(ctx context.Context, employeeID string, now time.Time) ([]Record, error) {
	filter, err := s.month(employeeID, now)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListMonthlyRecords(txCtx, filter)
		if err != nil {
			return err
		}
		records = found
		return nil
	}); err != nil {
		return nil, err
	}
	return records, nil
}

// MonthlyLeaves は社員本人の当月の休暇申請を返します。
func (s *Service) MonthlyLeaves(ctx context.Context, employeeID string, now time.Time) ([]Leave, error) {
	filter, err := s.month(employeeID, now)
	if err != nil {
		return nil, err
	}

	var leaves []Leave
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.ListMonthlyLeaves(txCtx, filter)
		if err != nil {
			return err
		}
		leaves = found
		return nil
	}); err != nil {
		return nil, err
	}
	return leaves, nil
}

func (s *Service) window(now time.Time, lookback time.Duration) (WindowFilter, error) {
	if lookback <= 0 {
		return WindowFilter{}, ErrInvalidWindow
	}
	local := now.In(s.loc)
	return WindowFilter{Date: Day(local), Since: local.Add(-lookback)}, nil
}

func (s *Service) month(employeeID string, now time.Time) (MonthFilter, error) {
	id := strings.TrimSpace(employeeID)
	if id == "" {
		return MonthFilter{}, ErrInvalidEmployeeID
	}
	from, to := MonthRange(now.In(s.loc))
	return MonthFilter{EmployeeID: id, From: from, To: to}, nil
}
