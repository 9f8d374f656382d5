package attendance

import (
	"context"
	"time"
)

// Directory は電話番号から社員を引き当てる外部データの抽象です。
type Directory interface {
	FindByPhone(ctx context.Context, variants []string) (*Employee, error)
}

// Repository は勤怠・休暇データ参照の抽象です。
type Repository interface {
	Directory
	ListCheckIns(ctx context.Context, filter WindowFilter) ([]Event, error)
	ListCheckOuts(ctx context.Context, filter WindowFilter) ([]Event, error)
	ListMissingCheckIn(ctx context.Context, date time.Time) ([]Event, error)
	ListMissingCheckOut(ctx context.Context, date time.Time) ([]Event, error)
	ListMonthlyRecords(ctx context.Context, filter MonthFilter) ([]Record, error)
	ListMonthlyLeaves(ctx context.Context, filter MonthFilter) ([]Leave, error)
}

// WindowFilter は打刻検出の対象日と遡り開始時刻です。
type WindowFilter struct {
	Date  time.Time
	Since time.Time
}

// MonthFilter は月次照会の対象社員と期間 [From, To) です。
type MonthFilter struct {
	EmployeeID string
	From       time.Time
	To         time.Time
}
