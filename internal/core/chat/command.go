package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
)

const (
	TokenMonthlyAttendance = "/infoabsensi_bulanini"
	TokenMonthlyLeave      = "/infosakit_cutibulanini"
)

// Command は登録済み社員が本文として送るコマンドです。
type Command interface {
	Token() string
	Description() string
	// Run は社員本人のデータのみを参照して返信文を返します。
	Run(ctx context.Context, emp attendance.Employee, now time.Time) string
}

// Registry はトークンからコマンドを引く表です。登録順がメニューの表示順になります。
type Registry struct {
	order   []Command
	byToken map[string]Command
}

// NewRegistry は Registry を生成します。同じトークンは後から登録したものが優先されます。
func NewRegistry(commands ...Command) *Registry {
	r := &Registry{byToken: make(map[string]Command, len(commands))}
	for _, c := range commands {
		r.Register(c)
	}
	return r
}

// Register はコマンドを追加します。
func (r *Registry) Register(c Command) {
	token := strings.TrimSpace(c.Token())
	if _, exists := r.byToken[token]; !exists {
		r.order = append(r.order, c)
	} else {
		for i, existing := range r.order {
			if strings.TrimSpace(existing.Token()) == token {
				r.order[i] = c
			}
		}
	}
	r.byToken[token] = c
}

// Lookup は本文と完全一致するコマンドを返します。
func (r *Registry) Lookup(body string) (Command, bool) {
	c, ok := r.byToken[strings.TrimSpace(body)]
	return c, ok
}

// Menu は挨拶に添えるコマンド一覧を返します。
func (r *Registry) Menu() string {
	lines := make([]string, 0, len(r.order))
	for _, c := range r.order {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Description(), c.Token()))
	}
	return strings.Join(lines, "\n")
}

// Reports は月次照会の外部協調者です。
type Reports interface {
	MonthlyRecords(ctx context.Context, employeeID string, now time.Time) ([]attendance.Record, error)
	MonthlyLeaves(ctx context.Context, employeeID string, now time.Time) ([]attendance.Leave, error)
}

// AttendanceReportCommand は当月の勤怠一覧を返します。
type AttendanceReportCommand struct {
	Reports   Reports
	LateAfter string
	Logger    *slog.Logger
}

func (AttendanceReportCommand) Token() string       { return TokenMonthlyAttendance }
func (AttendanceReportCommand) Description() string { return "Absensi bulan ini" }

func (c AttendanceReportCommand) Run(ctx context.Context, emp attendance.Employee, now time.Time) string {
	records, err := c.Reports.MonthlyRecords(ctx, emp.ID, now)
	if err != nil {
		loggerOrDefault(c.Logger).Error("monthly attendance query failed",
			slog.String("employee_id", emp.ID), slog.Any("error", err))
		return ReportFailedText
	}
	return FormatAttendanceReport(emp, now, records, c.LateAfter)
}

// LeaveReportCommand は当月の休暇・病欠申請を返します。
type LeaveReportCommand struct {
	Reports Reports
	Logger  *slog.Logger
}

func (LeaveReportCommand) Token() string       { return TokenMonthlyLeave }
func (LeaveReportCommand) Description() string { return "Cuti/Sakit bulan ini" }

func (c LeaveReportCommand) Run(ctx context.Context, emp attendance.Employee, now time.Time) string {
	leaves, err := c.Reports.MonthlyLeaves(ctx, emp.ID, now)
	if err != nil {
		loggerOrDefault(c.Logger).Error("monthly leave query failed",
			slog.String("employee_id", emp.ID), slog.Any("error", err))
		return ReportFailedText
	}
	return FormatLeaveReport(emp, now, leaves)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
