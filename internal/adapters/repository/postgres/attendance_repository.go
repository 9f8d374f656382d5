package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
	pgdb "github.com/YeQiu29/absensi-wa-bot/internal/platform/db/postgres"
)

const (
	pgUndefinedTableCode = "42P01"
	pgQueryCanceledCode  = "57014"

	timestampLayout = "2006-01-02 15:04:05"

	// normalizedPhoneExpr は保存済み電話番号から "+", 空白, "-" を除いた値です。
	normalizedPhoneExpr = `REPLACE(REPLACE(REPLACE(k.no_hp, '+', ''), ' ', ''), '-', '')`
	hasPhoneCond        = `k.no_hp IS NOT NULL AND k.no_hp <> ''`
)

// ErrSchemaMissing は勤怠テーブルが存在しない場合に返されます。
var ErrSchemaMissing = errors.New("postgres: attendance schema is missing")

// AttendanceRepository は PostgreSQL 上の karyawan / presensi / pengajuan_izin を参照する実装です。
type AttendanceRepository struct {
	pool pgdb.Queryer
	loc  *time.Location
}

// NewAttendanceRepository は AttendanceRepository を生成します。loc は DATE / TIME 列を解釈するタイムゾーンです。
func NewAttendanceRepository(pool pgdb.Queryer, loc *time.Location) *AttendanceRepository {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceRepository{pool: pool, loc: loc}
}

// FindByPhone は正規化済み電話番号のいずれかに一致する社員を一件返します。
func (r *AttendanceRepository) FindByPhone(ctx context.Context, variants []string) (*attendance.Employee, error) {
	if len(variants) == 0 {
		return nil, attendance.ErrEmployeeNotFound
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT k.nik, k.nama_lengkap, k.no_hp
          FROM karyawan k
         WHERE `+normalizedPhoneExpr+` = ANY($1)
         ORDER BY k.nik
         LIMIT 1
    `, variants)

	var emp attendance.Employee
	if err := row.Scan(&emp.ID, &emp.Name, &emp.Phone); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return &emp, nil
}

// ListCheckIns は filter.Since 以降に出勤打刻し、まだ退勤していない社員を返します。
func (r *AttendanceRepository) ListCheckIns(ctx context.Context, filter attendance.WindowFilter) ([]attendance.Event, error) {
	return r.listStamps(ctx, attendance.CategoryCheckIn, `
        SELECT k.nik, k.nama_lengkap, k.no_hp, to_char(p.jam_in, 'HH24:MI:SS')
          FROM presensi p
          JOIN karyawan k ON k.nik = p.nik
         WHERE p.tgl_presensi = $1::date
           AND p.jam_in IS NOT NULL
           AND p.jam_out IS NULL
           AND `+hasPhoneCond+`
           AND (p.tgl_presensi + p.jam_in) >= $2::timestamp
         ORDER BY p.jam_in, k.nik
    `, filter)
}

// ListCheckOuts は filter.Since 以降に退勤打刻した社員を返します。
func (r *AttendanceRepository) ListCheckOuts(ctx context.Context, filter attendance.WindowFilter) ([]attendance.Event, error) {
	return r.listStamps(ctx, attendance.CategoryCheckOut, `
        SELECT k.nik, k.nama_lengkap, k.no_hp, to_char(p.jam_out, 'HH24:MI:SS')
          FROM presensi p
          JOIN karyawan k ON k.nik = p.nik
         WHERE p.tgl_presensi = $1::date
           AND p.jam_out IS NOT NULL
           AND `+hasPhoneCond+`
           AND (p.tgl_presensi + p.jam_out) >= $2::timestamp
         ORDER BY p.jam_out, k.nik
    `, filter)
}

// ListMissingCheckIn は date にまだ出勤打刻のない社員を返します。
func (r *AttendanceRepository) ListMissingCheckIn(ctx context.Context, date time.Time) ([]attendance.Event, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT k.nik, k.nama_lengkap, k.no_hp, FALSE
          FROM karyawan k
          LEFT JOIN presensi p ON p.nik = k.nik AND p.tgl_presensi = $1::date
         WHERE p.jam_in IS NULL
           AND `+hasPhoneCond+`
         ORDER BY k.nik
    `, date.Format(attendance.DateLayout))
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	return r.collectMissing(rows, attendance.CategoryMorningMissing, date)
}

// ListMissingCheckOut は date にまだ退勤打刻のない社員を返します。出勤打刻の有無も併せて返します。
func (r *AttendanceRepository) ListMissingCheckOut(ctx context.Context, date time.Time) ([]attendance.Event, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT k.nik, k.nama_lengkap, k.no_hp, (p.jam_in IS NOT NULL)
          FROM karyawan k
          LEFT JOIN presensi p ON p.nik = k.nik AND p.tgl_presensi = $1::date
         WHERE p.jam_out IS NULL
           AND `+hasPhoneCond+`
         ORDER BY k.nik
    `, date.Format(attendance.DateLayout))
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	return r.collectMissing(rows, attendance.CategoryAfternoonMissing, date)
}

// ListMonthlyRecords は社員本人の期間内の勤怠記録を日付順に返します。
func (r *AttendanceRepository) ListMonthlyRecords(ctx context.Context, filter attendance.MonthFilter) ([]attendance.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT to_char(p.tgl_presensi, 'YYYY-MM-DD'),
               COALESCE(to_char(p.jam_in, 'HH24:MI'), ''),
               COALESCE(to_char(p.jam_out, 'HH24:MI'), '')
          FROM presensi p
         WHERE p.nik = $1
           AND p.tgl_presensi >= $2::date
           AND p.tgl_presensi < $3::date
         ORDER BY p.tgl_presensi ASC
    `, filter.EmployeeID, filter.From.Format(attendance.DateLayout), filter.To.Format(attendance.DateLayout))
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var (
			day      string
			rec      attendance.Record
			parseErr error
		)
		if err := rows.Scan(&day, &rec.CheckIn, &rec.CheckOut); err != nil {
			return nil, translateAttendancePgError(err)
		}
		if rec.Date, parseErr = time.ParseInLocation(attendance.DateLayout, day, r.loc); parseErr != nil {
			return nil, fmt.Errorf("postgres: parse tgl_presensi %q: %w", day, parseErr)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return records, nil
}

// ListMonthlyLeaves は社員本人の期間内の休暇申請を日付順に返します。
func (r *AttendanceRepository) ListMonthlyLeaves(ctx context.Context, filter attendance.MonthFilter) ([]attendance.Leave, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT to_char(i.tgl_izin, 'YYYY-MM-DD'),
               COALESCE(i.status, ''),
               COALESCE(i.keterangan, ''),
               COALESCE(i.status_approved, -1)
          FROM pengajuan_izin i
         WHERE i.nik = $1
           AND i.tgl_izin >= $2::date
           AND i.tgl_izin < $3::date
         ORDER BY i.tgl_izin ASC
    `, filter.EmployeeID, filter.From.Format(attendance.DateLayout), filter.To.Format(attendance.DateLayout))
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	defer rows.Close()

	var leaves []attendance.Leave
	for rows.Next() {
		var (
			day      string
			kind     string
			leave    attendance.Leave
			approval int
			parseErr error
		)
		if err := rows.Scan(&day, &kind, &leave.Note, &approval); err != nil {
			return nil, translateAttendancePgError(err)
		}
		if leave.Date, parseErr = time.ParseInLocation(attendance.DateLayout, day, r.loc); parseErr != nil {
			return nil, fmt.Errorf("postgres: parse tgl_izin %q: %w", day, parseErr)
		}
		leave.Type = attendance.LeaveType(kind)
		leave.Approval = attendance.Approval(approval)
		leaves = append(leaves, leave)
	}
	if err := rows.Err(); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return leaves, nil
}

func (r *AttendanceRepository) listStamps(ctx context.Context, category attendance.Category, query string, filter attendance.WindowFilter) ([]attendance.Event, error) {
	day := attendance.Day(filter.Date.In(r.loc))
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, query, day.Format(attendance.DateLayout), filter.Since.In(r.loc).Format(timestampLayout))
	if err != nil {
		return nil, translateAttendancePgError(err)
	}
	defer rows.Close()

	var events []attendance.Event
	for rows.Next() {
		var (
			emp   attendance.Employee
			stamp string
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Phone, &stamp); err != nil {
			return nil, translateAttendancePgError(err)
		}
		ts, err := r.clockOn(day, stamp)
		if err != nil {
			return nil, err
		}
		events = append(events, attendance.Event{
			Employee:   emp,
			Category:   category,
			Date:       day,
			Timestamp:  ts,
			HasCheckIn: true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return events, nil
}

func (r *AttendanceRepository) collectMissing(rows pgx.Rows, category attendance.Category, date time.Time) ([]attendance.Event, error) {
	defer rows.Close()

	day := attendance.Day(date.In(r.loc))
	var events []attendance.Event
	for rows.Next() {
		var (
			emp        attendance.Employee
			hasCheckIn bool
		)
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Phone, &hasCheckIn); err != nil {
			return nil, translateAttendancePgError(err)
		}
		events = append(events, attendance.Event{
			Employee:   emp,
			Category:   category,
			Date:       day,
			HasCheckIn: hasCheckIn,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, translateAttendancePgError(err)
	}
	return events, nil
}

// clockOn は "HH:MM:SS" を day の時刻として解釈します。
func (r *AttendanceRepository) clockOn(day time.Time, clock string) (time.Time, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("postgres: malformed time %q", clock)
	}
	var hms [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("postgres: malformed time %q: %w", clock, err)
		}
		hms[i] = v
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hms[0], hms[1], hms[2], 0, r.loc), nil
}

func translateAttendancePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUndefinedTableCode:
			return fmt.Errorf("%w: %s", ErrSchemaMissing, pgErr.Message)
		case pgQueryCanceledCode:
			return fmt.Errorf("postgres: query canceled: %w", context.DeadlineExceeded)
		}
	}

	return err
}
