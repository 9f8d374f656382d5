package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/greeting"
	pgdb "github.com/YeQiu29/absensi-wa-bot/internal/platform/db/postgres"
)

// GreetingRepository は last_greeting テーブルで挨拶済み日付を管理します。
type GreetingRepository struct {
	pool pgdb.Queryer
}

// NewGreetingRepository は GreetingRepository を生成します。
func NewGreetingRepository(pool pgdb.Queryer) *GreetingRepository {
	return &GreetingRepository{pool: pool}
}

// MarkGreeted は phone の挨拶日を day に更新します。
// 同じ日付がすでに記録されていた場合は更新せず true を返します。判定と更新は一文で行います。
func (r *GreetingRepository) MarkGreeted(ctx context.Context, phone string, day time.Time) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, greeting.ErrInvalidKey
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO last_greeting (phone, last_date)
        VALUES ($1, $2::date)
        ON CONFLICT (phone) DO UPDATE
           SET last_date = EXCLUDED.last_date
         WHERE last_greeting.last_date IS DISTINCT FROM EXCLUDED.last_date
        RETURNING phone
    `, phone, day.Format(attendance.DateLayout))

	var updated string
	if err := row.Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("postgres: mark greeted: %w", translateAttendancePgError(err))
	}
	return false, nil
}

// LastGreeted は phone の最終挨拶日を返します。記録が無い場合は ok=false です。
func (r *GreetingRepository) LastGreeted(ctx context.Context, phone string) (day string, ok bool, err error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT to_char(last_date, 'YYYY-MM-DD') FROM last_greeting WHERE phone = $1`, phone)
	if err := row.Scan(&day); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, translateAttendancePgError(err)
	}
	return day, true, nil
}
