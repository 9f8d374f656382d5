package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRepo struct {
	employees    map[string]*Employee
	lastVariants []string
	lastWindow   WindowFilter
	lastMonth    MonthFilter
	lastDate     time.Time
	records      map[string][]Record
	leaves       map[string][]Leave
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		employees: make(map[string]*Employee),
		records:   make(map[string][]Record),
		leaves:    make(map[string][]Leave),
	}
}

func (r *fakeRepo) FindByPhone(_ context.Context, variants []string) (*Employee, error) {
	r.lastVariants = variants
	for _, v := range variants {
		if emp, ok := r.employees[v]; ok {
			clone := *emp
			return &clone, nil
		}
	}
	return nil, ErrEmployeeNotFound
}

func (r *fakeRepo) ListCheckIns(_ context.Context, filter WindowFilter) ([]Event, error) {
	r.lastWindow = filter
	return nil, nil
}

func (r *fakeRepo) ListCheckOuts(_ context.Context, filter WindowFilter) ([]Event, error) {
	r.lastWindow = filter
	return nil, nil
}

func (r *fakeRepo) ListMissingCheckIn(_ context.Context, date time.Time) ([]Event, error) {
	r.lastDate = date
	return nil, nil
}

func (r *fakeRepo) ListMissingCheckOut(_ context.Context, date time.Time) ([]Event, error) {
	r.lastDate = date
	return nil, nil
}

func (r *fakeRepo) ListMonthlyRecords(_ context.Context, filter MonthFilter) ([]Record, error) {
	r.lastMonth = filter
	return r.records[filter.EmployeeID], nil
}

func (r *fakeRepo) ListMonthlyLeaves(_ context.Context, filter MonthFilter) ([]Leave, error) {
	r.lastMonth = filter
	return r.leaves[filter.EmployeeID], nil
}

type countingTx struct {
	calls int
}

func (c *countingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	c.calls++
	return fn(ctx)
}

func jakarta(t *testing.T) *time.Location {
	t.Helper()
	return time.FixedZone("WIB", 7*60*60)
}

func TestService_FindEmployeeByPhone_UsesAllVariants(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.employees["081234567890"] = &Employee{ID: "1001", Name: "Budi", Phone: "0812-3456-7890"}
	svc := NewService(repo, nil, jakarta(t))

	emp, err := svc.FindEmployeeByPhone(context.Background(), "6281234567890@c.us")
	if err != nil {
		t.Fatalf("FindEmployeeByPhone returned error: %v", err)
	}
	if emp.ID != "1001" {
		t.Fatalf("expected employee 1001, got %s", emp.ID)
	}

	want := []string{"6281234567890", "081234567890", "+6281234567890"}
	if len(repo.lastVariants) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), repo.lastVariants)
	}
	for i := range want {
		if repo.lastVariants[i] != want[i] {
			t.Fatalf("variant %d: want %s got %s", i, want[i], repo.lastVariants[i])
		}
	}
}

func TestService_FindEmployeeByPhone_Invalid(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil, jakarta(t))

	_, err := svc.FindEmployeeByPhone(context.Background(), "@c.us")
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestService_CheckIns_WindowInLocalTime(t *testing.T) {
	t.Parallel()

	loc := jakarta(t)
	repo := newFakeRepo()
	svc := NewService(repo, nil, loc)

	// 2026-10-16 23:05 UTC は ジャカルタの 2026-10-17 06:05
	now := time.Date(2026, 10, 16, 23, 5, 0, 0, time.UTC)
	if _, err := svc.CheckIns(context.Background(), now, 10*time.Minute); err != nil {
		t.Fatalf("CheckIns returned error: %v", err)
	}

	if got := repo.lastWindow.Date.Format(DateLayout); got != "2026-10-17" {
		t.Fatalf("expected local date 2026-10-17, got %s", got)
	}
	if got := repo.lastWindow.Since.Format("15:04"); got != "05:55" {
		t.Fatalf("expected since 05:55, got %s", got)
	}
}

func TestService_CheckOuts_InvalidWindow(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil, jakarta(t))

	if _, err := svc.CheckOuts(context.Background(), time.Now(), 0); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestService_MonthlyRecords_ScopedToEmployeeAndMonth(t *testing.T) {
	t.Parallel()

	loc := jakarta(t)
	repo := newFakeRepo()
	repo.records["1001"] = []Record{{Date: time.Date(2026, 10, 1, 0, 0, 0, 0, loc), CheckIn: "07:01"}}
	repo.records["2002"] = []Record{{Date: time.Date(2026, 10, 2, 0, 0, 0, 0, loc), CheckIn: "06:55"}}
	tx := &countingTx{}
	svc := NewService(repo, tx, loc)

	now := time.Date(2026, 10, 17, 9, 0, 0, 0, loc)
	records, err := svc.MonthlyRecords(context.Background(), " 1001 ", now)
	if err != nil {
		t.Fatalf("MonthlyRecords returned error: %v", err)
	}
	if len(records) != 1 || records[0].CheckIn != "07:01" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if repo.lastMonth.EmployeeID != "1001" {
		t.Fatalf("expected trimmed employee id, got %q", repo.lastMonth.EmployeeID)
	}
	if !repo.lastMonth.From.Equal(time.Date(2026, 10, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected from: %v", repo.lastMonth.From)
	}
	if !repo.lastMonth.To.Equal(time.Date(2026, 11, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected to: %v", repo.lastMonth.To)
	}
	if tx.calls != 1 {
		t.Fatalf("expected read-only transaction, got %d calls", tx.calls)
	}
}

func TestService_MonthlyLeaves_InvalidEmployee(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeRepo(), nil, jakarta(t))

	if _, err := svc.MonthlyLeaves(context.Background(), "  ", time.Now()); !errors.Is(err, ErrInvalidEmployeeID) {
		t.Fatalf("expected ErrInvalidEmployeeID, got %v", err)
	}
}

func TestLabels(t *testing.T) {
	t.Parallel()

	cases := map[LeaveType]string{"i": "Izin", "S": "Sakit", "c": "Cuti", "x": "x", "": "-"}
	for code, want := range cases {
		if got := code.Label(); got != want {
			t.Errorf("LeaveType(%q).Label() = %q, want %q", code, got, want)
		}
	}

	approvals := map[Approval]string{0: "Pending", 1: "Disetujui", 2: "Ditolak", 9: "Tidak Diketahui"}
	for code, want := range approvals {
		if got := code.Label(); got != want {
			t.Errorf("Approval(%d).Label() = %q, want %q", code, got, want)
		}
	}

	if got := (Employee{}).DisplayName(); got != "Karyawan" {
		t.Errorf("expected fallback display name, got %q", got)
	}
}
