package attendance

import (
	"strings"
	"time"
)

// DateLayout は NotificationKey などで使う暦日の表記です。
const DateLayout = "2006-01-02"

const unknownName = "Karyawan"

// Employee は電話番号から引き当てた社員の識別情報です。
type Employee struct {
	ID    string
	Name  string
	Phone string
}

// DisplayName は表示名を返します。未設定の場合は既定の呼称を返します。
func (e Employee) DisplayName() string {
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	return unknownName
}

// Category は通知の種別です。
type Category string

const (
	CategoryCheckIn          Category = "checkIn"
	CategoryCheckOut         Category = "checkOut"
	CategoryMorningMissing   Category = "morningReminder"
	CategoryAfternoonMissing Category = "afternoonReminder"
)

// Categories は台帳が管理するすべての通知種別です。
var Categories = []Category{
	CategoryCheckIn,
	CategoryCheckOut,
	CategoryMorningMissing,
	CategoryAfternoonMissing,
}

// Event はポーリング結果から生成される一過性の勤怠イベントです。
type Event struct {
	Employee  Employee
	Category  Category
	Date      time.Time
	Timestamp time.Time
	// HasCheckIn は午後リマインダーで出勤打刻の有無を区別するために使います。
	HasCheckIn bool
}

// Key はイベントの重複排除キーを返します。
func (e Event) Key() NotificationKey {
	return NewNotificationKey(e.Date, e.Employee.ID, e.Category)
}

// NotificationKey は (暦日, 社員, 種別) の複合キーです。
type NotificationKey struct {
	Date       string
	EmployeeID string
	Category   Category
}

// NewNotificationKey は暦日を正規化して NotificationKey を生成します。
func NewNotificationKey(date time.Time, employeeID string, category Category) NotificationKey {
	return NotificationKey{
		Date:       date.Format(DateLayout),
		EmployeeID: strings.TrimSpace(employeeID),
		Category:   category,
	}
}

// String は台帳に保存する文字列表現を返します。
func (k NotificationKey) String() string {
	return k.Date + "_" + k.EmployeeID + "_" + string(k.Category)
}

// Record は一日分の勤怠記録です。時刻は "HH:MM" 形式で、未打刻は空文字です。
type Record struct {
	Date     time.Time
	CheckIn  string
	CheckOut string
}

// LeaveType は休暇申請の種別コードです。
type LeaveType string

const (
	LeaveTypePermission LeaveType = "i"
	LeaveTypeSick       LeaveType = "s"
	LeaveTypeCuti       LeaveType = "c"
)

// Label は種別コードの表示名を返します。
func (t LeaveType) Label() string {
	switch LeaveType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case LeaveTypePermission:
		return "Izin"
	case LeaveTypeSick:
		return "Sakit"
	case LeaveTypeCuti:
		return "Cuti"
	}
	if raw := strings.TrimSpace(string(t)); raw != "" {
		return raw
	}
	return "-"
}

// Approval は休暇申請の承認状態コードです。
type Approval int

const (
	ApprovalPending  Approval = 0
	ApprovalApproved Approval = 1
	ApprovalRejected Approval = 2
)

// Label は承認状態の表示名を返します。
func (a Approval) Label() string {
	switch a {
	case ApprovalPending:
		return "Pending"
	case ApprovalApproved:
		return "Disetujui"
	case ApprovalRejected:
		return "Ditolak"
	default:
		return "Tidak Diketahui"
	}
}

// Leave は休暇・病欠申請の一件です。
type Leave struct {
	Date     time.Time
	Type     LeaveType
	Note     string
	Approval Approval
}

// MonthRange は指定時刻が属する月の初日と翌月初日を返します。
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// Day は時刻を同じロケーションの暦日 0 時に切り詰めます。
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
