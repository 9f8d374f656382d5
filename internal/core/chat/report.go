package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
)

const (
	dayMonthLayout = "02/01"
	placeholder    = "-"
)

// FormatAttendanceReport は当月の勤怠一覧を組み立てます。lateAfter ("HH:MM") より後の出勤を遅刻として数えます。
func FormatAttendanceReport(emp attendance.Employee, now time.Time, records []attendance.Record, lateAfter string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Absensi %s Bulan Ini (%d/%d):*\n\n", emp.DisplayName(), int(now.Month()), now.Year())

	if len(records) == 0 {
		b.WriteString("Tidak ada data absensi untuk bulan ini.")
		return b.String()
	}

	present, late := 0, 0
	for _, r := range records {
		in := orPlaceholder(r.CheckIn)
		out := orPlaceholder(r.CheckOut)
		if r.CheckIn != "" {
			present++
			if lateAfter != "" && r.CheckIn > lateAfter {
				late++
			}
		}
		fmt.Fprintf(&b, "Tanggal: %s, Masuk: %s, Pulang: %s\n", r.Date.Format(dayMonthLayout), in, out)
	}

	fmt.Fprintf(&b, "\nTotal Kehadiran: %d hari\nTotal Terlambat: %d kali", present, late)
	return b.String()
}

// FormatLeaveReport は当月の休暇・病欠申請の一覧を組み立てます。
func FormatLeaveReport(emp attendance.Employee, now time.Time, leaves []attendance.Leave) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Informasi Cuti/Sakit %s Bulan Ini (%d/%d):*\n\n", emp.DisplayName(), int(now.Month()), now.Year())

	if len(leaves) == 0 {
		b.WriteString("Tidak ada pengajuan cuti/sakit untuk bulan ini.")
		return b.String()
	}

	lines := make([]string, 0, len(leaves))
	for _, l := range leaves {
		lines = append(lines, fmt.Sprintf("Tanggal: %s, Jenis: %s, Keterangan: %s, Status: %s",
			l.Date.Format(dayMonthLayout), l.Type.Label(), orPlaceholder(l.Note), l.Approval.Label()))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// FormatGreeting は当日最初のメッセージへの挨拶とコマンド一覧を組み立てます。
func FormatGreeting(emp attendance.Employee, menu string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Halo %s! 👋\n\nAda yang bisa saya bantu hari ini?", emp.DisplayName())
	if menu != "" {
		b.WriteString("\n\nAnda bisa menanyakan:\n")
		b.WriteString(menu)
	}
	return b.String()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return strings.TrimSpace(s)
}
