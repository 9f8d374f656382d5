package notify

import (
	"fmt"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/attendance"
)

// FormatMessage はイベント種別ごとの通知文を組み立てます。
func FormatMessage(e attendance.Event) string {
	name := e.Employee.DisplayName()
	switch e.Category {
	case attendance.CategoryCheckIn:
		return fmt.Sprintf("Hai %s,\n\nWajah Teridentifikasi, Absensi Berhasil. Selamat Bekerja!", name)
	case attendance.CategoryCheckOut:
		return fmt.Sprintf("Hai %s,\n\nWajah Teridentifikasi, Absensi Pulang Berhasil. Hati-hati di jalan!", name)
	case attendance.CategoryMorningMissing:
		return fmt.Sprintf("Hai %s,\n\nAnda belum melakukan absensi masuk hari ini (%s). Silahkan segera lakukan absensi jika Anda sedang bekerja. Jika Anda sedang tidak bekerja, harap hubungi HRD.\n\nTerima kasih.",
			name, e.Date.Format(attendance.DateLayout))
	case attendance.CategoryAfternoonMissing:
		if e.HasCheckIn {
			return fmt.Sprintf("Selamat sore %s,\n\nJangan lupa absen pulang ya. Dan hati-hati di jalan!", name)
		}
		return fmt.Sprintf("Selamat sore %s,\n\nHari ini (%s) belum ada catatan absensi atas nama Anda. Jika Anda bekerja hari ini, segera lakukan absensi atau hubungi HRD.",
			name, e.Date.Format(attendance.DateLayout))
	default:
		return fmt.Sprintf("Hai %s,\n\nAda pembaruan absensi untuk Anda.", name)
	}
}
