package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/notify"
)

type summaryView struct {
	Category string `json:"category"`
	Found    int    `json:"found"`
	Sent     int    `json:"sent"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

func newSummaryView(s notify.Summary) summaryView {
	v := summaryView{
		Category: string(s.Category),
		Found:    s.Found,
		Sent:     s.Sent,
		Skipped:  s.Skipped,
		Failed:   s.Failed,
	}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

func (v summaryView) String() string {
	line := fmt.Sprintf("%-18s found=%d sent=%d skipped=%d failed=%d", v.Category, v.Found, v.Sent, v.Skipped, v.Failed)
	if v.Error != "" {
		line += " error=" + v.Error
	}
	return line
}

// write は --format に従って JSON では value を、テキストでは text を出力します。
func write(cmd *cobra.Command, opts *RootOptions, value any, text string) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
