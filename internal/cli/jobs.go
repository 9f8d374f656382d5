package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/notify"
)

// ErrRunFailed はジョブの一部が失敗した場合に返されます。
var ErrRunFailed = errors.New("run finished with failures")

func newPollCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Detect new check-ins and check-outs and notify once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := openBot(cmd, opts, deps)
			if err != nil {
				return err
			}
			defer bot.Close()

			summaries := bot.Poll(cmd.Context(), deps.Now())
			return writeSummaries(cmd, opts, summaries)
		},
	}
}

func newRemindCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:       "remind <morning|afternoon>",
		Short:     "Send the missing check-in or check-out reminders",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"morning", "afternoon"},
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := openBot(cmd, opts, deps)
			if err != nil {
				return err
			}
			defer bot.Close()

			var s notify.Summary
			switch args[0] {
			case "morning":
				s = bot.RemindMorning(cmd.Context(), deps.Now())
			default:
				s = bot.RemindAfternoon(cmd.Context(), deps.Now())
			}
			return writeSummaries(cmd, opts, []notify.Summary{s})
		},
	}
}

func newResetCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the notification, reply and greeting state for a new day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bot, err := openBot(cmd, opts, deps)
			if err != nil {
				return err
			}
			defer bot.Close()

			if err := bot.ResetDaily(cmd.Context()); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
			return write(cmd, opts, map[string]string{"status": "reset"}, "daily state cleared")
		},
	}
}

func writeSummaries(cmd *cobra.Command, opts *RootOptions, summaries []notify.Summary) error {
	views := make([]summaryView, 0, len(summaries))
	lines := make([]string, 0, len(summaries))
	failed := false
	for _, s := range summaries {
		v := newSummaryView(s)
		views = append(views, v)
		lines = append(lines, v.String())
		if s.Err != nil || s.Failed > 0 {
			failed = true
		}
	}
	if err := write(cmd, opts, views, strings.Join(lines, "\n")); err != nil {
		return err
	}
	if failed {
		return ErrRunFailed
	}
	return nil
}
