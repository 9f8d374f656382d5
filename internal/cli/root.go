package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/answer"
	"github.com/YeQiu29/absensi-wa-bot/internal/core/notify"
)

// ValidFormats は出力形式の候補です。
var ValidFormats = []string{"text", "json"}

// RootOptions は全サブコマンド共通のフラグです。
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string
}

// Bot は運用コマンドから操作するボット本体です。
type Bot interface {
	Poll(ctx context.Context, now time.Time) []notify.Summary
	RemindMorning(ctx context.Context, now time.Time) notify.Summary
	RemindAfternoon(ctx context.Context, now time.Time) notify.Summary
	ResetDaily(ctx context.Context) error
	Close() error
}

// Deps はコマンドが必要とする外部依存の生成関数です。
type Deps struct {
	OpenBot      func(ctx context.Context, configPath string, logger *slog.Logger) (Bot, error)
	OpenAnswerer func(ctx context.Context, configPath string, logger *slog.Logger) (answer.Answerer, error)
	Now          func() time.Time
}

// NewRootCommand は absensictl のルートコマンドを生成します。
func NewRootCommand(deps Deps) *cobra.Command {
	opts := &RootOptions{}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	cmd := &cobra.Command{
		Use:   "absensictl",
		Short: "Operator tool for the attendance WhatsApp bot",
		Long: `absensictl runs the bot's scheduled jobs on demand.

It uses the same configuration, ledgers and gateway as the server, so a
notification sent from here is recorded and will not be sent again by the
scheduler.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newPollCommand(opts, deps))
	cmd.AddCommand(newRemindCommand(opts, deps))
	cmd.AddCommand(newResetCommand(opts, deps))
	cmd.AddCommand(newAskCommand(opts, deps))
	cmd.AddCommand(newNormalizeCommand(opts))

	return cmd
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openBot(cmd *cobra.Command, opts *RootOptions, deps Deps) (Bot, error) {
	if deps.OpenBot == nil {
		return nil, fmt.Errorf("bot is not available")
	}
	return deps.OpenBot(cmd.Context(), opts.ConfigPath, opts.logger(cmd))
}
