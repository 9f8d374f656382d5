package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YeQiu29/absensi-wa-bot/internal/core/phone"
)

func newAskCommand(opts *RootOptions, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the reference-document assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.OpenAnswerer == nil {
				return fmt.Errorf("assistant is not available")
			}
			answerer, err := deps.OpenAnswerer(cmd.Context(), opts.ConfigPath, opts.logger(cmd))
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			reply := answerer.Answer(cmd.Context(), question)
			return write(cmd, opts, map[string]string{"question": question, "answer": reply}, reply)
		},
	}
}

type normalizeView struct {
	Plain     string   `json:"plain"`
	Local     string   `json:"local,omitempty"`
	Plus      string   `json:"plus,omitempty"`
	JID       string   `json:"jid,omitempty"`
	Ambiguous bool     `json:"ambiguous"`
	Variants  []string `json:"variants"`
}

func newNormalizeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <phone>",
		Short: "Show how a phone number is matched against the employee directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := phone.Normalize(args[0])
			if key.IsZero() {
				return fmt.Errorf("%q contains no digits", args[0])
			}
			view := normalizeView{
				Plain:     key.Plain,
				Local:     key.Local,
				Plus:      key.Plus,
				JID:       key.JID(),
				Ambiguous: key.Ambiguous,
				Variants:  key.Variants(),
			}
			text := fmt.Sprintf("variants: %s\njid: %s", strings.Join(view.Variants, ", "), view.JID)
			if key.Ambiguous {
				text += "\nwarning: number is ambiguous, only the raw digits are matched"
			}
			return write(cmd, opts, view, text)
		},
	}
}
