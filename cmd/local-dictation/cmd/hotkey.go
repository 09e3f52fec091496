package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/local-dictation/internal/api"
)

var checkHotkeyCmd = &cobra.Command{
	Use:   "check-hotkey [chord]",
	Short: "Validate a hotkey chord and list conflicting system shortcuts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := strings.Join(args, "")
		if spec == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			spec = cfg.Hotkey.Chord
		}

		v := api.ValidateChord(spec)
		out := cmd.OutOrStdout()
		if !v.Valid {
			return errors.New(v.Error)
		}
		fmt.Fprintf(out, "%s (%s)\n", v.Display, v.Chord)
		for _, c := range v.Conflicts {
			fmt.Fprintf(out, "  ⚠ %s\n", c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkHotkeyCmd)
}
