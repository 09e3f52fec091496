package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/permissions"
	"github.com/yok-tottii/local-dictation/internal/wizard"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and create the model directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := wizard.NewSetupWizard(configPath(), "")
		if err != nil {
			return err
		}
		existed := !w.IsFirstRun()
		created, err := w.Run(initForce)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range created {
			fmt.Fprintf(out, "作成しました: %s\n", p)
		}
		if existed && !initForce {
			fmt.Fprintf(out, "設定ファイルは既に存在します: %s (--force で上書き)\n", w.GetConfigPath())
		}

		cfg, err := config.Load(w.GetConfigPath())
		if err != nil {
			return err
		}
		printProgress(out, w.GetProgress(cfg))
		return nil
	},
}

var doctorOpenSettings bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the setup: config, model, hotkey and permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := wizard.NewSetupWizard(configPath(), "")
		if err != nil {
			return err
		}
		cfg, err := config.Load(w.GetConfigPath())
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ 設定: %v\n", err)
		}
		progress := w.GetProgress(cfg)
		printProgress(cmd.OutOrStdout(), progress)

		if doctorOpenSettings && !progress.PermissionsGranted {
			return permissions.OpenSettings(permissions.Check())
		}
		if !progress.Complete() {
			return fmt.Errorf("setup incomplete: %d item(s) missing", len(progress.Missing))
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	doctorCmd.Flags().BoolVar(&doctorOpenSettings, "open-settings", false, "open the system privacy settings when a permission is missing")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
}

func printProgress(out io.Writer, p wizard.SetupProgress) {
	check := func(ok bool, label string) {
		mark := "✗"
		if ok {
			mark = "✓"
		}
		fmt.Fprintf(out, "%s %s\n", mark, label)
	}
	check(p.ConfigWritten, "config")
	check(p.ModelDirExists, "model directory")
	check(p.ModelFound, "model")
	check(p.HotkeyValid, "hotkey")
	check(p.PermissionsGranted, "permissions")
	for _, m := range p.Missing {
		fmt.Fprintf(out, "  - %s\n", m)
	}
}
