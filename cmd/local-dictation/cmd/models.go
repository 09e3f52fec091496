package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/local-dictation/internal/api"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Whisper models in the model directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tr := newTranslator(cfg)
		dir := modelDir(cfg)

		models, err := api.ScanModels(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		params := map[string]string{"dir": dir}
		if len(models) == 0 {
			fmt.Fprintln(out, tr.TranslateWithFormat("cli.no_models", params))
			return nil
		}
		fmt.Fprintln(out, tr.TranslateWithFormat("cli.models_header", params))
		for _, m := range models {
			star := " "
			if m.Recommended {
				star = "*"
			}
			fmt.Fprintf(out, " %s %-28s %10s\n", star, m.Name, m.Size)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
