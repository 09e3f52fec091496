package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/local-dictation/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tr := newTranslator(cfg)

		host, err := audio.NewPortAudioHost()
		if err != nil {
			return err
		}
		defer host.Close()

		devices, err := audio.ListInputDevices(host)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(devices) == 0 {
			fmt.Fprintln(out, tr.Translate("cli.no_devices"))
			return nil
		}
		fmt.Fprintln(out, tr.Translate("cli.devices_header"))
		for _, d := range devices {
			mark := ""
			if d.IsDefault {
				mark = " (" + tr.Translate("cli.default") + ")"
			}
			fmt.Fprintf(out, "  [%d] %s%s  %d ch, %.0f Hz\n", d.ID, d.Name, mark, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
