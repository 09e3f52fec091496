package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/i18n"
	"github.com/yok-tottii/local-dictation/internal/logger"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "local-dictation",
	Short: "Offline push-to-talk and wake word dictation",
	Long: `local-dictation captures the microphone, finds speech with a VAD and
transcribes it locally with whisper.cpp. Transcripts are printed to stdout.

Triggers:
  hold the hotkey chord       push-to-talk
  double-tap the chord        hands-free, ends on trailing silence (--taps)
  say the wake phrase         one utterance, ends on trailing silence`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, .yaml/.toml/.json (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig loads and validates the config file, applying global flags
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger logs to stderr, or to rotating files when log.dir is set
func newLogger(cfg config.Config) (*logger.Logger, error) {
	lc, err := cfg.LoggerSettings()
	if err != nil {
		return nil, err
	}
	if lc.LogDir == "" {
		return logger.NewWriter(os.Stderr, lc.Level), nil
	}
	return logger.New(lc)
}

func newTranslator(cfg config.Config) *i18n.Translator {
	return i18n.NewTranslator(cfg.Language())
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "エラー: %s: %v\n", msg, err)
}
