package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/yok-tottii/local-dictation/internal/api"
	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/config"
	"github.com/yok-tottii/local-dictation/internal/hotkey"
	"github.com/yok-tottii/local-dictation/internal/logger"
	"github.com/yok-tottii/local-dictation/internal/notification"
	"github.com/yok-tottii/local-dictation/internal/observe"
	"github.com/yok-tottii/local-dictation/internal/permissions"
	"github.com/yok-tottii/local-dictation/internal/recognition"
	"github.com/yok-tottii/local-dictation/internal/recording"
	"github.com/yok-tottii/local-dictation/internal/sched"
	"github.com/yok-tottii/local-dictation/internal/server"
	"github.com/yok-tottii/local-dictation/internal/vad"
	"github.com/yok-tottii/local-dictation/internal/wakeword"
)

var runFlags struct {
	device      string
	model       string
	chord       string
	taps        bool
	wake        []string
	metricsAddr string
	notify      bool
	json        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start dictation and print transcripts to stdout",
	Long: `Start the capture pipeline, the hotkey listener and, when enabled, the
wake word listener. Each transcript is printed as one line on stdout, or as
one JSON object per line with --json. Logs go to stderr or the log directory.`,
	RunE: runDictation,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.device, "device", "", "input device name substring")
	f.StringVar(&runFlags.model, "model", "", "model name or path")
	f.StringVar(&runFlags.chord, "chord", "", "hotkey chord, e.g. CTRL+ALT+SPACE")
	f.BoolVar(&runFlags.taps, "taps", false, "enable double-tap hands-free recording")
	f.StringSliceVar(&runFlags.wake, "wake", nil, "enable the wake word listener with these phrases")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "serve /metrics and /api on this address")
	f.BoolVar(&runFlags.notify, "notify", false, "show desktop notifications")
	f.BoolVar(&runFlags.json, "json", false, "print results as JSON lines")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays the command line onto the loaded config
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Audio.Device = runFlags.device
	}
	if f.Changed("model") {
		cfg.Recognition.ModelPath = runFlags.model
	}
	if f.Changed("chord") {
		cfg.Hotkey.Chord = runFlags.chord
	}
	if f.Changed("taps") {
		cfg.Hotkey.Taps = runFlags.taps
	}
	if f.Changed("wake") {
		cfg.WakeWord.Enabled = len(runFlags.wake) > 0
		cfg.WakeWord.Phrases = runFlags.wake
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = runFlags.metricsAddr
	}
	if f.Changed("notify") {
		cfg.Notify.Enabled = runFlags.notify
	}
}

func runDictation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		printError("設定の読み込みに失敗しました", err)
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		printError("設定が不正です", err)
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		printError("ロガーの初期化に失敗しました", err)
		return err
	}
	defer log.Close()
	tr := newTranslator(cfg)

	log.Info("local-dictation v%s を起動しています", version)
	if report := permissions.Check(); !report.Granted() {
		for _, m := range report.Missing() {
			log.Warn("権限がありません: %s", m)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown: %v", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Warn("メトリクスを無効化します: %v", err)
		metrics = observe.Nop()
	}

	// Audio
	host, err := audio.NewPortAudioHost()
	if err != nil {
		printError("オーディオの初期化に失敗しました", err)
		return err
	}
	defer host.Close()

	negotiator := audio.NewNegotiator(host, log)
	if cfg.Audio.SampleRate > 0 {
		negotiator.TargetRate = cfg.Audio.SampleRate
	}
	sel := negotiator.PickRate(cfg.Audio.Device)
	log.Info("入力デバイス: %s (%d Hz)", sel.DeviceName, sel.SampleRate)

	audioCfg := cfg.AudioSettings()
	recorder, err := audio.NewRecorder(host, sel, audioCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	// VAD: each consumer owns its classifier state
	vadCfg := cfg.VADSettings()
	endpointVAD, err := vad.New(vadCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create VAD: %w", err)
	}
	defer endpointVAD.Close()

	var trimVAD vad.Classifier
	if cfg.VAD.TrimSilence {
		if trimVAD, err = vad.New(vadCfg, log); err != nil {
			return fmt.Errorf("failed to create VAD: %w", err)
		}
		defer trimVAD.Close()
	}

	// Recognition
	scheduler := sched.New()
	scheduler.Start()
	defer scheduler.Stop()

	recCfg, err := cfg.RecognitionSettings()
	if err != nil {
		printError("モデルが見つかりません", err)
		return err
	}
	whisper, err := recognition.NewWhisper(recCfg, nil, scheduler, nil, log)
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}
	defer whisper.Close()

	log.Info("モデルを読み込んでいます: %s", recCfg.ModelPath)
	if err := whisper.Warmup(ctx); err != nil {
		printError("モデルの読み込みに失敗しました", err)
		return err
	}

	var notifier *notification.NotificationManager
	if cfg.Notify.Enabled {
		notifier = notification.NewNotificationManager("local-dictation", tr)
	}

	// The wake detector and dictation share one model
	var modelLock sync.Mutex
	var mgr *recording.Manager

	var detector *wakeword.Detector
	if cfg.WakeWord.Enabled {
		wakeVAD, err := vad.New(vadCfg, log)
		if err != nil {
			return fmt.Errorf("failed to create wake VAD: %w", err)
		}
		defer wakeVAD.Close()

		detector, err = wakeword.New(cfg.WakeWordSettings(), wakeword.Deps{
			Source:          host,
			Selection:       sel,
			FramesPerBuffer: audioCfg.FramesPerBuffer,
			Classifier:      wakeVAD,
			Transcriber:     whisper,
			Lock:            &modelLock,
			OnDetect: func(phrase string) {
				log.Info("ウェイクワードを検出: %s", phrase)
				if notifier != nil {
					if err := notifier.WakeDetected(phrase); err != nil {
						log.Debug("notification: %v", err)
					}
				}
				mgr.OnWake(phrase)
			},
			Log:     log,
			Metrics: metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create wake word detector: %w", err)
		}
	}

	deps := recording.Deps{
		Recorder:       recorder,
		Transcriber:    whisper,
		Lock:           &modelLock,
		Classifier:     endpointVAD,
		TrimClassifier: trimVAD,
		Scheduler:      scheduler,
		Log:            log,
		Metrics:        metrics,
	}
	if detector != nil {
		deps.Wake = detector
	}
	mgr, err = recording.New(cfg.RecordingSettings(), deps)
	if err != nil {
		return fmt.Errorf("failed to create recording manager: %w", err)
	}

	// Hotkey
	chord, err := cfg.Chord()
	if err != nil {
		return err
	}
	display := hotkey.FormatChord(chord)
	for _, c := range hotkey.CheckConflicts(chord) {
		log.Warn("%s", tr.TranslateWithFormat("cli.conflict", map[string]string{"chord": display, "name": c.Name}))
	}
	listener, err := hotkey.NewListener(chord, cfg.HotkeyOptions(), hotkey.Callbacks{
		OnChordActive: mgr.OnChordActive,
		OnChordCancel: mgr.OnChordCancel,
		OnToggle:      mgr.OnToggle,
	}, hotkey.NewGlobalSource(), log)
	if err != nil {
		return fmt.Errorf("failed to create hotkey listener: %w", err)
	}

	// Status server
	var srv *server.Server
	if cfg.Metrics.Addr != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		srv = server.New(srvCfg, log)
		srv.Handle("/metrics", promhttp.Handler())
		apiDeps := api.Deps{
			Recording: mgr,
			Model:     whisper,
			Host:      host,
			Selection: sel,
			Chord:     chord,
			ModelDir:  modelDir(cfg),
		}
		if detector != nil {
			apiDeps.Wake = detector
		}
		api.New(apiDeps).RegisterRoutes(srv.Mux())
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start status server: %w", err)
		}
		defer srv.Stop(context.Background())
	}

	mgr.Start(ctx)
	if detector != nil {
		if err := detector.Start(ctx); err != nil {
			mgr.Stop()
			return fmt.Errorf("failed to start wake word detector: %w", err)
		}
	}
	if err := listener.Start(ctx); err != nil {
		if detector != nil {
			detector.Stop()
		}
		mgr.Stop()
		printError("ホットキーの登録に失敗しました", err)
		return err
	}

	readyKey := "cli.ready"
	if cfg.Hotkey.Taps {
		readyKey = "cli.ready_taps"
	}
	fmt.Fprintln(os.Stderr, tr.TranslateWithFormat(readyKey, map[string]string{"chord": display}))
	if detector != nil {
		fmt.Fprintln(os.Stderr, tr.TranslateWithFormat("cli.wake_ready", map[string]string{
			"phrases": strings.Join(cfg.WakeWord.Phrases, ", "),
		}))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return printResults(cmd.OutOrStdout(), mgr.Results(), runFlags.json, notifier, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("シャットダウンしています")
		if err := listener.Stop(); err != nil {
			log.Warn("hotkey stop: %v", err)
		}
		if detector != nil {
			if err := detector.Stop(); err != nil {
				log.Warn("wake word stop: %v", err)
			}
		}
		// closes Results, which ends printResults
		mgr.Stop()
		return nil
	})
	return g.Wait()
}

func modelDir(cfg config.Config) string {
	dir, err := config.ExpandPath(cfg.Recognition.ModelDir)
	if err != nil || dir == "" {
		return recognition.DefaultModelDir()
	}
	return dir
}

type jsonResult struct {
	ID         string `json:"id"`
	Trigger    string `json:"trigger"`
	Text       string `json:"text"`
	Samples    int    `json:"samples"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// printResults writes each transcript until results is closed
func printResults(w io.Writer, results <-chan recording.Result, asJSON bool, notifier *notification.NotificationManager, log logger.Interface) error {
	enc := json.NewEncoder(w)
	for res := range results {
		if res.Err != nil {
			log.Error("文字起こしに失敗しました (%s): %v", res.ID, res.Err)
		}
		if asJSON {
			out := jsonResult{
				ID:         res.ID.String(),
				Trigger:    res.Trigger,
				Text:       res.Text,
				Samples:    res.Samples,
				DurationMs: res.Duration.Milliseconds(),
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		} else if res.Err == nil && res.Text != "" {
			if _, err := fmt.Fprintln(w, res.Text); err != nil {
				return err
			}
		}

		if notifier != nil {
			var err error
			if res.Err != nil {
				err = notifier.TranscriptionFailed(res.Err)
			} else if res.Text != "" {
				err = notifier.TranscriptionComplete(res.Text)
			}
			if err != nil {
				log.Debug("notification: %v", err)
			}
		}
	}
	return nil
}
