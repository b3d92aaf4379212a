package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openeduvoice/slidevoice/internal/config"
	"github.com/openeduvoice/slidevoice/internal/pipeline"
)

var version = "dev"

var overrides config.Overrides

var rootCmd = &cobra.Command{
	Use:   "slidevoice",
	Short: "Translate and re-voice narrated presentations",
	Long: `slidevoice extracts the narration of every slide in a .pptx package,
transcribes it, translates narration and on-slide text, synthesizes new
narration and writes a combined package in the target language.

Every stage records its progress in {name}_transcript/manifest.json and can
be re-run; finished slides are not processed again.

Examples:
  # Whole pipeline, German to English
  slidevoice run lecture.pptx --source-lang de --target-lang en

  # One stage at a time
  slidevoice extract lecture.pptx
  slidevoice transcribe lecture.pptx
  slidevoice status lecture.pptx`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default: .env)")
	rootCmd.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&overrides.OutputDir, "out", "", "project directory (default: {name}_transcript next to the deck)")
	rootCmd.PersistentFlags().StringVar(&overrides.SourceLang, "source-lang", "", "narration language, e.g. de")
	rootCmd.PersistentFlags().StringVar(&overrides.TargetLang, "target-lang", "", "target language, e.g. en")

	for _, stage := range pipeline.Stages {
		rootCmd.AddCommand(stageCmd(stage))
	}
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

// setup loads configuration, builds the logger and opens the project.
func setup(ctx context.Context, source string) (*pipeline.Pipeline, zerolog.Logger, error) {
	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg.LogLevel)
	log.Debug().Str("version", version).Msg("slidevoice starting")

	p, err := pipeline.Open(ctx, source, cfg, log)
	if err != nil {
		return nil, log, err
	}
	return p, log, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).With().Timestamp().Logger().Level(lvl)
}

// signalContext is cancelled on SIGINT or SIGTERM so in-flight slides can
// finish and be recorded.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
