package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clipforge/engine/internal/adapters/ai"
	"github.com/clipforge/engine/internal/adapters/background"
	"github.com/clipforge/engine/internal/adapters/beats"
	"github.com/clipforge/engine/internal/config"
	"github.com/clipforge/engine/internal/ports/adapters/ffmpeg"
	"github.com/clipforge/engine/internal/ports/adapters/whisper"
	"github.com/clipforge/engine/internal/proc"
	"github.com/clipforge/engine/internal/script"
	"github.com/clipforge/engine/internal/task"
	"github.com/clipforge/engine/internal/types"
	"github.com/clipforge/engine/internal/workspace"
)

// app is the fully wired engine: one workspace and engine per adapter
// family, a shared process runner, and the three capability adapters.
type app struct {
	cfg config.Config
	log *zap.Logger

	beats *beats.Detector
	bg    *background.Remover
	ai    *ai.Services

	workspaces []*workspace.Workspace
}

func buildApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	runner := proc.NewRunner(log)
	runner.Grace = cfg.Grace()

	video := ffmpeg.New(cfg.Tools.FFmpeg, cfg.Tools.FFprobe)
	scribe := whisper.New(cfg.Tools.Whisper)

	newEngine := func(family string) (*task.Engine, *workspace.Workspace) {
		ws := workspace.New(cfg.Workspace.Root, family)
		return task.NewEngine(runner, script.NewEmitter(ws), log), ws
	}

	a := &app{cfg: cfg, log: log}

	beatsEngine, beatsWS := newEngine("beats")
	a.beats = beats.NewDetector(beatsEngine, video, beats.Config{
		Python:         cfg.Tools.Python,
		Aubio:          cfg.Tools.Aubio,
		DetectPhaseEnd: cfg.Split.DetectPhaseEnd,
	}, log)

	bgEngine, bgWS := newEngine("background")
	a.bg = background.NewRemover(bgEngine, background.Config{Python: cfg.Tools.Python}, log)

	aiEngine, aiWS := newEngine("ai")
	a.ai = ai.NewServices(aiEngine, aiWS, video, scribe, ai.Config{Python: cfg.Tools.Python}, log)

	a.workspaces = []*workspace.Workspace{beatsWS, bgWS, aiWS}
	return a, nil
}

// teardown removes generated driver scripts. Result artifacts (SRT files,
// segments) stay where the task put them.
func (a *app) teardown() {
	for _, ws := range a.workspaces {
		if err := ws.Purge(".py"); err != nil {
			a.log.Warn("workspace purge failed", zap.String("dir", ws.Dir()), zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// logSink renders task events as log lines for terminal use.
func logSink(log *zap.Logger) task.Sink {
	return task.Funcs{
		OnProgress: func(fraction float64, message string) {
			log.Info("progress",
				zap.Int("percent", int(fraction*100)),
				zap.String("stage", message),
			)
		},
		OnCompleted: func(c types.Completion) {
			switch {
			case c.Canceled:
				log.Warn("task canceled", zap.String("message", c.Message))
			case c.Success:
				log.Info("task complete",
					zap.String("message", c.Message),
					zap.String("output", c.OutputPath),
				)
			default:
				log.Error("task failed", zap.String("message", c.Message))
			}
		},
	}
}
