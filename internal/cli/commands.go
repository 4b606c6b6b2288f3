package cli

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipforge/engine/internal/server"
)

// withApp wires the engine, installs signal-driven cancellation, and tears
// the workspaces down after the command body returns.
func withApp(cmd *cobra.Command, body func(ctx context.Context, a *app) error) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer a.teardown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return body(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func beatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beats <input>",
		Short: "Detect beats in an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				found, err := a.beats.DetectBeats(ctx, args[0], threshold, logSink(a.log))
				if err != nil {
					return err
				}
				return printJSON(cmd, found)
			})
		},
	}
	cmd.Flags().Float64("threshold", 0.3, "Beat detection sensitivity")
	return cmd
}

func tempoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tempo <input>",
		Short: "Estimate the tempo of an audio file in BPM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				bpm, err := a.beats.DetectTempo(ctx, args[0], logSink(a.log))
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]float64{"bpm": bpm})
			})
		},
	}
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <input> <output-dir>",
		Short: "Split a media file into segments at detected beats",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				segments, err := a.beats.SplitAtBeats(ctx, args[0], args[1], threshold, logSink(a.log))
				if err != nil {
					return err
				}
				return printJSON(cmd, segments)
			})
		},
	}
	cmd.Flags().Float64("threshold", 0.3, "Beat detection sensitivity")
	return cmd
}

func removeBGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-bg <input> <output>",
		Short: "Remove the background from an image or video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			video, _ := cmd.Flags().GetBool("video")
			alpha, _ := cmd.Flags().GetBool("alpha")
			bgColor, _ := cmd.Flags().GetString("bg-color")
			model, _ := cmd.Flags().GetString("model")
			fps, _ := cmd.Flags().GetFloat64("fps")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if video {
					return a.bg.RemoveVideoBackground(ctx, args[0], args[1], alpha, bgColor, model, fps, logSink(a.log))
				}
				return a.bg.RemoveImageBackground(ctx, args[0], args[1], alpha, bgColor, model, logSink(a.log))
			})
		},
	}
	cmd.Flags().Bool("video", false, "Treat the input as a video")
	cmd.Flags().Bool("alpha", false, "Keep transparency instead of filling the background")
	cmd.Flags().String("bg-color", "", "Background fill color as #RRGGBB")
	cmd.Flags().String("model", "", "Segmentation model name")
	cmd.Flags().Float64("fps", 0, "Output frame rate (video only, 0 keeps source)")
	return cmd
}

func chromaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chroma <input> <output>",
		Short: "Key out a color from a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyColor, _ := cmd.Flags().GetString("key-color")
			similarity, _ := cmd.Flags().GetFloat64("similarity")
			smoothness, _ := cmd.Flags().GetFloat64("smoothness")
			spill, _ := cmd.Flags().GetFloat64("spill")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.bg.ApplyChromaKey(ctx, args[0], args[1], keyColor, similarity, smoothness, spill, logSink(a.log))
			})
		},
	}
	cmd.Flags().String("key-color", "#00FF00", "Color to key out as #RRGGBB")
	cmd.Flags().Float64("similarity", 0.4, "Color match tolerance in [0,1]")
	cmd.Flags().Float64("smoothness", 0.1, "Edge softness in [0,1]")
	cmd.Flags().Float64("spill", 0, "Spill suppression strength in [0,1]")
	return cmd
}

func captionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captions <input>",
		Short: "Generate an SRT subtitle file for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, _ := cmd.Flags().GetString("language")
			model, _ := cmd.Flags().GetString("model")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				srt, err := a.ai.GenerateCaptions(ctx, args[0], language, model, logSink(a.log))
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]string{"srt": srt})
			})
		},
	}
	cmd.Flags().String("language", "", "Spoken language code (autodetect when empty)")
	cmd.Flags().String("model", "base", "Transcription model size")
	return cmd
}

func reframeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reframe <input> <output>",
		Short: "Recrop a video to a new aspect ratio, tracking faces",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ratio, _ := cmd.Flags().GetString("ratio")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				_, err := a.ai.SmartReframe(ctx, args[0], args[1], ratio, logSink(a.log))
				return err
			})
		},
	}
	cmd.Flags().String("ratio", "9:16", "Target aspect ratio as W:H")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the job API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Server.ListenAddr
				}
				srv := server.New(addr, server.Capabilities{
					DetectBeats:           a.beats.DetectBeats,
					DetectTempo:           a.beats.DetectTempo,
					SplitAtBeats:          a.beats.SplitAtBeats,
					RemoveImageBackground: a.bg.RemoveImageBackground,
					RemoveVideoBackground: a.bg.RemoveVideoBackground,
					ApplyChromaKey:        a.bg.ApplyChromaKey,
					GenerateCaptions:      a.ai.GenerateCaptions,
					SmartReframe:          a.ai.SmartReframe,
				}, a.log)
				return srv.Run(ctx)
			})
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	return cmd
}
