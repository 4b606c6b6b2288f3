package whisper

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/clipforge/engine/internal/subtitles"
)

// Adapter drives the OpenAI whisper CLI. The tool names its SRT output after
// the input file inside --output_dir, so the produced file is located by
// modification time rather than by a path we choose.
type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "whisper"
	}
	return &Adapter{bin: binPath}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, outDir, language, model string) (string, error) {
	if model == "" {
		model = "base"
	}
	args := []string{
		wavPath,
		"--output_format", "srt",
		"--output_dir", outDir,
		"--model", model,
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("whisper failed: %w\n%s", err, string(b))
	}

	srt, err := subtitles.Newest(outDir)
	if err != nil {
		return "", err
	}
	if err := subtitles.Validate(srt); err != nil {
		return "", err
	}
	return srt, nil
}
