package ports

import (
	"context"
	"time"
)

// Prober reports the duration of a media file.
type Prober interface {
	ProbeDuration(ctx context.Context, inMedia string) (time.Duration, error)
}

// AudioExtractor pulls a mono 16 kHz WAV out of a media file, the input
// format transcription tools expect.
type AudioExtractor interface {
	ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error
}

// Transcriber turns an audio file into an SRT subtitle file and returns its
// path.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, outDir, language, model string) (string, error)
}
