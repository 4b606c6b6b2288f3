package task

import (
	"context"
	"errors"
	"testing"

	"github.com/clipforge/engine/internal/types"
)

func beatsOutcome(times ...float64) Outcome {
	var out Outcome
	for _, tm := range times {
		out.Beats = append(out.Beats, types.Beat{Time: tm, Confidence: 1})
	}
	return out
}

func noBeats(o Outcome) bool { return len(o.Beats) == 0 }

func TestTwoAttemptPrimarySucceeds(t *testing.T) {
	t.Parallel()

	fallbackRan := false
	s := TwoAttempt{
		Primary: func(context.Context) (Outcome, error) {
			return beatsOutcome(1.0), nil
		},
		Fallback: func(context.Context) (Outcome, error) {
			fallbackRan = true
			return beatsOutcome(2.0), nil
		},
		Empty: noBeats,
	}

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fallbackRan {
		t.Fatal("fallback ran despite primary success")
	}
	if len(out.Beats) != 1 || out.Beats[0].Time != 1.0 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestTwoAttemptFallbackOnPrimaryError(t *testing.T) {
	t.Parallel()

	s := TwoAttempt{
		Primary: func(context.Context) (Outcome, error) {
			return Outcome{}, errors.New("aubio driver blew up")
		},
		Fallback: func(context.Context) (Outcome, error) {
			return beatsOutcome(0.5), nil
		},
		Empty: noBeats,
	}

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Beats) != 1 || out.Beats[0].Time != 0.5 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestTwoAttemptFallbackOnEmptyPrimary(t *testing.T) {
	t.Parallel()

	s := TwoAttempt{
		Primary: func(context.Context) (Outcome, error) {
			return Outcome{}, nil // clean exit, zero beats
		},
		Fallback: func(context.Context) (Outcome, error) {
			return beatsOutcome(3.0), nil
		},
		Empty: noBeats,
	}

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Beats) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestTwoAttemptBothEmptyYieldsErrEmptyResult(t *testing.T) {
	t.Parallel()

	s := TwoAttempt{
		Primary:  func(context.Context) (Outcome, error) { return Outcome{}, nil },
		Fallback: func(context.Context) (Outcome, error) { return Outcome{}, nil },
		Empty:    noBeats,
	}

	if _, err := s.Run(context.Background()); !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("err = %v, want ErrEmptyResult", err)
	}
}

func TestTwoAttemptFallbackErrorSurfaces(t *testing.T) {
	t.Parallel()

	fbErr := errors.New("librosa fallback failed too")
	s := TwoAttempt{
		Primary:  func(context.Context) (Outcome, error) { return Outcome{}, errors.New("primary") },
		Fallback: func(context.Context) (Outcome, error) { return Outcome{}, fbErr },
		Empty:    noBeats,
	}

	if _, err := s.Run(context.Background()); !errors.Is(err, fbErr) {
		t.Fatalf("err = %v, want fallback error", err)
	}
}

func TestTwoAttemptNoFallbackAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	fallbackRan := false
	s := TwoAttempt{
		Primary: func(context.Context) (Outcome, error) {
			cancel()
			return Outcome{}, ErrCanceled
		},
		Fallback: func(context.Context) (Outcome, error) {
			fallbackRan = true
			return beatsOutcome(1.0), nil
		},
		Empty: noBeats,
	}

	if _, err := s.Run(ctx); !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if fallbackRan {
		t.Fatal("fallback ran after cancellation")
	}
}
