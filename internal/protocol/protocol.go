// Package protocol parses the line-oriented stdout protocol spoken by the
// generated driver scripts. Each line is classified independently; there is
// no lookahead and no state between lines.
package protocol

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/clipforge/engine/internal/types"
)

type Kind int

const (
	// Unrecognized lines are free-text diagnostics: not protocol signal,
	// but preserved for failure messages.
	Unrecognized Kind = iota
	Progress
	Beats
	Outputs
	Tempo
	Terminal
)

// Event is one classified line.
type Event struct {
	Kind Kind

	Fraction float64      // Progress, clamped to [0,1]
	Beats    []types.Beat // Beats
	Outputs  []string     // Outputs
	Tempo    float64      // Tempo
	Success  bool         // Terminal

	// Err is set when a line matched a known prefix but its payload was
	// malformed. The event still carries the (empty) decoded value; the
	// caller logs and moves on.
	Err error

	Raw string
}

const (
	progressPrefix = "PROGRESS:"
	beatsPrefix    = "BEATS:"
	outputPrefix   = "OUTPUT:"
	tempoPrefix    = "TEMPO:"
)

// Classify interprets a single output line.
func Classify(line string) Event {
	line = strings.TrimRight(line, "\r")
	ev := Event{Raw: line}

	switch {
	case strings.HasPrefix(line, progressPrefix):
		ev.Kind = Progress
		f, err := strconv.ParseFloat(strings.TrimSpace(line[len(progressPrefix):]), 64)
		if err != nil {
			ev.Err = err
			return ev
		}
		ev.Fraction = clamp01(f)

	case strings.HasPrefix(line, beatsPrefix):
		ev.Kind = Beats
		var pairs [][]float64
		if err := json.Unmarshal([]byte(line[len(beatsPrefix):]), &pairs); err != nil {
			ev.Err = err
			return ev
		}
		for _, p := range pairs {
			if len(p) < 2 {
				continue
			}
			ev.Beats = append(ev.Beats, types.Beat{Time: p[0], Confidence: p[1]})
		}

	case strings.HasPrefix(line, outputPrefix):
		ev.Kind = Outputs
		if err := json.Unmarshal([]byte(line[len(outputPrefix):]), &ev.Outputs); err != nil {
			ev.Err = err
			ev.Outputs = nil
			return ev
		}

	case strings.HasPrefix(line, tempoPrefix):
		ev.Kind = Tempo
		f, err := strconv.ParseFloat(strings.TrimSpace(line[len(tempoPrefix):]), 64)
		if err != nil {
			ev.Err = err
			return ev
		}
		ev.Tempo = f

	case strings.TrimSpace(line) == "SUCCESS":
		ev.Kind = Terminal
		ev.Success = true

	case strings.TrimSpace(line) == "FAILED":
		ev.Kind = Terminal
		ev.Success = false
	}

	return ev
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
