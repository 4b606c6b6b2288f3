// Package subtitles locates and sanity-checks SRT files produced by external
// transcription tools, which name their output after the input file rather
// than accepting an output path.
package subtitles

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Newest returns the most recently modified .srt file in dir, or an error if
// none exists.
func Newest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read subtitle dir: %w", err)
	}

	var (
		newest    string
		newestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".srt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no .srt file in %s", dir)
	}
	return newest, nil
}

// Validate checks that path looks like an SRT file: non-empty and containing
// at least one timing line. It does not parse the full format.
func Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.Contains(sc.Text(), "-->") {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%s: no subtitle timing lines", path)
}
