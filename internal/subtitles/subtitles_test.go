package subtitles

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sampleSRT = "1\n00:00:00,000 --> 00:00:02,500\nhello world\n"

func TestNewestPicksMostRecentSRT(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	old := filepath.Join(dir, "old.srt")
	recent := filepath.Join(dir, "recent.srt")
	writeFile(t, old, sampleSRT)
	writeFile(t, recent, sampleSRT)
	writeFile(t, filepath.Join(dir, "clip.mp4"), "not a subtitle")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := Newest(dir)
	if err != nil {
		t.Fatalf("Newest: %v", err)
	}
	if got != recent {
		t.Fatalf("Newest = %s, want %s", got, recent)
	}
}

func TestNewestNoSRT(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "audio.wav"), "x")

	if _, err := Newest(dir); err == nil {
		t.Fatal("expected error for directory without .srt files")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.srt")
	bad := filepath.Join(dir, "bad.srt")
	writeFile(t, good, sampleSRT)
	writeFile(t, bad, "just some text\nwith no timings\n")

	if err := Validate(good); err != nil {
		t.Fatalf("Validate(good): %v", err)
	}
	if err := Validate(bad); err == nil {
		t.Fatal("Validate(bad): expected error")
	}
}
