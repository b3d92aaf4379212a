package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openeduvoice/slidevoice/internal/command"
	"github.com/openeduvoice/slidevoice/internal/config"
)

// fakeRunner records invocations and writes output to the last argument
// that looks like the requested output path.
type fakeRunner struct {
	calls  [][]string
	output []byte
	err    error
	outArg func(args []string) string
}

func (f *fakeRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) (command.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return command.Result{Command: name, ExitCode: 1}, f.err
	}
	if out := f.outArg(args); out != "" {
		if err := os.WriteFile(out, f.output, 0o644); err != nil {
			return command.Result{}, err
		}
	}
	return command.Result{Command: name}, nil
}

func TestFFmpegConvert(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "slide_01.wav")
	runner := &fakeRunner{output: []byte("RIFF"), outArg: func(a []string) string { return a[len(a)-1] }}
	conv := NewFFmpeg("/opt/ffmpeg/bin/ffmpeg", runner, zerolog.Nop())

	if err := conv.Convert(context.Background(), "media/slide_01.m4a", out); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	got := strings.Join(runner.calls[0], " ")
	for _, want := range []string{
		"/opt/ffmpeg/bin/ffmpeg ",
		"-i media/slide_01.m4a",
		"-ac 1",
		"-ar 16000",
		"-c:a pcm_s16le",
		"-map_metadata -1",
		"+bitexact",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("args %q missing %q", got, want)
		}
	}
}

func TestFFmpegConvertFailures(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "slide_01.wav")

	t.Run("command_error", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("exit status 1"), outArg: func([]string) string { return "" }}
		err := NewFFmpeg("", runner, zerolog.Nop()).Convert(context.Background(), "in.mp3", out)
		if err == nil || !strings.Contains(err.Error(), "in.mp3") {
			t.Errorf("err = %v, want error naming in.mp3", err)
		}
		if runner.calls[0][0] != "ffmpeg" {
			t.Errorf("binary = %q, want ffmpeg default", runner.calls[0][0])
		}
	})

	t.Run("empty_output", func(t *testing.T) {
		runner := &fakeRunner{output: nil, outArg: func(a []string) string { return a[len(a)-1] }}
		err := NewFFmpeg("", runner, zerolog.Nop()).Convert(context.Background(), "in.mp3", out)
		if err == nil || !strings.Contains(err.Error(), "empty output") {
			t.Errorf("err = %v, want empty output error", err)
		}
	})
}

func TestSoxConvert(t *testing.T) {
	out := filepath.Join(t.TempDir(), "slide_02.wav")
	runner := &fakeRunner{output: []byte("RIFF"), outArg: func(a []string) string {
		for i, v := range a {
			if v == "wav" && i+1 < len(a) {
				return a[i+1]
			}
		}
		return ""
	}}
	if err := NewSox("", runner, zerolog.Nop()).Convert(context.Background(), "in.wav", out); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	got := strings.Join(runner.calls[0], " ")
	if !strings.Contains(got, "rate 16000 channels 1") {
		t.Errorf("args %q missing resample chain", got)
	}
}

func TestCheckMissingBinary(t *testing.T) {
	conv := NewFFmpeg("definitely-not-a-real-ffmpeg-binary", command.ExecRunner{}, zerolog.Nop())
	err := conv.Check(context.Background())
	if !errors.Is(err, command.ErrNotFound) {
		t.Errorf("Check err = %v, want ErrNotFound", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		converter string
		want      string
		wantErr   bool
	}{
		{"", "ffmpeg", false},
		{"FFmpeg", "ffmpeg", false},
		{"sox", "sox", false},
		{"lame", "", true},
	}
	for _, tt := range tests {
		conv, err := New(&config.Config{Converter: tt.converter}, command.ExecRunner{}, zerolog.Nop())
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q) expected error", tt.converter)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%q): %v", tt.converter, err)
		}
		if conv.Name() != tt.want {
			t.Errorf("New(%q).Name() = %q, want %q", tt.converter, conv.Name(), tt.want)
		}
	}
}
