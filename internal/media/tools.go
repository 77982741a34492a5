// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/stagelab/cuecore/internal/timecode"
)

// Prober extracts the playable duration of a media file as an
// HH:MM:SS.mmm timecode.
type Prober interface {
	Duration(ctx context.Context, path string) (string, error)
}

// Deriver produces the derivative artifacts stored next to the media:
// a PNG thumbnail and, for audio, a binary waveform file.
type Deriver interface {
	Thumbnail(ctx context.Context, src, dst string, seek bool) error
	WaveformImage(ctx context.Context, src, dst string, seconds float64) error
	WaveformData(ctx context.Context, src, dst string) error
}

// Toolchain shells out to ffprobe, ffmpeg and audiowaveform. Binaries
// are resolved through PATH unless overridden.
type Toolchain struct {
	FFprobeBin       string
	FFmpegBin        string
	AudiowaveformBin string
	Timeout          time.Duration
}

// NewToolchain returns a Toolchain with the default binary names and a
// 30 second per-invocation timeout.
func NewToolchain() *Toolchain {
	return &Toolchain{
		FFprobeBin:       "ffprobe",
		FFmpegBin:        "ffmpeg",
		AudiowaveformBin: "audiowaveform",
		Timeout:          30 * time.Second,
	}
}

func (t *Toolchain) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Duration probes the file and parses the first timecode line of the
// output, rounded to millisecond precision.
func (t *Toolchain) Duration(ctx context.Context, path string) (string, error) {
	out, err := t.run(ctx, t.FFprobeBin,
		"-sexagesimal",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return "", err
	}
	return timecode.FromProbe(string(out))
}

// Thumbnail extracts a single frame scaled to 240px wide. For movies the
// frame is taken 200ms in so title fades do not yield a black frame.
func (t *Toolchain) Thumbnail(ctx context.Context, src, dst string, seek bool) error {
	args := make([]string, 0, 10)
	if seek {
		args = append(args, "-ss", "200ms")
	}
	args = append(args, "-i", src, "-vf", "scale=240:-1", "-vframes", "1", dst)
	_, err := t.run(ctx, t.FFmpegBin, args...)
	return err
}

// WaveformImage renders a 240x240 amplitude plot of the audio file.
func (t *Toolchain) WaveformImage(ctx context.Context, src, dst string, seconds float64) error {
	_, err := t.run(ctx, t.AudiowaveformBin,
		"-i", src,
		"-o", dst,
		"-e", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-w", "240",
		"-h", "240",
		"--no-axis-labels",
		"--amplitude-scale", "0.9")
	return err
}

// WaveformData writes the 8-bit binary waveform consumed by the editor's
// timeline view.
func (t *Toolchain) WaveformData(ctx context.Context, src, dst string) error {
	_, err := t.run(ctx, t.AudiowaveformBin, "-i", src, "-o", dst, "-b", "8")
	return err
}
