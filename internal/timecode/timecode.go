// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package timecode parses duration-prober output into the HH:MM:SS.mmm
// timecode strings stored on media rows.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/stagelab/cuecore/internal/errs"
)

// probePattern matches the leading sexagesimal duration in ffprobe output,
// e.g. "0:00:03.havoc" does not match, "0:00:03.123456" does.
var probePattern = regexp.MustCompile(`^(\d{1,2}:\d{2}:\d{2})(\.\d{6})`)

// FromProbe converts raw prober output into an HH:MM:SS.mmm timecode.
// The six-digit fraction is rounded to three decimals; a fraction that
// rounds up into 1.* is clamped to .9 rather than carrying into the
// seconds field.
//
// TODO: drop the clamp once the timecode type consumed by the cue parser
// handles six-digit fractions natively.
func FromProbe(output string) (string, error) {
	m := probePattern.FindStringSubmatch(strings.TrimSpace(output))
	if m == nil {
		return "", errs.ErrNotTimecode
	}
	frac, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", errs.ErrNotTimecode
	}
	rounded := math.Round(frac*1000) / 1000
	if rounded >= 1 {
		return m[1] + ".9", nil
	}
	return fmt.Sprintf("%s.%03d", m[1], int(math.Round(rounded*1000))), nil
}

// Seconds converts an HH:MM:SS[.mmm] timecode into seconds, as passed to
// the waveform renderer's end flag.
func Seconds(tc string) (float64, error) {
	var h, m int
	var s float64
	if _, err := fmt.Sscanf(tc, "%d:%d:%f", &h, &m, &s); err != nil {
		return 0, fmt.Errorf("parse timecode %q: %w", tc, err)
	}
	return float64(h*3600+m*60) + s, nil
}
