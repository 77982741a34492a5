// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelab/cuecore/internal/errs"
)

func TestFromProbe(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"plain rounding", "0:00:03.123456", "0:00:03.123"},
		{"rounds up", "0:00:03.123678", "0:00:03.124"},
		{"trailing output ignored", "0:01:10.000500\nextra line", "0:01:10.001"},
		{"two digit hours", "12:34:56.500000", "12:34:56.500"},
		{"overflow clamped", "0:00:03.999999", "0:00:03.9"},
		{"whitespace trimmed", "  0:00:01.250000  ", "0:00:01.250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromProbe(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromProbeRejectsGarbage(t *testing.T) {
	for _, out := range []string{"", "N/A", "duration=3.14", "0:00:03", "0:00:03.123"} {
		_, err := FromProbe(out)
		assert.ErrorIs(t, err, errs.ErrNotTimecode, "input %q", out)
	}
}

func TestSeconds(t *testing.T) {
	got, err := Seconds("0:01:30.500")
	require.NoError(t, err)
	assert.InDelta(t, 90.5, got, 1e-9)

	got, err = Seconds("2:00:00")
	require.NoError(t, err)
	assert.InDelta(t, 7200, got, 1e-9)
}
