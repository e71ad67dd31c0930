package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var fields map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &fields))
		out = append(out, fields)
	}
	return out
}

func TestInitJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})

	Info("dropped")
	Logger.Warn().Msg("kept")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Contains(t, entries[0], "time")
}

func TestChildLoggers(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	gateway := WithGateway("D1-A2-Z3-V4")
	gateway.Info().Msg("gateway")
	segment := WithSegment("D1-A2-Z3-S5")
	segment.Debug().Msg("segment")
	zone := WithZone(3)
	zone.Info().Msg("zone")
	component := WithComponent("reconciler")
	component.Info().Msg("component")

	entries := lines(t, &buf)
	require.Len(t, entries, 4)
	assert.Equal(t, "D1-A2-Z3-V4", entries[0]["gateway"])
	assert.Equal(t, "D1-A2-Z3-S5", entries[1]["segment"])
	assert.Equal(t, "3", entries[2]["zone_id"])
	assert.Equal(t, "reconciler", entries[3]["component"])
}

func TestInitUnknownLevelDefaultsToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	Init(Config{Level: "verbose", JSONOutput: true, Output: &buf})

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
