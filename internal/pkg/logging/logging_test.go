package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWriter_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	SetupWriter(&buf, "prod", "warn")

	log.Info().Msg("hidden")
	log.Warn().Str("document_id", "7").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "7", entry["document_id"])
	assert.Equal(t, "shown", entry["message"])
}

func TestSetupWriter_BadLevelDefaultsToInfo(t *testing.T) {
	SetupWriter(&bytes.Buffer{}, "dev", "loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
