package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Format: "json", Output: &buf})

	l.WithFields(map[string]interface{}{"component": "pricing"}).
		Info("procedure created", "procedure_id", "p-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "procedure created", entry["message"])
	assert.Equal(t, "pricing", entry["component"])
	assert.Equal(t, "p-1", entry["procedure_id"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: ErrorLevel, Format: "json", Output: &buf})

	l.Info("ignored")
	l.Debug("ignored")
	assert.Zero(t, buf.Len())

	l.Error(errors.New("boom"), "failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}
