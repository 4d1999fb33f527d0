package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", "json")

	log.WithField("file_id", 7).Debug("dbg")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "dbg", line["msg"])
	assert.Equal(t, "debug", line["level"])
	assert.EqualValues(t, 7, line["file_id"])
}

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
}

func TestNew_UnknownLevel(t *testing.T) {
	log := NewWithWriter(&bytes.Buffer{}, "chatty", "text")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
