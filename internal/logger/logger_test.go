package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  log.Level
		ok    bool
	}{
		{"debug", log.DebugLevel, true},
		{"INFO", log.InfoLevel, true},
		{" warn ", log.WarnLevel, true},
		{"warning", log.WarnLevel, true},
		{"Error", log.ErrorLevel, true},
		{"fatal", log.FatalLevel, true},
		{"", log.InfoLevel, false},
		{"verbose", log.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetLevelAndOutput(t *testing.T) {
	prevLevel := Logger.GetLevel()
	defer func() {
		Logger.SetLevel(prevLevel)
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel("error")
	Info("hidden message")
	Error("visible message", "key", "value")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden message"))
	assert.Contains(t, out, "visible message")
	assert.Contains(t, out, "key=value")

	// unknown names leave the level untouched
	SetLevel("nonsense")
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestLogFilePath(t *testing.T) {
	path := LogFilePath("CLIENT")
	assert.True(t, strings.HasSuffix(path, "waytablet-client.log"), path)
}
