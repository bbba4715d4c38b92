package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instaprofiler/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel)

	parent := log.WithField("account", "alice")
	parent.
		WithField("relation", "followers").
		WithFields(map[string]interface{}{"page": 3, "done": false}).
		InfoWithFields("page fetched", map[string]interface{}{"count": 300})

	out := buf.String()
	assert.Contains(t, out, `"app":"instaprofiler"`)
	assert.Contains(t, out, `"account":"alice"`)
	assert.Contains(t, out, `"relation":"followers"`)
	assert.Contains(t, out, `"page":3`)
	assert.Contains(t, out, `"done":false`)
	assert.Contains(t, out, `"count":300`)

	buf.Reset()
	parent.Info("parent only")
	assert.NotContains(t, buf.String(), "relation", "child fields must not leak into parent")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel)

	assert.Same(t, log, log.WithError(nil))

	log.WithError(errors.New("disk full")).Error("commit failed")
	assert.Contains(t, buf.String(), `"error":"disk full"`)
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel)

	log.WithFields(map[string]interface{}{
		"int64":    int64(456),
		"time":     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"custom":   struct{ Name string }{Name: "test"},
	}).Info("all types")

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"Name":"test"`)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	tl := NewTestLogger()
	assert.Same(t, Logger(tl), OrNop(tl))
}

func TestTestLoggerCapturesDerivedLoggers(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("account", "bob").WithError(errors.New("boom"))
	child.Warn("retrying")
	tl.Info("top level")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "bob", msgs[0].Fields["account"])
	assert.EqualError(t, msgs[0].Error, "boom")
	assert.True(t, tl.HasMessage("top level"))
	assert.False(t, tl.HasError())
	assert.Contains(t, tl.String(), "[WARN] retrying")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}
