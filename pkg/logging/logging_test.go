package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anonymizer.log")
	cfg := DefaultConfig()
	cfg.File = path
	cfg.Level = "debug"

	logger, err := New(cfg)
	require.NoError(t, err)
	defer zap.ReplaceGlobals(zap.NewNop())

	logger.Info("run completed", zap.String("run_id", "abc"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run completed"`)
	assert.Contains(t, string(data), `"run_id":"abc"`)
	assert.Same(t, logger, zap.L())
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "xml"
	_, err := New(cfg)
	assert.Error(t, err)
}
