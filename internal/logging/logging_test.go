package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("hidden")
	logger.Warn("shown", "screen", 1)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "screen=1")
}

func TestRotatingWriterRotatesAndKeepsMaxFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tilecomp.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 4; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	for _, name := range []string{path, path + ".1", path + ".2"} {
		info, err := os.Stat(name)
		require.NoError(t, err, name)
		assert.Equal(t, int64(len(line)), info.Size(), name)
	}
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err))

	_, err = w.Write(line)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestNewWithFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilecomp.log")
	logger, closer, err := New(config.LoggingConfig{Level: "info", File: path}, nil)
	require.NoError(t, err)
	logger.Info("compose", "frame", 7)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame=7")
}
