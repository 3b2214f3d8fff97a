package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readChannel(t *testing.T, dir, ch string) string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*_"+ch+".log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	return string(b)
}

func TestRotatingWriterKeepsRotatedFile(t *testing.T) {
	dir := t.TempDir()
	w, err := newRotatingWriter(dir, "relayer_test", 10)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first---\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second--\n"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	current, err := os.ReadFile(filepath.Join(dir, "relayer_test.log"))
	require.NoError(t, err)
	assert.Equal(t, "second--\n", string(current))
}

func TestAnomaliesReachRelayAndAnomalyFiles(t *testing.T) {
	SetConsoleEnabled(false)
	defer SetConsoleEnabled(true)

	dir := t.TempDir()
	require.NoError(t, Init(dir, "test"))

	AnomalyLogger.Error("Signing anomaly", "code", "tampered_or_already_signed")
	RelayLogger.Info("Rejected relay request")
	CloseAll()

	assert.Contains(t, readChannel(t, dir, ChannelAnomaly), "Signing anomaly")
	assert.NotContains(t, readChannel(t, dir, ChannelAnomaly), "Rejected relay request")
	assert.Contains(t, readChannel(t, dir, ChannelRelay), "Signing anomaly")
	assert.Contains(t, readChannel(t, dir, ChannelRelay), "Rejected relay request")
	assert.Empty(t, readChannel(t, dir, ChannelDispatch))
}

func TestSetLevel(t *testing.T) {
	defer func() { _ = SetLevel("info") }()

	require.NoError(t, SetLevel("debug"))
	assert.True(t, RelayLogger.Enabled(context.Background(), slog.LevelDebug))

	require.NoError(t, SetLevel("warn"))
	assert.False(t, DispatchLogger.Enabled(context.Background(), slog.LevelInfo))

	assert.Error(t, SetLevel("loud"))
}
