package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Info("chart drawn")
	require.Zero(t, buf.Len())

	log.Warn("publish failed", "attempt", 2)
	require.Contains(t, buf.String(), "publish failed")
	require.Contains(t, buf.String(), "attempt")
}
