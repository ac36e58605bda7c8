package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := Setup("rewardd", "test", Options{Output: &buf, Level: "debug"})
	defer closer.Close()
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	logger.Debug("listing created", "listing", "rwd1abc", "passphrase", "hunter2")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "listing created", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "rewardd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "rwd1abc", line["listing"])
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Contains(t, line, "timestamp")
}

func TestSetupHonoursLevelAndFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "rewardd.log")
	logger, closer := Setup("rewardd", "", Options{Output: &buf, Level: "warn", File: path, MaxSizeMB: 1})
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, closer.Close())

	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), "kept")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "kept"))
}

func TestSensitiveKeys(t *testing.T) {
	for _, key := range []string{"passphrase", "Private_Key", "SECRET", "private-key"} {
		if !IsSensitive(key) {
			t.Fatalf("%q should be sensitive", key)
		}
	}
	if IsSensitive("listing") {
		t.Fatalf("listing should not be sensitive")
	}
	require.Equal(t, " ", MaskValue(" "))
	require.Equal(t, RedactedValue, MaskValue("x"))
	require.Len(t, SensitiveKeys(), 6)
}
